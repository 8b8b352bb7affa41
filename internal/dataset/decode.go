package dataset

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/gazelab/gazequad/internal/gaze"
	"golang.org/x/image/draw"
)

// DecodeFile reads a PNG or JPEG image and converts it to shape.
func DecodeFile(path string, shape gaze.Shape) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return Convert(img, shape)
}

// Convert resizes img to shape with bilinear filtering and returns HWC
// values scaled to [0,1]. One channel means grayscale, three means RGB.
func Convert(img image.Image, shape gaze.Shape) ([]float32, error) {
	var rect = image.Rect(0, 0, shape.Width, shape.Height)
	var res = make([]float32, shape.Size())
	switch shape.Channels {
	case 1:
		var dst = image.NewGray(rect)
		draw.BiLinear.Scale(dst, rect, img, img.Bounds(), draw.Src, nil)
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				res[shape.Index(y, x, 0)] = float32(dst.Pix[y*dst.Stride+x]) / 255
			}
		}
	case 3:
		var dst = image.NewRGBA(rect)
		draw.BiLinear.Scale(dst, rect, img, img.Bounds(), draw.Src, nil)
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				var p = y*dst.Stride + 4*x
				for c := 0; c < 3; c++ {
					res[shape.Index(y, x, c)] = float32(dst.Pix[p+c]) / 255
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported channel count %d", shape.Channels)
	}
	return res, nil
}

// ToImage converts HWC values in [0,1] back into an image.
func ToImage(input []float32, shape gaze.Shape) (image.Image, error) {
	var rect = image.Rect(0, 0, shape.Width, shape.Height)
	var clamp = func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v*255 + 0.5)
	}
	switch shape.Channels {
	case 1:
		var img = image.NewGray(rect)
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				img.Pix[y*img.Stride+x] = clamp(input[shape.Index(y, x, 0)])
			}
		}
		return img, nil
	case 3:
		var img = image.NewRGBA(rect)
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				var p = y*img.Stride + 4*x
				for c := 0; c < 3; c++ {
					img.Pix[p+c] = clamp(input[shape.Index(y, x, c)])
				}
				img.Pix[p+3] = 255
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("unsupported channel count %d", shape.Channels)
}
