package dataset

import (
	"math"
	"math/rand"

	"github.com/gazelab/gazequad/internal/gaze"
)

// Synthetic draws n noisy frames with a bright blob inside a random
// quadrant. It stands in for webcam data in smoke tests and demos.
func Synthetic(rnd *rand.Rand, n int, shape gaze.Shape) []gaze.Sample {
	var samples = make([]gaze.Sample, n)
	var halfW, halfH = float64(shape.Width) / 2, float64(shape.Height) / 2
	var radius = math.Max(1, math.Min(halfW, halfH)/2)
	for i := range samples {
		var label = rnd.Intn(gaze.QuadrantCount)
		var cx = (0.25 + 0.5*rnd.Float64()) * halfW
		var cy = (0.25 + 0.5*rnd.Float64()) * halfH
		if label == int(gaze.TopRight) || label == int(gaze.BottomRight) {
			cx += halfW
		}
		if label == int(gaze.BottomLeft) || label == int(gaze.BottomRight) {
			cy += halfH
		}
		var input = make([]float32, shape.Size())
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				var dx, dy = float64(x) + 0.5 - cx, float64(y) + 0.5 - cy
				var blob = math.Exp(-(dx*dx + dy*dy) / (2 * radius * radius))
				var v = math.Min(1, 0.25*rnd.Float64()+0.75*blob)
				for c := 0; c < shape.Channels; c++ {
					input[shape.Index(y, x, c)] = float32(v)
				}
			}
		}
		samples[i] = gaze.Sample{Input: input, Label: label}
	}
	return samples
}
