package dataset

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gazelab/gazequad/internal/gaze"
	"go.uber.org/multierr"
)

// WriteImages stores samples as PNG files in the <dir>/<quadrant>/ layout
// read by Loader.
func WriteImages(dir string, samples []gaze.Sample, shape gaze.Shape) error {
	for i := range samples {
		var s = &samples[i]
		var classDir = filepath.Join(dir, gaze.Quadrant(s.Label).String())
		if err := os.MkdirAll(classDir, os.ModePerm); err != nil {
			return err
		}
		img, err := ToImage(s.Input, shape)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(classDir, fmt.Sprintf("%06d.png", i)), img); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return png.Encode(f, img)
}
