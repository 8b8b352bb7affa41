package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/gazelab/gazequad/internal/gaze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var testShape = gaze.Shape{Height: 6, Width: 8, Channels: 1}

func writeDataset(t *testing.T, n int) (string, []gaze.Sample) {
	t.Helper()
	var dir = t.TempDir()
	var samples = Synthetic(rand.New(rand.NewSource(1)), n, testShape)
	require.NoError(t, WriteImages(dir, samples, testShape))
	return dir, samples
}

func TestConvertGrayscale(t *testing.T) {
	var src = image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			src.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	input, err := Convert(src, testShape)
	require.NoError(t, err)
	require.Len(t, input, testShape.Size())
	for _, v := range input {
		assert.InDelta(t, 1.0, v, 1e-6)
	}

	input, err = Convert(src, gaze.Shape{Height: 3, Width: 4, Channels: 3})
	require.NoError(t, err)
	assert.Len(t, input, 36)

	_, err = Convert(src, gaze.Shape{Height: 3, Width: 4, Channels: 2})
	assert.Error(t, err)
}

func TestToImageRoundTrip(t *testing.T) {
	var samples = Synthetic(rand.New(rand.NewSource(2)), 1, testShape)
	img, err := ToImage(samples[0].Input, testShape)
	require.NoError(t, err)
	back, err := Convert(img, testShape)
	require.NoError(t, err)
	for i := range back {
		assert.InDelta(t, samples[0].Input[i], back[i], 1.0/255)
	}
}

func TestSyntheticBlobQuadrant(t *testing.T) {
	var shape = gaze.Shape{Height: 12, Width: 16, Channels: 1}
	for _, s := range Synthetic(rand.New(rand.NewSource(3)), 20, shape) {
		var sums [gaze.QuadrantCount]float64
		for y := 0; y < shape.Height; y++ {
			for x := 0; x < shape.Width; x++ {
				var q = 0
				if x >= shape.Width/2 {
					q++
				}
				if y >= shape.Height/2 {
					q += 2
				}
				sums[q] += float64(s.Input[shape.Index(y, x, 0)])
			}
		}
		var best = 0
		for q := range sums {
			if sums[q] > sums[best] {
				best = q
			}
		}
		assert.Equal(t, s.Label, best)
	}
}

func TestLoaderLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	var dir, samples = writeDataset(t, 24)
	// unrelated entries are ignored
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "thumbnails"), os.ModePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top_left", "notes.txt"), []byte("x"), 0o644))

	var loader = &Loader{Shape: testShape, Threads: 4}
	loaded, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, loaded, len(samples))

	var want = map[int]int{}
	var got = map[int]int{}
	for i := range samples {
		want[samples[i].Label]++
		got[loaded[i].Label]++
	}
	assert.Equal(t, want, got)

	// order does not depend on the number of threads
	loader.Threads = 1
	again, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, loaded, again)
}

func TestLoaderMaxSamples(t *testing.T) {
	defer goleak.VerifyNone(t)

	var dir, _ = writeDataset(t, 30)
	var full, err = (&Loader{Shape: testShape, Threads: 1}).Load(context.Background(), dir)
	require.NoError(t, err)

	limited, err := (&Loader{Shape: testShape, Threads: 3, MaxSamples: 10}).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, limited, 10)
	assert.Equal(t, full[:10], limited)

	// files past the limit are never decoded
	dirs, err := os.ReadDir(dir)
	require.NoError(t, err)
	var last = filepath.Join(dir, dirs[len(dirs)-1].Name(), "zzz.png")
	require.NoError(t, os.WriteFile(last, []byte("garbage"), 0o644))
	for i := 0; i < 5; i++ {
		limited, err = (&Loader{Shape: testShape, Threads: 4, MaxSamples: 10}).Load(context.Background(), dir)
		require.NoError(t, err)
		assert.Equal(t, full[:10], limited)
	}
}

func TestLoaderErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	var loader = &Loader{Shape: testShape}
	_, err := loader.Load(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	var dir, _ = writeDataset(t, 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top_left", "broken.png"), []byte("garbage"), 0o644))
	_, err = loader.Load(context.Background(), dir)
	assert.Error(t, err)

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	dir, _ = writeDataset(t, 8)
	_, err = loader.Load(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache(t *testing.T) {
	var dir, _ = writeDataset(t, 4)
	cache, err := NewCache(16)
	require.NoError(t, err)

	var loader = &Loader{Shape: testShape, Threads: 2, Cache: cache}
	first, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, cache.Len())

	second, err := loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 4, cache.Len())

	// a different geometry is a different entry
	loader.Shape = gaze.Shape{Height: 3, Width: 4, Channels: 1}
	_, err = loader.Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cache.Len())
}

func TestSplit(t *testing.T) {
	var samples = Synthetic(rand.New(rand.NewSource(4)), 10, testShape)
	training, validation := Split(samples, 0.2)
	assert.Len(t, training, 8)
	assert.Len(t, validation, 2)

	training, validation = Split(samples[:3], 0.01)
	assert.Len(t, training, 2)
	assert.Len(t, validation, 1)

	training, validation = Split(samples[:2], 1)
	assert.Len(t, training, 1)
	assert.Len(t, validation, 1)

	training, validation = Split(samples, 0)
	assert.Len(t, training, 10)
	assert.Empty(t, validation)
}

func TestWriteImagesLayout(t *testing.T) {
	var dir, samples = writeDataset(t, 8)
	for i, s := range samples {
		var path = filepath.Join(dir, gaze.Quadrant(s.Label).String(), fmt.Sprintf("%06d.png", i))
		f, err := os.Open(path)
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, testShape.Width, testShape.Height), img.Bounds())
	}
	n, err := CountImages(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}
