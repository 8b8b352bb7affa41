package dataset

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/gazelab/gazequad/internal/gaze"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Loader decodes a labelled image folder into samples.
type Loader struct {
	Shape      gaze.Shape
	Threads    int
	MaxSamples int
	Cache      *Cache
	Logger     *zap.Logger
}

type indexedSample struct {
	index int
	gaze.Sample
}

// Load decodes every image under folder. Samples come back in path order
// regardless of the number of decoder threads. With MaxSamples set only the
// first MaxSamples files in path order are decoded.
func (l *Loader) Load(ctx context.Context, folder string) ([]gaze.Sample, error) {
	var logger = l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Load dataset started", zap.String("folder", folder))

	files, err := imageFiles(folder, logger)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrEmpty, folder)
	}
	var total = len(files)
	if l.MaxSamples > 0 && len(files) > l.MaxSamples {
		files = files[:l.MaxSamples]
	}
	var threads = l.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)

	var paths = make(chan imageFile, 128)
	var results = make(chan indexedSample, 128)

	g.Go(func() error {
		defer close(paths)
		return walkFiles(ctx, files, paths)
	})

	var res []indexedSample
	g.Go(func() error {
		res = collect(results)
		return nil
	})

	var wg = &sync.WaitGroup{}
	for i := 0; i < threads; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return l.decodeFiles(ctx, paths, results)
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].index < res[j].index
	})
	var samples = make([]gaze.Sample, len(res))
	for i := range res {
		samples[i] = res[i].Sample
	}
	logger.Info("Load dataset finished",
		zap.String("folder", folder),
		zap.Int("samples", len(samples)),
		zap.Int("files", total))
	return samples, nil
}

func collect(results <-chan indexedSample) []indexedSample {
	var res []indexedSample
	for s := range results {
		res = append(res, s)
	}
	return res
}

func (l *Loader) decodeFiles(
	ctx context.Context,
	files <-chan imageFile,
	results chan<- indexedSample,
) error {
	for f := range files {
		input, err := l.decode(f.path)
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case results <- indexedSample{index: f.index, Sample: gaze.Sample{Input: input, Label: f.label}}:
		}
	}
	return nil
}

func (l *Loader) decode(path string) ([]float32, error) {
	if l.Cache == nil {
		return DecodeFile(path, l.Shape)
	}
	return l.Cache.Decode(path, l.Shape)
}
