package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gazelab/gazequad/internal/gaze"
	"go.uber.org/zap"
)

var ErrEmpty = errors.New("dataset is empty")

type imageFile struct {
	index int
	path  string
	label int
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// imageFiles lists <folder>/<quadrant>/*.{png,jpg,jpeg} in a stable order.
// Subdirectories whose name is not a quadrant are skipped.
func imageFiles(folder string, logger *zap.Logger) ([]imageFile, error) {
	dirs, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var result []imageFile
	for _, de := range dirs {
		if !de.IsDir() {
			continue
		}
		quadrant, err := gaze.ParseQuadrant(de.Name())
		if err != nil {
			logger.Debug("Skipping directory", zap.String("dir", de.Name()), zap.Error(err))
			continue
		}
		var classDir = filepath.Join(folder, de.Name())
		files, err := os.ReadDir(classDir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !f.IsDir() && imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
				result = append(result, imageFile{
					path:  filepath.Join(classDir, f.Name()),
					label: int(quadrant),
				})
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].path < result[j].path
	})
	for i := range result {
		result[i].index = i
	}
	return result, nil
}

func walkFiles(
	ctx context.Context,
	files []imageFile,
	out chan<- imageFile,
) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- f:
		}
	}
	return nil
}

// CountImages reports how many labelled images folder holds.
func CountImages(folder string) (int, error) {
	files, err := imageFiles(folder, zap.NewNop())
	if err != nil {
		return 0, fmt.Errorf("list images: %w", err)
	}
	return len(files), nil
}
