package dataset

import (
	"os"

	"github.com/gazelab/gazequad/internal/gaze"
	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	path    string
	modTime int64
	size    int64
	shape   gaze.Shape
}

// Cache keeps decoded images keyed by file identity and target shape,
// so sweep runs that reload a dataset skip decoding.
type Cache struct {
	lru *lru.Cache[cacheKey, []float32]
}

func NewCache(size int) (*Cache, error) {
	c, err := lru.New[cacheKey, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Decode returns the cached conversion of path, decoding it on a miss.
// Callers must not modify the returned slice.
func (c *Cache) Decode(path string, shape gaze.Shape) ([]float32, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	var key = cacheKey{
		path:    path,
		modTime: fi.ModTime().UnixNano(),
		size:    fi.Size(),
		shape:   shape,
	}
	if input, ok := c.lru.Get(key); ok {
		return input, nil
	}
	input, err := DecodeFile(path, shape)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, input)
	return input, nil
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
