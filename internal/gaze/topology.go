package gaze

import (
	"errors"
	"fmt"
)

// Shape is the height, width and channel count of an HWC volume.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

func (s Shape) Index(y, x, c int) int {
	return (y*s.Width+x)*s.Channels + c
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Topology describes the network: a stack of SAME-padded convolutions,
// one max pool, then fully connected layers ending in Classes logits.
type Topology struct {
	Input       Shape
	ConvFilters []int
	KernelSize  int
	PoolSize    int
	Hidden      []int
	Classes     int
}

func DefaultTopology() Topology {
	return Topology{
		Input:       Shape{Height: 96, Width: 128, Channels: 1},
		ConvFilters: []int{32, 32, 64},
		KernelSize:  3,
		PoolSize:    2,
		Hidden:      []int{256, 128},
		Classes:     QuadrantCount,
	}
}

func (t *Topology) Validate() error {
	if t.Input.Height <= 0 || t.Input.Width <= 0 || t.Input.Channels <= 0 {
		return fmt.Errorf("invalid input shape %v", t.Input)
	}
	if len(t.ConvFilters) != 0 && (t.KernelSize <= 0 || t.KernelSize%2 == 0) {
		return fmt.Errorf("kernel size must be odd and positive, got %d", t.KernelSize)
	}
	for _, f := range t.ConvFilters {
		if f <= 0 {
			return errors.New("conv filters must be positive")
		}
	}
	if t.PoolSize < 0 || t.PoolSize > t.Input.Height || t.PoolSize > t.Input.Width {
		return fmt.Errorf("invalid pool size %d for input %v", t.PoolSize, t.Input)
	}
	for _, h := range t.Hidden {
		if h <= 0 {
			return errors.New("hidden units must be positive")
		}
	}
	if t.Classes < 2 {
		return fmt.Errorf("at least two classes are expected, got %d", t.Classes)
	}
	return nil
}

func (t *Topology) clone() Topology {
	var res = *t
	res.ConvFilters = append([]int(nil), t.ConvFilters...)
	res.Hidden = append([]int(nil), t.Hidden...)
	return res
}
