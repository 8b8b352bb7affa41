package gaze

import (
	"math"
	"math/rand"

	"github.com/gazelab/gazequad/internal/ml"
)

// MaxPool2D pools non-overlapping size×size windows (VALID padding).
type MaxPool2D struct {
	input    Shape
	output   Shape
	size     int
	outputs  []Neuron
	switches []int
}

func NewMaxPool2D(input Shape, size int) *MaxPool2D {
	var output = Shape{
		Height:   input.Height / size,
		Width:    input.Width / size,
		Channels: input.Channels,
	}
	return &MaxPool2D{
		input:    input,
		output:   output,
		size:     size,
		outputs:  make([]Neuron, output.Size()),
		switches: make([]int, output.Size()),
	}
}

func (l *MaxPool2D) OutputShape() Shape { return l.output }
func (l *MaxPool2D) Outputs() []Neuron  { return l.outputs }

func (l *MaxPool2D) Params() []*ml.Matrix {
	return nil
}

func (l *MaxPool2D) InitWeights(rnd *rand.Rand) {}

func (l *MaxPool2D) AddGradients(main ILayer) {}

func (l *MaxPool2D) ApplyGradients(opt ml.IOptimizer, scale, l2 float64) {}

func (l *MaxPool2D) ThreadCopy() ILayer {
	return NewMaxPool2D(l.input, l.size)
}

func (l *MaxPool2D) Forward(input []Neuron) {
	var in, out = l.input, l.output
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			for c := 0; c < out.Channels; c++ {
				var best = math.Inf(-1)
				var bestIndex = -1
				for dy := 0; dy < l.size; dy++ {
					for dx := 0; dx < l.size; dx++ {
						var i = in.Index(y*l.size+dy, x*l.size+dx, c)
						if input[i].Activation > best {
							best = input[i].Activation
							bestIndex = i
						}
					}
				}
				var o = out.Index(y, x, c)
				l.switches[o] = bestIndex
				l.outputs[o].Activation = best
				l.outputs[o].Prime = 1
			}
		}
	}
}

func (l *MaxPool2D) Backward(input []Neuron) {
	for i := range input {
		input[i].Error = 0
	}
	for o := range l.outputs {
		input[l.switches[o]].Error += l.outputs[o].Error
	}
}
