package gaze

import (
	"math/rand"

	"github.com/gazelab/gazequad/internal/ml"
)

// Conv2D is a stride 1 convolution with SAME padding.
// Weight row is the filter, column is (ky*kernel+kx)*inChannels+c.
type Conv2D struct {
	input        Shape
	output       Shape
	kernel       int
	activationFn ml.IActivationFn
	outputs      []Neuron
	weights      ml.Matrix
	biases       ml.Matrix
	wDelta       ml.Matrix
	bDelta       ml.Matrix

	// optimizer state, allocated on the main model only
	wGradients *ml.Gradients
	bGradients *ml.Gradients
}

func NewConv2D(input Shape, filters, kernel int, activationFn ml.IActivationFn) *Conv2D {
	var output = Shape{Height: input.Height, Width: input.Width, Channels: filters}
	var cols = kernel * kernel * input.Channels
	return &Conv2D{
		input:        input,
		output:       output,
		kernel:       kernel,
		activationFn: activationFn,
		outputs:      make([]Neuron, output.Size()),
		weights:      ml.NewMatrix(filters, cols),
		biases:       ml.NewMatrix(filters, 1),
		wDelta:       ml.NewMatrix(filters, cols),
		bDelta:       ml.NewMatrix(filters, 1),
	}
}

func (l *Conv2D) OutputShape() Shape   { return l.output }
func (l *Conv2D) Outputs() []Neuron    { return l.outputs }
func (l *Conv2D) Params() []*ml.Matrix { return []*ml.Matrix{&l.weights, &l.biases} }

func (l *Conv2D) InitWeights(rnd *rand.Rand) {
	var fanIn = l.kernel * l.kernel * l.input.Channels
	var fanOut = l.kernel * l.kernel * l.output.Channels
	ml.InitXavier(rnd, l.weights.Data, fanIn, fanOut)
}

func (l *Conv2D) ThreadCopy() ILayer {
	return &Conv2D{
		input:        l.input,
		output:       l.output,
		kernel:       l.kernel,
		activationFn: l.activationFn,
		outputs:      make([]Neuron, len(l.outputs)),
		weights:      l.weights,
		biases:       l.biases,
		wDelta:       ml.NewMatrix(l.wDelta.Rows, l.wDelta.Cols),
		bDelta:       ml.NewMatrix(l.bDelta.Rows, l.bDelta.Cols),
	}
}

func (l *Conv2D) Forward(input []Neuron) {
	var in, out = l.input, l.output
	var pad = l.kernel / 2
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			for f := 0; f < out.Channels; f++ {
				var sum = l.biases.Data[f]
				for ky := 0; ky < l.kernel; ky++ {
					var iy = y + ky - pad
					if iy < 0 || iy >= in.Height {
						continue
					}
					for kx := 0; kx < l.kernel; kx++ {
						var ix = x + kx - pad
						if ix < 0 || ix >= in.Width {
							continue
						}
						var base = in.Index(iy, ix, 0)
						var col = (ky*l.kernel + kx) * in.Channels
						for c := 0; c < in.Channels; c++ {
							sum += l.weights.Get(f, col+c) * input[base+c].Activation
						}
					}
				}
				var n = &l.outputs[out.Index(y, x, f)]
				n.Activation = l.activationFn.Sigma(sum)
				n.Prime = l.activationFn.SigmaPrime(sum)
			}
		}
	}
}

func (l *Conv2D) Backward(input []Neuron) {
	for i := range input {
		input[i].Error = 0
	}
	var in, out = l.input, l.output
	var pad = l.kernel / 2
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			for f := 0; f < out.Channels; f++ {
				var n = &l.outputs[out.Index(y, x, f)]
				var d = n.Error * n.Prime
				if d == 0 {
					continue
				}
				l.bDelta.Add(f, 0, d)
				for ky := 0; ky < l.kernel; ky++ {
					var iy = y + ky - pad
					if iy < 0 || iy >= in.Height {
						continue
					}
					for kx := 0; kx < l.kernel; kx++ {
						var ix = x + kx - pad
						if ix < 0 || ix >= in.Width {
							continue
						}
						var base = in.Index(iy, ix, 0)
						var col = (ky*l.kernel + kx) * in.Channels
						for c := 0; c < in.Channels; c++ {
							var inputNeuron = &input[base+c]
							l.wDelta.Add(f, col+c, d*inputNeuron.Activation)
							inputNeuron.Error += l.weights.Get(f, col+c) * d
						}
					}
				}
			}
		}
	}
}

func (l *Conv2D) AddGradients(main ILayer) {
	var m = main.(*Conv2D)
	l.wDelta.AddTo(&m.wDelta)
	l.bDelta.AddTo(&m.bDelta)
}

func (l *Conv2D) ApplyGradients(opt ml.IOptimizer, scale, l2 float64) {
	if l.wGradients == nil {
		var wg = ml.NewGradients(l.wDelta.Rows, l.wDelta.Cols)
		var bg = ml.NewGradients(l.bDelta.Rows, l.bDelta.Cols)
		l.wGradients, l.bGradients = &wg, &bg
	}
	l.wGradients.AddMatrix(&l.wDelta)
	l.bGradients.AddMatrix(&l.bDelta)
	l.wDelta.Reset()
	l.bDelta.Reset()
	l.wGradients.Apply(&l.weights, opt, scale, l2)
	l.bGradients.Apply(&l.biases, opt, scale, 0)
}
