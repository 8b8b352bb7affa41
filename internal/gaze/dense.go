package gaze

import (
	"math/rand"

	"github.com/gazelab/gazequad/internal/ml"
)

// Dense is a fully connected layer over the flattened input.
type Dense struct {
	inputSize    int
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

func NewDense(inputSize, outputSize int, activationFn ml.IActivationFn) *Dense {
	return &Dense{
		inputSize:    inputSize,
		activationFn: activationFn,
		outputs:      make([]Neuron, outputSize),
		weights:      ml.NewMatrix(outputSize, inputSize),
		biases:       ml.NewMatrix(outputSize, 1),
		wDelta:       ml.NewMatrix(outputSize, inputSize),
		bDelta:       ml.NewMatrix(outputSize, 1),
	}
}

func (l *Dense) OutputShape() Shape {
	return Shape{Height: 1, Width: 1, Channels: len(l.outputs)}
}

func (l *Dense) Outputs() []Neuron    { return l.outputs }
func (l *Dense) Params() []*ml.Matrix { return []*ml.Matrix{&l.weights, &l.biases} }

func (l *Dense) InitWeights(rnd *rand.Rand) {
	ml.InitXavier(rnd, l.weights.Data, l.inputSize, len(l.outputs))
}

func (l *Dense) ThreadCopy() ILayer {
	return &Dense{
		inputSize:    l.inputSize,
		activationFn: l.activationFn,
		outputs:      make([]Neuron, len(l.outputs)),
		weights:      l.weights,
		biases:       l.biases,
		wDelta:       ml.NewMatrix(l.wDelta.Rows, l.wDelta.Cols),
		bDelta:       ml.NewMatrix(l.bDelta.Rows, l.bDelta.Cols),
	}
}

func (l *Dense) Forward(input []Neuron) {
	for outputIndex := range l.outputs {
		var x = l.biases.Data[outputIndex]
		for inputIndex := range input {
			x += l.weights.Get(outputIndex, inputIndex) * input[inputIndex].Activation
		}
		var n = &l.outputs[outputIndex]
		n.Activation = l.activationFn.Sigma(x)
		n.Prime = l.activationFn.SigmaPrime(x)
	}
}

func (l *Dense) Backward(input []Neuron) {
	for inputIndex := range input {
		input[inputIndex].Error = 0
	}
	for outputIndex := range l.outputs {
		var n = &l.outputs[outputIndex]
		var x = n.Error * n.Prime
		if x == 0 {
			continue
		}
		l.bDelta.Add(outputIndex, 0, x)
		for inputIndex := range input {
			input[inputIndex].Error += l.weights.Get(outputIndex, inputIndex) * x
			l.wDelta.Add(outputIndex, inputIndex, x*input[inputIndex].Activation)
		}
	}
}

func (l *Dense) AddGradients(main ILayer) {
	var m = main.(*Dense)
	l.wDelta.AddTo(&m.wDelta)
	l.bDelta.AddTo(&m.bDelta)
}

func (l *Dense) ApplyGradients(opt ml.IOptimizer, scale, l2 float64) {
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
