package gaze

import (
	"math/rand"

	"github.com/gazelab/gazequad/internal/ml"
)

type Neuron struct {
	Activation float64
	Error      float64
	Prime      float64
}

// ILayer is one stage of the network. Forward fills Outputs from the input
// neurons. Backward reads the output errors, accumulates parameter
// gradients and overwrites the errors of the input neurons.
type ILayer interface {
	OutputShape() Shape
	Outputs() []Neuron
	Forward(input []Neuron)
	Backward(input []Neuron)
	InitWeights(rnd *rand.Rand)
	// ThreadCopy shares weights with the receiver but owns outputs and gradients.
	ThreadCopy() ILayer
	AddGradients(main ILayer)
	ApplyGradients(opt ml.IOptimizer, scale, l2 float64)
	// Params returns weights followed by biases, nil for parameterless layers.
	Params() []*ml.Matrix
}
