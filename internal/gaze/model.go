package gaze

import (
	"math/rand"

	"github.com/gazelab/gazequad/internal/ml"
)

// Sample is one image in HWC layout with values in [0,1] and its class.
type Sample struct {
	Input []float32
	Label int
}

// Model is the gaze network. It is not safe for concurrent use;
// concurrent training uses ThreadCopy.
type Model struct {
	topology Topology
	input    []Neuron
	layers   []ILayer
	cost     ml.IClassCost
	logits   []float64
	delta    []float64
}

// NewModel builds the network described by topology. Weights are
// initialized from rnd; a nil rnd leaves them zero (used when loading).
func NewModel(topology Topology, rnd *rand.Rand) (*Model, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	var m = &Model{
		topology: topology.clone(),
		input:    make([]Neuron, topology.Input.Size()),
		cost:     &ml.SoftmaxCrossEntropyCost{},
		logits:   make([]float64, topology.Classes),
		delta:    make([]float64, topology.Classes),
	}
	var shape = topology.Input
	for _, filters := range topology.ConvFilters {
		var conv = NewConv2D(shape, filters, topology.KernelSize, ml.ReLU{})
		m.layers = append(m.layers, conv)
		shape = conv.OutputShape()
	}
	if topology.PoolSize > 1 {
		var pool = NewMaxPool2D(shape, topology.PoolSize)
		m.layers = append(m.layers, pool)
		shape = pool.OutputShape()
	}
	var inputSize = shape.Size()
	for _, hidden := range topology.Hidden {
		m.layers = append(m.layers, NewDense(inputSize, hidden, ml.ReLU{}))
		inputSize = hidden
	}
	m.layers = append(m.layers, NewDense(inputSize, topology.Classes, ml.Identity{}))
	if rnd != nil {
		for _, layer := range m.layers {
			layer.InitWeights(rnd)
		}
	}
	return m, nil
}

func (m *Model) Topology() Topology {
	return m.topology.clone()
}

func (m *Model) ThreadCopy() *Model {
	var layers = make([]ILayer, len(m.layers))
	for i, layer := range m.layers {
		layers[i] = layer.ThreadCopy()
	}
	return &Model{
		topology: m.topology,
		input:    make([]Neuron, len(m.input)),
		layers:   layers,
		cost:     m.cost,
		logits:   make([]float64, len(m.logits)),
		delta:    make([]float64, len(m.delta)),
	}
}

func (m *Model) forward(input []float32) []float64 {
	for i := range m.input {
		m.input[i].Activation = float64(input[i])
	}
	var prev = m.input
	for _, layer := range m.layers {
		layer.Forward(prev)
		prev = layer.Outputs()
	}
	for i := range m.logits {
		m.logits[i] = prev[i].Activation
	}
	return m.logits
}

// Predict returns class probabilities for one image.
func (m *Model) Predict(input []float32) []float64 {
	var probs = make([]float64, m.topology.Classes)
	ml.Softmax(m.forward(input), probs)
	return probs
}

func (m *Model) Classify(input []float32) int {
	return ml.ArgMax(m.forward(input))
}

func (m *Model) CalcCost(sample *Sample) float64 {
	return m.cost.Cost(m.forward(sample.Input), sample.Label)
}

// Train runs forward and backward passes for one sample, accumulating
// gradients, and returns the sample cost.
func (m *Model) Train(sample *Sample) float64 {
	var logits = m.forward(sample.Input)
	var cost = m.cost.Cost(logits, sample.Label)
	m.cost.CostPrime(logits, sample.Label, m.delta)
	var last = m.layers[len(m.layers)-1].Outputs()
	for i := range last {
		last[i].Error = m.delta[i]
	}
	// back propagation
	for i := len(m.layers) - 1; i >= 0; i-- {
		var input = m.input
		if i > 0 {
			input = m.layers[i-1].Outputs()
		}
		m.layers[i].Backward(input)
	}
	return cost
}

func (m *Model) AddGradients(mainModel *Model) {
	if m == mainModel {
		return
	}
	for i := range m.layers {
		m.layers[i].AddGradients(mainModel.layers[i])
	}
}

func (m *Model) ApplyGradients(opt ml.IOptimizer, scale, l2 float64) {
	for _, layer := range m.layers {
		layer.ApplyGradients(opt, scale, l2)
	}
}

// Error is the fraction of samples whose predicted class differs from the label.
func (m *Model) Error(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var mistakes int
	for i := range samples {
		if m.Classify(samples[i].Input) != samples[i].Label {
			mistakes++
		}
	}
	return float64(mistakes) / float64(len(samples))
}

func (m *Model) params() []*ml.Matrix {
	var res []*ml.Matrix
	for _, layer := range m.layers {
		res = append(res, layer.Params()...)
	}
	return res
}
