package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax(t *testing.T) {
	var out = make([]float64, 3)
	Softmax([]float64{1, 2, 3}, out)
	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.True(t, out[0] < out[1] && out[1] < out[2])

	// large logits must not overflow
	Softmax([]float64{1000, 1000}, out[:2])
	assert.InDelta(t, 0.5, out[0], 1e-12)
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, 2, ArgMax([]float64{0.1, 0.2, 0.7, 0}))
	assert.Equal(t, 0, ArgMax([]float64{0.5, 0.5}))
}

func TestSoftmaxCrossEntropyPrime(t *testing.T) {
	var cost = &SoftmaxCrossEntropyCost{}
	var logits = []float64{0.3, -1.2, 2.0, 0.1}
	var delta = make([]float64, len(logits))
	cost.CostPrime(logits, 1, delta)

	const eps = 1e-6
	for i := range logits {
		var plus = append([]float64(nil), logits...)
		var minus = append([]float64(nil), logits...)
		plus[i] += eps
		minus[i] -= eps
		var numeric = (cost.Cost(plus, 1) - cost.Cost(minus, 1)) / (2 * eps)
		assert.InDelta(t, numeric, delta[i], 1e-6, "logit %d", i)
	}
}

func TestRMSPropFirstStep(t *testing.T) {
	var opt = NewRMSProp(0.1)
	var g = Gradient{Value: 2}
	var delta = opt.Step(&g)
	var ms = 0.9 + 0.1*4
	assert.InDelta(t, 0.1*2/math.Sqrt(ms+RMSPropEpsilon), delta, 1e-12)
	assert.InDelta(t, ms, g.M2, 1e-12)
	assert.Equal(t, 1, g.Steps)

	g.Value = 0
	assert.Equal(t, 0.0, opt.Step(&g))
	assert.InDelta(t, 0.9*ms, g.M2, 1e-12)
	assert.Equal(t, 2, g.Steps)
}

func TestRMSPropZeroFirstStep(t *testing.T) {
	var opt = NewRMSProp(0.1)
	var g Gradient
	assert.Equal(t, 0.0, opt.Step(&g))
	assert.InDelta(t, 0.9, g.M2, 1e-12)
	assert.Equal(t, 1, g.Steps)
}

func TestGradientsApply(t *testing.T) {
	var m = NewMatrix(2, 1)
	m.Data[0], m.Data[1] = 1, -1
	var g = NewGradients(2, 1)
	var delta = NewMatrix(2, 1)
	delta.Add(0, 0, 4)
	g.AddMatrix(&delta)
	g.Apply(&m, &Adam{LearningRate: 0.5}, 0.25, 0)
	assert.Less(t, m.Data[0], 1.0)
	assert.Equal(t, -1.0, m.Data[1])
	for _, x := range g.Data {
		assert.Equal(t, 0.0, x.Value)
	}

	// weight decay alone pulls weights toward zero
	g.Apply(&m, NewRMSProp(0.01), 1, 0.1)
	assert.Greater(t, m.Data[1], -1.0)
}

func TestMatrixAddTo(t *testing.T) {
	var a = NewMatrix(2, 2)
	var b = NewMatrix(2, 2)
	a.Add(1, 0, 3)
	b.Add(1, 0, 1)
	a.AddTo(&b)
	assert.Equal(t, 4.0, b.Get(1, 0))
	assert.Equal(t, 0.0, a.Get(1, 0))
}

func TestNewOptimizer(t *testing.T) {
	opt, err := NewOptimizer("", 0.01)
	require.NoError(t, err)
	assert.IsType(t, &RMSProp{}, opt)

	opt, err = NewOptimizer("Adam", 0.01)
	require.NoError(t, err)
	assert.IsType(t, &Adam{}, opt)

	_, err = NewOptimizer("sgd-nesterov", 0.01)
	assert.Error(t, err)
}

func TestInitXavier(t *testing.T) {
	var rnd = rand.New(rand.NewSource(1))
	var data = make([]float64, 1000)
	InitXavier(rnd, data, 30, 20)
	var limit = math.Sqrt(6.0 / 50)
	for _, x := range data {
		assert.LessOrEqual(t, math.Abs(x), limit+1e-12)
	}
}
