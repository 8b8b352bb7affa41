package ml

import "math"

// IClassCost is a classification cost over raw network outputs (logits).
type IClassCost interface {
	Cost(logits []float64, target int) float64
	// CostPrime writes dCost/dLogit into delta.
	CostPrime(logits []float64, target int, delta []float64)
}

// SoftmaxCrossEntropyCost applies softmax to the logits and measures
// cross entropy against a one-hot target.
type SoftmaxCrossEntropyCost struct{}

func (*SoftmaxCrossEntropyCost) Cost(logits []float64, target int) float64 {
	var probs = make([]float64, len(logits))
	Softmax(logits, probs)
	return -math.Log(math.Max(probs[target], 1e-12))
}

func (*SoftmaxCrossEntropyCost) CostPrime(logits []float64, target int, delta []float64) {
	Softmax(logits, delta)
	delta[target] -= 1
}

// Softmax writes the normalized exponentials of x into out.
func Softmax(x, out []float64) {
	var hi = math.Inf(-1)
	for _, v := range x {
		if v > hi {
			hi = v
		}
	}
	var sum float64
	for i, v := range x {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

// ArgMax returns the index of the largest element, the first one on ties.
func ArgMax(x []float64) int {
	var best = 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
