package ml

// IActivationFn is applied element-wise to the weighted sums of a layer.
type IActivationFn interface {
	Sigma(x float64) float64
	SigmaPrime(x float64) float64
}

// Identity leaves output logits untouched; softmax belongs to the cost.
type Identity struct{}

func (Identity) Sigma(x float64) float64      { return x }
func (Identity) SigmaPrime(x float64) float64 { return 1 }

// ReLU is max(0, x), with a zero derivative at 0 like tf.nn.relu.
type ReLU struct{}

func (ReLU) Sigma(x float64) float64      { return max(x, 0) }
func (ReLU) SigmaPrime(x float64) float64 { return step(x) }

func step(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}
