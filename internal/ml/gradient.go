package ml

type Gradient struct {
	Value float64
	M1    float64
	M2    float64
	Steps int
}

type Gradients struct {
	Data []Gradient
	Rows int
	Cols int
}

func NewGradients(rows, cols int) Gradients {
	return Gradients{
		Data: make([]Gradient, cols*rows),
		Rows: rows,
		Cols: cols,
	}
}

func (g *Gradients) AddMatrix(m *Matrix) {
	for i := range g.Data {
		g.Data[i].Value += m.Data[i]
	}
}

// Apply updates m with the accumulated gradients. The raw sums are
// multiplied by scale and the L2 term l2*w is added before the optimizer step.
func (g *Gradients) Apply(m *Matrix, opt IOptimizer, scale, l2 float64) {
	for i := range g.Data {
		var grad = &g.Data[i]
		grad.Value = grad.Value*scale + l2*m.Data[i]
		m.Data[i] -= opt.Step(grad)
		grad.Value = 0
	}
}
