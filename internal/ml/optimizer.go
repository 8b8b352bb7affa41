package ml

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultLearningRate = 0.03
	RMSPropDecay        = 0.9
	RMSPropEpsilon      = 1e-10
	Beta1               = 0.9
	Beta2               = 0.999
)

// IOptimizer turns an accumulated gradient into the delta subtracted from
// the weight. Optimizer state lives in the Gradient itself.
type IOptimizer interface {
	Step(g *Gradient) float64
}

// RMSProp keeps a moving average of squared gradients in M2.
// The average starts at 1 so early steps stay close to the learning rate.
type RMSProp struct {
	LearningRate float64
	Decay        float64
	Epsilon      float64
}

func NewRMSProp(learningRate float64) *RMSProp {
	return &RMSProp{
		LearningRate: learningRate,
		Decay:        RMSPropDecay,
		Epsilon:      RMSPropEpsilon,
	}
}

func (o *RMSProp) Step(g *Gradient) float64 {
	if g.Steps == 0 {
		g.M2 = 1
	}
	g.Steps++
	// mean square decays on every step, zero gradients included
	g.M2 = o.Decay*g.M2 + (1-o.Decay)*g.Value*g.Value
	if g.Value == 0 {
		return 0
	}
	return o.LearningRate * g.Value / math.Sqrt(g.M2+o.Epsilon)
}

type Adam struct {
	LearningRate float64
}

func (o *Adam) Step(g *Gradient) float64 {
	if g.Value == 0 {
		// nothing to calculate
		return 0
	}
	g.Steps++
	g.M1 = g.M1*Beta1 + g.Value*(1-Beta1)
	g.M2 = g.M2*Beta2 + (g.Value*g.Value)*(1-Beta2)
	return o.LearningRate * g.M1 / (math.Sqrt(g.M2) + 1e-8)
}

// NewOptimizer resolves an optimizer by name.
func NewOptimizer(name string, learningRate float64) (IOptimizer, error) {
	switch strings.ToLower(name) {
	case "", "rmsprop":
		return NewRMSProp(learningRate), nil
	case "adam":
		return &Adam{LearningRate: learningRate}, nil
	}
	return nil, fmt.Errorf("unknown optimizer %q", name)
}
