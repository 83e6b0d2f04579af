// Package policy holds reference controllers for the CLI. The engine treats
// them like any other external policy.
package policy

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/circuitlab/racesim/pkg/core"
)

var ErrShape = errors.New("weight matrix has the wrong shape")

// Linear scores every action as a weighted sum of the inputs plus a bias and
// picks the highest score. Ties go to the lowest action index.
type Linear struct {
	// Weights[i][a] is the weight of input i for action a.
	Weights [][core.ActionCount]float64
	Bias    [core.ActionCount]float64
	// ComplexityWeight scales the end-of-generation bonus per active weight.
	ComplexityWeight float64
}

// NewLinear returns a zero policy for inputs features.
func NewLinear(inputs int, complexityWeight float64) *Linear {
	return &Linear{
		Weights:          make([][core.ActionCount]float64, inputs),
		ComplexityWeight: complexityWeight,
	}
}

// RandomLinear draws every weight and bias uniformly from [-scale, scale].
func RandomLinear(rng *rand.Rand, inputs int, scale, complexityWeight float64) *Linear {
	l := NewLinear(inputs, complexityWeight)
	for i := range l.Weights {
		for a := range l.Weights[i] {
			l.Weights[i][a] = (rng.Float64()*2 - 1) * scale
		}
	}
	for a := range l.Bias {
		l.Bias[a] = (rng.Float64()*2 - 1) * scale
	}
	return l
}

// Inputs is the expected feature vector length.
func (l *Linear) Inputs() int { return len(l.Weights) }

// Scores returns the raw per-action activations. Extra inputs are ignored
// and missing ones count as zero.
func (l *Linear) Scores(inputs []float64) [core.ActionCount]float64 {
	out := l.Bias
	for i, row := range l.Weights {
		if i >= len(inputs) {
			break
		}
		for a, w := range row {
			out[a] += w * inputs[i]
		}
	}
	return out
}

func (l *Linear) Decide(inputs []float64) core.Action {
	scores := l.Scores(inputs)
	best := 0
	for a := 1; a < core.ActionCount; a++ {
		if scores[a] > scores[best] {
			best = a
		}
	}
	return core.Action(best)
}

// ActiveWeights counts the non-zero weights and biases.
func (l *Linear) ActiveWeights() int {
	n := 0
	for _, row := range l.Weights {
		for _, w := range row {
			if w != 0 {
				n++
			}
		}
	}
	for _, b := range l.Bias {
		if b != 0 {
			n++
		}
	}
	return n
}

// ComplexityBonus is added once to the final fitness by the engine.
func (l *Linear) ComplexityBonus() float64 {
	return l.ComplexityWeight * float64(l.ActiveWeights())
}

// Clone returns a deep copy.
func (l *Linear) Clone() *Linear {
	c := *l
	c.Weights = append([][core.ActionCount]float64(nil), l.Weights...)
	return &c
}

// Mutate returns a copy where each parameter is perturbed with probability
// rate by a normal sample of standard deviation scale.
func (l *Linear) Mutate(rng *rand.Rand, rate, scale float64) *Linear {
	c := l.Clone()
	for i := range c.Weights {
		for a := range c.Weights[i] {
			if rng.Float64() < rate {
				c.Weights[i][a] += rng.NormFloat64() * scale
			}
		}
	}
	for a := range c.Bias {
		if rng.Float64() < rate {
			c.Bias[a] += rng.NormFloat64() * scale
		}
	}
	return c
}

// SetWeights replaces the matrix from a row-major slice of inputs*ActionCount values.
func (l *Linear) SetWeights(flat []float64) error {
	if len(flat) != len(l.Weights)*core.ActionCount {
		return fmt.Errorf("%w: got %d values for %d inputs", ErrShape, len(flat), len(l.Weights))
	}
	for i := range l.Weights {
		for a := range l.Weights[i] {
			v := flat[i*core.ActionCount+a]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite weight at %d", ErrShape, i*core.ActionCount+a)
			}
			l.Weights[i][a] = v
		}
	}
	return nil
}
