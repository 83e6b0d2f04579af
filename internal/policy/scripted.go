package policy

import (
	"github.com/circuitlab/racesim/pkg/core"
)

// Scripted steers toward the more open side of the radar fan. Inputs are
// expected in radar order, right-most ray first.
type Scripted struct {
	// FrontClearance is the forward reading below which the car turns.
	FrontClearance float64
	// Margin is the side difference that triggers a correction on a straight.
	Margin float64
	// Cruise is the forward reading above which the car speeds up.
	Cruise float64
}

// NewScripted returns a controller tuned for radar readings divided by 30.
func NewScripted() *Scripted {
	return &Scripted{FrontClearance: 3, Margin: 2, Cruise: 6}
}

func (s *Scripted) Decide(inputs []float64) core.Action {
	n := len(inputs)
	if n == 0 {
		return core.ActionBrake
	}
	mid := n / 2
	front := inputs[mid]

	var right, left float64
	for i := 0; i < mid; i++ {
		right += inputs[i]
	}
	for i := mid + 1; i < n; i++ {
		left += inputs[i]
	}

	switch {
	case front < s.FrontClearance || left-right > s.Margin || right-left > s.Margin:
		if left >= right {
			return core.ActionSteerLeft
		}
		return core.ActionSteerRight
	case front > s.Cruise:
		return core.ActionAccelerate
	default:
		return core.ActionBrake
	}
}
