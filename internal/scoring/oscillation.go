package scoring

import (
	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
)

// Classify maps a steering signal in degrees to a direction using a deadband.
func Classify(signal, deadband float64) core.SteerDirection {
	switch {
	case signal > deadband:
		return core.SteerLeft
	case signal < -deadband:
		return core.SteerRight
	default:
		return core.SteerStraight
	}
}

// steeringSignal prefers this tick's discrete command and falls back to the
// wheel angle.
func steeringSignal(v *core.Vehicle) float64 {
	if v.SteerCommand != 0 {
		return v.SteerCommand
	}
	return v.SteeringAngle
}

// TrackSteering updates the reversal history for this tick.
//
// A reversal against the last significant direction counts as a change when
// no change was recorded yet or at least CooldownTicks have passed since the
// previous one; a quicker reversal is noise and resets the change count. Every counted change after
// the first FreeChanges adds one oscillation penalty.
func TrackSteering(v *core.Vehicle, tick int, cfg config.OscillationConfig) {
	h := &v.Steering
	dir := Classify(steeringSignal(v), cfg.Deadband)
	if dir == core.SteerStraight {
		return
	}

	if h.LastDirection != core.SteerStraight && dir != h.LastDirection {
		// a change needs an earlier direction, so none is ever recorded at tick 0
		first := h.DirectionChanges == 0 && h.LastChangeTick == 0
		if first || tick-h.LastChangeTick >= cfg.CooldownTicks {
			h.DirectionChanges++
			h.LastChangeTick = tick
			if h.DirectionChanges > cfg.FreeChanges {
				h.OscillationPenalties++
			}
		} else {
			h.DirectionChanges = 0
		}
	}
	h.LastDirection = dir
}
