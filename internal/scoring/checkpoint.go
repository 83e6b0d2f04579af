// Package scoring tracks checkpoint progress and computes fitness rewards.
package scoring

import (
	"github.com/circuitlab/racesim/pkg/core"
)

// FinishOrder hands out finishing positions within one generation.
type FinishOrder struct {
	next int
}

// Next returns the next finishing position, starting at 1.
func (o *FinishOrder) Next() int {
	o.next++
	return o.next
}

// Finished is the number of positions handed out so far.
func (o *FinishOrder) Finished() int {
	return o.next
}

// Reset starts a new generation.
func (o *FinishOrder) Reset() {
	o.next = 0
}

// EvaluateCheckpoints applies every checkpoint whose circle strictly contains
// the vehicle center, in path order, and returns the resulting events.
//
// The expected checkpoint advances progress. A checkpoint ahead of the
// expected one counts as a wrong hit and kills the vehicle. Checkpoints
// already passed are ignored.
func EvaluateCheckpoints(v *core.Vehicle, cps []core.Checkpoint, tick int, order *FinishOrder) []core.VehicleEvent {
	var events []core.VehicleEvent
	for _, cp := range cps {
		if !cp.Contains(v.Center) {
			continue
		}
		switch {
		case cp.Index == v.CheckpointIndex:
			v.CheckpointIndex++
			v.CheckpointsHit++
			events = append(events, core.VehicleEvent{
				Tick:       tick,
				VehicleID:  v.ID,
				Kind:       core.EventCheckpoint,
				Checkpoint: cp.Index,
				Position:   v.Center,
			})
			if v.CheckpointIndex == len(cps) && v.Finish == nil {
				v.Finish = &core.Finish{Tick: tick, Rank: order.Next()}
				events = append(events, core.VehicleEvent{
					Tick:       tick,
					VehicleID:  v.ID,
					Kind:       core.EventFinish,
					Checkpoint: cp.Index,
					Position:   v.Center,
					Rank:       v.Finish.Rank,
				})
			}
		case cp.Index > v.CheckpointIndex:
			v.WrongCheckpointHits++
			v.Alive = false
			events = append(events, core.VehicleEvent{
				Tick:       tick,
				VehicleID:  v.ID,
				Kind:       core.EventWrongCheckpoint,
				Checkpoint: cp.Index,
				Position:   v.Center,
			})
			return events
		}
	}
	return events
}
