package scoring

import (
	"math"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
)

// Weights are the inputs of the reward function.
type Weights struct {
	Reward       config.RewardConfig
	HalfWidth    float64
	TimeoutTicks int
}

// NewWeights derives the reward inputs from the simulation config.
func NewWeights(sim config.Simulation) Weights {
	return Weights{
		Reward:       sim.Reward,
		HalfWidth:    sim.Vehicle.HalfSize(),
		TimeoutTicks: sim.TimeoutTicks,
	}
}

// CompletionBonus is zero for vehicles that have not finished.
func CompletionBonus(v *core.Vehicle, w Weights) float64 {
	if v.Finish == nil {
		return 0
	}
	r := w.Reward
	bonus := r.CompletionBase + math.Max(0, r.TimeRewardFactor*float64(w.TimeoutTicks-v.Finish.Tick))
	return bonus * math.Pow(r.FinishDecay, float64(v.Finish.Rank-1))
}

// Reward computes the vehicle's current reward from its counters.
func Reward(v *core.Vehicle, w Weights) float64 {
	r := w.Reward
	reward := float64(v.CheckpointsHit)*r.Checkpoint +
		float64(v.WrongCheckpointHits)*r.WrongCheckpoint +
		r.TimePenalty*float64(v.TicksAlive) +
		CompletionBonus(v, w) -
		float64(v.Steering.OscillationPenalties)*r.OscillationUnit
	if w.HalfWidth > 0 {
		reward += v.DistanceTraveled / w.HalfWidth
	}
	return reward
}
