package engine

import (
	"github.com/circuitlab/racesim/pkg/core"
)

// Policy maps a radar feature vector to one action. Implementations are
// supplied by the caller and must not block.
type Policy interface {
	Decide(inputs []float64) core.Action
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(inputs []float64) core.Action

func (f PolicyFunc) Decide(inputs []float64) core.Action { return f(inputs) }

// ComplexityScorer is implemented by policies that earn a structural bonus
// once at the end of a generation.
type ComplexityScorer interface {
	ComplexityBonus() float64
}

// Agent is one population member entering a generation. Fitness is the
// caller-owned slot the engine resets to zero and accumulates into; a nil
// slot is replaced by an engine-owned one.
type Agent struct {
	ID      string
	Policy  Policy
	Fitness *float64
}

// Observer receives read-only snapshots of a generation.
type Observer interface {
	OnGenerationStart(core.GenerationStart)
	OnTick(frame core.Frame, events []core.VehicleEvent)
	OnGenerationEnd(core.GenerationSummary)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OnGenerationStart(core.GenerationStart) {}
func (NopObserver) OnTick(core.Frame, []core.VehicleEvent) {}
func (NopObserver) OnGenerationEnd(core.GenerationSummary) {}

// Observers fans every callback out to each observer in order.
type Observers []Observer

func (o Observers) OnGenerationStart(s core.GenerationStart) {
	for _, ob := range o {
		ob.OnGenerationStart(s)
	}
}

func (o Observers) OnTick(f core.Frame, events []core.VehicleEvent) {
	for _, ob := range o {
		ob.OnTick(f, events)
	}
}

func (o Observers) OnGenerationEnd(s core.GenerationSummary) {
	for _, ob := range o {
		ob.OnGenerationEnd(s)
	}
}
