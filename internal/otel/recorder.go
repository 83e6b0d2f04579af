package otel

import (
	"context"
	"fmt"

	"github.com/circuitlab/racesim/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder turns vehicle events and generation outcomes into OTel metric
// points. Tick and fitness totals are recorded by the engine itself.
type Recorder struct {
	events    metric.Int64Counter
	ticks     metric.Int64Histogram
	finishers metric.Int64Histogram
}

// NewRecorder registers the racesim instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	var err error

	if r.events, err = meter.Int64Counter("racesim.vehicle.events",
		metric.WithDescription("Crashes, checkpoint crossings and finishes")); err != nil {
		return nil, fmt.Errorf("events counter: %w", err)
	}
	if r.ticks, err = meter.Int64Histogram("racesim.generation.ticks",
		metric.WithDescription("Ticks simulated per generation")); err != nil {
		return nil, fmt.Errorf("ticks histogram: %w", err)
	}
	if r.finishers, err = meter.Int64Histogram("racesim.generation.finishers",
		metric.WithDescription("Vehicles that completed the circuit per generation")); err != nil {
		return nil, fmt.Errorf("finishers histogram: %w", err)
	}
	return r, nil
}

func (r *Recorder) OnGenerationStart(core.GenerationStart) {}

func (r *Recorder) OnTick(_ core.Frame, events []core.VehicleEvent) {
	ctx := context.Background()
	for _, ev := range events {
		r.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ev.Kind))))
	}
}

func (r *Recorder) OnGenerationEnd(s core.GenerationSummary) {
	ctx := context.Background()
	reason := metric.WithAttributes(attribute.String("reason", string(s.Reason)))
	r.ticks.Record(ctx, int64(s.EndTick), reason)

	var finished int64
	for _, res := range s.Results {
		if res.Finish != nil {
			finished++
		}
	}
	r.finishers.Record(ctx, finished, reason)
}
