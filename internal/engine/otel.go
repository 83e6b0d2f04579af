package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/circuitlab/racesim/internal/engine"

type metrics struct {
	ticks       metric.Int64Counter
	generations metric.Int64Counter
	alive       metric.Int64Gauge
	bestFitness metric.Float64Histogram
}

// newMetrics registers engine instruments on the global meter
// (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"racesim.ticks",
		metric.WithDescription("Simulation ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.generations, err = m.Int64Counter(
		"racesim.generations",
		metric.WithDescription("Generations finalized"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating generations counter: %w", err)
	}

	out.alive, err = m.Int64Gauge(
		"racesim.vehicles.alive",
		metric.WithDescription("Vehicles alive after the last tick"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating alive gauge: %w", err)
	}

	out.bestFitness, err = m.Float64Histogram(
		"racesim.fitness.best",
		metric.WithDescription("Best final fitness per generation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating best fitness histogram: %w", err)
	}

	return out, nil
}
