// internal/storage/storage.go
package storage

import (
	"errors"
	"io"

	"github.com/circuitlab/racesim/pkg/core"
)

// ErrNoGeneration is returned when data arrives outside a started generation.
var ErrNoGeneration = errors.New("no generation in progress")

// Backend is the interface all telemetry storage implementations must satisfy.
// None of them persist to disk.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Generation management
	StartGeneration(s *core.GenerationStart) error
	EndGeneration(s *core.GenerationSummary) error

	// Per-tick recording
	RecordFrame(f *core.Frame) error
	RecordVehicleEvent(e *core.VehicleEvent) error
}

// Exporter is an optional interface for backends that can serialize a
// recorded generation for an external viewer.
type Exporter interface {
	Export(w io.Writer, generation int) error
}
