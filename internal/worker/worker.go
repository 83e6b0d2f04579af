package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/pkg/core"
)

// Dispatcher topics carrying engine telemetry.
const (
	TopicGenerationStart = "generation.start"
	TopicFrame           = "generation.frame"
	TopicVehicleEvent    = "vehicle.event"
	TopicGenerationEnd   = "generation.end"
)

// ErrUnexpectedPayload is returned when a topic receives a payload of the wrong type
var ErrUnexpectedPayload = errors.New("unexpected payload")

// MetricsSink receives one summary per finished generation.
type MetricsSink interface {
	WriteGeneration(s core.GenerationSummary) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger  *slog.Logger
	Metrics MetricsSink
}

// Manager feeds dispatched telemetry into a storage backend
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}
