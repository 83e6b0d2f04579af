package worker

import (
	"fmt"

	"github.com/circuitlab/racesim/internal/dispatcher"
	"github.com/circuitlab/racesim/pkg/core"
)

// RegisterHandlers registers all telemetry handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Lifecycle - sync (backend must see start before frames and end after them)
	d.Register(TopicGenerationStart, m.handleGenerationStart, dispatcher.Logged())
	d.Register(TopicGenerationEnd, m.handleGenerationEnd, dispatcher.Logged())

	// High-volume per-tick data - buffered, never dropped
	d.Register(TopicFrame, m.handleFrame, dispatcher.Buffered(10000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(TopicVehicleEvent, m.handleVehicleEvent, dispatcher.Buffered(2000), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleGenerationStart(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(*core.GenerationStart)
	if !ok {
		return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
	}
	if err := m.backend.StartGeneration(s); err != nil {
		return nil, fmt.Errorf("failed to start generation %d: %w", s.Generation, err)
	}
	return nil, nil
}

func (m *Manager) handleFrame(e dispatcher.Event) (any, error) {
	f, ok := e.Payload.(*core.Frame)
	if !ok {
		return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
	}
	if err := m.backend.RecordFrame(f); err != nil {
		return nil, fmt.Errorf("failed to record frame %d: %w", f.Tick, err)
	}
	return nil, nil
}

func (m *Manager) handleVehicleEvent(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(*core.VehicleEvent)
	if !ok {
		return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
	}
	if err := m.backend.RecordVehicleEvent(ev); err != nil {
		return nil, fmt.Errorf("failed to record %s event for %s: %w", ev.Kind, ev.VehicleID, err)
	}
	return nil, nil
}

func (m *Manager) handleGenerationEnd(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(*core.GenerationSummary)
	if !ok {
		return nil, fmt.Errorf("%w on %s: %T", ErrUnexpectedPayload, e.Topic, e.Payload)
	}
	if err := m.backend.EndGeneration(s); err != nil {
		return nil, fmt.Errorf("failed to end generation %d: %w", s.Generation, err)
	}

	if m.deps.Metrics != nil {
		if err := m.deps.Metrics.WriteGeneration(*s); err != nil {
			// metrics are best effort
			m.deps.Logger.Warn("failed to write generation metrics", "generation", s.Generation, "error", err)
		}
	}
	return nil, nil
}
