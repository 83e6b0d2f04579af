package worker

import (
	"log/slog"

	"github.com/circuitlab/racesim/internal/dispatcher"
	"github.com/circuitlab/racesim/pkg/core"
)

// Publisher turns engine callbacks into dispatcher events.
type Publisher struct {
	d             *dispatcher.Dispatcher
	frameInterval int
	logger        *slog.Logger
}

// NewPublisher creates a publisher that forwards every frameInterval-th frame.
func NewPublisher(d *dispatcher.Dispatcher, frameInterval int, logger *slog.Logger) *Publisher {
	if frameInterval < 1 {
		frameInterval = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{d: d, frameInterval: frameInterval, logger: logger}
}

func (p *Publisher) OnGenerationStart(s core.GenerationStart) {
	p.dispatch(TopicGenerationStart, &s)
}

func (p *Publisher) OnTick(f core.Frame, events []core.VehicleEvent) {
	for i := range events {
		ev := events[i]
		p.dispatch(TopicVehicleEvent, &ev)
	}
	if f.Tick%p.frameInterval == 0 {
		p.dispatch(TopicFrame, &f)
	}
}

// OnGenerationEnd drains queued frames and events before the summary goes out.
func (p *Publisher) OnGenerationEnd(s core.GenerationSummary) {
	p.d.Wait()
	p.dispatch(TopicGenerationEnd, &s)
}

func (p *Publisher) dispatch(topic string, payload any) {
	if _, err := p.d.Dispatch(dispatcher.Event{Topic: topic, Payload: payload}); err != nil {
		p.logger.Error("failed to dispatch telemetry", "topic", topic, "error", err)
	}
}
