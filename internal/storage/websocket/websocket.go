package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/circuitlab/racesim/pkg/streaming"
)

const defaultAckTimeout = 10 * time.Second

// Backend streams generation telemetry over WebSocket to an external renderer.
// Start and end of a generation wait for a server ack; frames and events are
// fire-and-forget.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	return &Backend{
		conn: newConnection(logger, cfg.ReconnectDelay),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if !b.conn.send(data) {
		return fmt.Errorf("dropped %s: send queue full", msgType)
	}
	return nil
}

// StartGeneration sends the roster and track, and waits for the server ack.
func (b *Backend) StartGeneration(s *core.GenerationStart) error {
	data, err := marshalEnvelope(streaming.TypeStartGeneration, s)
	if err != nil {
		return err
	}
	b.conn.setReplay(data)
	return b.conn.sendAndWait(data, streaming.TypeStartGeneration, b.cfg.AckTimeout)
}

// EndGeneration sends the summary and waits for the server ack.
func (b *Backend) EndGeneration(s *core.GenerationSummary) error {
	data, err := marshalEnvelope(streaming.TypeEndGeneration, s)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndGeneration, b.cfg.AckTimeout)
	b.conn.setReplay(nil)
	return err
}

func (b *Backend) RecordFrame(f *core.Frame) error {
	return b.sendEnvelope(streaming.TypeFrame, f)
}

func (b *Backend) RecordVehicleEvent(e *core.VehicleEvent) error {
	return b.sendEnvelope(streaming.TypeVehicleEvent, e)
}
