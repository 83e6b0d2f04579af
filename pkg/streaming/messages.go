package streaming

import (
	"encoding/json"

	"github.com/circuitlab/racesim/pkg/core"
)

// Message type constants of the telemetry stream.
const (
	TypeStartGeneration = "start_generation"
	TypeEndGeneration   = "end_generation"
	TypeFrame           = "frame"
	TypeVehicleEvent    = "vehicle_event"
)

// TypeAck is the type of every server acknowledgement.
const TypeAck = "ack"

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// Payload types per message. They alias the core telemetry types so a
// renderer can decode without importing the engine.
type (
	StartGenerationPayload = core.GenerationStart
	EndGenerationPayload   = core.GenerationSummary
	FramePayload           = core.Frame
	VehicleEventPayload    = core.VehicleEvent
)
