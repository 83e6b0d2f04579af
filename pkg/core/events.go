// pkg/core/events.go
package core

import (
	"time"
)

// VehicleInfo identifies a vehicle and its team placement for a generation.
type VehicleInfo struct {
	VehicleID  string `json:"vehicleId"`
	TeamID     int    `json:"teamId"`
	TeamName   string `json:"teamName,omitempty"`
	DriverSlot int    `json:"driverSlot"`
}

// GenerationStart is emitted once the population is spawned and assigned.
type GenerationStart struct {
	Generation   int           `json:"generation"`
	StartTime    time.Time     `json:"startTime"`
	TrackWidth   int           `json:"trackWidth"`
	TrackHeight  int           `json:"trackHeight"`
	TimeoutTicks int           `json:"timeoutTicks"`
	Checkpoints  []Checkpoint  `json:"checkpoints"`
	Vehicles     []VehicleInfo `json:"vehicles"`
}

// Frame is the snapshot of every vehicle after one tick.
type Frame struct {
	Generation int            `json:"generation"`
	Tick       int            `json:"tick"`
	Time       time.Time      `json:"time"`
	States     []VehicleState `json:"states"`
}

// VehicleEventKind names a discrete thing that happened to a vehicle.
type VehicleEventKind string

const (
	EventCrash           VehicleEventKind = "crash"
	EventCheckpoint      VehicleEventKind = "checkpoint"
	EventWrongCheckpoint VehicleEventKind = "wrong_checkpoint"
	EventFinish          VehicleEventKind = "finish"
)

// VehicleEvent is a crash, checkpoint crossing or finish.
type VehicleEvent struct {
	Generation int              `json:"generation"`
	Tick       int              `json:"tick"`
	VehicleID  string           `json:"vehicleId"`
	Kind       VehicleEventKind `json:"kind"`
	Checkpoint int              `json:"checkpoint"`
	Position   Point            `json:"position"`
	Rank       int              `json:"rank,omitempty"`
}

// AgentResult is the final score of one agent in a generation.
type AgentResult struct {
	AgentID              string  `json:"agentId"`
	Fitness              float64 `json:"fitness"`
	TeamID               int     `json:"teamId"`
	DriverSlot           int     `json:"driverSlot"`
	Alive                bool    `json:"alive"`
	CheckpointsHit       int     `json:"checkpointsHit"`
	WrongCheckpointHits  int     `json:"wrongCheckpointHits"`
	DistanceTraveled     float64 `json:"distanceTraveled"`
	TicksAlive           int     `json:"ticksAlive"`
	OscillationPenalties int     `json:"oscillationPenalties"`
	Finish               *Finish `json:"finish,omitempty"`
}

// EndReason says why a generation stopped.
type EndReason string

const (
	EndAllCrashed EndReason = "all_crashed"
	EndTimeout    EndReason = "timeout"
	EndCancelled  EndReason = "cancelled"
)

// GenerationSummary is emitted when a generation is finalized.
// Results are ordered by descending fitness.
type GenerationSummary struct {
	Generation    int           `json:"generation"`
	EndTick       int           `json:"endTick"`
	EndTime       time.Time     `json:"endTime"`
	Reason        EndReason     `json:"reason"`
	Results       []AgentResult `json:"results"`
	TopPerformers []AgentResult `json:"topPerformers"`
}

// Best returns the highest-fitness result, or false when there are none.
func (s GenerationSummary) Best() (AgentResult, bool) {
	if len(s.Results) == 0 {
		return AgentResult{}, false
	}
	return s.Results[0], true
}
