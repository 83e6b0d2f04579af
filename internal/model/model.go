package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Generation{},
	&Vehicle{},
	&VehicleState{},
	&VehicleEvent{},
	&Result{},
}

////////////////////////
// GENERATION MODELS
////////////////////////

// Generation is one evaluated population run
type Generation struct {
	gorm.Model
	Number       int          `json:"generation" gorm:"uniqueIndex:idx_generation_number"`
	StartTime    time.Time    `json:"startTime" gorm:"index:idx_generation_start"`
	EndTime      sql.NullTime `json:"endTime"`
	EndTick      int          `json:"endTick"`
	Reason       string       `json:"reason" gorm:"size:32"`
	TrackWidth   int          `json:"trackWidth"`
	TrackHeight  int          `json:"trackHeight"`
	TimeoutTicks int          `json:"timeoutTicks"`
	Checkpoints  int          `json:"checkpoints"`
	BestAgentID  string       `json:"bestAgentId" gorm:"size:64"`
	BestFitness  float64      `json:"bestFitness"`
}

func (*Generation) TableName() string {
	return "generations"
}

// Vehicle is one car taking part in a generation
type Vehicle struct {
	GenerationID uint   `json:"generationId" gorm:"primaryKey;autoIncrement:false"`
	VehicleID    string `json:"vehicleId" gorm:"primaryKey;size:64"`
	TeamID       int    `json:"teamId" gorm:"index:idx_vehicle_team"`
	TeamName     string `json:"teamName" gorm:"size:64"`
	DriverSlot   int    `json:"driverSlot"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// VehicleState is a sampled per-tick snapshot of one vehicle
type VehicleState struct {
	ID              uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time            time.Time      `json:"time"`
	GenerationID    uint           `json:"generationId" gorm:"index:idx_vehiclestate_generation_tick"`
	Tick            int            `json:"tick" gorm:"index:idx_vehiclestate_generation_tick"`
	VehicleID       string         `json:"vehicleId" gorm:"size:64;index:idx_vehiclestate_vehicle"`
	Position        geom.Point     `json:"position"`
	Heading         float64        `json:"heading"`
	Speed           float64        `json:"speed"`
	Alive           bool           `json:"alive"`
	CheckpointIndex int            `json:"checkpointIndex"`
	Fitness         float64        `json:"fitness"`
	Radar           datatypes.JSON `json:"radar"` // distances, one per ray
}

func (*VehicleState) TableName() string {
	return "vehicle_states"
}

// VehicleEvent is a crash, checkpoint crossing or finish
type VehicleEvent struct {
	ID           uint          `json:"id" gorm:"primarykey;autoIncrement"`
	GenerationID uint          `json:"generationId" gorm:"index:idx_vehicleevent_generation"`
	Tick         int           `json:"tick"`
	VehicleID    string        `json:"vehicleId" gorm:"size:64"`
	Kind         string        `json:"kind" gorm:"size:32;index:idx_vehicleevent_kind"`
	Checkpoint   int           `json:"checkpoint"`
	Position     geom.Point    `json:"position"`
	Rank         sql.NullInt32 `json:"rank"`
}

func (*VehicleEvent) TableName() string {
	return "vehicle_events"
}

// Result is the final score of one agent in a generation
type Result struct {
	GenerationID         uint            `json:"generationId" gorm:"primaryKey;autoIncrement:false"`
	AgentID              string          `json:"agentId" gorm:"primaryKey;size:64;index:idx_result_agent"`
	Rank                 int             `json:"rank"`
	Fitness              float64         `json:"fitness" gorm:"index:idx_result_fitness"`
	TeamID               int             `json:"teamId"`
	DriverSlot           int             `json:"driverSlot"`
	Alive                bool            `json:"alive"`
	CheckpointsHit       int             `json:"checkpointsHit"`
	WrongCheckpointHits  int             `json:"wrongCheckpointHits"`
	DistanceTraveled     float64         `json:"distanceTraveled"`
	TicksAlive           int             `json:"ticksAlive"`
	OscillationPenalties int             `json:"oscillationPenalties"`
	FinishTick           sql.NullInt32   `json:"finishTick"`
	FinishRank           sql.NullInt32   `json:"finishRank"`
	Trajectory           geom.LineString `json:"-"` // sampled positions, empty if the car never moved
	PathLength           float64         `json:"pathLength"`
}

func (*Result) TableName() string {
	return "results"
}

// AgentStanding is one row of the cross-generation leaderboard
type AgentStanding struct {
	AgentID     string  `json:"agentId"`
	BestFitness float64 `json:"bestFitness"`
	Generations int     `json:"generations"`
	Finishes    int     `json:"finishes"`
}
