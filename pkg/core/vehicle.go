// pkg/core/vehicle.go
package core

// Point is a position in track-map pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RadarReading is one ray of the forward sensor: where the ray stopped and
// the integer distance from the vehicle center to that point.
type RadarReading struct {
	Hit      Point `json:"hit"`
	Distance int   `json:"distance"`
}

// Finish records when and in which position a vehicle completed the circuit.
// It is set at most once per generation.
type Finish struct {
	Tick int `json:"tick"`
	Rank int `json:"rank"`
}

// SteeringHistory tracks direction reversals for oscillation detection.
type SteeringHistory struct {
	LastDirection        SteerDirection
	DirectionChanges     int
	LastChangeTick       int
	OscillationPenalties int
}

// Spawn describes where and how a vehicle enters the track.
type Spawn struct {
	Position Point
	Heading  float64
	Speed    float64
}

// Vehicle is one simulated car with its scoring state.
// Identity fields (ID, TeamID, DriverSlot) never affect physics.
type Vehicle struct {
	ID         string
	TeamID     int
	DriverSlot int

	Position Point
	Center   Point
	Corners  [4]Point

	// Heading is in degrees and is not wrapped.
	Heading          float64
	Speed            float64
	SteeringAngle    float64
	MaxSteeringAngle float64
	Wheelbase        float64
	AngularVelocity  float64

	// SteerCommand is the discrete steering input applied this tick, in
	// degrees (positive = left). Zero when the action was not a steer.
	SteerCommand float64

	Alive bool
	Radar []RadarReading

	DistanceTraveled float64
	TicksAlive       int

	CheckpointIndex     int
	CheckpointsHit      int
	WrongCheckpointHits int
	Finish              *Finish

	Steering SteeringHistory
}

// NewVehicle creates a live vehicle at the spawn point.
// Speed is taken from the spawn explicitly; there is no deferred default.
func NewVehicle(id string, spawn Spawn, wheelbase, maxSteeringAngle float64, radarRays int) *Vehicle {
	return &Vehicle{
		ID:               id,
		TeamID:           -1,
		Position:         spawn.Position,
		Heading:          spawn.Heading,
		Speed:            spawn.Speed,
		Wheelbase:        wheelbase,
		MaxSteeringAngle: maxSteeringAngle,
		Alive:            true,
		Radar:            make([]RadarReading, radarRays),
	}
}

// Finished reports whether the vehicle has completed every checkpoint.
func (v *Vehicle) Finished() bool {
	return v.Finish != nil
}

// State returns a read-only copy of the vehicle for telemetry consumers.
func (v *Vehicle) State(generation, tick int, fitness float64) VehicleState {
	rays := make([]Point, len(v.Radar))
	dists := make([]int, len(v.Radar))
	for i, r := range v.Radar {
		rays[i] = r.Hit
		dists[i] = r.Distance
	}
	s := VehicleState{
		Generation:      generation,
		Tick:            tick,
		VehicleID:       v.ID,
		TeamID:          v.TeamID,
		DriverSlot:      v.DriverSlot,
		Position:        v.Position,
		Center:          v.Center,
		Heading:         v.Heading,
		Speed:           v.Speed,
		Alive:           v.Alive,
		RadarEndpoints:  rays,
		RadarDistances:  dists,
		CheckpointIndex: v.CheckpointIndex,
		Fitness:         fitness,
	}
	if v.Finish != nil {
		f := *v.Finish
		s.Finish = &f
	}
	return s
}

// VehicleState is a per-tick snapshot of one vehicle.
type VehicleState struct {
	Generation      int     `json:"generation"`
	Tick            int     `json:"tick"`
	VehicleID       string  `json:"vehicleId"`
	TeamID          int     `json:"teamId"`
	DriverSlot      int     `json:"driverSlot"`
	Position        Point   `json:"position"`
	Center          Point   `json:"center"`
	Heading         float64 `json:"heading"`
	Speed           float64 `json:"speed"`
	Alive           bool    `json:"alive"`
	RadarEndpoints  []Point `json:"radarEndpoints"`
	RadarDistances  []int   `json:"radarDistances"`
	CheckpointIndex int     `json:"checkpointIndex"`
	Fitness         float64 `json:"fitness"`
	Finish          *Finish `json:"finish,omitempty"`
}
