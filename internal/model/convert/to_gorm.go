// Package convert provides functions to convert core telemetry into GORM models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/circuitlab/racesim/internal/geo"
	"github.com/circuitlab/racesim/internal/model"
	"github.com/circuitlab/racesim/pkg/core"
	"gorm.io/datatypes"
)

func nullInt(v int, valid bool) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(v), Valid: valid}
}

// distancesToJSON converts radar distances to datatypes.JSON for DB storage.
func distancesToJSON(d []int) datatypes.JSON {
	if len(d) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(d)
	return datatypes.JSON(data)
}

// CoreToGeneration converts a generation start into a GORM model.Generation.
func CoreToGeneration(s core.GenerationStart) model.Generation {
	return model.Generation{
		Number:       s.Generation,
		StartTime:    s.StartTime,
		TrackWidth:   s.TrackWidth,
		TrackHeight:  s.TrackHeight,
		TimeoutTicks: s.TimeoutTicks,
		Checkpoints:  len(s.Checkpoints),
	}
}

// CoreToVehicles converts the roster of a generation start.
func CoreToVehicles(generationID uint, s core.GenerationStart) []model.Vehicle {
	out := make([]model.Vehicle, len(s.Vehicles))
	for i, v := range s.Vehicles {
		out[i] = model.Vehicle{
			GenerationID: generationID,
			VehicleID:    v.VehicleID,
			TeamID:       v.TeamID,
			TeamName:     v.TeamName,
			DriverSlot:   v.DriverSlot,
		}
	}
	return out
}

// CoreToVehicleStates converts every snapshot in a frame.
func CoreToVehicleStates(generationID uint, f core.Frame) ([]model.VehicleState, error) {
	out := make([]model.VehicleState, len(f.States))
	for i, s := range f.States {
		pos, err := geo.Point(s.Position)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s at tick %d: %w", s.VehicleID, s.Tick, err)
		}
		out[i] = model.VehicleState{
			Time:            f.Time,
			GenerationID:    generationID,
			Tick:            s.Tick,
			VehicleID:       s.VehicleID,
			Position:        pos,
			Heading:         s.Heading,
			Speed:           s.Speed,
			Alive:           s.Alive,
			CheckpointIndex: s.CheckpointIndex,
			Fitness:         s.Fitness,
			Radar:           distancesToJSON(s.RadarDistances),
		}
	}
	return out, nil
}

// CoreToVehicleEvent converts a vehicle event.
// Rank is only meaningful for finishes.
func CoreToVehicleEvent(generationID uint, e core.VehicleEvent) (model.VehicleEvent, error) {
	pos, err := geo.Point(e.Position)
	if err != nil {
		return model.VehicleEvent{}, fmt.Errorf("%s event for vehicle %s: %w", e.Kind, e.VehicleID, err)
	}
	return model.VehicleEvent{
		GenerationID: generationID,
		Tick:         e.Tick,
		VehicleID:    e.VehicleID,
		Kind:         string(e.Kind),
		Checkpoint:   e.Checkpoint,
		Position:     pos,
		Rank:         nullInt(e.Rank, e.Kind == core.EventFinish),
	}, nil
}

// CoreToResult converts one agent result at the given leaderboard rank (1-based).
func CoreToResult(generationID uint, rank int, r core.AgentResult) model.Result {
	res := model.Result{
		GenerationID:         generationID,
		AgentID:              r.AgentID,
		Rank:                 rank,
		Fitness:              r.Fitness,
		TeamID:               r.TeamID,
		DriverSlot:           r.DriverSlot,
		Alive:                r.Alive,
		CheckpointsHit:       r.CheckpointsHit,
		WrongCheckpointHits:  r.WrongCheckpointHits,
		DistanceTraveled:     r.DistanceTraveled,
		TicksAlive:           r.TicksAlive,
		OscillationPenalties: r.OscillationPenalties,
	}
	if r.Finish != nil {
		res.FinishTick = nullInt(r.Finish.Tick, true)
		res.FinishRank = nullInt(r.Finish.Rank, true)
	}
	return res
}
