// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/circuitlab/racesim/pkg/core"
)

// RaceExport is the root JSON structure of one generation
type RaceExport struct {
	Generation   int                `json:"generation"`
	StartTime    time.Time          `json:"startTime"`
	EndTick      int                `json:"endTick"`
	TimeoutTicks int                `json:"timeoutTicks"`
	Track        TrackJSON          `json:"track"`
	Vehicles     []VehicleJSON      `json:"vehicles"`
	Events       [][]any            `json:"events"`
	Results      []core.AgentResult `json:"results"`
}

// TrackJSON describes the map extents and checkpoint path
type TrackJSON struct {
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Checkpoints []core.Checkpoint `json:"checkpoints"`
}

// VehicleJSON is one car with its sampled trajectory.
// Each position is [tick, x, y, heading, alive, fitness].
type VehicleJSON struct {
	ID         string  `json:"id"`
	Team       int     `json:"team"`
	TeamName   string  `json:"teamName,omitempty"`
	DriverSlot int     `json:"driverSlot"`
	Positions  [][]any `json:"positions"`
}

// Export writes a generation as JSON, gzipped if CompressExport is set
func (b *Backend) Export(w io.Writer, generation int) error {
	rec, ok := b.Generation(generation)
	if !ok {
		return fmt.Errorf("generation %d not recorded", generation)
	}

	export := buildExport(rec)

	if !b.cfg.CompressExport {
		return json.NewEncoder(w).Encode(export)
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func buildExport(rec GenerationRecord) RaceExport {
	export := RaceExport{
		Generation:   rec.Start.Generation,
		StartTime:    rec.Start.StartTime,
		TimeoutTicks: rec.Start.TimeoutTicks,
		Track: TrackJSON{
			Width:       rec.Start.TrackWidth,
			Height:      rec.Start.TrackHeight,
			Checkpoints: rec.Start.Checkpoints,
		},
		Vehicles: make([]VehicleJSON, len(rec.Start.Vehicles)),
		Events:   make([][]any, 0, len(rec.Events)),
	}

	index := make(map[string]int, len(rec.Start.Vehicles))
	for i, v := range rec.Start.Vehicles {
		index[v.VehicleID] = i
		export.Vehicles[i] = VehicleJSON{
			ID:         v.VehicleID,
			Team:       v.TeamID,
			TeamName:   v.TeamName,
			DriverSlot: v.DriverSlot,
			Positions:  make([][]any, 0, len(rec.Frames)),
		}
	}

	for _, f := range rec.Frames {
		for _, s := range f.States {
			i, ok := index[s.VehicleID]
			if !ok {
				continue
			}
			export.Vehicles[i].Positions = append(export.Vehicles[i].Positions,
				[]any{s.Tick, s.Position.X, s.Position.Y, s.Heading, s.Alive, s.Fitness})
		}
	}

	for _, e := range rec.Events {
		export.Events = append(export.Events, []any{e.Tick, string(e.Kind), e.VehicleID, e.Checkpoint})
	}

	if rec.Summary != nil {
		export.EndTick = rec.Summary.EndTick
		export.Results = rec.Summary.Results
	}
	return export
}
