package convert

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/circuitlab/racesim/internal/geo"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreToGeneration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := CoreToGeneration(core.GenerationStart{
		Generation:   4,
		StartTime:    start,
		TrackWidth:   1920,
		TrackHeight:  1080,
		TimeoutTicks: 1200,
		Checkpoints:  make([]core.Checkpoint, 4),
	})

	assert.Equal(t, 4, g.Number)
	assert.Equal(t, start, g.StartTime)
	assert.Equal(t, 1920, g.TrackWidth)
	assert.Equal(t, 4, g.Checkpoints)
	assert.False(t, g.EndTime.Valid)
}

func TestCoreToVehicles(t *testing.T) {
	vs := CoreToVehicles(9, core.GenerationStart{Vehicles: []core.VehicleInfo{
		{VehicleID: "a", TeamID: 2, TeamName: "comet", DriverSlot: 1},
		{VehicleID: "b", TeamID: -1},
	}})

	require.Len(t, vs, 2)
	assert.Equal(t, uint(9), vs[0].GenerationID)
	assert.Equal(t, "comet", vs[0].TeamName)
	assert.Equal(t, 1, vs[0].DriverSlot)
	assert.Equal(t, -1, vs[1].TeamID)
}

func TestCoreToVehicleStates(t *testing.T) {
	now := time.Now()
	states, err := CoreToVehicleStates(3, core.Frame{
		Generation: 1,
		Tick:       10,
		Time:       now,
		States: []core.VehicleState{
			{Tick: 10, VehicleID: "a", Position: core.Point{X: 100, Y: 200}, Heading: 135, Speed: 20, Alive: true, RadarDistances: []int{30, 60, 90}, Fitness: 1.5},
			{Tick: 10, VehicleID: "b"},
		},
	})
	require.NoError(t, err)

	require.Len(t, states, 2)
	s := states[0]
	assert.Equal(t, uint(3), s.GenerationID)
	assert.Equal(t, 10, s.Tick)
	assert.Equal(t, now, s.Time)
	assert.Equal(t, 135.0, s.Heading)
	assert.True(t, s.Alive)

	pos, err := geo.ToCore(s.Position)
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: 100, Y: 200}, pos)

	var radar []int
	require.NoError(t, json.Unmarshal(s.Radar, &radar))
	assert.Equal(t, []int{30, 60, 90}, radar)

	assert.Equal(t, "[]", string(states[1].Radar))
}

func TestCoreToVehicleEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     core.VehicleEvent
		rankValid bool
	}{
		{"crash", core.VehicleEvent{Kind: core.EventCrash, VehicleID: "a"}, false},
		{"checkpoint", core.VehicleEvent{Kind: core.EventCheckpoint, Checkpoint: 2}, false},
		{"finish", core.VehicleEvent{Kind: core.EventFinish, Rank: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := CoreToVehicleEvent(5, tt.event)
			require.NoError(t, err)
			assert.Equal(t, uint(5), e.GenerationID)
			assert.Equal(t, string(tt.event.Kind), e.Kind)
			assert.Equal(t, tt.event.Checkpoint, e.Checkpoint)
			assert.Equal(t, tt.rankValid, e.Rank.Valid)
		})
	}
}

func TestCoreToVehicleStates_NonFinitePosition(t *testing.T) {
	_, err := CoreToVehicleStates(1, core.Frame{
		States: []core.VehicleState{{VehicleID: "a", Position: core.Point{X: math.NaN(), Y: 1}}},
	})
	assert.ErrorContains(t, err, "vehicle a")

	_, err = CoreToVehicleEvent(1, core.VehicleEvent{Kind: core.EventCrash, VehicleID: "b", Position: core.Point{X: math.Inf(1)}})
	assert.ErrorContains(t, err, "vehicle b")
}

func TestCoreToResult(t *testing.T) {
	r := CoreToResult(2, 1, core.AgentResult{
		AgentID:        "a",
		Fitness:        4200,
		TeamID:         0,
		CheckpointsHit: 4,
		Finish:         &core.Finish{Tick: 700, Rank: 1},
	})

	assert.Equal(t, uint(2), r.GenerationID)
	assert.Equal(t, 1, r.Rank)
	assert.Equal(t, 4200.0, r.Fitness)
	assert.True(t, r.FinishTick.Valid)
	assert.Equal(t, int32(700), r.FinishTick.Int32)
	assert.Equal(t, int32(1), r.FinishRank.Int32)

	unfinished := CoreToResult(2, 3, core.AgentResult{AgentID: "b"})
	assert.False(t, unfinished.FinishTick.Valid)
	assert.False(t, unfinished.FinishRank.Valid)
}
