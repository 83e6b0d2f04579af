package gormstorage

import (
	"math"
	"testing"
	"time"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/database"
	"github.com/circuitlab/racesim/internal/geo"
	"github.com/circuitlab/racesim/internal/model"
	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{Config: config.GormConfig{BatchSize: 10}})
}

// newDBBackend creates a Backend on a private in-memory SQLite database.
func newDBBackend(t *testing.T, cfg config.GormConfig) *Backend {
	t.Helper()
	db, err := database.OpenMemory("gormstorage_" + t.Name())
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Config: cfg})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testStart(gen int) *core.GenerationStart {
	return &core.GenerationStart{
		Generation:   gen,
		StartTime:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		TrackWidth:   800,
		TrackHeight:  600,
		TimeoutTicks: 50,
		Checkpoints:  []core.Checkpoint{{Index: 0, X: 100, Y: 100, Radius: 20}},
		Vehicles: []core.VehicleInfo{
			{VehicleID: "a", TeamID: 0, TeamName: "apex"},
			{VehicleID: "b", TeamID: 0, TeamName: "apex", DriverSlot: 1},
		},
	}
}

func testFrame(gen, tick int) *core.Frame {
	return &core.Frame{
		Generation: gen,
		Tick:       tick,
		Time:       time.Now(),
		States: []core.VehicleState{
			{Tick: tick, VehicleID: "a", Position: core.Point{X: float64(10 * tick), Y: 0}, Alive: true, RadarDistances: []int{1, 2, 3}},
			{Tick: tick, VehicleID: "b", Position: core.Point{X: 5, Y: 5}, Alive: true},
		},
	}
}

func TestNew(t *testing.T) {
	b := newTestBackend()
	require.NotNil(t, b)
	assert.Equal(t, 10, b.deps.Config.BatchSize)

	assert.Equal(t, 500, New(Dependencies{}).deps.Config.BatchSize)
}

func TestInitClose(t *testing.T) {
	b := newTestBackend()

	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	// second close is a no-op
	require.NoError(t, b.Close())
}

func TestRecordBeforeStart(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.RecordFrame(testFrame(1, 1)), storage.ErrNoGeneration)
	assert.ErrorIs(t, b.RecordVehicleEvent(&core.VehicleEvent{}), storage.ErrNoGeneration)
	assert.ErrorIs(t, b.EndGeneration(&core.GenerationSummary{}), storage.ErrNoGeneration)
}

func TestRecordFrame_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartGeneration(testStart(1)))
	require.NoError(t, b.RecordFrame(testFrame(1, 1)))
	require.NoError(t, b.RecordFrame(testFrame(1, 2)))

	assert.Equal(t, 4, b.queues.States.Len())
	assert.Len(t, b.paths["a"], 2)
	assert.Equal(t, map[string]int{"vehicle_states": 4, "vehicle_events": 0}, b.QueueLengths())
}

func TestQueueLengths_BeforeInit(t *testing.T) {
	assert.Nil(t, newTestBackend().QueueLengths())
}

func TestRecordFrame_FrameInterval(t *testing.T) {
	b := New(Dependencies{Config: config.GormConfig{FrameInterval: 5}})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartGeneration(testStart(1)))
	for tick := 1; tick <= 10; tick++ {
		require.NoError(t, b.RecordFrame(testFrame(1, tick)))
	}

	// ticks 5 and 10, two vehicles each
	assert.Equal(t, 4, b.queues.States.Len())
	// trajectories keep every frame
	assert.Len(t, b.paths["a"], 10)
}

func TestRecordVehicleEvent_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartGeneration(testStart(3)))
	require.NoError(t, b.RecordVehicleEvent(&core.VehicleEvent{Tick: 2, VehicleID: "a", Kind: core.EventCheckpoint}))

	require.Equal(t, 1, b.queues.Events.Len())
	ev := b.queues.Events.GetAndEmpty()[0]
	assert.Equal(t, uint(3), ev.GenerationID)
	assert.Equal(t, "checkpoint", ev.Kind)
}

func TestRecord_NonFinitePositionIsRejected(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartGeneration(testStart(1)))

	bad := core.Point{X: math.NaN(), Y: 3}
	assert.Error(t, b.RecordFrame(&core.Frame{Generation: 1, Tick: 1, States: []core.VehicleState{{VehicleID: "a", Position: bad}}}))
	assert.Error(t, b.RecordVehicleEvent(&core.VehicleEvent{VehicleID: "a", Kind: core.EventCrash, Position: bad}))

	assert.Equal(t, map[string]int{"vehicle_states": 0, "vehicle_events": 0}, b.QueueLengths())
}

func TestGenerationLifecycle_WritesRows(t *testing.T) {
	b := newDBBackend(t, config.GormConfig{BatchSize: 3})

	require.NoError(t, b.StartGeneration(testStart(1)))
	for tick := 1; tick <= 4; tick++ {
		require.NoError(t, b.RecordFrame(testFrame(1, tick)))
	}
	require.NoError(t, b.RecordVehicleEvent(&core.VehicleEvent{Generation: 1, Tick: 4, VehicleID: "b", Kind: core.EventCrash, Position: core.Point{X: 5, Y: 5}}))

	end := time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC)
	require.NoError(t, b.EndGeneration(&core.GenerationSummary{
		Generation: 1,
		EndTick:    4,
		EndTime:    end,
		Reason:     core.EndTimeout,
		Results: []core.AgentResult{
			{AgentID: "a", Fitness: 40, Alive: true, Finish: &core.Finish{Tick: 4, Rank: 1}},
			{AgentID: "b", Fitness: -5},
		},
	}))

	gen, err := b.Generation(1)
	require.NoError(t, err)
	assert.Equal(t, 4, gen.EndTick)
	assert.Equal(t, "timeout", gen.Reason)
	assert.Equal(t, "a", gen.BestAgentID)
	assert.Equal(t, 40.0, gen.BestFitness)
	assert.True(t, gen.EndTime.Valid)
	assert.Equal(t, 1, gen.Checkpoints)

	n, err := b.CountStates(1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	var events []model.VehicleEvent
	require.NoError(t, b.db.Where("generation_id = ?", gen.ID).Find(&events).Error)
	require.Len(t, events, 1)
	pos, err := geo.ToCore(events[0].Position)
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: 5, Y: 5}, pos)

	var vehicles []model.Vehicle
	require.NoError(t, b.db.Where("generation_id = ?", gen.ID).Find(&vehicles).Error)
	assert.Len(t, vehicles, 2)

	results, err := b.GenerationResults(1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].AgentID)
	assert.Equal(t, 1, results[0].Rank)
	assert.True(t, results[0].FinishTick.Valid)
	// a moved 10px per tick over 4 frames
	assert.InDelta(t, 30.0, results[0].PathLength, 1e-9)
	assert.Len(t, geo.TrajectoryPoints(results[0].Trajectory), 4)
	// b never moved
	assert.Zero(t, results[1].PathLength)
}

func TestLeaderboard(t *testing.T) {
	b := newDBBackend(t, config.GormConfig{})

	fitness := map[int][]core.AgentResult{
		1: {{AgentID: "a", Fitness: 10}, {AgentID: "b", Fitness: 5}},
		2: {{AgentID: "b", Fitness: 50, Finish: &core.Finish{Tick: 30, Rank: 1}}, {AgentID: "a", Fitness: 20}},
	}
	for gen := 1; gen <= 2; gen++ {
		require.NoError(t, b.StartGeneration(testStart(gen)))
		require.NoError(t, b.EndGeneration(&core.GenerationSummary{Generation: gen, Results: fitness[gen]}))
	}

	board, err := b.Leaderboard(10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, model.AgentStanding{AgentID: "b", BestFitness: 50, Generations: 2, Finishes: 1}, board[0])
	assert.Equal(t, model.AgentStanding{AgentID: "a", BestFitness: 20, Generations: 2, Finishes: 0}, board[1])

	top, err := b.Leaderboard(1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestQueries_NoDatabase(t *testing.T) {
	b := newTestBackend()
	_, err := b.Leaderboard(5)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = b.GenerationResults(1)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestFlushLoop_WritesInBackground(t *testing.T) {
	b := newDBBackend(t, config.GormConfig{FlushInterval: 10 * time.Millisecond})

	require.NoError(t, b.StartGeneration(testStart(1)))
	require.NoError(t, b.RecordFrame(testFrame(1, 1)))

	assert.Eventually(t, func() bool {
		n, err := b.CountStates(1)
		return err == nil && n == 2
	}, time.Second, 10*time.Millisecond)
	assert.True(t, b.queues.States.Empty())
}
