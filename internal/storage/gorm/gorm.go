// Package gormstorage implements the storage.Backend interface on top of GORM.
// Rows are queued and written in batches by a background flush loop.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/database"
	"github.com/circuitlab/racesim/internal/geo"
	"github.com/circuitlab/racesim/internal/model"
	"github.com/circuitlab/racesim/internal/model/convert"
	"github.com/circuitlab/racesim/internal/queue"
	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds everything the backend needs
type Dependencies struct {
	DB     *gorm.DB // nil means queue-only mode
	Logger *slog.Logger
	Config config.GormConfig
}

type queues struct {
	States *queue.Queue[model.VehicleState]
	Events *queue.Queue[model.VehicleEvent]
}

// Backend writes telemetry rows through GORM
type Backend struct {
	deps Dependencies
	db   *gorm.DB
	log  *slog.Logger

	mu           sync.Mutex
	generationID uint
	active       bool
	paths        map[string][]core.Point

	queues   *queues
	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}

	lastWrite atomic.Int64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.BatchSize <= 0 {
		deps.Config.BatchSize = 500
	}
	return &Backend{
		deps: deps,
		db:   deps.DB,
		log:  deps.Logger,
	}
}

// Init migrates the schema and starts the flush loop.
func (b *Backend) Init() error {
	b.queues = &queues{
		States: queue.New[model.VehicleState](),
		Events: queue.New[model.VehicleEvent](),
	}
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.db == nil {
		close(b.done)
		return nil
	}

	if err := database.Migrate(b.db); err != nil {
		close(b.done)
		return err
	}

	if b.deps.Config.FlushInterval > 0 {
		go b.flushLoop()
	} else {
		close(b.done)
	}
	return nil
}

// Close stops the flush loop and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return b.flush()
}

// StartGeneration inserts the generation row and its roster.
func (b *Backend) StartGeneration(s *core.GenerationStart) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.paths = make(map[string][]core.Point, len(s.Vehicles))
	b.active = true

	if b.db == nil {
		b.generationID = uint(s.Generation)
		return nil
	}

	gen := convert.CoreToGeneration(*s)
	if err := b.db.Create(&gen).Error; err != nil {
		return fmt.Errorf("failed to create generation %d: %w", s.Generation, err)
	}
	b.generationID = gen.ID

	if vehicles := convert.CoreToVehicles(gen.ID, *s); len(vehicles) > 0 {
		if err := b.db.CreateInBatches(vehicles, b.deps.Config.BatchSize).Error; err != nil {
			return fmt.Errorf("failed to create vehicles: %w", err)
		}
	}
	return nil
}

// RecordFrame queues one row per vehicle snapshot
func (b *Backend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return storage.ErrNoGeneration
	}

	for _, s := range f.States {
		b.paths[s.VehicleID] = append(b.paths[s.VehicleID], s.Position)
	}

	if n := b.deps.Config.FrameInterval; n > 1 && f.Tick%n != 0 {
		return nil
	}
	states, err := convert.CoreToVehicleStates(b.generationID, *f)
	if err != nil {
		return err
	}
	b.queues.States.Push(states...)
	return nil
}

// RecordVehicleEvent queues one event row
func (b *Backend) RecordVehicleEvent(e *core.VehicleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return storage.ErrNoGeneration
	}
	event, err := convert.CoreToVehicleEvent(b.generationID, *e)
	if err != nil {
		return err
	}
	b.queues.Events.Push(event)
	return nil
}

// EndGeneration flushes queued rows, then writes results and closes the generation row.
func (b *Backend) EndGeneration(s *core.GenerationSummary) error {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return storage.ErrNoGeneration
	}
	id := b.generationID
	paths := b.paths
	b.paths = nil
	b.active = false
	b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	if err := b.flush(); err != nil {
		return err
	}

	results := make([]model.Result, len(s.Results))
	for i, r := range s.Results {
		results[i] = convert.CoreToResult(id, i+1, r)
		if ls, err := geo.Trajectory(paths[r.AgentID]); err == nil {
			results[i].Trajectory = ls
			results[i].PathLength = ls.Length()
		}
	}
	if len(results) > 0 {
		if err := b.db.CreateInBatches(results, b.deps.Config.BatchSize).Error; err != nil {
			return fmt.Errorf("failed to create results: %w", err)
		}
	}

	updates := map[string]any{
		"end_time": s.EndTime,
		"end_tick": s.EndTick,
		"reason":   string(s.Reason),
	}
	if best, ok := s.Best(); ok {
		updates["best_agent_id"] = best.AgentID
		updates["best_fitness"] = best.Fitness
	}
	if err := b.db.Model(&model.Generation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to close generation %d: %w", s.Generation, err)
	}
	return nil
}

// GetLastDBWriteDuration returns how long the last flush took
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// QueueLengths reports rows waiting for the next flush.
func (b *Backend) QueueLengths() map[string]int {
	if b.queues == nil {
		return nil
	}
	return map[string]int{
		"vehicle_states": b.queues.States.Len(),
		"vehicle_events": b.queues.Events.Len(),
	}
}

func (b *Backend) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.Config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.flush(); err != nil {
				b.log.Error("flush failed", "error", err)
			}
		}
	}
}

// flush writes every queued row in BatchSize chunks.
func (b *Backend) flush() error {
	if b.db == nil || b.queues == nil {
		return nil
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	var errs []error

	for batch := b.queues.States.Take(b.deps.Config.BatchSize); len(batch) > 0; batch = b.queues.States.Take(b.deps.Config.BatchSize) {
		if err := b.db.Create(&batch).Error; err != nil {
			errs = append(errs, fmt.Errorf("failed to write %d vehicle states: %w", len(batch), err))
		}
	}
	for batch := b.queues.Events.Take(b.deps.Config.BatchSize); len(batch) > 0; batch = b.queues.Events.Take(b.deps.Config.BatchSize) {
		if err := b.db.Create(&batch).Error; err != nil {
			errs = append(errs, fmt.Errorf("failed to write %d vehicle events: %w", len(batch), err))
		}
	}

	b.lastWrite.Store(int64(time.Since(start)))
	return errors.Join(errs...)
}
