// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/pkg/core"
)

// GenerationRecord groups a generation with all its time-series data
type GenerationRecord struct {
	Start   core.GenerationStart
	Frames  []core.Frame
	Events  []core.VehicleEvent
	Summary *core.GenerationSummary
}

// Backend keeps the most recent generations in memory
type Backend struct {
	cfg         config.MemoryConfig
	generations []*GenerationRecord
	current     *GenerationRecord
	mu          sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close drops all recorded data
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generations = nil
	b.current = nil
	return nil
}

// StartGeneration begins recording a new generation, evicting the oldest
// one once MaxGenerations are held.
func (b *Backend) StartGeneration(s *core.GenerationStart) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := &GenerationRecord{Start: *s}
	b.generations = append(b.generations, rec)
	if max := b.cfg.MaxGenerations; max > 0 && len(b.generations) > max {
		b.generations = append([]*GenerationRecord(nil), b.generations[len(b.generations)-max:]...)
	}
	b.current = rec
	return nil
}

// EndGeneration attaches the summary and closes the current generation
func (b *Backend) EndGeneration(s *core.GenerationSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoGeneration
	}
	if b.current.Start.Generation != s.Generation {
		return fmt.Errorf("summary for generation %d, recording %d", s.Generation, b.current.Start.Generation)
	}
	summary := *s
	b.current.Summary = &summary
	b.current = nil
	return nil
}

// RecordFrame stores every FrameInterval-th frame
func (b *Backend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoGeneration
	}
	if n := b.cfg.FrameInterval; n > 1 && f.Tick%n != 0 {
		return nil
	}
	b.current.Frames = append(b.current.Frames, *f)
	return nil
}

// RecordVehicleEvent stores a crash, checkpoint or finish
func (b *Backend) RecordVehicleEvent(e *core.VehicleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoGeneration
	}
	b.current.Events = append(b.current.Events, *e)
	return nil
}

// Generations returns the numbers of the generations held, oldest first
func (b *Backend) Generations() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]int, len(b.generations))
	for i, g := range b.generations {
		out[i] = g.Start.Generation
	}
	return out
}

// Generation returns a copy of one recorded generation
func (b *Backend) Generation(n int) (GenerationRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, g := range b.generations {
		if g.Start.Generation == n {
			return copyRecord(g), true
		}
	}
	return GenerationRecord{}, false
}

func copyRecord(g *GenerationRecord) GenerationRecord {
	out := GenerationRecord{
		Start:  g.Start,
		Frames: append([]core.Frame(nil), g.Frames...),
		Events: append([]core.VehicleEvent(nil), g.Events...),
	}
	if g.Summary != nil {
		s := *g.Summary
		out.Summary = &s
	}
	return out
}
