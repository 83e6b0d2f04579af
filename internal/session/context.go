package session

import (
	"math"
	"sync"

	"github.com/circuitlab/racesim/internal/registry"
	"github.com/circuitlab/racesim/pkg/core"
)

const (
	MinTimeScale  = 0.25
	MaxTimeScale  = 5.0
	TimeScaleStep = 0.25

	// TopPerformerCount is how many results are kept after each generation.
	TopPerformerCount = 3
)

// Context holds simulation state that outlives a single generation.
type Context struct {
	mu            sync.RWMutex
	registry      *registry.Registry
	paused        bool
	timeScale     float64
	generation    int
	topPerformers []core.AgentResult
}

// NewContext creates a Context with the given registry at normal speed.
func NewContext(reg *registry.Registry) *Context {
	return &Context{
		registry:  reg,
		timeScale: 1,
	}
}

// Registry returns the team/driver assignment registry.
func (c *Context) Registry() *registry.Registry {
	return c.registry
}

// Paused reports whether stepping is paused.
func (c *Context) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// SetPaused pauses or resumes stepping.
func (c *Context) SetPaused(p bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = p
}

// TogglePause flips the pause flag and returns the new value.
func (c *Context) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
	return c.paused
}

// TimeScale returns the real-time pacing multiplier.
func (c *Context) TimeScale() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeScale
}

// SetTimeScale snaps s to the step grid within [MinTimeScale, MaxTimeScale]
// and returns the stored value.
func (c *Context) SetTimeScale(s float64) float64 {
	s = math.Round(s/TimeScaleStep) * TimeScaleStep
	s = math.Max(MinTimeScale, math.Min(s, MaxTimeScale))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeScale = s
	return s
}

// AdjustTimeScale moves the time scale by steps increments.
func (c *Context) AdjustTimeScale(steps int) float64 {
	return c.SetTimeScale(c.TimeScale() + float64(steps)*TimeScaleStep)
}

// Generation returns the number of the generation being run, starting at 1.
func (c *Context) Generation() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// NextGeneration increments and returns the generation counter.
func (c *Context) NextGeneration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// TopPerformers returns a copy of the last generation's best results.
func (c *Context) TopPerformers() []core.AgentResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.AgentResult(nil), c.topPerformers...)
}

// SetTopPerformers stores up to TopPerformerCount results, best first.
func (c *Context) SetTopPerformers(results []core.AgentResult) {
	if len(results) > TopPerformerCount {
		results = results[:TopPerformerCount]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topPerformers = append([]core.AgentResult(nil), results...)
}
