// Package engine runs one generation of vehicles tick by tick and scores them.
//
// Each tick, every live vehicle in index order is sensed, asks its policy for
// an action, moves, is checked against the border and the checkpoint path,
// and has its reward added to its fitness slot. The generation ends when no
// vehicle is alive or the tick budget is spent.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/circuitlab/racesim/internal/collision"
	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/kinematics"
	"github.com/circuitlab/racesim/internal/scoring"
	"github.com/circuitlab/racesim/internal/sensor"
	"github.com/circuitlab/racesim/internal/session"
	"github.com/circuitlab/racesim/internal/track"
	"github.com/circuitlab/racesim/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNoTrack         = errors.New("engine needs a track map")
	ErrNoCheckpoints   = errors.New("engine needs at least one checkpoint")
	ErrCheckpointOrder = errors.New("checkpoint indices must run 0..n-1 in slice order")
	ErrNoSession       = errors.New("engine needs a session context")
	ErrNoAgents        = errors.New("generation has no agents")
	ErrDuplicateAgent  = errors.New("duplicate agent id")
	ErrNoPolicy        = errors.New("agent has no policy")
	ErrNotRunning      = errors.New("generation is not running")
	ErrRunning         = errors.New("generation already running")
)

// State is the generation lifecycle.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dependencies are the collaborators an Engine is built from.
type Dependencies struct {
	Track       track.Map
	Checkpoints []core.Checkpoint
	Config      config.Simulation
	Session     *session.Context
	Observer    Observer
	Logger      *slog.Logger
	// RealTime paces Run at Config.TickRate scaled by the session time scale.
	RealTime bool
}

// Engine evaluates generations. It is not safe for concurrent use; the
// session context is the only state shared with other goroutines.
type Engine struct {
	track       track.Map
	checkpoints []core.Checkpoint
	cfg         config.Simulation
	weights     scoring.Weights
	session     *session.Context
	observer    Observer
	logger      *slog.Logger
	realTime    bool
	metrics     *metrics
	now         func() time.Time

	state      State
	generation int
	tick       int
	agents     []Agent
	vehicles   []*core.Vehicle
	order      scoring.FinishOrder
	best       int
	summary    core.GenerationSummary
}

// New validates the dependencies and returns an idle engine.
func New(deps Dependencies) (*Engine, error) {
	if deps.Track == nil {
		return nil, ErrNoTrack
	}
	if len(deps.Checkpoints) == 0 {
		return nil, ErrNoCheckpoints
	}
	for i, cp := range deps.Checkpoints {
		if cp.Index != i {
			return nil, fmt.Errorf("%w: checkpoint %d has index %d", ErrCheckpointOrder, i, cp.Index)
		}
	}
	if deps.Session == nil {
		return nil, ErrNoSession
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	return &Engine{
		track:       deps.Track,
		checkpoints: append([]core.Checkpoint(nil), deps.Checkpoints...),
		cfg:         deps.Config,
		weights:     scoring.NewWeights(deps.Config),
		session:     deps.Session,
		observer:    deps.Observer,
		logger:      deps.Logger,
		realTime:    deps.RealTime,
		metrics:     m,
		now:         time.Now,
		state:       StateInitializing,
		best:        -1,
	}, nil
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// Tick returns the number of completed ticks in the current generation.
func (e *Engine) Tick() int { return e.tick }

// Generation returns the number of the current generation.
func (e *Engine) Generation() int { return e.generation }

// Start resets per-generation state, places agents through the registry and
// spawns one vehicle per agent.
func (e *Engine) Start(agents []Agent) error {
	if e.state == StateRunning || e.state == StateFinalizing {
		return ErrRunning
	}
	if len(agents) == 0 {
		return ErrNoAgents
	}

	ids := make([]string, len(agents))
	seen := make(map[string]bool, len(agents))
	for i, a := range agents {
		if seen[a.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateAgent, a.ID)
		}
		if a.Policy == nil {
			return fmt.Errorf("%w: %q", ErrNoPolicy, a.ID)
		}
		seen[a.ID] = true
		ids[i] = a.ID
	}

	e.state = StateInitializing
	e.generation = e.session.NextGeneration()
	e.tick = 0
	e.best = -1
	e.order.Reset()
	e.summary = core.GenerationSummary{}

	reg := e.session.Registry()
	assignments := reg.Assign(ids)

	e.agents = make([]Agent, len(agents))
	e.vehicles = make([]*core.Vehicle, len(agents))
	infos := make([]core.VehicleInfo, len(agents))

	vc := e.cfg.Vehicle
	spawn := core.Spawn{
		Position: core.Point{X: e.cfg.Spawn.X, Y: e.cfg.Spawn.Y},
		Heading:  e.cfg.Spawn.Heading,
		Speed:    vc.DefaultSpeed,
	}
	for i, a := range agents {
		if a.Fitness == nil {
			a.Fitness = new(float64)
		}
		*a.Fitness = 0
		e.agents[i] = a

		v := core.NewVehicle(a.ID, spawn, vc.Wheelbase, vc.MaxSteeringAngle, len(e.cfg.Radar.Angles))
		v.TeamID = assignments[i].TeamID
		v.DriverSlot = assignments[i].DriverSlot
		kinematics.Place(v, vc)
		e.vehicles[i] = v

		infos[i] = core.VehicleInfo{
			VehicleID:  a.ID,
			TeamID:     v.TeamID,
			TeamName:   reg.TeamName(v.TeamID),
			DriverSlot: v.DriverSlot,
		}
	}

	e.state = StateRunning
	e.logger.Info("generation started",
		"generation", e.generation,
		"agents", len(agents),
		"timeoutTicks", e.cfg.TimeoutTicks)

	e.observer.OnGenerationStart(core.GenerationStart{
		Generation:   e.generation,
		StartTime:    e.now(),
		TrackWidth:   e.track.Width(),
		TrackHeight:  e.track.Height(),
		TimeoutTicks: e.cfg.TimeoutTicks,
		Checkpoints:  append([]core.Checkpoint(nil), e.checkpoints...),
		Vehicles:     infos,
	})
	return nil
}

// Step advances the generation by one tick. It returns false once the
// generation has been finalized.
//
// While the session is paused, only each live vehicle's age advances and
// the generation tick does not move.
func (e *Engine) Step() (bool, error) {
	if e.state != StateRunning {
		return false, ErrNotRunning
	}

	if e.session.Paused() {
		for _, v := range e.vehicles {
			if v.Alive {
				v.TicksAlive++
			}
		}
		return true, nil
	}

	var events []core.VehicleEvent
	for i, v := range e.vehicles {
		if !v.Alive {
			continue
		}
		events = append(events, e.stepVehicle(i, v)...)
	}
	e.tick++

	alive := e.aliveCount()
	ctx := context.Background()
	e.metrics.ticks.Add(ctx, 1)
	e.metrics.alive.Record(ctx, int64(alive))

	for i := range events {
		events[i].Generation = e.generation
	}
	e.observer.OnTick(e.Frame(), events)

	switch {
	case alive == 0:
		e.finalize(core.EndAllCrashed)
		return false, nil
	case e.tick >= e.cfg.TimeoutTicks:
		e.finalize(core.EndTimeout)
		return false, nil
	}
	return true, nil
}

func (e *Engine) stepVehicle(i int, v *core.Vehicle) []core.VehicleEvent {
	agent := e.agents[i]

	sensor.Sense(v, e.cfg.Radar, e.track)
	action := agent.Policy.Decide(sensor.Vector(v.Radar, e.cfg.Radar.Divisor))
	if !action.Valid() {
		e.logger.Debug("ignoring invalid action", "vehicle", v.ID, "action", action)
	}
	kinematics.ApplyAction(v, action, e.cfg.Vehicle)
	kinematics.Advance(v, e.cfg.Vehicle, e.track)

	var events []core.VehicleEvent
	if collision.Check(v, e.track) {
		events = scoring.EvaluateCheckpoints(v, e.checkpoints, e.tick, &e.order)
	} else {
		events = append(events, core.VehicleEvent{
			Tick:      e.tick,
			VehicleID: v.ID,
			Kind:      core.EventCrash,
			Position:  v.Center,
		})
	}
	scoring.TrackSteering(v, e.tick, e.cfg.Oscillation)

	*agent.Fitness += scoring.Reward(v, e.weights)
	if e.best < 0 || *agent.Fitness > *e.agents[e.best].Fitness {
		e.best = i
	}
	return events
}

func (e *Engine) aliveCount() int {
	n := 0
	for _, v := range e.vehicles {
		if v.Alive {
			n++
		}
	}
	return n
}

func (e *Engine) finalize(reason core.EndReason) {
	e.state = StateFinalizing

	results := make([]core.AgentResult, len(e.agents))
	for i, a := range e.agents {
		if cs, ok := a.Policy.(ComplexityScorer); ok {
			*a.Fitness += cs.ComplexityBonus()
		}
		v := e.vehicles[i]
		results[i] = core.AgentResult{
			AgentID:              a.ID,
			Fitness:              *a.Fitness,
			TeamID:               v.TeamID,
			DriverSlot:           v.DriverSlot,
			Alive:                v.Alive,
			CheckpointsHit:       v.CheckpointsHit,
			WrongCheckpointHits:  v.WrongCheckpointHits,
			DistanceTraveled:     v.DistanceTraveled,
			TicksAlive:           v.TicksAlive,
			OscillationPenalties: v.Steering.OscillationPenalties,
		}
		if v.Finish != nil {
			f := *v.Finish
			results[i].Finish = &f
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Fitness > results[b].Fitness
	})

	top := results
	if len(top) > session.TopPerformerCount {
		top = top[:session.TopPerformerCount]
	}
	top = append([]core.AgentResult(nil), top...)
	e.session.Registry().Commit(top)
	e.session.SetTopPerformers(top)

	e.summary = core.GenerationSummary{
		Generation:    e.generation,
		EndTick:       e.tick,
		EndTime:       e.now(),
		Reason:        reason,
		Results:       results,
		TopPerformers: top,
	}

	ctx := context.Background()
	e.metrics.generations.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
	if best, ok := e.summary.Best(); ok {
		e.metrics.bestFitness.Record(ctx, best.Fitness)
		e.logger.Info("generation finished",
			"generation", e.generation,
			"reason", reason,
			"ticks", e.tick,
			"bestAgent", best.AgentID,
			"bestFitness", best.Fitness,
			"finished", e.order.Finished())
	}

	e.observer.OnGenerationEnd(e.summary)
	e.state = StateDone
}

// Run starts a generation and steps it to completion. Cancelling ctx
// finalizes the generation early with the fitness accumulated so far.
func (e *Engine) Run(ctx context.Context, agents []Agent) (core.GenerationSummary, error) {
	if err := e.Start(agents); err != nil {
		return core.GenerationSummary{}, err
	}

	var interval time.Duration
	if e.cfg.TickRate > 0 {
		interval = time.Second / time.Duration(e.cfg.TickRate)
	}

	for {
		select {
		case <-ctx.Done():
			e.finalize(core.EndCancelled)
			return e.summary, ctx.Err()
		default:
		}

		paused := e.session.Paused()
		running, err := e.Step()
		if err != nil {
			return e.summary, err
		}
		if !running {
			return e.summary, nil
		}

		if wait := e.pace(interval, paused); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

// pausePoll is how often a paused Run with no tick rate checks the session.
const pausePoll = 10 * time.Millisecond

// pace returns how long Run sleeps after a tick. A paused session always
// waits one nominal tick so it does not spin.
func (e *Engine) pace(interval time.Duration, paused bool) time.Duration {
	if paused {
		if interval <= 0 {
			return pausePoll
		}
		return interval
	}
	if interval <= 0 || !e.realTime {
		return 0
	}
	return time.Duration(float64(interval) / e.session.TimeScale())
}

// Frame snapshots every vehicle at the current tick.
func (e *Engine) Frame() core.Frame {
	states := make([]core.VehicleState, len(e.vehicles))
	for i, v := range e.vehicles {
		states[i] = v.State(e.generation, e.tick, *e.agents[i].Fitness)
	}
	return core.Frame{
		Generation: e.generation,
		Tick:       e.tick,
		Time:       e.now(),
		States:     states,
	}
}

// Best returns the vehicle that held the highest fitness when last scored.
func (e *Engine) Best() (core.VehicleState, bool) {
	if e.best < 0 {
		return core.VehicleState{}, false
	}
	v := e.vehicles[e.best]
	return v.State(e.generation, e.tick, *e.agents[e.best].Fitness), true
}

// Summary returns the result of the last finalized generation.
func (e *Engine) Summary() (core.GenerationSummary, bool) {
	return e.summary, e.state == StateDone
}
