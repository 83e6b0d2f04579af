package worker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/circuitlab/racesim/internal/dispatcher"
	"github.com/circuitlab/racesim/internal/engine"
	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ engine.Observer = (*Publisher)(nil)
	_ storage.Backend = (*mockBackend)(nil)
)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) Debug(msg string, keysAndValues ...any) { l.add(msg) }
func (l *mockLogger) Info(msg string, keysAndValues ...any)  { l.add(msg) }
func (l *mockLogger) Error(msg string, keysAndValues ...any) { l.add(msg) }

func (l *mockLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// mockBackend records calls in order
type mockBackend struct {
	mu       sync.Mutex
	calls    []string
	starts   []*core.GenerationStart
	frames   []*core.Frame
	events   []*core.VehicleEvent
	ends     []*core.GenerationSummary
	frameErr error
	duration time.Duration
}

func (b *mockBackend) record(call string) {
	b.calls = append(b.calls, call)
}

func (b *mockBackend) Init() error  { return nil }
func (b *mockBackend) Close() error { return nil }

func (b *mockBackend) StartGeneration(s *core.GenerationStart) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("start")
	b.starts = append(b.starts, s)
	return nil
}

func (b *mockBackend) EndGeneration(s *core.GenerationSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("end")
	b.ends = append(b.ends, s)
	return nil
}

func (b *mockBackend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frameErr != nil {
		return b.frameErr
	}
	b.record("frame")
	b.frames = append(b.frames, f)
	return nil
}

func (b *mockBackend) RecordVehicleEvent(e *core.VehicleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("event")
	b.events = append(b.events, e)
	return nil
}

func (b *mockBackend) GetLastDBWriteDuration() time.Duration {
	return b.duration
}

type mockSink struct {
	mu        sync.Mutex
	summaries []core.GenerationSummary
	err       error
}

func (s *mockSink) WriteGeneration(sum core.GenerationSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, sum)
	return s.err
}

func newTestPipeline(t *testing.T, deps Dependencies, backend storage.Backend) (*dispatcher.Dispatcher, *Manager) {
	t.Helper()
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	m := NewManager(deps, backend)
	m.RegisterHandlers(d)
	return d, m
}

func TestRegisterHandlers_AllTopics(t *testing.T) {
	d, _ := newTestPipeline(t, Dependencies{}, &mockBackend{})

	for _, topic := range []string{TopicGenerationStart, TopicFrame, TopicVehicleEvent, TopicGenerationEnd} {
		assert.True(t, d.HasHandler(topic), topic)
	}
}

func TestPublisher_OrdersLifecycle(t *testing.T) {
	backend := &mockBackend{}
	sink := &mockSink{}
	d, _ := newTestPipeline(t, Dependencies{Metrics: sink}, backend)
	p := NewPublisher(d, 1, nil)

	p.OnGenerationStart(core.GenerationStart{Generation: 1})
	for tick := 1; tick <= 5; tick++ {
		var events []core.VehicleEvent
		if tick == 3 {
			events = []core.VehicleEvent{{Generation: 1, Tick: 3, VehicleID: "a", Kind: core.EventCrash}}
		}
		p.OnTick(core.Frame{Generation: 1, Tick: tick}, events)
	}
	p.OnGenerationEnd(core.GenerationSummary{Generation: 1, EndTick: 5})

	backend.mu.Lock()
	defer backend.mu.Unlock()

	assert.Equal(t, "start", backend.calls[0])
	assert.Equal(t, "end", backend.calls[len(backend.calls)-1])
	assert.Len(t, backend.frames, 5)
	require.Len(t, backend.events, 1)
	assert.Equal(t, core.EventCrash, backend.events[0].Kind)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, 5, sink.summaries[0].EndTick)
}

func TestPublisher_FrameInterval(t *testing.T) {
	backend := &mockBackend{}
	d, _ := newTestPipeline(t, Dependencies{}, backend)
	p := NewPublisher(d, 4, nil)

	p.OnGenerationStart(core.GenerationStart{Generation: 2})
	for tick := 1; tick <= 10; tick++ {
		p.OnTick(core.Frame{Generation: 2, Tick: tick}, nil)
	}
	p.OnGenerationEnd(core.GenerationSummary{Generation: 2})

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.frames, 2)
	assert.Equal(t, 4, backend.frames[0].Tick)
	assert.Equal(t, 8, backend.frames[1].Tick)
}

func TestPublisher_EventsAreCopied(t *testing.T) {
	backend := &mockBackend{}
	d, _ := newTestPipeline(t, Dependencies{}, backend)
	p := NewPublisher(d, 1, nil)

	events := []core.VehicleEvent{
		{VehicleID: "a", Kind: core.EventCheckpoint},
		{VehicleID: "b", Kind: core.EventCheckpoint},
	}
	p.OnGenerationStart(core.GenerationStart{})
	p.OnTick(core.Frame{Tick: 1}, events)
	events[0].VehicleID = "mutated"
	d.Wait()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.events, 2)
	ids := []string{backend.events[0].VehicleID, backend.events[1].VehicleID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestHandlers_RejectWrongPayload(t *testing.T) {
	d, _ := newTestPipeline(t, Dependencies{}, &mockBackend{})

	_, err := d.Dispatch(dispatcher.Event{Topic: TopicGenerationStart, Payload: "nope"})
	assert.ErrorIs(t, err, ErrUnexpectedPayload)

	_, err = d.Dispatch(dispatcher.Event{Topic: TopicGenerationEnd, Payload: core.GenerationSummary{}})
	assert.ErrorIs(t, err, ErrUnexpectedPayload)
}

func TestHandlers_BackendErrorDoesNotStopQueue(t *testing.T) {
	backend := &mockBackend{frameErr: errors.New("disk full")}
	d, _ := newTestPipeline(t, Dependencies{}, backend)
	p := NewPublisher(d, 1, nil)

	p.OnGenerationStart(core.GenerationStart{Generation: 1})
	p.OnTick(core.Frame{Tick: 1}, []core.VehicleEvent{{VehicleID: "a"}})
	p.OnGenerationEnd(core.GenerationSummary{Generation: 1})

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.frames)
	assert.Len(t, backend.events, 1)
	assert.Len(t, backend.ends, 1)
}

func TestHandlers_MetricsErrorIsNotFatal(t *testing.T) {
	backend := &mockBackend{}
	d, _ := newTestPipeline(t, Dependencies{Metrics: &mockSink{err: errors.New("influx down")}}, backend)

	_, err := d.Dispatch(dispatcher.Event{Topic: TopicGenerationEnd, Payload: &core.GenerationSummary{Generation: 1}})
	assert.NoError(t, err)
}

func TestGetLastDBWriteDuration(t *testing.T) {
	m := NewManager(Dependencies{}, &mockBackend{duration: 42 * time.Millisecond})
	assert.Equal(t, 42*time.Millisecond, m.GetLastDBWriteDuration())
}

func TestGetLastDBWriteDuration_Unsupported(t *testing.T) {
	m := NewManager(Dependencies{}, storage.Backend(nil))
	assert.Zero(t, m.GetLastDBWriteDuration())
}
