package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgress struct{ gen, tick atomic.Int64 }

func (p *fakeProgress) Generation() int { return int(p.gen.Load()) }
func (p *fakeProgress) Tick() int       { return int(p.tick.Load()) }

type fakeSession struct{}

func (fakeSession) Paused() bool       { return true }
func (fakeSession) TimeScale() float64 { return 2.5 }

type fakeQueues map[string]int

func (q fakeQueues) QueueLengths() map[string]int { return q }

type fakeWrites time.Duration

func (w fakeWrites) GetLastDBWriteDuration() time.Duration { return time.Duration(w) }

func TestGetStatus(t *testing.T) {
	p := &fakeProgress{}
	p.gen.Store(3)
	p.tick.Store(99)

	s := NewService(Dependencies{
		Progress: p,
		Session:  fakeSession{},
		Queues:   fakeQueues{"vehicle_states": 12},
		Writes:   fakeWrites(1500 * time.Microsecond),
	})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	assert.Equal(t, Status{
		Time:                fixed,
		Generation:          3,
		Tick:                99,
		Paused:              true,
		TimeScale:           2.5,
		WriteQueueLengths:   map[string]int{"vehicle_states": 12},
		LastWriteDurationMs: 1.5,
	}, s.GetStatus())
}

func TestGetStatus_OptionalDependencies(t *testing.T) {
	st := NewService(Dependencies{}).GetStatus()
	assert.Zero(t, st.Generation)
	assert.Nil(t, st.WriteQueueLengths)
	assert.Zero(t, st.LastWriteDurationMs)
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	p := &fakeProgress{}
	s := NewService(Dependencies{
		Progress: p,
		Session:  fakeSession{},
		File:     f,
		Interval: 5 * time.Millisecond,
	})

	s.Start()
	s.Start() // second start is a no-op
	assert.True(t, s.IsRunning())

	// generation 0 is skipped
	time.Sleep(20 * time.Millisecond)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	p.gen.Store(1)
	p.tick.Store(7)
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			return false
		}
		var st Status
		if json.Unmarshal(data, &st) != nil {
			return false
		}
		return st.Generation == 1 && st.Tick == 7
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}
