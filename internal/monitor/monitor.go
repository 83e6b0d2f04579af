package monitor

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Status is one snapshot of a running simulation.
type Status struct {
	Time                time.Time      `json:"time"`
	Generation          int            `json:"generation"`
	Tick                int            `json:"tick"`
	Paused              bool           `json:"paused"`
	TimeScale           float64        `json:"timeScale"`
	WriteQueueLengths   map[string]int `json:"writeQueueLengths,omitempty"`
	LastWriteDurationMs float32        `json:"lastWriteDurationMs"`
}

// ProgressSource reports the generation and tick being simulated.
type ProgressSource interface {
	Generation() int
	Tick() int
}

// SessionSource reports the shared run controls.
type SessionSource interface {
	Paused() bool
	TimeScale() float64
}

// QueueLengthProvider is implemented by storage backends with write queues.
type QueueLengthProvider interface {
	QueueLengths() map[string]int
}

// WriteDurationProvider exposes the last DB write duration.
type WriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// StatusFile is where the latest snapshot is rewritten. *os.File satisfies it.
type StatusFile interface {
	io.Writer
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger   *slog.Logger
	Progress ProgressSource
	Session  SessionSource
	// Queues and Writes are optional.
	Queues   QueueLengthProvider
	Writes   WriteDurationProvider
	File     StatusFile
	Interval time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	now       func() time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps: deps,
		now:  time.Now,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current snapshot.
func (s *Service) GetStatus() Status {
	st := Status{Time: s.now()}
	if s.deps.Progress != nil {
		st.Generation = s.deps.Progress.Generation()
		st.Tick = s.deps.Progress.Tick()
	}
	if s.deps.Session != nil {
		st.Paused = s.deps.Session.Paused()
		st.TimeScale = s.deps.Session.TimeScale()
	}
	if s.deps.Queues != nil {
		st.WriteQueueLengths = s.deps.Queues.QueueLengths()
	}
	if s.deps.Writes != nil {
		st.LastWriteDurationMs = float32(s.deps.Writes.GetLastDBWriteDuration().Microseconds()) / 1000
	}
	return st
}

// writeStatus replaces the status file contents with st.
func (s *Service) writeStatus(st Status) error {
	if s.deps.File == nil {
		return nil
	}
	if err := s.deps.File.Truncate(0); err != nil {
		return err
	}
	if _, err := s.deps.File.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(s.deps.File)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := s.GetStatus()
				// nothing to report before the first generation
				if st.Generation == 0 {
					continue
				}
				if err := s.writeStatus(st); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				logger.Debug("Status",
					"paused", st.Paused,
					"timeScale", st.TimeScale,
					"queues", st.WriteQueueLengths,
					"lastWriteMs", st.LastWriteDurationMs,
				)
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
