package influx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// MeasurementGeneration is the measurement written once per generation.
const MeasurementGeneration = "generation"

// ErrDisabled is returned by Connect when influx is switched off in config.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles InfluxDB connections and writes.
// While the server is unreachable, points go to Fallback as line protocol.
type Manager struct {
	Client   influxdb2.Client
	Writer   influxdb2_api.WriteAPI
	Fallback io.Writer
	IsValid  bool
	Logger   zerolog.Logger

	cfg config.InfluxConfig
	mu  sync.Mutex
}

// NewManager creates a new InfluxDB manager. fallback may be nil.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, fallback io.Writer) *Manager {
	return &Manager{
		Fallback: fallback,
		Logger:   log,
		cfg:      cfg,
	}
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.ServerURL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("url", m.cfg.ServerURL()).
			Msg("InfluxDB unreachable, using fallback writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization %q: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}

	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30, // 30 days
	})
	if err != nil {
		return fmt.Errorf("error creating bucket %q: %w", m.cfg.Bucket, err)
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the fallback writer.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	if m.Fallback == nil {
		return errors.New("influxDB client not connected and no fallback writer")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := io.WriteString(m.Fallback, line+"\n"); err != nil {
		return fmt.Errorf("error writing to InfluxDB fallback: %w", err)
	}
	return nil
}

// WriteGeneration records the summary of a finished generation.
func (m *Manager) WriteGeneration(s core.GenerationSummary) error {
	return m.WritePoint(GenerationPoint(s))
}

// Close flushes pending writes and closes the client.
func (m *Manager) Close() {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
}

// GenerationPoint turns a generation summary into a single point.
func GenerationPoint(s core.GenerationSummary) *influxdb2_write.Point {
	var (
		sum      float64
		alive    int
		finished int
	)
	for _, r := range s.Results {
		sum += r.Fitness
		if r.Alive {
			alive++
		}
		if r.Finish != nil {
			finished++
		}
	}

	fields := map[string]any{
		"generation": s.Generation,
		"end_tick":   s.EndTick,
		"agents":     len(s.Results),
		"alive":      alive,
		"finished":   finished,
	}
	if len(s.Results) > 0 {
		fields["mean_fitness"] = sum / float64(len(s.Results))
	}
	if best, ok := s.Best(); ok {
		fields["best_fitness"] = best.Fitness
	}

	ts := s.EndTime
	if ts.IsZero() {
		ts = time.Now()
	}

	return influxdb2.NewPoint(
		MeasurementGeneration,
		map[string]string{"reason": string(s.Reason)},
		fields,
		ts,
	)
}
