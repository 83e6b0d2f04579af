package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/engine"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

var _ engine.Observer = (*Recorder)(nil)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.IsType(t, noop.Meter{}, p.Meter("racesim"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(context.Background(), Config{OTelConfig: config.OTelConfig{Enabled: true}})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_WriterExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		OTelConfig: config.OTelConfig{Enabled: true, ServiceName: "racesim-test"},
		LogWriter:  &buf,
	})
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())
	assert.NotNil(t, p.Meter("racesim"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_DefaultsApplied(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(), Config{
		OTelConfig: config.OTelConfig{Enabled: true},
		LogWriter:  &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.Equal(t, "racesim", p.config.ServiceName)
	assert.Equal(t, defaultBatchTimeout, p.config.BatchTimeout)
}

func TestRecorder_NoopMeter(t *testing.T) {
	r, err := NewRecorder(noop.Meter{})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.OnGenerationStart(core.GenerationStart{Generation: 1})
		r.OnTick(core.Frame{Tick: 1}, []core.VehicleEvent{{Kind: core.EventCrash}, {Kind: core.EventCheckpoint}})
		r.OnGenerationEnd(core.GenerationSummary{Generation: 1, EndTick: 40, Reason: core.EndTimeout,
			Results: []core.AgentResult{{AgentID: "a", Fitness: 12}}})
		r.OnGenerationEnd(core.GenerationSummary{Generation: 2, Reason: core.EndAllCrashed})
	})
}
