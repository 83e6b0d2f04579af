package influx

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary() core.GenerationSummary {
	return core.GenerationSummary{
		Generation: 7,
		EndTick:    812,
		EndTime:    time.Unix(1700000000, 0),
		Reason:     core.EndAllCrashed,
		Results: []core.AgentResult{
			{AgentID: "a", Fitness: 300, Finish: &core.Finish{Tick: 700, Rank: 1}},
			{AgentID: "b", Fitness: 100, Alive: true},
			{AgentID: "c", Fitness: -100},
		},
	}
}

func fieldMap(p *influxdb2_write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestGenerationPoint(t *testing.T) {
	p := GenerationPoint(summary())

	assert.Equal(t, MeasurementGeneration, p.Name())
	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "reason", p.TagList()[0].Key)
	assert.Equal(t, "all_crashed", p.TagList()[0].Value)
	assert.Equal(t, time.Unix(1700000000, 0), p.Time())

	fields := fieldMap(p)
	assert.EqualValues(t, 7, fields["generation"])
	assert.EqualValues(t, 812, fields["end_tick"])
	assert.EqualValues(t, 3, fields["agents"])
	assert.EqualValues(t, 1, fields["alive"])
	assert.EqualValues(t, 1, fields["finished"])
	assert.InDelta(t, 100.0, fields["mean_fitness"], 1e-9)
	assert.InDelta(t, 300.0, fields["best_fitness"], 1e-9)
}

func TestGenerationPoint_Empty(t *testing.T) {
	p := GenerationPoint(core.GenerationSummary{Generation: 1})
	fields := fieldMap(p)
	assert.NotContains(t, fields, "mean_fitness")
	assert.NotContains(t, fields, "best_fitness")
	assert.False(t, p.Time().IsZero())
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), nil)
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestConnect_UnreachableUsesFallback(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "racesim",
		Bucket:   "generations",
	}, zerolog.Nop(), &buf)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	defer m.Close()
	assert.False(t, m.IsValid)

	require.NoError(t, m.WriteGeneration(summary()))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "generation,reason=all_crashed "))
	assert.Contains(t, line, "best_fitness=300")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestWritePoint_NoFallback(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), nil)
	assert.Error(t, m.WriteGeneration(summary()))
}
