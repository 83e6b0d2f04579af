package geo

import (
	"math"
	"testing"

	"github.com/circuitlab/racesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoint_RoundTrip(t *testing.T) {
	p, err := Point(core.Point{X: 1630.5, Y: 140.25})
	require.NoError(t, err)

	coords, ok := p.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1630.5, coords.X)
	assert.Equal(t, 140.25, coords.Y)

	back, err := ToCore(p)
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: 1630.5, Y: 140.25}, back)
}

func TestPoint_WKBScan(t *testing.T) {
	p, err := Point(core.Point{X: -3, Y: 7})
	require.NoError(t, err)

	v, err := p.Value()
	require.NoError(t, err)

	var scanned geom.Point
	require.NoError(t, scanned.Scan(v))

	back, err := ToCore(scanned)
	require.NoError(t, err)
	assert.Equal(t, core.Point{X: -3, Y: 7}, back)
}

func TestPoint_NonFinite(t *testing.T) {
	for _, p := range []core.Point{{X: math.NaN(), Y: 0}, {X: 0, Y: math.Inf(-1)}} {
		got, err := Point(p)
		assert.Error(t, err)
		assert.True(t, got.IsEmpty())
	}
}

func TestToCore_Empty(t *testing.T) {
	_, err := ToCore(geom.NewEmptyPoint(geom.DimXY))
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}

func TestTrajectory(t *testing.T) {
	ls, err := Trajectory([]core.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}})
	require.NoError(t, err)

	assert.Equal(t, 3, ls.Coordinates().Length())
	assert.InDelta(t, 7.0, ls.Length(), 1e-9)
	assert.Equal(t, []core.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}}, TrajectoryPoints(ls))
}

func TestTrajectory_TooShort(t *testing.T) {
	tests := []struct {
		name   string
		points []core.Point
	}{
		{"empty", nil},
		{"single", []core.Point{{X: 1, Y: 1}}},
		{"stationary", []core.Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Trajectory(tt.points)
			assert.Error(t, err)
		})
	}
}
