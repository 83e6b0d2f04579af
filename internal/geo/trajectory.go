package geo

import (
	"fmt"

	"github.com/circuitlab/racesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Trajectory builds a LineString from the sampled positions of one vehicle.
// Consecutive duplicates are dropped; a vehicle that never moved has no trajectory.
func Trajectory(points []core.Point) (geom.LineString, error) {
	flat := make([]float64, 0, len(points)*2)
	var n int
	for i, p := range points {
		if i > 0 && p == points[i-1] {
			continue
		}
		flat = append(flat, p.X, p.Y)
		n++
	}

	if n < 2 {
		return geom.LineString{}, fmt.Errorf("trajectory must have at least 2 distinct points, got %d", n)
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq)
}

// TrajectoryPoints unpacks a stored LineString
func TrajectoryPoints(ls geom.LineString) []core.Point {
	seq := ls.Coordinates()
	out := make([]core.Point, seq.Length())
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = core.Point{X: xy.X, Y: xy.Y}
	}
	return out
}
