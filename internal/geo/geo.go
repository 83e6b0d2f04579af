package geo

import (
	"errors"
	"fmt"

	"github.com/circuitlab/racesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Track coordinates are screen pixels, x right and y down. They are stored
// unprojected as WKB so SQLite can scan them back without spatial support.

// ErrEmptyGeometry is returned when a geometry carries no coordinates
var ErrEmptyGeometry = errors.New("empty geometry")

// Point converts a track position into a 2D point. Non-finite coordinates
// are rejected.
func Point(p core.Point) (geom.Point, error) {
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("invalid position (%g, %g): %w", p.X, p.Y, err)
	}
	return point, nil
}

// ToCore converts a stored point back into a track position
func ToCore(p geom.Point) (core.Point, error) {
	coords, ok := p.Coordinates()
	if !ok {
		return core.Point{}, ErrEmptyGeometry
	}
	return core.Point{X: coords.X, Y: coords.Y}, nil
}
