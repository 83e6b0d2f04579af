// Package sensor casts the forward radar rays used as policy input.
package sensor

import (
	"math"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/track"
	"github.com/circuitlab/racesim/pkg/core"
)

// Cast marches one ray from origin along bearing (degrees, screen convention)
// in unit steps. It stops on a border pixel, when the sample leaves the map,
// or once maxRange is reached.
func Cast(origin core.Point, bearing, maxRange float64, m track.Map) core.RadarReading {
	a := (360 - bearing) * math.Pi / 180
	cos, sin := math.Cos(a), math.Sin(a)

	x, y := math.Trunc(origin.X), math.Trunc(origin.Y)
	for length := 0.0; length < maxRange; {
		border, in := m.IsBorder(int(x), int(y))
		if !in || border {
			break
		}
		length++
		x = math.Trunc(origin.X + cos*length)
		y = math.Trunc(origin.Y + sin*length)
	}

	dist := int(math.Hypot(x-origin.X, y-origin.Y))
	if limit := int(math.Floor(maxRange)); dist > limit {
		dist = limit
	}
	return core.RadarReading{Hit: core.Point{X: x, Y: y}, Distance: dist}
}

// Sense replaces the vehicle's radar readings with one ray per configured angle.
func Sense(v *core.Vehicle, cfg config.RadarConfig, m track.Map) {
	if len(v.Radar) != len(cfg.Angles) {
		v.Radar = make([]core.RadarReading, len(cfg.Angles))
	}
	maxRange := cfg.MaxRange(v.Speed)
	for i, off := range cfg.Angles {
		v.Radar[i] = Cast(v.Center, v.Heading+float64(off), maxRange, m)
	}
}

// Vector normalizes readings into the policy feature vector.
func Vector(readings []core.RadarReading, divisor int) []float64 {
	if divisor <= 0 {
		divisor = 1
	}
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = float64(r.Distance / divisor)
	}
	return out
}
