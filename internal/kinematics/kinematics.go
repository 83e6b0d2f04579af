// Package kinematics moves a vehicle one tick with a bicycle-model approximation.
package kinematics

import (
	"math"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/track"
	"github.com/circuitlab/racesim/pkg/core"
)

// steeringEpsilon is the smallest steering angle, in radians, that turns the car.
const steeringEpsilon = 0.001

// cornerOffsets are the body corner bearings relative to heading, in degrees.
var cornerOffsets = [4]float64{30, 150, 210, 330}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// direction converts a heading in degrees to a unit vector in screen space,
// where y grows downward.
func direction(heading float64) (float64, float64) {
	a := radians(360 - heading)
	return math.Cos(a), math.Sin(a)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Advance updates heading, position, center and corners, then the distance
// and age counters.
//
// Both axes are clamped to [ClampMin, width-ClampFar] unless
// StrictVerticalClamp is set, in which case y uses the map height. y is
// additionally kept on the map.
func Advance(v *core.Vehicle, cfg config.VehicleConfig, m track.Map) {
	v.AngularVelocity = 0
	if steer := radians(v.SteeringAngle); math.Abs(steer) > steeringEpsilon {
		if s := math.Sin(steer); s != 0 {
			turningRadius := v.Wheelbase / s
			v.AngularVelocity = v.Speed / turningRadius
		}
	}
	v.Heading += degrees(v.AngularVelocity)

	dx, dy := direction(v.Heading)
	width, height := float64(m.Width()), float64(m.Height())

	v.Position.X = clamp(v.Position.X+dx*v.Speed, cfg.ClampMin, width-cfg.ClampFar)

	yFar := width - cfg.ClampFar
	if cfg.StrictVerticalClamp {
		yFar = height - cfg.ClampFar
	}
	yFar = math.Min(yFar, height-1)
	v.Position.Y = clamp(v.Position.Y+dy*v.Speed, cfg.ClampMin, yFar)

	v.DistanceTraveled += v.Speed
	v.TicksAlive++

	Place(v, cfg)
}

// Place recomputes center and corners from the current position and heading.
func Place(v *core.Vehicle, cfg config.VehicleConfig) {
	half := cfg.HalfSize()
	v.Center = core.Point{
		X: math.Trunc(v.Position.X) + half,
		Y: math.Trunc(v.Position.Y) + half,
	}
	for i, off := range cornerOffsets {
		cx, cy := direction(v.Heading + off)
		v.Corners[i] = core.Point{X: v.Center.X + cx*half, Y: v.Center.Y + cy*half}
	}
}

// ApplyAction applies one discrete control input before Advance.
func ApplyAction(v *core.Vehicle, a core.Action, cfg config.VehicleConfig) {
	v.SteerCommand = 0
	switch a {
	case core.ActionSteerLeft:
		v.Heading += cfg.HeadingDelta
		v.SteerCommand = cfg.HeadingDelta
	case core.ActionSteerRight:
		v.Heading -= cfg.HeadingDelta
		v.SteerCommand = -cfg.HeadingDelta
	case core.ActionBrake:
		if v.Speed-cfg.SpeedDelta >= cfg.MinSpeed {
			v.Speed -= cfg.SpeedDelta
		}
	case core.ActionAccelerate:
		v.Speed += cfg.SpeedDelta
	}
}

// Steer sets the wheel angle, limited to the vehicle's maximum.
func Steer(v *core.Vehicle, angle float64) {
	v.SteeringAngle = clamp(angle, -v.MaxSteeringAngle, v.MaxSteeringAngle)
}
