// Package collision detects vehicles touching the track border.
package collision

import (
	"github.com/circuitlab/racesim/internal/track"
	"github.com/circuitlab/racesim/pkg/core"
)

// Check samples the four body corners. A corner on a border pixel kills the
// vehicle; corners off the map are not evaluated. It returns whether the
// vehicle is still alive. Dead vehicles stay dead.
func Check(v *core.Vehicle, m track.Map) bool {
	if !v.Alive {
		return false
	}
	for _, c := range v.Corners {
		if border, in := m.IsBorder(int(c.X), int(c.Y)); in && border {
			v.Alive = false
			return false
		}
	}
	return true
}
