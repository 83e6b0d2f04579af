// pkg/core/checkpoint.go
package core

import "math"

// Checkpoint is a circular gate on the track. Checkpoints must be crossed
// in ascending Index order.
type Checkpoint struct {
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Contains reports whether p lies strictly inside the checkpoint circle.
func (c Checkpoint) Contains(p Point) bool {
	return math.Hypot(p.X-c.X, p.Y-c.Y) < c.Radius
}
