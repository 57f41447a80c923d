package pose

import "math"

// Angle returns the directional angle in degrees at vertex p2, measured from
// ray p2→p1 to ray p2→p3 and wrapped into [0, 360).
//
// This is not the interior joint angle: Angle(a, b, c) and Angle(c, b, a) sum
// to 360 for non-degenerate input. Rep and form thresholds are tuned to this
// convention.
func Angle(p1, p2, p3 Landmark) float64 {
	rad := math.Atan2(p3.Y-p2.Y, p3.X-p2.X) - math.Atan2(p1.Y-p2.Y, p1.X-p2.X)
	deg := rad * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	// atan2 can return -π, so the difference can reach exactly 2π.
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// JointAngle is a named angle measured on one frame.
type JointAngle struct {
	Name    string  `json:"name"`
	Degrees float64 `json:"degrees"`
}
