package score

import "math"

const (
	visualVelocityFloor = 0.25
	visualVelocitySpan  = 0.65
	visualVelocityGamma = 0.75
)

// VisualVelocity maps a 0-1 velocity onto a display intensity. Typical
// performance velocities (0.25-0.9) spread across the full range, with a
// gamma lift on quiet notes.
func VisualVelocity(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	x := (v - visualVelocityFloor) / visualVelocitySpan
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return math.Pow(x, visualVelocityGamma)
}
