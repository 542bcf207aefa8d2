package kernel

import "math"

// SegmentsFor returns the number of straight segments needed to approximate
// a full circle of the given radius so that the sagitta of every segment
// stays within deflection. The result is clamped to [min, max].
func SegmentsFor(radius, deflection float64, min, max int) int {
	if radius <= 0 || deflection <= 0 {
		return min
	}
	if deflection >= radius {
		return min
	}
	// sagitta = r·(1 − cos(π/n)) ≤ deflection
	n := int(math.Ceil(math.Pi / math.Acos(1-deflection/radius)))
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
