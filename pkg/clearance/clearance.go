// Package clearance computes the minimum centre-to-centre pitch between
// identical cut footprints repeated along the panel axes, so that their
// boundaries stay at least a safety margin apart.
package clearance

import "math"

// minTrig replaces |cos| or |sin| values below it to avoid infinities.
const minTrig = 1e-6

// Spacing is a pair of minimum pitches along the panel X and Y axes, in
// millimetres, rounded to two decimals.
type Spacing struct {
	X float64
	Y float64
}

// NormalizeRotation maps any angle in degrees into [0, 180).
// A rectangle is symmetric under a half turn, so nothing is lost.
func NormalizeRotation(deg float64) float64 {
	return math.Mod(math.Mod(deg, 180)+180, 180)
}

// Rectangle returns the minimum pitch for a length x width rectangle
// rotated by rotation degrees about its centre.
//
// Two copies offset along an axis are disjoint once the offset, projected
// on either of the rectangle's own axes, exceeds the extent along that
// axis plus the margin. The smaller of the two offsets is the minimum, and
// it is continuous in the rotation angle.
//
// Each axis is considered on its own. For a thin rotated footprint the
// diagonal neighbours of a grid laid out at the minimum pitch can still
// overlap: 100 x 1 at 10 degrees with a 1 mm margin gives (11.52, 2.03),
// and instances (0, 0) and (1, 1) intersect.
func Rectangle(length, width, rotation, margin float64) Spacing {
	theta := NormalizeRotation(rotation)
	L, l := length+margin, width+margin

	switch theta {
	case 0:
		return Spacing{X: round2(L), Y: round2(l)}
	case 90:
		return Spacing{X: round2(l), Y: round2(L)}
	}

	rad := theta * math.Pi / 180
	c := math.Max(math.Abs(math.Cos(rad)), minTrig)
	s := math.Max(math.Abs(math.Sin(rad)), minTrig)

	return Spacing{
		X: round2(math.Min(L/c, l/s)),
		Y: round2(math.Min(L/s, l/c)),
	}
}

// Circle returns the minimum pitch for a circle, identical on both axes.
func Circle(radius, margin float64) Spacing {
	d := round2(2*radius + margin)
	return Spacing{X: d, Y: d}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
