package kernel

import "math"

// Location is a rigid local-to-world transform: p' = M·p + T.
type Location struct {
	M [3][3]float64
	T [3]float64
}

// Identity returns the identity transform.
func Identity() Location {
	return Location{M: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translation returns a pure translation.
func Translation(x, y, z float64) Location {
	l := Identity()
	l.T = [3]float64{x, y, z}
	return l
}

// Rotation returns the rotation for Euler angles in degrees, applied
// about X first, then Y, then Z.
func Rotation(x, y, z float64) Location {
	rx := degToRad(x)
	ry := degToRad(y)
	rz := degToRad(z)

	cx, sx := math.Cos(rx), math.Sin(rx)
	cy, sy := math.Cos(ry), math.Sin(ry)
	cz, sz := math.Cos(rz), math.Sin(rz)

	mx := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}
	my := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	mz := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}

	return Location{M: mul(mz, mul(my, mx))}
}

// Then returns the transform that applies l first and next second.
func (l Location) Then(next Location) Location {
	return Location{
		M: mul(next.M, l.M),
		T: add(next.ApplyVector(l.T), next.T),
	}
}

// Apply maps a local point to world coordinates.
func (l Location) Apply(p Point) Point {
	return add(l.ApplyVector(p), l.T)
}

// ApplyVector rotates a direction without translating it.
func (l Location) ApplyVector(v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = l.M[i][0]*v[0] + l.M[i][1]*v[1] + l.M[i][2]*v[2]
	}
	return out
}

// IsIdentity reports whether l leaves every point in place.
func (l Location) IsIdentity() bool {
	return l == Identity()
}

func mul(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return out
}

func add(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180.0
}
