// Package kernel defines the narrow geometry kernel interface used by the
// panel cutting engine. Implementations (bsp, sdfx, manifold) provide
// primitive solids, rigid transforms, boolean subtraction, triangulation
// and edge exploration behind this interface. The rest of the engine never
// touches a backend's own types.
//
// Kernels are not safe for concurrent use. A kernel instance belongs to a
// single execution context that serialises every call into it.
package kernel

import "errors"

var (
	// ErrDegenerate is returned when a boolean operation produces
	// geometry that cannot be a valid solid.
	ErrDegenerate = errors.New("kernel: degenerate geometry")

	// ErrEmptySolid is returned when an operand has no geometry.
	ErrEmptySolid = errors.New("kernel: empty solid")
)

// Point is a position in model space, in millimetres.
type Point = [3]float64

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Face is one topological face of a solid.
type Face interface {
	// Triangulate discretises the face so that no point of the
	// triangulation lies further than deflection from the true surface.
	Triangulate(deflection float64) (*Triangulation, error)
}

// Edge is one topological edge of a solid.
type Edge interface {
	// Discretize samples the edge's underlying curve into a polyline
	// with the given deflection. Points are in world coordinates.
	Discretize(deflection float64) ([]Point, error)
}

// Kernel is the geometry kernel interface.
type Kernel interface {
	// Primitives. Box has its minimum corner at the origin. Cylinder
	// runs along +Z with its base circle centred on the origin at z=0;
	// segments is the polygon count for kernels that facet curves.
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64, segments int) (Solid, error)

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Compound groups disjoint solids into one handle without a boolean.
	Compound(solids ...Solid) (Solid, error)

	// Difference returns a minus b. It returns an error instead of a
	// result when the kernel cannot produce a valid solid.
	Difference(a, b Solid) (Solid, error)

	// Topology
	Faces(s Solid) []Face
	Edges(s Solid) []Edge
}
