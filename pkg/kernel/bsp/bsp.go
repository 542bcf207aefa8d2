// Package bsp implements the kernel.Kernel interface with a pure Go
// polygon CSG kernel built on binary space partitioning trees.
//
// Solids are closed sets of convex planar polygons. Every polygon remembers
// the primitive face it was cut from, which gives the kernel face and edge
// topology: a box has six faces, a cylinder has a top, a bottom and one
// faceted wall. Rigid transforms are kept lazily as a kernel.Location and
// only baked into the polygons when a boolean operation needs them.
package bsp

import (
	"fmt"
	"math"

	"github.com/chazu/panelcut/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// volumeTolerance bounds the volume drift accepted from a boolean
// operation, in cubic millimetres.
const volumeTolerance = 1e-3

// solid is a polygon set plus a pending local-to-world transform.
type solid struct {
	polygons []polygon
	loc      kernel.Location
}

// BoundingBox returns the axis-aligned bounding box in world coordinates.
func (s *solid) BoundingBox() (min, max [3]float64) {
	first := true
	for _, p := range s.polygons {
		for _, v := range p.vertices {
			w := s.loc.Apply(kernel.Point{v.X, v.Y, v.Z})
			if first {
				min, max = w, w
				first = false
				continue
			}
			for i := 0; i < 3; i++ {
				min[i] = math.Min(min[i], w[i])
				max[i] = math.Max(max[i], w[i])
			}
		}
	}
	return min, max
}

// baked returns the polygons with the pending transform applied.
func (s *solid) baked() []polygon {
	if s.loc.IsIdentity() {
		return s.polygons
	}
	out := make([]polygon, len(s.polygons))
	for i, p := range s.polygons {
		verts := make([]r3.Vec, len(p.vertices))
		for j, v := range p.vertices {
			verts[j] = toVec(s.loc.Apply(kernel.Point{v.X, v.Y, v.Z}))
		}
		n := toVec(s.loc.ApplyVector([3]float64{p.plane.normal.X, p.plane.normal.Y, p.plane.normal.Z}))
		t := toVec(s.loc.T)
		out[i] = polygon{
			vertices: verts,
			plane:    plane{normal: n, w: p.plane.w + r3.Dot(n, t)},
			face:     p.face,
		}
	}
	return out
}

// Kernel implements kernel.Kernel with BSP polygon booleans.
// A Kernel must not be shared between goroutines.
type Kernel struct {
	nextFace int
}

// New returns a new Kernel.
func New() *Kernel {
	return &Kernel{}
}

// unwrap extracts the underlying solid from a kernel.Solid.
func unwrap(s kernel.Solid) (*solid, error) {
	bs, ok := s.(*solid)
	if !ok || bs == nil {
		return nil, fmt.Errorf("bsp: foreign solid %T", s)
	}
	return bs, nil
}

// newFace allocates a fresh face identifier.
func (k *Kernel) newFace() int {
	k.nextFace++
	return k.nextFace
}

// Box creates a box with its minimum corner at the origin.
func (k *Kernel) Box(x, y, z float64) (kernel.Solid, error) {
	if !(x > 0 && y > 0 && z > 0) || math.IsInf(x+y+z, 0) {
		return nil, fmt.Errorf("bsp: box dimensions must be positive and finite, got %gx%gx%g", x, y, z)
	}
	c := func(i, j, l float64) r3.Vec { return r3.Vec{X: i * x, Y: j * y, Z: l * z} }
	// Each face lists its corners counter-clockwise seen from outside.
	quads := [6][4]r3.Vec{
		{c(0, 0, 0), c(0, 0, 1), c(0, 1, 1), c(0, 1, 0)}, // -X
		{c(1, 0, 0), c(1, 1, 0), c(1, 1, 1), c(1, 0, 1)}, // +X
		{c(0, 0, 0), c(1, 0, 0), c(1, 0, 1), c(0, 0, 1)}, // -Y
		{c(0, 1, 0), c(0, 1, 1), c(1, 1, 1), c(1, 1, 0)}, // +Y
		{c(0, 0, 0), c(0, 1, 0), c(1, 1, 0), c(1, 0, 0)}, // -Z
		{c(0, 0, 1), c(1, 0, 1), c(1, 1, 1), c(0, 1, 1)}, // +Z
	}
	polys := make([]polygon, 0, 6)
	for _, q := range quads {
		p, ok := newPolygon(q[:], k.newFace())
		if !ok {
			return nil, fmt.Errorf("bsp: degenerate box %gx%gx%g", x, y, z)
		}
		polys = append(polys, p)
	}
	return &solid{polygons: polys, loc: kernel.Identity()}, nil
}

// Cylinder creates a faceted cylinder along +Z with its base circle
// centred on the origin. The wall is a single face.
func (k *Kernel) Cylinder(height, radius float64, segments int) (kernel.Solid, error) {
	if !(height > 0 && radius > 0) || math.IsInf(height+radius, 0) {
		return nil, fmt.Errorf("bsp: cylinder height and radius must be positive and finite, got h=%g r=%g", height, radius)
	}
	if segments < 3 {
		return nil, fmt.Errorf("bsp: cylinder needs at least 3 segments, got %d", segments)
	}

	ring := make([]r3.Vec, segments)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring[i] = r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
	up := r3.Vec{Z: height}

	bottom, top, wall := k.newFace(), k.newFace(), k.newFace()
	polys := make([]polygon, 0, segments+2)

	// Bottom faces -Z, so its ring runs clockwise seen from above.
	bv := make([]r3.Vec, segments)
	for i := range ring {
		bv[i] = ring[segments-1-i]
	}
	tv := make([]r3.Vec, segments)
	for i := range ring {
		tv[i] = r3.Add(ring[i], up)
	}
	for _, f := range []struct {
		verts []r3.Vec
		face  int
	}{{bv, bottom}, {tv, top}} {
		p, ok := newPolygon(f.verts, f.face)
		if !ok {
			return nil, fmt.Errorf("bsp: degenerate cylinder cap r=%g", radius)
		}
		polys = append(polys, p)
	}

	for i := 0; i < segments; i++ {
		j := (i + 1) % segments
		q := []r3.Vec{ring[i], ring[j], r3.Add(ring[j], up), r3.Add(ring[i], up)}
		p, ok := newPolygon(q, wall)
		if !ok {
			return nil, fmt.Errorf("bsp: degenerate cylinder wall r=%g", radius)
		}
		polys = append(polys, p)
	}
	return &solid{polygons: polys, loc: kernel.Identity()}, nil
}

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	bs, err := unwrap(s)
	if err != nil {
		return s
	}
	return &solid{polygons: bs.polygons, loc: bs.loc.Then(kernel.Translation(x, y, z))}
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	bs, err := unwrap(s)
	if err != nil {
		return s
	}
	return &solid{polygons: bs.polygons, loc: bs.loc.Then(kernel.Rotation(x, y, z))}
}

// Compound concatenates the polygons of disjoint solids.
func (k *Kernel) Compound(solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, kernel.ErrEmptySolid
	}
	if len(solids) == 1 {
		return solids[0], nil
	}
	var polys []polygon
	for i, s := range solids {
		bs, err := unwrap(s)
		if err != nil {
			return nil, fmt.Errorf("bsp: compound operand %d: %w", i, err)
		}
		polys = append(polys, bs.baked()...)
	}
	return &solid{polygons: polys, loc: kernel.Identity()}, nil
}

// Difference returns a minus b. The result is checked for finite
// coordinates and a plausible enclosed volume.
func (k *Kernel) Difference(a, b kernel.Solid) (result kernel.Solid, err error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	if len(sa.polygons) == 0 || len(sb.polygons) == 0 {
		return nil, kernel.ErrEmptySolid
	}

	pa, pb := sa.baked(), sb.baked()
	if !finite(pa) || !finite(pb) {
		return nil, fmt.Errorf("bsp: non-finite operand: %w", kernel.ErrDegenerate)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("bsp: difference panicked: %v: %w", r, kernel.ErrDegenerate)
		}
	}()

	out := dropSlivers(subtract(pa, pb))
	if !finite(out) {
		return nil, fmt.Errorf("bsp: non-finite result: %w", kernel.ErrDegenerate)
	}
	va, vr := volume(pa), volume(out)
	if vr < -volumeTolerance || vr > va+volumeTolerance {
		return nil, fmt.Errorf("bsp: result volume %.4f outside [0, %.4f]: %w", vr, va, kernel.ErrDegenerate)
	}
	return &solid{polygons: out, loc: kernel.Identity()}, nil
}

// Volume returns the enclosed volume of a solid produced by this kernel.
func Volume(s kernel.Solid) float64 {
	bs, err := unwrap(s)
	if err != nil {
		return 0
	}
	return volume(bs.baked())
}

// volume sums signed tetrahedra against the origin.
func volume(polys []polygon) float64 {
	var v float64
	for _, p := range polys {
		for i := 2; i < len(p.vertices); i++ {
			a, b, c := p.vertices[0], p.vertices[i-1], p.vertices[i]
			v += r3.Dot(a, r3.Cross(b, c))
		}
	}
	return v / 6
}

// dropSlivers removes polygons with (near) zero area left behind by splits.
func dropSlivers(polys []polygon) []polygon {
	out := polys[:0:0]
	for _, p := range polys {
		if area(p) > 1e-10 {
			out = append(out, p)
		}
	}
	return out
}

func area(p polygon) float64 {
	var sum r3.Vec
	for i := 2; i < len(p.vertices); i++ {
		sum = r3.Add(sum, r3.Cross(r3.Sub(p.vertices[i-1], p.vertices[0]), r3.Sub(p.vertices[i], p.vertices[0])))
	}
	return r3.Norm(sum) / 2
}

func finite(polys []polygon) bool {
	for _, p := range polys {
		for _, v := range p.vertices {
			if math.IsNaN(v.X+v.Y+v.Z) || math.IsInf(v.X+v.Y+v.Z, 0) {
				return false
			}
		}
	}
	return true
}

func toVec(p [3]float64) r3.Vec {
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}
