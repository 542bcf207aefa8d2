// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
//
// Signed distance fields carry no boundary topology, so a solid exposes a
// single face (its marching cubes surface) and no edges. Use this backend
// when only a display mesh is needed.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/panelcut/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// Marching cubes resolution bounds along the longest axis.
const (
	minMeshCells = 16
	maxMeshCells = 200
)

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) (sdf.SDF3, error) {
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil {
		return nil, fmt.Errorf("sdfx: foreign solid %T", s)
	}
	return ss.s, nil
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with its minimum corner at the origin.
// sdf.Box3D centers the box, so it is shifted by half its size.
func (k *SdfxKernel) Box(x, y, z float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m)), nil
}

// Cylinder creates a cylinder along +Z with its base centred on the origin.
// The segments parameter is ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return wrap(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: height / 2}))), nil
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ss, err := unwrap(s)
	if err != nil {
		return s
	}
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(ss, m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ss, err := unwrap(s)
	if err != nil {
		return s
	}
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(ss, m))
}

// Compound unions the solids into one field.
func (k *SdfxKernel) Compound(solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, kernel.ErrEmptySolid
	}
	fields := make([]sdf.SDF3, 0, len(solids))
	for i, s := range solids {
		ss, err := unwrap(s)
		if err != nil {
			return nil, fmt.Errorf("sdfx: compound operand %d: %w", i, err)
		}
		fields = append(fields, ss)
	}
	if len(fields) == 1 {
		return wrap(fields[0]), nil
	}
	return wrap(sdf.Union3D(fields...)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (result kernel.Solid, err error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("sdfx: difference panicked: %v: %w", r, kernel.ErrDegenerate)
		}
	}()
	return wrap(sdf.Difference3D(sa, sb)), nil
}

// Faces returns the whole surface as one face.
func (k *SdfxKernel) Faces(s kernel.Solid) []kernel.Face {
	ss, err := unwrap(s)
	if err != nil {
		return nil
	}
	return []kernel.Face{&surface{s: ss}}
}

// Edges returns nil: distance fields have no boundary edges.
func (k *SdfxKernel) Edges(kernel.Solid) []kernel.Edge {
	return nil
}

// surface is the marching cubes surface of a field.
type surface struct {
	s sdf.SDF3
}

// cellsFor picks a marching cubes resolution whose cell size is close to
// the deflection along the longest axis.
func cellsFor(s sdf.SDF3, deflection float64) int {
	if deflection <= 0 {
		return maxMeshCells
	}
	size := s.BoundingBox().Size()
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	cells := int(math.Ceil(longest / deflection))
	if cells < minMeshCells {
		return minMeshCells
	}
	if cells > maxMeshCells {
		return maxMeshCells
	}
	return cells
}

// Triangulate renders the field with marching cubes. Vertices shared by
// neighbouring triangles are merged.
func (f *surface) Triangulate(deflection float64) (tr *kernel.Triangulation, err error) {
	defer func() {
		if r := recover(); r != nil {
			tr = nil
			err = fmt.Errorf("sdfx: marching cubes panicked: %v", r)
		}
	}()

	renderer := render.NewMarchingCubesUniform(cellsFor(f.s, deflection))
	triangles := render.ToTriangles(f.s, renderer)

	tr = &kernel.Triangulation{Location: kernel.Identity()}
	index := make(map[v3.Vec]int)
	for _, t := range triangles {
		var tri [3]int
		for j := 0; j < 3; j++ {
			v := t[j]
			i, ok := index[v]
			if !ok {
				i = len(tr.Nodes)
				index[v] = i
				tr.Nodes = append(tr.Nodes, kernel.Point{v.X, v.Y, v.Z})
			}
			tri[j] = i
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		tr.Triangles = append(tr.Triangles, tri)
	}
	return tr, nil
}
