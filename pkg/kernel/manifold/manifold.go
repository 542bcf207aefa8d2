//go:build manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Manifold provides
// guaranteed-manifold mesh boolean operations.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/chazu/panelcut/pkg/kernel"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Solid.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	alloc := C.manifold_alloc_box()
	bbox := C.manifold_bounding_box(alloc, s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// isEmpty reports whether the manifold holds no geometry.
func (s *manifoldSolid) isEmpty() bool {
	return C.manifold_is_empty(s.ptr) != 0
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

func unwrap(s kernel.Solid) (*manifoldSolid, error) {
	ms, ok := s.(*manifoldSolid)
	if !ok || ms == nil || ms.ptr == nil {
		return nil, fmt.Errorf("manifold: foreign solid %T", s)
	}
	return ms, nil
}

// ErrUnavailable is never returned in tagged builds. It is declared so
// callers compile against both variants.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct{}

// New creates a new ManifoldKernel. Returns an error if the Manifold
// C library cannot be initialized.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Box creates a box with its minimum corner at the origin.
func (k *ManifoldKernel) Box(x, y, z float64) (kernel.Solid, error) {
	if !(x > 0 && y > 0 && z > 0) || math.IsInf(x+y+z, 0) {
		return nil, fmt.Errorf("manifold: box dimensions must be positive and finite, got %gx%gx%g", x, y, z)
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cube(alloc,
		C.double(x), C.double(y), C.double(z),
		C.int(0), // center=false
	)
	return newSolid(ptr), nil
}

// Cylinder creates a cylinder along +Z with its base circle centred on
// the origin.
func (k *ManifoldKernel) Cylinder(height, radius float64, segments int) (kernel.Solid, error) {
	if !(height > 0 && radius > 0) || segments < 3 {
		return nil, fmt.Errorf("manifold: invalid cylinder h=%g r=%g segments=%d", height, radius, segments)
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_cylinder(alloc,
		C.double(height),
		C.double(radius), // radius_low
		C.double(radius), // radius_high (same = not tapered)
		C.int(segments),
		C.int(0), // center=false
	)
	return newSolid(ptr), nil
}

// Translate moves the solid by (x, y, z).
func (k *ManifoldKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ms, err := unwrap(s)
	if err != nil {
		return s
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_translate(alloc, ms.ptr,
		C.double(x), C.double(y), C.double(z),
	)
	return newSolid(ptr)
}

// Rotate rotates the solid by Euler angles (in degrees) around the X, Y, Z axes.
func (k *ManifoldKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	ms, err := unwrap(s)
	if err != nil {
		return s
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_rotate(alloc, ms.ptr,
		C.double(x), C.double(y), C.double(z),
	)
	return newSolid(ptr)
}

// Compound unions the solids pairwise.
func (k *ManifoldKernel) Compound(solids ...kernel.Solid) (kernel.Solid, error) {
	if len(solids) == 0 {
		return nil, kernel.ErrEmptySolid
	}
	acc, err := unwrap(solids[0])
	if err != nil {
		return nil, err
	}
	for i, s := range solids[1:] {
		ms, err := unwrap(s)
		if err != nil {
			return nil, fmt.Errorf("manifold: compound operand %d: %w", i+1, err)
		}
		alloc := C.manifold_alloc_manifold()
		acc = newSolid(C.manifold_union(alloc, acc.ptr, ms.ptr))
	}
	return acc, nil
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	if sa.isEmpty() || sb.isEmpty() {
		return nil, kernel.ErrEmptySolid
	}
	alloc := C.manifold_alloc_manifold()
	ptr := C.manifold_difference(alloc, sa.ptr, sb.ptr)
	if status := C.manifold_status(ptr); status != C.MANIFOLD_NO_ERROR {
		C.manifold_delete_manifold(ptr)
		return nil, fmt.Errorf("manifold: difference status %d: %w", int(status), kernel.ErrDegenerate)
	}
	return newSolid(ptr), nil
}

// Faces returns the whole mesh as one face.
func (k *ManifoldKernel) Faces(s kernel.Solid) []kernel.Face {
	ms, err := unwrap(s)
	if err != nil {
		return nil
	}
	return []kernel.Face{&meshFace{s: ms}}
}

// Edges returns nil; the C API does not expose face boundaries.
func (k *ManifoldKernel) Edges(kernel.Solid) []kernel.Edge {
	return nil
}

type meshFace struct {
	s *manifoldSolid
}

// Triangulate extracts the MeshGL triangles. Manifold meshes are already
// triangulated, so deflection is not used.
func (f *meshFace) Triangulate(deflection float64) (*kernel.Triangulation, error) {
	meshAlloc := C.manifold_alloc_meshgl()
	meshGL := C.manifold_get_meshgl(meshAlloc, f.s.ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))

	tr := &kernel.Triangulation{Location: kernel.Identity()}
	if numVert == 0 || numTri == 0 {
		return tr, nil
	}

	// The first 3 vertex properties are always position (x, y, z).
	numProp := int(C.manifold_meshgl_num_prop(meshGL))
	if numProp < 3 {
		return nil, fmt.Errorf("manifold: meshgl has %d vertex properties, want at least 3", numProp)
	}
	propData := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties(
		(*C.float)(unsafe.Pointer(&propData[0])),
		meshGL,
	)

	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts(
		(*C.uint32_t)(unsafe.Pointer(&indices[0])),
		meshGL,
	)

	tr.Nodes = make([]kernel.Point, numVert)
	for i := 0; i < numVert; i++ {
		base := i * numProp
		tr.Nodes[i] = kernel.Point{
			float64(propData[base+0]),
			float64(propData[base+1]),
			float64(propData[base+2]),
		}
	}
	tr.Triangles = make([][3]int, numTri)
	for t := 0; t < numTri; t++ {
		for j := 0; j < 3; j++ {
			idx := int(indices[t*3+j])
			if idx >= numVert {
				return nil, fmt.Errorf("manifold: triangle %d references vertex %d of %d", t, idx, numVert)
			}
			tr.Triangles[t][j] = idx
		}
	}
	return tr, nil
}
