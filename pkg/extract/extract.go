// Package extract turns a kernel solid into flat render buffers: one
// triangle mesh with positions and indices, and one polyline per
// topological edge. A face or edge the kernel fails on is skipped and
// counted; it never blanks the whole result.
package extract

import (
	"encoding/json"
	"fmt"

	"github.com/chazu/panelcut/pkg/config"
	"github.com/chazu/panelcut/pkg/kernel"
	"github.com/rs/zerolog"
)

// IndexBuffer holds triangle indices as either 16 or 32 bit integers.
// Exactly one of U16 and U32 is set for a non-empty buffer.
type IndexBuffer struct {
	U16 []uint16
	U32 []uint32
}

// Wide reports whether the buffer uses 32-bit indices.
func (b IndexBuffer) Wide() bool { return b.U32 != nil }

// Len returns the number of indices.
func (b IndexBuffer) Len() int {
	if b.Wide() {
		return len(b.U32)
	}
	return len(b.U16)
}

// At returns index i widened to uint32.
func (b IndexBuffer) At(i int) uint32 {
	if b.Wide() {
		return b.U32[i]
	}
	return uint32(b.U16[i])
}

// MarshalJSON encodes the buffer as a flat number array.
func (b IndexBuffer) MarshalJSON() ([]byte, error) {
	if b.Wide() {
		return json.Marshal(b.U32)
	}
	if b.U16 == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.U16)
}

// newIndexBuffer narrows indices to 16 bits when every vertex is
// addressable with them.
func newIndexBuffer(indices []uint32, vertexCount, limit int) IndexBuffer {
	if vertexCount > limit {
		return IndexBuffer{U32: indices}
	}
	narrow := make([]uint16, len(indices))
	for i, v := range indices {
		narrow[i] = uint16(v)
	}
	return IndexBuffer{U16: narrow}
}

// Geometry is a triangle mesh in world coordinates. Positions holds x, y, z
// triples.
type Geometry struct {
	Positions []float32   `json:"positions"`
	Indices   IndexBuffer `json:"indices"`
}

// VertexCount is the number of position triples.
func (g *Geometry) VertexCount() int { return len(g.Positions) / 3 }

// TriangleCount is the number of index triples.
func (g *Geometry) TriangleCount() int { return g.Indices.Len() / 3 }

// Edge is one polyline. Points holds x, y, z triples.
type Edge struct {
	ID     int       `json:"id"`
	Points []float32 `json:"points"`
}

// Stats counts the faces or edges seen and skipped by one extraction.
type Stats struct {
	Total   int
	Skipped int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for skipped faces and edges.
func WithLogger(l zerolog.Logger) Option {
	return func(x *Extractor) { x.log = l }
}

// Extractor reads meshes and edges from solids of one kernel.
type Extractor struct {
	k    kernel.Kernel
	geom config.GeometryConfig
	log  zerolog.Logger
}

// New returns an Extractor for solids of k.
func New(k kernel.Kernel, geom config.GeometryConfig, opts ...Option) *Extractor {
	x := &Extractor{k: k, geom: geom, log: zerolog.Nop()}
	for _, o := range opts {
		o(x)
	}
	return x
}

// ---------------------------------------------------------------------------
// Mesh
// ---------------------------------------------------------------------------

func triangulate(f kernel.Face, deflection float64) (tr *kernel.Triangulation, err error) {
	defer func() {
		if r := recover(); r != nil {
			tr, err = nil, fmt.Errorf("extract: triangulation panicked: %v", r)
		}
	}()
	return f.Triangulate(deflection)
}

// Mesh triangulates every face of s, moves its nodes to world coordinates
// and concatenates the faces into one buffer.
func (x *Extractor) Mesh(s kernel.Solid) (*Geometry, Stats) {
	faces := x.k.Faces(s)
	stats := Stats{Total: len(faces)}

	var positions []float32
	var indices []uint32
	for i, f := range faces {
		tr, err := triangulate(f, x.geom.MeshDeflection)
		if err == nil && tr == nil {
			err = fmt.Errorf("extract: nil triangulation")
		}
		if err == nil {
			err = checkTriangles(tr)
		}
		if err != nil {
			stats.Skipped++
			x.log.Warn().Int("face", i).Err(err).Msg("face skipped")
			continue
		}
		if tr.IsEmpty() {
			continue
		}

		offset := uint32(len(positions) / 3)
		for _, n := range tr.Nodes {
			p := tr.Location.Apply(n)
			positions = append(positions, float32(p[0]), float32(p[1]), float32(p[2]))
		}
		for _, t := range tr.Triangles {
			indices = append(indices, offset+uint32(t[0]), offset+uint32(t[1]), offset+uint32(t[2]))
		}
	}

	if positions == nil {
		positions = []float32{}
	}
	if indices == nil {
		indices = []uint32{}
	}
	vertexCount := len(positions) / 3
	return &Geometry{
		Positions: positions,
		Indices:   newIndexBuffer(indices, vertexCount, x.geom.MaxUint16Vertices),
	}, stats
}

func checkTriangles(tr *kernel.Triangulation) error {
	n := tr.NodeCount()
	for i, t := range tr.Triangles {
		for _, v := range t {
			if v < 0 || v >= n {
				return fmt.Errorf("extract: triangle %d references node %d of %d", i, v, n)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

func discretize(e kernel.Edge, deflection float64) (pts []kernel.Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			pts, err = nil, fmt.Errorf("extract: discretization panicked: %v", r)
		}
	}()
	return e.Discretize(deflection)
}

// Edges samples every edge of s. Edges that fail or yield no points are
// left out, and ids are assigned in order to the edges that remain.
func (x *Extractor) Edges(s kernel.Solid) ([]Edge, Stats) {
	edges := x.k.Edges(s)
	stats := Stats{Total: len(edges)}

	out := make([]Edge, 0, len(edges))
	for i, e := range edges {
		pts, err := discretize(e, x.geom.EdgeDeflection)
		if err != nil {
			stats.Skipped++
			x.log.Warn().Int("edge", i).Err(err).Msg("edge skipped")
			continue
		}
		if len(pts) == 0 {
			stats.Skipped++
			continue
		}
		flat := make([]float32, 0, len(pts)*3)
		for _, p := range pts {
			flat = append(flat, float32(p[0]), float32(p[1]), float32(p[2]))
		}
		out = append(out, Edge{ID: len(out), Points: flat})
	}
	return out, stats
}
