package kernel

// Triangulation is the discretised form of one face. Nodes are stored in
// the face's local frame; Location maps them to world coordinates.
type Triangulation struct {
	Nodes     []Point  // local coordinates
	Triangles [][3]int // zero-based indices into Nodes, counter-clockwise seen from outside
	Location  Location // local-to-world transform
}

// NodeCount returns the number of nodes.
func (t *Triangulation) NodeCount() int {
	return len(t.Nodes)
}

// TriangleCount returns the number of triangles.
func (t *Triangulation) TriangleCount() int {
	return len(t.Triangles)
}

// IsEmpty returns true if the triangulation has no geometry.
func (t *Triangulation) IsEmpty() bool {
	return len(t.Nodes) == 0 || len(t.Triangles) == 0
}
