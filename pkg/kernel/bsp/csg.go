package bsp

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// planeEpsilon is the thickness of a plane used to classify points as
// coplanar, in millimetres.
const planeEpsilon = 1e-5

// plane is the oriented plane n·p = w.
type plane struct {
	normal r3.Vec
	w      float64
}

// planeFromPoints returns the plane through a, b, c oriented by the
// right-hand rule. ok is false for collinear points.
func planeFromPoints(a, b, c r3.Vec) (plane, bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) < 1e-12 {
		return plane{}, false
	}
	n = r3.Unit(n)
	return plane{normal: n, w: r3.Dot(n, a)}, true
}

func (p plane) flip() plane {
	return plane{normal: r3.Scale(-1, p.normal), w: -p.w}
}

// polygon is a convex planar polygon. face identifies the primitive face
// the polygon was cut from; splitting never changes it.
type polygon struct {
	vertices []r3.Vec
	plane    plane
	face     int
}

// newPolygon builds a polygon whose plane comes from its first
// non-degenerate vertex triple.
func newPolygon(vertices []r3.Vec, face int) (polygon, bool) {
	for i := 2; i < len(vertices); i++ {
		if pl, ok := planeFromPoints(vertices[0], vertices[i-1], vertices[i]); ok {
			return polygon{vertices: vertices, plane: pl, face: face}, true
		}
	}
	return polygon{}, false
}

func (p polygon) flip() polygon {
	n := len(p.vertices)
	v := make([]r3.Vec, n)
	for i := range p.vertices {
		v[n-1-i] = p.vertices[i]
	}
	return polygon{vertices: v, plane: p.plane.flip(), face: p.face}
}

const (
	coplanar = 0
	front    = 1
	back     = 2
	spanning = 3
)

// split classifies poly against pl and appends it, or its pieces, to the
// matching lists.
func (pl plane) split(poly polygon, coplanarFront, coplanarBack, fronts, backs *[]polygon) {
	polyType := 0
	types := make([]int, len(poly.vertices))
	for i, v := range poly.vertices {
		t := r3.Dot(pl.normal, v) - pl.w
		typ := coplanar
		if t < -planeEpsilon {
			typ = back
		} else if t > planeEpsilon {
			typ = front
		}
		polyType |= typ
		types[i] = typ
	}

	switch polyType {
	case coplanar:
		if r3.Dot(pl.normal, poly.plane.normal) > 0 {
			*coplanarFront = append(*coplanarFront, poly)
		} else {
			*coplanarBack = append(*coplanarBack, poly)
		}
	case front:
		*fronts = append(*fronts, poly)
	case back:
		*backs = append(*backs, poly)
	case spanning:
		var f, b []r3.Vec
		n := len(poly.vertices)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := poly.vertices[i], poly.vertices[j]
			if ti != back {
				f = append(f, vi)
			}
			if ti != front {
				b = append(b, vi)
			}
			if ti|tj == spanning {
				t := (pl.w - r3.Dot(pl.normal, vi)) / r3.Dot(pl.normal, r3.Sub(vj, vi))
				v := r3.Add(vi, r3.Scale(t, r3.Sub(vj, vi)))
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*fronts = append(*fronts, polygon{vertices: f, plane: poly.plane, face: poly.face})
		}
		if len(b) >= 3 {
			*backs = append(*backs, polygon{vertices: b, plane: poly.plane, face: poly.face})
		}
	}
}

// node is a BSP tree node. A nil plane marks an empty tree.
type node struct {
	plane    *plane
	front    *node
	back     *node
	polygons []polygon
}

func newNode(polygons []polygon) *node {
	n := &node{}
	n.build(polygons)
	return n
}

// invert converts solid space to empty space and back.
func (n *node) invert() {
	for i := range n.polygons {
		n.polygons[i] = n.polygons[i].flip()
	}
	if n.plane != nil {
		p := n.plane.flip()
		n.plane = &p
	}
	if n.front != nil {
		n.front.invert()
	}
	if n.back != nil {
		n.back.invert()
	}
	n.front, n.back = n.back, n.front
}

// clipPolygons removes the parts of polygons that lie inside this tree.
func (n *node) clipPolygons(polygons []polygon) []polygon {
	if n.plane == nil {
		return append([]polygon(nil), polygons...)
	}
	var fronts, backs []polygon
	for _, p := range polygons {
		n.plane.split(p, &fronts, &backs, &fronts, &backs)
	}
	if n.front != nil {
		fronts = n.front.clipPolygons(fronts)
	}
	if n.back != nil {
		backs = n.back.clipPolygons(backs)
	} else {
		backs = nil
	}
	return append(fronts, backs...)
}

// clipTo removes every polygon of this tree that lies inside other.
func (n *node) clipTo(other *node) {
	n.polygons = other.clipPolygons(n.polygons)
	if n.front != nil {
		n.front.clipTo(other)
	}
	if n.back != nil {
		n.back.clipTo(other)
	}
}

func (n *node) allPolygons() []polygon {
	out := append([]polygon(nil), n.polygons...)
	if n.front != nil {
		out = append(out, n.front.allPolygons()...)
	}
	if n.back != nil {
		out = append(out, n.back.allPolygons()...)
	}
	return out
}

// build inserts polygons into the tree, splitting them along the way.
func (n *node) build(polygons []polygon) {
	if len(polygons) == 0 {
		return
	}
	if n.plane == nil {
		p := polygons[0].plane
		n.plane = &p
	}
	var fronts, backs []polygon
	for _, p := range polygons {
		n.plane.split(p, &n.polygons, &n.polygons, &fronts, &backs)
	}
	if len(fronts) > 0 {
		if n.front == nil {
			n.front = &node{}
		}
		n.front.build(fronts)
	}
	if len(backs) > 0 {
		if n.back == nil {
			n.back = &node{}
		}
		n.back.build(backs)
	}
}

// subtract returns the polygons of a minus b.
func subtract(a, b []polygon) []polygon {
	na := newNode(a)
	nb := newNode(b)
	na.invert()
	na.clipTo(nb)
	nb.clipTo(na)
	nb.invert()
	nb.clipTo(na)
	nb.invert()
	na.build(nb.allPolygons())
	na.invert()
	return na.allPolygons()
}
