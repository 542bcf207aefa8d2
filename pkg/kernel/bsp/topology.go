package bsp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/panelcut/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// lineTolerance is the distance under which two points are considered to
// lie on the same edge line, in millimetres.
const lineTolerance = 1e-4

// ---------------------------------------------------------------------------
// Faces
// ---------------------------------------------------------------------------

// face is the set of polygons sharing one primitive face id.
type face struct {
	id       int
	polygons []polygon
	loc      kernel.Location
}

// Triangulate fans every convex polygon of the face. Faces are planar, so
// deflection was already honoured when the primitive was faceted.
func (f *face) Triangulate(deflection float64) (*kernel.Triangulation, error) {
	tr := &kernel.Triangulation{Location: f.loc}
	index := make(map[r3.Vec]int)
	nodeOf := func(v r3.Vec) (int, error) {
		if math.IsNaN(v.X+v.Y+v.Z) || math.IsInf(v.X+v.Y+v.Z, 0) {
			return 0, fmt.Errorf("bsp: face %d has non-finite vertex", f.id)
		}
		if i, ok := index[v]; ok {
			return i, nil
		}
		i := len(tr.Nodes)
		index[v] = i
		tr.Nodes = append(tr.Nodes, kernel.Point{v.X, v.Y, v.Z})
		return i, nil
	}

	for _, p := range f.polygons {
		first, err := nodeOf(p.vertices[0])
		if err != nil {
			return nil, err
		}
		for i := 2; i < len(p.vertices); i++ {
			a, b, c := p.vertices[0], p.vertices[i-1], p.vertices[i]
			if r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) < 1e-12 {
				continue
			}
			j, err := nodeOf(b)
			if err != nil {
				return nil, err
			}
			k, err := nodeOf(c)
			if err != nil {
				return nil, err
			}
			tr.Triangles = append(tr.Triangles, [3]int{first, j, k})
		}
	}
	return tr, nil
}

// Faces returns the faces of s ordered by face id.
func (k *Kernel) Faces(s kernel.Solid) []kernel.Face {
	bs, err := unwrap(s)
	if err != nil {
		return nil
	}
	groups := groupByFace(bs.polygons)
	out := make([]kernel.Face, 0, len(groups))
	for _, g := range groups {
		out = append(out, &face{id: g.id, polygons: g.polygons, loc: bs.loc})
	}
	return out
}

type faceGroup struct {
	id       int
	polygons []polygon
}

func groupByFace(polys []polygon) []faceGroup {
	byID := make(map[int]int)
	var groups []faceGroup
	for _, p := range polys {
		i, ok := byID[p.face]
		if !ok {
			i = len(groups)
			byID[p.face] = i
			groups = append(groups, faceGroup{id: p.face})
		}
		groups[i].polygons = append(groups[i].polygons, p)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].id < groups[j].id })
	return groups
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

// edge is a polyline along the boundary between two faces.
type edge struct {
	points []r3.Vec
	loc    kernel.Location
}

// Discretize returns the polyline in world coordinates. Edges of a
// polygonal solid are already exact, so deflection does not refine them.
func (e *edge) Discretize(deflection float64) ([]kernel.Point, error) {
	out := make([]kernel.Point, 0, len(e.points))
	for _, v := range e.points {
		if math.IsNaN(v.X+v.Y+v.Z) || math.IsInf(v.X+v.Y+v.Z, 0) {
			return nil, fmt.Errorf("bsp: edge has non-finite point")
		}
		out = append(out, e.loc.Apply(kernel.Point{v.X, v.Y, v.Z}))
	}
	return out, nil
}

// Edges returns the topological edges of s: maximal polylines along which
// the same pair of faces meet.
func (k *Kernel) Edges(s kernel.Solid) []kernel.Edge {
	bs, err := unwrap(s)
	if err != nil {
		return nil
	}
	var pieces []piece
	for _, g := range groupByFace(bs.polygons) {
		pieces = append(pieces, faceBoundary(g)...)
	}
	records := dedupe(splitAtEndpoints(pieces))

	var out []kernel.Edge
	for _, chain := range chainByLabel(records) {
		out = append(out, &edge{points: chain, loc: bs.loc})
	}
	return out
}

// piece is a straight boundary segment of one face.
type piece struct {
	a, b r3.Vec
	face int
}

type segment struct {
	a, b r3.Vec
}

type lineGroup struct {
	origin, dir r3.Vec
	members     []segment
}

func (g *lineGroup) contains(p r3.Vec) bool {
	return r3.Norm(r3.Cross(r3.Sub(p, g.origin), g.dir)) < lineTolerance
}

// faceBoundary returns the boundary of a face as maximal collinear pieces.
// Interior polygon edges appear once in each direction and cancel, even
// when the two sides were split at different points.
func faceBoundary(g faceGroup) []piece {
	var segs []segment
	for _, p := range g.polygons {
		n := len(p.vertices)
		for i := 0; i < n; i++ {
			a, b := p.vertices[i], p.vertices[(i+1)%n]
			if r3.Norm(r3.Sub(b, a)) < lineTolerance {
				continue
			}
			segs = append(segs, segment{a: a, b: b})
		}
	}
	// Longest first, so each line is anchored on its most accurate direction.
	sort.SliceStable(segs, func(i, j int) bool {
		return r3.Norm(r3.Sub(segs[i].b, segs[i].a)) > r3.Norm(r3.Sub(segs[j].b, segs[j].a))
	})

	var groups []*lineGroup
	for _, s := range segs {
		var home *lineGroup
		for _, lg := range groups {
			if lg.contains(s.a) && lg.contains(s.b) {
				home = lg
				break
			}
		}
		if home == nil {
			home = &lineGroup{origin: s.a, dir: r3.Unit(r3.Sub(s.b, s.a))}
			groups = append(groups, home)
		}
		home.members = append(home.members, s)
	}

	var out []piece
	for _, lg := range groups {
		out = append(out, lg.boundary(g.id)...)
	}
	return out
}

// boundary sums signed coverage along the line and keeps the runs where
// it does not cancel.
func (g *lineGroup) boundary(faceID int) []piece {
	type span struct {
		lo, hi float64
		sign   int
	}
	spans := make([]span, 0, len(g.members))
	var ts []float64
	for _, s := range g.members {
		t0 := r3.Dot(r3.Sub(s.a, g.origin), g.dir)
		t1 := r3.Dot(r3.Sub(s.b, g.origin), g.dir)
		sp := span{lo: t0, hi: t1, sign: 1}
		if t1 < t0 {
			sp = span{lo: t1, hi: t0, sign: -1}
		}
		spans = append(spans, sp)
		ts = append(ts, t0, t1)
	}
	sort.Float64s(ts)
	breaks := []float64{ts[0]}
	for _, t := range ts[1:] {
		if t-breaks[len(breaks)-1] > lineTolerance {
			breaks = append(breaks, t)
		}
	}

	var out []piece
	runStart, runSign := 0.0, 0
	flush := func(end float64) {
		if runSign == 0 {
			return
		}
		a := r3.Add(g.origin, r3.Scale(runStart, g.dir))
		b := r3.Add(g.origin, r3.Scale(end, g.dir))
		if runSign < 0 {
			a, b = b, a
		}
		out = append(out, piece{a: a, b: b, face: faceID})
	}
	for i := 0; i+1 < len(breaks); i++ {
		mid := (breaks[i] + breaks[i+1]) / 2
		cov := 0
		for _, sp := range spans {
			if sp.lo < mid && mid < sp.hi {
				cov += sp.sign
			}
		}
		sign := 0
		if cov > 0 {
			sign = 1
		} else if cov < 0 {
			sign = -1
		}
		if sign != runSign {
			flush(breaks[i])
			runStart, runSign = breaks[i], sign
		}
	}
	flush(breaks[len(breaks)-1])
	return out
}

// pointKey quantises a point so that coincident endpoints compare equal.
type pointKey [3]int64

func keyOf(v r3.Vec) pointKey {
	q := func(x float64) int64 { return int64(math.Round(x / lineTolerance)) }
	return pointKey{q(v.X), q(v.Y), q(v.Z)}
}

func less(a, b pointKey) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// record is one unique boundary segment and the faces it bounds.
type record struct {
	a, b   r3.Vec
	ka, kb pointKey
	faces  []int
}

func (r *record) label() string {
	ids := append([]int(nil), r.faces...)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// splitAtEndpoints cuts every piece at the endpoints of other pieces lying
// strictly inside it. Where one face meets two others along a single line,
// its long piece becomes one piece per neighbour.
func splitAtEndpoints(pieces []piece) []piece {
	seen := make(map[pointKey]bool)
	var ends []r3.Vec
	for _, p := range pieces {
		for _, v := range []r3.Vec{p.a, p.b} {
			if k := keyOf(v); !seen[k] {
				seen[k] = true
				ends = append(ends, v)
			}
		}
	}

	out := make([]piece, 0, len(pieces))
	for _, p := range pieces {
		d := r3.Sub(p.b, p.a)
		length := r3.Norm(d)
		dir := r3.Scale(1/length, d)
		var ts []float64
		for _, v := range ends {
			t := r3.Dot(r3.Sub(v, p.a), dir)
			if t <= lineTolerance || t >= length-lineTolerance {
				continue
			}
			if r3.Norm(r3.Sub(v, r3.Add(p.a, r3.Scale(t, dir)))) < lineTolerance {
				ts = append(ts, t)
			}
		}
		if len(ts) == 0 {
			out = append(out, p)
			continue
		}
		sort.Float64s(ts)
		from := p.a
		for _, t := range ts {
			at := r3.Add(p.a, r3.Scale(t, dir))
			if keyOf(at) == keyOf(from) {
				continue
			}
			out = append(out, piece{a: from, b: at, face: p.face})
			from = at
		}
		out = append(out, piece{a: from, b: p.b, face: p.face})
	}
	return out
}

func dedupe(pieces []piece) []*record {
	byKey := make(map[[2]pointKey]*record)
	var out []*record
	for _, p := range pieces {
		ka, kb := keyOf(p.a), keyOf(p.b)
		k := [2]pointKey{ka, kb}
		if less(kb, ka) {
			k = [2]pointKey{kb, ka}
		}
		if r, ok := byKey[k]; ok {
			if !containsInt(r.faces, p.face) {
				r.faces = append(r.faces, p.face)
			}
			continue
		}
		r := &record{a: p.a, b: p.b, ka: ka, kb: kb, faces: []int{p.face}}
		byKey[k] = r
		out = append(out, r)
	}
	return out
}

// chainByLabel joins records bounding the same faces into polylines.
// Closed loops repeat their first point at the end.
func chainByLabel(records []*record) [][]r3.Vec {
	var labels []string
	byLabel := make(map[string][]*record)
	for _, r := range records {
		l := r.label()
		if _, ok := byLabel[l]; !ok {
			labels = append(labels, l)
		}
		byLabel[l] = append(byLabel[l], r)
	}

	var out [][]r3.Vec
	for _, l := range labels {
		out = append(out, chain(byLabel[l])...)
	}
	return out
}

func chain(recs []*record) [][]r3.Vec {
	adj := make(map[pointKey][]*record)
	for _, r := range recs {
		adj[r.ka] = append(adj[r.ka], r)
		adj[r.kb] = append(adj[r.kb], r)
	}
	visited := make(map[*record]bool)

	walk := func(start *record, from pointKey) []r3.Vec {
		var pts []r3.Vec
		cur, at := start, from
		if cur.ka == at {
			pts = append(pts, cur.a)
		} else {
			pts = append(pts, cur.b)
		}
		for cur != nil {
			visited[cur] = true
			if cur.ka == at {
				pts = append(pts, cur.b)
				at = cur.kb
			} else {
				pts = append(pts, cur.a)
				at = cur.ka
			}
			var next *record
			if len(adj[at]) == 2 {
				for _, r := range adj[at] {
					if !visited[r] {
						next = r
					}
				}
			}
			cur = next
		}
		return pts
	}

	var out [][]r3.Vec
	// Open chains start at endpoints that are not plain pass-through points.
	for _, r := range recs {
		for _, k := range []pointKey{r.ka, r.kb} {
			if visited[r] || len(adj[k]) == 2 {
				continue
			}
			out = append(out, walk(r, k))
		}
	}
	// Whatever is left forms closed loops.
	for _, r := range recs {
		if !visited[r] {
			pts := walk(r, r.ka)
			pts[len(pts)-1] = pts[0]
			out = append(out, pts)
		}
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
