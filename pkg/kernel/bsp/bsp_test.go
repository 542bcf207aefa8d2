package bsp

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/panelcut/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

func mustBox(t *testing.T, k *Kernel, x, y, z float64) kernel.Solid {
	t.Helper()
	s, err := k.Box(x, y, z)
	if err != nil {
		t.Fatalf("Box(%g, %g, %g) error = %v", x, y, z, err)
	}
	return s
}

func closeTo(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBoxBoundingBox(t *testing.T) {
	k := New()
	box := mustBox(t, k, 100, 50, 25)
	min, max := box.BoundingBox()
	if min != [3]float64{0, 0, 0} {
		t.Errorf("min = %v, want [0 0 0]", min)
	}
	if max != [3]float64{100, 50, 25} {
		t.Errorf("max = %v, want [100 50 25]", max)
	}
}

func TestBoxRejectsNonPositive(t *testing.T) {
	k := New()
	for _, dims := range [][3]float64{{0, 1, 1}, {1, -1, 1}, {1, 1, math.Inf(1)}} {
		if _, err := k.Box(dims[0], dims[1], dims[2]); err == nil {
			t.Errorf("Box(%v) error = nil, want error", dims)
		}
	}
}

func TestBoxVolumeAndTopology(t *testing.T) {
	k := New()
	box := mustBox(t, k, 10, 20, 30)
	if v := Volume(box); !closeTo(v, 6000, 1e-9) {
		t.Errorf("Volume = %f, want 6000", v)
	}
	if n := len(k.Faces(box)); n != 6 {
		t.Errorf("faces = %d, want 6", n)
	}
	edges := k.Edges(box)
	if len(edges) != 12 {
		t.Fatalf("edges = %d, want 12", len(edges))
	}
	for i, e := range edges {
		pts, err := e.Discretize(0.5)
		if err != nil {
			t.Fatalf("edge %d: Discretize error = %v", i, err)
		}
		if len(pts) != 2 {
			t.Errorf("edge %d: %d points, want 2", i, len(pts))
		}
	}
}

func TestCylinderVolume(t *testing.T) {
	k := New()
	const n, r, h = 32, 10.0, 5.0
	cyl, err := k.Cylinder(h, r, n)
	if err != nil {
		t.Fatalf("Cylinder error = %v", err)
	}
	// Area of the inscribed regular polygon times height.
	want := 0.5 * n * r * r * math.Sin(2*math.Pi/n) * h
	if v := Volume(cyl); !closeTo(v, want, 1e-9) {
		t.Errorf("Volume = %f, want %f", v, want)
	}
	if got := len(k.Faces(cyl)); got != 3 {
		t.Errorf("faces = %d, want 3 (bottom, top, wall)", got)
	}
	min, max := cyl.BoundingBox()
	if !closeTo(min[2], 0, 1e-12) || !closeTo(max[2], h, 1e-12) {
		t.Errorf("Z extent = [%f, %f], want [0, %f]", min[2], max[2], h)
	}
}

func TestCylinderRejectsTooFewSegments(t *testing.T) {
	k := New()
	if _, err := k.Cylinder(1, 1, 2); err == nil {
		t.Error("Cylinder with 2 segments: error = nil, want error")
	}
}

func TestTranslateIsLazy(t *testing.T) {
	k := New()
	box := k.Translate(mustBox(t, k, 10, 10, 10), 100, 200, 300)

	min, max := box.BoundingBox()
	if min != [3]float64{100, 200, 300} || max != [3]float64{110, 210, 310} {
		t.Errorf("bounds = %v..%v, want [100 200 300]..[110 210 310]", min, max)
	}

	faces := k.Faces(box)
	if len(faces) != 6 {
		t.Fatalf("faces = %d, want 6", len(faces))
	}
	tr, err := faces[0].Triangulate(0.5)
	if err != nil {
		t.Fatalf("Triangulate error = %v", err)
	}
	if tr.Location.IsIdentity() {
		t.Error("translated face reports identity location")
	}
	for _, p := range tr.Nodes {
		if p[0] > 10 || p[1] > 10 || p[2] > 10 {
			t.Fatalf("node %v is not in the local frame", p)
		}
	}
}

func TestRotateZ(t *testing.T) {
	k := New()
	box := k.Rotate(mustBox(t, k, 100, 10, 10), 0, 0, 90)
	min, max := box.BoundingBox()
	xExtent := max[0] - min[0]
	yExtent := max[1] - min[1]
	if !closeTo(xExtent, 10, 1e-9) {
		t.Errorf("rotated X extent = %f, want 10", xExtent)
	}
	if !closeTo(yExtent, 100, 1e-9) {
		t.Errorf("rotated Y extent = %f, want 100", yExtent)
	}
}

func TestFaceTriangulation(t *testing.T) {
	k := New()
	box := mustBox(t, k, 1, 1, 1)
	for i, f := range k.Faces(box) {
		tr, err := f.Triangulate(0.5)
		if err != nil {
			t.Fatalf("face %d: Triangulate error = %v", i, err)
		}
		if tr.NodeCount() != 4 {
			t.Errorf("face %d: nodes = %d, want 4", i, tr.NodeCount())
		}
		if tr.TriangleCount() != 2 {
			t.Errorf("face %d: triangles = %d, want 2", i, tr.TriangleCount())
		}
	}
}

func TestDifferenceThroughRectangle(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 100, 100, 10)
	cutter := k.Translate(mustBox(t, k, 20, 20, 10.02), 40, 40, -0.01)

	result, err := k.Difference(panel, cutter)
	if err != nil {
		t.Fatalf("Difference error = %v", err)
	}
	if v := Volume(result); !closeTo(v, 100000-4000, 1e-6) {
		t.Errorf("Volume = %f, want 96000", v)
	}
	if n := len(k.Faces(result)); n != 10 {
		t.Errorf("faces = %d, want 10 (6 panel + 4 walls)", n)
	}
	if n := len(k.Edges(result)); n != 24 {
		t.Errorf("edges = %d, want 24", n)
	}
	min, max := result.BoundingBox()
	if min != [3]float64{0, 0, 0} || max != [3]float64{100, 100, 10} {
		t.Errorf("bounds = %v..%v, want panel bounds", min, max)
	}
}

func TestDifferenceBlindPocket(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 100, 100, 10)
	// Top at 10.01, bottom at 4.99: a 5 mm pocket plus the padding.
	cutter := k.Translate(mustBox(t, k, 20, 20, 5.02), 40, 40, 4.99)

	result, err := k.Difference(panel, cutter)
	if err != nil {
		t.Fatalf("Difference error = %v", err)
	}
	if v := Volume(result); !closeTo(v, 100000-20*20*5.01, 1e-6) {
		t.Errorf("Volume = %f, want %f", v, 100000-20*20*5.01)
	}
	if n := len(k.Faces(result)); n != 11 {
		t.Errorf("faces = %d, want 11 (6 panel + 4 walls + floor)", n)
	}
}

func TestDifferenceCylinderHoleEdges(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 100, 100, 10)
	cyl, err := k.Cylinder(10.02, 10, 16)
	if err != nil {
		t.Fatalf("Cylinder error = %v", err)
	}
	result, err := k.Difference(panel, k.Translate(cyl, 50, 50, -0.01))
	if err != nil {
		t.Fatalf("Difference error = %v", err)
	}
	if n := len(k.Faces(result)); n != 7 {
		t.Errorf("faces = %d, want 7 (6 panel + wall)", n)
	}

	edges := k.Edges(result)
	if len(edges) != 14 {
		t.Fatalf("edges = %d, want 14 (12 panel + 2 rims)", len(edges))
	}
	closed := 0
	for _, e := range edges {
		pts, err := e.Discretize(0.5)
		if err != nil {
			t.Fatalf("Discretize error = %v", err)
		}
		if len(pts) > 2 && pts[0] == pts[len(pts)-1] {
			closed++
			if len(pts) != 17 {
				t.Errorf("rim has %d points, want 17", len(pts))
			}
		}
	}
	if closed != 2 {
		t.Errorf("closed rims = %d, want 2", closed)
	}
}

func TestDifferenceSequentialGrid(t *testing.T) {
	k := New()
	running := mustBox(t, k, 300, 200, 18)
	var want float64 = 300 * 200 * 18

	var holes []kernel.Solid
	for i := 0; i < 3; i++ {
		b := mustBox(t, k, 50, 30, 18.02)
		holes = append(holes, k.Translate(b, 75+float64(i)*60, 85, -0.01))
		want -= 50 * 30 * 18
	}
	grid, err := k.Compound(holes...)
	if err != nil {
		t.Fatalf("Compound error = %v", err)
	}
	running, err = k.Difference(running, grid)
	if err != nil {
		t.Fatalf("Difference error = %v", err)
	}

	cyl, err := k.Cylinder(10.02, 8, 24)
	if err != nil {
		t.Fatalf("Cylinder error = %v", err)
	}
	running, err = k.Difference(running, k.Translate(cyl, 40, 40, 8))
	if err != nil {
		t.Fatalf("second Difference error = %v", err)
	}
	want -= 0.5 * 24 * 64 * math.Sin(2*math.Pi/24) * 10

	if v := Volume(running); !closeTo(v, want, 1e-3) {
		t.Errorf("Volume = %f, want %f", v, want)
	}
}

func TestDifferenceEmptyOperand(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 10, 10, 10)
	_, err := k.Difference(panel, &solid{loc: kernel.Identity()})
	if !errors.Is(err, kernel.ErrEmptySolid) {
		t.Errorf("error = %v, want ErrEmptySolid", err)
	}
}

func TestDifferenceRejectsNonFinite(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 10, 10, 10)
	cutter := k.Translate(mustBox(t, k, 1, 1, 1), math.NaN(), 0, 0)
	_, err := k.Difference(panel, cutter)
	if !errors.Is(err, kernel.ErrDegenerate) {
		t.Errorf("error = %v, want ErrDegenerate", err)
	}
}

func TestDifferenceLeavesOperandsUntouched(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 10, 10, 10)
	cutter := k.Translate(mustBox(t, k, 2, 2, 10.02), 4, 4, -0.01)
	if _, err := k.Difference(panel, cutter); err != nil {
		t.Fatalf("Difference error = %v", err)
	}
	if v := Volume(panel); !closeTo(v, 1000, 1e-9) {
		t.Errorf("panel volume after difference = %f, want 1000", v)
	}
}

func TestCompoundEmpty(t *testing.T) {
	k := New()
	if _, err := k.Compound(); !errors.Is(err, kernel.ErrEmptySolid) {
		t.Errorf("Compound() error = %v, want ErrEmptySolid", err)
	}
}

func TestForeignSolid(t *testing.T) {
	k := New()
	panel := mustBox(t, k, 10, 10, 10)
	if _, err := k.Difference(panel, foreign{}); err == nil {
		t.Error("Difference with a foreign solid: error = nil, want error")
	}
	if faces := k.Faces(foreign{}); faces != nil {
		t.Errorf("Faces(foreign) = %v, want nil", faces)
	}
}

type foreign struct{}

func (foreign) BoundingBox() (min, max [3]float64) { return }

func TestEdgesSplitWhereThreeFacesMeet(t *testing.T) {
	// Face 0 runs the whole line; faces 1 and 2 each border half of it.
	pieces := []piece{
		{a: r3.Vec{X: 0}, b: r3.Vec{X: 10}, face: 0},
		{a: r3.Vec{X: 5}, b: r3.Vec{X: 0}, face: 1},
		{a: r3.Vec{X: 10}, b: r3.Vec{X: 5}, face: 2},
	}
	records := dedupe(splitAtEndpoints(pieces))
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	got := map[string]bool{}
	for _, r := range records {
		got[r.label()] = true
	}
	for _, want := range []string{"0,1", "0,2"} {
		if !got[want] {
			t.Errorf("missing edge between faces %s, got %v", want, got)
		}
	}
	if chains := chainByLabel(records); len(chains) != 2 {
		t.Errorf("got %d chains, want 2", len(chains))
	}
}

func TestSplitAtEndpointsIgnoresPointsOffTheLine(t *testing.T) {
	pieces := []piece{
		{a: r3.Vec{X: 0}, b: r3.Vec{X: 10}, face: 0},
		{a: r3.Vec{X: 5, Y: 1}, b: r3.Vec{X: 5, Y: 2}, face: 1},
	}
	if got := splitAtEndpoints(pieces); len(got) != 2 {
		t.Errorf("got %d pieces, want 2", len(got))
	}
}
