// Package importer reads cut layouts drawn in other tools.
package importer

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/panelcut/pkg/clearance"
	"github.com/chazu/panelcut/pkg/panel"
	"github.com/samber/lo"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/entity"
	"gonum.org/v1/gonum/spatial/r2"
)

// Options controls how drawing entities become cuts.
type Options struct {
	// Depth is given to every imported cut.
	Depth float64
}

// Result holds the cuts found in a drawing and a note for every entity
// that was left out.
type Result struct {
	Cuts     []panel.Cut
	Warnings []string
}

// ImportDXF reads a DXF drawing. CIRCLE entities become circular cuts and
// closed four-corner LWPOLYLINE rectangles become rectangular cuts centred
// on the rectangle. The first side sets the length and the rotation, the
// second the width. Everything else is skipped with a warning.
func ImportDXF(path string, opts Options) (*Result, error) {
	if !(opts.Depth > 0) {
		return nil, errors.New("importer: depth must be positive")
	}
	drawing, err := dxf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("importer: open %s: %w", path, err)
	}

	res := &Result{}
	for i, ent := range drawing.Entities() {
		switch e := ent.(type) {
		case *entity.Circle:
			if !(e.Radius > 0) {
				res.warn("entity %d: skipped circle with radius %g", i, e.Radius)
				continue
			}
			res.Cuts = append(res.Cuts, panel.NewCircleCut(e.Center[0], e.Center[1], e.Radius, opts.Depth))
		case *entity.LwPolyline:
			if lo.SomeBy(e.Bulges, func(b float64) bool { return math.Abs(b) > 1e-9 }) {
				res.warn("entity %d: skipped polyline with arc segments", i)
				continue
			}
			pts := lo.Map(e.Vertices, func(v []float64, _ int) r2.Vec { return r2.Vec{X: v[0], Y: v[1]} })
			r, ok := rectangleFromVertices(pts)
			if !ok {
				res.warn("entity %d: skipped polyline with %d vertices that is not a rectangle", i, len(pts))
				continue
			}
			res.Cuts = append(res.Cuts, panel.Cut{
				ID:        panel.NewID(),
				PositionX: r.center.X,
				PositionY: r.center.Y,
				Depth:     opts.Depth,
				Shape:     panel.Rectangle{Length: r.length, Width: r.width, Rotation: r.rotation},
			})
		default:
			res.warn("entity %d: skipped unsupported %T", i, ent)
		}
	}
	if len(res.Cuts) == 0 {
		res.warn("no cuts found in %s", path)
	}
	return res, nil
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type rect struct {
	center        r2.Vec
	length, width float64
	rotation      float64
}

// rectangleFromVertices recognises four corners, in either winding, with
// an optional closing vertex equal to the first.
func rectangleFromVertices(pts []r2.Vec) (rect, bool) {
	if len(pts) == 5 && r2.Norm(r2.Sub(pts[4], pts[0])) < 1e-9 {
		pts = pts[:4]
	}
	if len(pts) != 4 {
		return rect{}, false
	}
	a := r2.Sub(pts[1], pts[0])
	b := r2.Sub(pts[2], pts[1])
	c := r2.Sub(pts[3], pts[2])
	d := r2.Sub(pts[0], pts[3])

	la, lb := r2.Norm(a), r2.Norm(b)
	if la < 1e-9 || lb < 1e-9 {
		return rect{}, false
	}
	tol := 1e-6 * math.Max(la, lb)
	if r2.Norm(r2.Add(a, c)) > tol || r2.Norm(r2.Add(b, d)) > tol {
		return rect{}, false
	}
	if math.Abs(r2.Dot(a, b)) > tol*math.Max(la, lb) {
		return rect{}, false
	}

	center := r2.Scale(0.25, r2.Add(r2.Add(pts[0], pts[1]), r2.Add(pts[2], pts[3])))
	rot := clearance.NormalizeRotation(math.Atan2(a.Y, a.X) * 180 / math.Pi)
	return rect{center: center, length: la, width: lb, rotation: rot}, true
}
