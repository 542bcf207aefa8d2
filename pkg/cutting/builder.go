// Package cutting builds cut volumes and subtracts them from the panel.
//
// A Pipeline validates a request, builds one solid per cut specification
// (a compound when the cut repeats), subtracts the solids from the panel
// in input order and reports aggregate statistics. A cut whose boolean
// fails is recorded and skipped; it never aborts the run.
package cutting

import (
	"fmt"

	"github.com/chazu/panelcut/pkg/clearance"
	"github.com/chazu/panelcut/pkg/config"
	"github.com/chazu/panelcut/pkg/grid"
	"github.com/chazu/panelcut/pkg/kernel"
	"github.com/chazu/panelcut/pkg/panel"
)

// Builder turns panels and cut instances into kernel solids.
type Builder struct {
	k    kernel.Kernel
	geom config.GeometryConfig
}

// NewBuilder returns a Builder using k and the given tolerances.
func NewBuilder(k kernel.Kernel, geom config.GeometryConfig) *Builder {
	return &Builder{k: k, geom: geom}
}

func (b *Builder) segments(radius float64) int {
	return kernel.SegmentsFor(radius, b.geom.MeshDeflection, b.geom.MinCircleSegments, b.geom.MaxCircleSegments)
}

// Panel builds the uncut panel. A circular panel is centred on the
// rectangle it is inscribed in, so cut coordinates mean the same thing for
// both outlines.
func (b *Builder) Panel(d panel.Dimensions) (kernel.Solid, error) {
	switch d.Shape() {
	case panel.OutlineRectangle:
		s, err := b.k.Box(d.Length, d.Width, d.Thickness)
		if err != nil {
			return nil, fmt.Errorf("cutting: panel: %w", err)
		}
		return s, nil
	case panel.OutlineCircle:
		r := d.Radius()
		s, err := b.k.Cylinder(d.Thickness, r, b.segments(r))
		if err != nil {
			return nil, fmt.Errorf("cutting: panel: %w", err)
		}
		return b.k.Translate(s, d.Length/2, d.Width/2, 0), nil
	default:
		return nil, fmt.Errorf("cutting: panel: unknown shape %q", d.Outline)
	}
}

// Instance builds the volume removed by one grid instance. The volume is
// Epsilon taller than the cut at both ends and its nominal top sits on the
// panel top face, so depth is always measured from the top.
func (b *Builder) Instance(in grid.Instance, thickness float64) (kernel.Solid, error) {
	eps := b.geom.Epsilon
	height := in.Cut.Depth + 2*eps
	x, y := in.Position()
	z := thickness + eps - height

	var s kernel.Solid
	switch shape := in.Cut.Shape.(type) {
	case panel.Rectangle:
		box, err := b.k.Box(shape.Length, shape.Width, height)
		if err != nil {
			return nil, fmt.Errorf("cutting: cut %s: %w", in.Cut.ID, err)
		}
		s = b.k.Translate(box, -shape.Length/2, -shape.Width/2, 0)
		if rot := clearance.NormalizeRotation(shape.Rotation); rot != 0 {
			s = b.k.Rotate(s, 0, 0, rot)
		}
	case panel.Circle:
		cyl, err := b.k.Cylinder(height, shape.Radius, b.segments(shape.Radius))
		if err != nil {
			return nil, fmt.Errorf("cutting: cut %s: %w", in.Cut.ID, err)
		}
		s = cyl
	default:
		return nil, fmt.Errorf("cutting: cut %s: unsupported shape %T", in.Cut.ID, in.Cut.Shape)
	}
	return b.k.Translate(s, x, y, z), nil
}

// Build returns the volume of every instance of c. Repeated cuts come back
// as a single compound so the panel sees one boolean per specification.
func (b *Builder) Build(c panel.Cut, thickness float64) (kernel.Solid, error) {
	instances := grid.Expand(c)
	solids := make([]kernel.Solid, 0, len(instances))
	for _, in := range instances {
		s, err := b.Instance(in, thickness)
		if err != nil {
			return nil, err
		}
		solids = append(solids, s)
	}
	if len(solids) == 1 {
		return solids[0], nil
	}
	s, err := b.k.Compound(solids...)
	if err != nil {
		return nil, fmt.Errorf("cutting: cut %s: compound: %w", c.ID, err)
	}
	return s, nil
}
