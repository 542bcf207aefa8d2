// Package panel defines the panel and cut model: panel dimensions, cut
// specifications with their rectangle or circle footprint, and the
// validation gate every request passes before any geometry is built.
package panel

import (
	"math"

	"github.com/chazu/panelcut/pkg/clearance"
	"github.com/google/uuid"
)

// Outline is the shape of the panel seen from above.
type Outline string

const (
	OutlineRectangle Outline = "rectangle"
	OutlineCircle    Outline = "circle"
)

// Dimensions are the panel extents in millimetres. The panel occupies
// [0, Length] x [0, Width] x [0, Thickness]; a circular panel is the
// largest disc inscribed in that rectangle.
type Dimensions struct {
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Thickness float64 `json:"thickness"`
	Outline   Outline `json:"shape,omitempty"`
}

// Shape returns the outline, defaulting to a rectangle.
func (d Dimensions) Shape() Outline {
	if d.Outline == "" {
		return OutlineRectangle
	}
	return d.Outline
}

// Radius returns the radius of a circular panel.
func (d Dimensions) Radius() float64 {
	return math.Min(d.Length, d.Width) / 2
}

// Kind tags the variant of a cut footprint.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
)

// Shape is the footprint of a cut. It is implemented by Rectangle and
// Circle only.
type Shape interface {
	Kind() Kind
	// Area is the footprint area in square millimetres.
	Area() float64
	// MinSpacing is the clearance between repeated copies.
	MinSpacing(margin float64) clearance.Spacing
	// HalfExtents is half the axis-aligned footprint size after rotation.
	HalfExtents() (x, y float64)

	check() []string
}

// Rectangle is a rectangular footprint rotated about its centre.
// Length runs along local X and Width along local Y before rotation.
type Rectangle struct {
	Length   float64
	Width    float64
	Rotation float64 // degrees
}

func (Rectangle) Kind() Kind { return KindRectangle }

func (r Rectangle) Area() float64 { return r.Length * r.Width }

func (r Rectangle) MinSpacing(margin float64) clearance.Spacing {
	return clearance.Rectangle(r.Length, r.Width, r.Rotation, margin)
}

func (r Rectangle) HalfExtents() (x, y float64) {
	rad := clearance.NormalizeRotation(r.Rotation) * math.Pi / 180
	c, s := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	return (r.Length*c + r.Width*s) / 2, (r.Length*s + r.Width*c) / 2
}

func (r Rectangle) check() []string {
	var msgs []string
	if !positive(r.Length) {
		msgs = append(msgs, "length must be positive")
	}
	if !positive(r.Width) {
		msgs = append(msgs, "width must be positive")
	}
	if math.IsNaN(r.Rotation) || math.IsInf(r.Rotation, 0) {
		msgs = append(msgs, "rotation must be a finite angle")
	}
	return msgs
}

// Circle is a circular footprint.
type Circle struct {
	Radius float64
}

func (Circle) Kind() Kind { return KindCircle }

func (c Circle) Area() float64 { return math.Pi * c.Radius * c.Radius }

func (c Circle) MinSpacing(margin float64) clearance.Spacing {
	return clearance.Circle(c.Radius, margin)
}

func (c Circle) HalfExtents() (x, y float64) { return c.Radius, c.Radius }

func (c Circle) check() []string {
	if !positive(c.Radius) {
		return []string{"radius must be positive"}
	}
	return nil
}

// Cut is one cut specification. Position is the footprint centre of the
// first instance. RepetitionX and RepetitionY count the extra copies placed
// SpacingX and SpacingY apart, so a grid holds (RepetitionX+1) x
// (RepetitionY+1) instances. Depth is measured down from the top face; a
// depth equal to the panel thickness is a through-cut.
type Cut struct {
	ID          string
	PositionX   float64
	PositionY   float64
	Depth       float64
	RepetitionX int
	RepetitionY int
	SpacingX    float64
	SpacingY    float64
	Shape       Shape
}

// NewID returns a short random cut identifier.
func NewID() string {
	return uuid.New().String()[:8]
}

// NewRectangleCut returns a single rectangular cut centred at (x, y).
func NewRectangleCut(x, y, length, width, depth float64) Cut {
	return Cut{
		ID:        NewID(),
		PositionX: x,
		PositionY: y,
		Depth:     depth,
		Shape:     Rectangle{Length: length, Width: width},
	}
}

// NewCircleCut returns a single circular cut centred at (x, y).
func NewCircleCut(x, y, radius, depth float64) Cut {
	return Cut{
		ID:        NewID(),
		PositionX: x,
		PositionY: y,
		Depth:     depth,
		Shape:     Circle{Radius: radius},
	}
}

// Instances is the number of grid instances the cut expands to.
func (c Cut) Instances() int {
	return (c.RepetitionX + 1) * (c.RepetitionY + 1)
}

// Repeated reports whether the cut declares any repetition.
func (c Cut) Repeated() bool {
	return c.RepetitionX > 0 || c.RepetitionY > 0
}

// FootprintArea is the area of one instance, zero without a shape.
func (c Cut) FootprintArea() float64 {
	if c.Shape == nil {
		return 0
	}
	return c.Shape.Area()
}
