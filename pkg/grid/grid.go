// Package grid expands a repeated cut into its placed instances.
package grid

import "github.com/chazu/panelcut/pkg/panel"

// Instance is one placement of a cut at grid offset (I, J).
type Instance struct {
	Cut panel.Cut
	I   int
	J   int
}

// Position returns the footprint centre of the instance.
func (in Instance) Position() (x, y float64) {
	return in.Cut.PositionX + float64(in.I)*in.Cut.SpacingX,
		in.Cut.PositionY + float64(in.J)*in.Cut.SpacingY
}

// Expand returns every instance of c, I outermost. A cut without
// repetition yields exactly itself. Overlapping instances are kept;
// rejecting them is the validator's job. Negative counts are treated as
// zero.
func Expand(c panel.Cut) []Instance {
	nx, ny := max(c.RepetitionX, 0), max(c.RepetitionY, 0)
	out := make([]Instance, 0, (nx+1)*(ny+1))
	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			out = append(out, Instance{Cut: c, I: i, J: j})
		}
	}
	return out
}
