package panel

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidConfiguration is matched by every *ConfigurationError.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// MaxInstances bounds the grid of a single cut.
const MaxInstances = 10000

// ValidationSeverity indicates whether a validation finding blocks the
// request or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the request
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	CutID    string             // offending cut, empty for panel-level findings
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.CutID == "" {
		return fmt.Sprintf("[%s] panel: %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] cut %s: %s", e.Severity, e.CutID, e.Message)
}

// ValidationResult is the outcome of validating one cut. MinSpacingX and
// MinSpacingY are the clearance minimums of its footprint, reported even
// when the cut is not repeated.
type ValidationResult struct {
	IsValid     bool
	Errors      []ValidationError
	Warnings    []ValidationError
	MinSpacingX float64
	MinSpacingY float64
}

// ConfigurationError lists every blocking finding of a request.
type ConfigurationError struct {
	Errors []ValidationError
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("panel: %s: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func withinInstanceLimit(rx, ry int) bool {
	return rx < MaxInstances && ry < MaxInstances && (rx+1)*(ry+1) <= MaxInstances
}

// ValidateDimensions checks the panel itself.
func ValidateDimensions(d Dimensions) []ValidationError {
	var errs []ValidationError
	add := func(format string, args ...any) {
		errs = append(errs, ValidationError{Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	if !positive(d.Length) {
		add("length must be positive, got %g", d.Length)
	}
	if !positive(d.Width) {
		add("width must be positive, got %g", d.Width)
	}
	if !positive(d.Thickness) {
		add("thickness must be positive, got %g", d.Thickness)
	}
	switch d.Shape() {
	case OutlineRectangle, OutlineCircle:
	default:
		add("unknown shape %q", d.Outline)
	}
	return errs
}

// ValidateCut checks one cut against the panel. Spacing is compared with
// the clearance minimum only along axes that are actually repeated.
func ValidateCut(c Cut, d Dimensions, margin float64) ValidationResult {
	var res ValidationResult
	fail := func(format string, args ...any) {
		res.Errors = append(res.Errors, ValidationError{
			CutID:    c.ID,
			Message:  fmt.Sprintf(format, args...),
			Severity: SeverityError,
		})
	}

	if c.ID == "" {
		fail("id must not be empty")
	}
	if !finite(c.PositionX) {
		fail("positionX must be finite, got %g", c.PositionX)
	}
	if !finite(c.PositionY) {
		fail("positionY must be finite, got %g", c.PositionY)
	}
	if !finite(c.SpacingX) {
		fail("spacingX must be finite, got %g", c.SpacingX)
	}
	if !finite(c.SpacingY) {
		fail("spacingY must be finite, got %g", c.SpacingY)
	}
	if c.Shape == nil {
		fail("shape is required")
		return res
	}
	for _, msg := range c.Shape.check() {
		fail("%s", msg)
	}
	if !positive(c.Depth) {
		fail("depth must be positive, got %g", c.Depth)
	} else if positive(d.Thickness) && c.Depth > d.Thickness {
		fail("depth %.2fmm exceeds panel thickness %.2fmm", c.Depth, d.Thickness)
	}
	if c.RepetitionX < 0 {
		fail("repetitionX must not be negative, got %d", c.RepetitionX)
	}
	if c.RepetitionY < 0 {
		fail("repetitionY must not be negative, got %d", c.RepetitionY)
	}
	if c.RepetitionX >= 0 && c.RepetitionY >= 0 && !withinInstanceLimit(c.RepetitionX, c.RepetitionY) {
		fail("grid of %d x %d instances exceeds the limit of %d", c.RepetitionX+1, c.RepetitionY+1, MaxInstances)
	}

	spacing := c.Shape.MinSpacing(margin)
	res.MinSpacingX, res.MinSpacingY = spacing.X, spacing.Y
	if c.RepetitionX > 0 && !(c.SpacingX >= spacing.X) {
		fail("spacingX must be at least %.2fmm", spacing.X)
	}
	if c.RepetitionY > 0 && !(c.SpacingY >= spacing.Y) {
		fail("spacingY must be at least %.2fmm", spacing.Y)
	}

	if len(res.Errors) == 0 && positive(d.Length) && positive(d.Width) {
		if i, j, ok := firstOutside(c, d); ok {
			res.Warnings = append(res.Warnings, ValidationError{
				CutID:    c.ID,
				Message:  fmt.Sprintf("instance (%d, %d) extends outside the panel", i, j),
				Severity: SeverityWarning,
			})
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// firstOutside returns the first grid instance whose footprint leaves the
// panel outline.
func firstOutside(c Cut, d Dimensions) (int, int, bool) {
	hx, hy := c.Shape.HalfExtents()
	const tol = 1e-9
	for i := 0; i <= c.RepetitionX; i++ {
		for j := 0; j <= c.RepetitionY; j++ {
			x := c.PositionX + float64(i)*c.SpacingX
			y := c.PositionY + float64(j)*c.SpacingY
			if d.Shape() == OutlineCircle {
				r := d.Radius()
				dist := math.Hypot(x-d.Length/2, y-d.Width/2)
				if dist+reach(c.Shape) > r+tol {
					return i, j, true
				}
				continue
			}
			if x-hx < -tol || y-hy < -tol || x+hx > d.Length+tol || y+hy > d.Width+tol {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// reach is the largest distance from the footprint centre to its boundary.
func reach(s Shape) float64 {
	switch v := s.(type) {
	case Circle:
		return v.Radius
	case Rectangle:
		return math.Hypot(v.Length, v.Width) / 2
	}
	hx, hy := s.HalfExtents()
	return math.Hypot(hx, hy)
}

// Validate checks the panel and every cut. Blocking findings from all cuts
// are collected into one *ConfigurationError; warnings are returned either
// way.
func Validate(d Dimensions, cuts []Cut, margin float64) ([]ValidationError, error) {
	errs := ValidateDimensions(d)
	var warnings []ValidationError

	seen := make(map[string]bool, len(cuts))
	for _, c := range cuts {
		if c.ID != "" {
			if seen[c.ID] {
				errs = append(errs, ValidationError{CutID: c.ID, Message: "duplicate id", Severity: SeverityError})
			}
			seen[c.ID] = true
		}
		res := ValidateCut(c, d, margin)
		errs = append(errs, res.Errors...)
		warnings = append(warnings, res.Warnings...)
	}

	if len(errs) > 0 {
		return warnings, &ConfigurationError{Errors: errs}
	}
	return warnings, nil
}
