package panel

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const margin = 1.0

var shelf = Dimensions{Length: 300, Width: 200, Thickness: 18}

func slot(spacingX float64) Cut {
	return Cut{
		ID:          "slot",
		PositionX:   100,
		PositionY:   100,
		Depth:       18,
		RepetitionX: 2,
		SpacingX:    spacingX,
		Shape:       Rectangle{Length: 50, Width: 30},
	}
}

func TestNewCutIDs(t *testing.T) {
	a := NewRectangleCut(10, 10, 5, 5, 3)
	b := NewCircleCut(10, 10, 2, 3)
	assert.Len(t, a.ID, 8)
	assert.Len(t, b.ID, 8)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, KindRectangle, a.Shape.Kind())
	assert.Equal(t, KindCircle, b.Shape.Kind())
}

func TestFootprintArea(t *testing.T) {
	assert.InDelta(t, 1500, slot(60).FootprintArea(), 1e-9)
	assert.InDelta(t, math.Pi*100, NewCircleCut(0, 0, 10, 1).FootprintArea(), 1e-9)
	assert.Zero(t, Cut{}.FootprintArea())
}

func TestInstances(t *testing.T) {
	c := slot(60)
	c.RepetitionY = 1
	assert.Equal(t, 6, c.Instances())
	assert.True(t, c.Repeated())
	assert.False(t, NewCircleCut(0, 0, 1, 1).Repeated())
}

func TestHalfExtents(t *testing.T) {
	hx, hy := Rectangle{Length: 50, Width: 30, Rotation: 90}.HalfExtents()
	assert.InDelta(t, 15, hx, 1e-9)
	assert.InDelta(t, 25, hy, 1e-9)

	hx, hy = Circle{Radius: 4}.HalfExtents()
	assert.Equal(t, 4.0, hx)
	assert.Equal(t, 4.0, hy)
}

func TestValidateSpacingTooSmall(t *testing.T) {
	res := ValidateCut(slot(40), shelf, margin)
	assert.False(t, res.IsValid)
	assert.Equal(t, 51.0, res.MinSpacingX)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "spacingX must be at least 51.00mm")
}

func TestValidateSpacingOK(t *testing.T) {
	res := ValidateCut(slot(60), shelf, margin)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateSpacingIgnoredWithoutRepetition(t *testing.T) {
	c := slot(0)
	c.RepetitionX = 0
	res := ValidateCut(c, shelf, margin)
	assert.True(t, res.IsValid)
	assert.Equal(t, 51.0, res.MinSpacingX)
	assert.Equal(t, 31.0, res.MinSpacingY)
}

func TestValidateCutErrors(t *testing.T) {
	tests := []struct {
		name string
		cut  Cut
		want string
	}{
		{"no shape", Cut{ID: "a", Depth: 1}, "shape is required"},
		{"empty id", Cut{Depth: 1, Shape: Circle{Radius: 1}}, "id must not be empty"},
		{"zero depth", Cut{ID: "a", Shape: Circle{Radius: 1}}, "depth must be positive"},
		{"too deep", Cut{ID: "a", Depth: 20, Shape: Circle{Radius: 1}}, "exceeds panel thickness"},
		{"zero radius", Cut{ID: "a", Depth: 1, Shape: Circle{}}, "radius must be positive"},
		{"zero width", Cut{ID: "a", Depth: 1, Shape: Rectangle{Length: 5}}, "width must be positive"},
		{"negative repetition", Cut{ID: "a", Depth: 1, RepetitionY: -1, Shape: Circle{Radius: 1}}, "repetitionY must not be negative"},
		{"y spacing", Cut{ID: "a", Depth: 1, RepetitionY: 1, SpacingY: 5, Shape: Circle{Radius: 5}}, "spacingY must be at least 11.00mm"},
		{"NaN position x", Cut{ID: "a", PositionX: math.NaN(), Depth: 1, Shape: Circle{Radius: 1}}, "positionX must be finite, got NaN"},
		{"infinite position y", Cut{ID: "a", PositionY: math.Inf(-1), Depth: 1, Shape: Circle{Radius: 1}}, "positionY must be finite, got -Inf"},
		{"NaN spacing on unrepeated axis", Cut{ID: "a", Depth: 1, SpacingX: math.NaN(), Shape: Circle{Radius: 1}}, "spacingX must be finite"},
		{"infinite spacing y", Cut{ID: "a", Depth: 1, RepetitionY: 1, SpacingY: math.Inf(1), Shape: Circle{Radius: 1}}, "spacingY must be finite"},
		{"infinite radius", Cut{ID: "a", Depth: 1, Shape: Circle{Radius: math.Inf(1)}}, "radius must be positive"},
		{"infinite length", Cut{ID: "a", Depth: 1, Shape: Rectangle{Length: math.Inf(1), Width: 5}}, "length must be positive"},
		{"runaway repetition", Cut{ID: "a", Depth: 1, RepetitionX: 1_000_000_000, SpacingX: 3, Shape: Circle{Radius: 1}}, "grid of 1000000001 x 1 instances exceeds the limit of 10000"},
		{"grid too large", Cut{ID: "a", Depth: 1, RepetitionX: 100, RepetitionY: 100, SpacingX: 3, SpacingY: 3, Shape: Circle{Radius: 1}}, "grid of 101 x 101 instances"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateCut(tt.cut, shelf, margin)
			assert.False(t, res.IsValid)
			var msgs []string
			for _, e := range res.Errors {
				msgs = append(msgs, e.Message)
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tt.want)
		})
	}
}

func TestValidateOutsideWarning(t *testing.T) {
	c := slot(60)
	c.PositionX = 250 // second instance reaches x=335
	res := ValidateCut(c, shelf, margin)
	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, SeverityWarning, res.Warnings[0].Severity)
	assert.Contains(t, res.Warnings[0].Message, "instance (1, 0)")
}

func TestValidateCircularPanelWarning(t *testing.T) {
	disc := Dimensions{Length: 200, Width: 200, Thickness: 10, Outline: OutlineCircle}
	inside := Cut{ID: "in", PositionX: 100, PositionY: 100, Depth: 5, Shape: Circle{Radius: 50}}
	corner := Cut{ID: "corner", PositionX: 10, PositionY: 10, Depth: 5, Shape: Circle{Radius: 5}}

	assert.Empty(t, ValidateCut(inside, disc, margin).Warnings)
	assert.Len(t, ValidateCut(corner, disc, margin).Warnings, 1)
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	cuts := []Cut{
		slot(40),
		{ID: "hole", Depth: 0, Shape: Circle{Radius: 3}},
		{ID: "hole", Depth: 5, PositionX: 20, PositionY: 20, Shape: Circle{Radius: 3}},
	}
	warnings, err := Validate(Dimensions{Length: 300, Width: -1, Thickness: 18}, cuts, margin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Len(t, cfgErr.Errors, 4)
	assert.Contains(t, err.Error(), "width must be positive")
	assert.Contains(t, err.Error(), "spacingX must be at least 51.00mm")
	assert.Contains(t, err.Error(), "duplicate id")
	assert.Empty(t, warnings)
}

func TestValidateUnknownOutline(t *testing.T) {
	errs := ValidateDimensions(Dimensions{Length: 1, Width: 1, Thickness: 1, Outline: "hexagon"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `unknown shape "hexagon"`)
}

func TestValidateOK(t *testing.T) {
	warnings, err := Validate(shelf, []Cut{slot(60)}, margin)
	assert.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestCutJSONRoundTrip(t *testing.T) {
	cuts := []Cut{
		{ID: "r", PositionX: 1, PositionY: 2, Depth: 3, RepetitionX: 1, SpacingX: 60, Shape: Rectangle{Length: 50, Width: 30, Rotation: 15}},
		{ID: "c", PositionX: 4, PositionY: 5, Depth: 6, Shape: Circle{Radius: 7}},
	}
	data, err := json.Marshal(cuts)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"rectangle"`)
	assert.Contains(t, string(data), `"type":"circle"`)

	var back []Cut
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, cuts, back)
}

func TestCutJSONErrors(t *testing.T) {
	_, err := json.Marshal(Cut{ID: "x"})
	assert.Error(t, err)

	var c Cut
	assert.Error(t, json.Unmarshal([]byte(`{"type":"hexagon","id":"x"}`), &c))
}

func TestSignature(t *testing.T) {
	a, err := Signature(shelf, []Cut{slot(60)})
	require.NoError(t, err)
	b, err := Signature(shelf, []Cut{slot(60)})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Signature(shelf, []Cut{slot(61)})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	// An empty outline means rectangle.
	rect := shelf
	rect.Outline = OutlineRectangle
	d, err := Signature(rect, []Cut{slot(60)})
	require.NoError(t, err)
	assert.Equal(t, a, d)

	none, err := Signature(shelf, nil)
	require.NoError(t, err)
	empty, err := Signature(shelf, []Cut{})
	require.NoError(t, err)
	assert.Equal(t, none, empty)
}
