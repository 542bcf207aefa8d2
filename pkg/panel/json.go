package panel

import (
	"encoding/json"
	"fmt"
)

// cutJSON is the flat wire form of a Cut. The "type" field selects the
// footprint variant.
type cutJSON struct {
	Type        Kind    `json:"type"`
	ID          string  `json:"id"`
	PositionX   float64 `json:"positionX"`
	PositionY   float64 `json:"positionY"`
	Depth       float64 `json:"depth"`
	RepetitionX int     `json:"repetitionX,omitempty"`
	RepetitionY int     `json:"repetitionY,omitempty"`
	SpacingX    float64 `json:"spacingX,omitempty"`
	SpacingY    float64 `json:"spacingY,omitempty"`
	Length      float64 `json:"length,omitempty"`
	Width       float64 `json:"width,omitempty"`
	Rotation    float64 `json:"rotation,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
}

func (c Cut) MarshalJSON() ([]byte, error) {
	w := cutJSON{
		ID:          c.ID,
		PositionX:   c.PositionX,
		PositionY:   c.PositionY,
		Depth:       c.Depth,
		RepetitionX: c.RepetitionX,
		RepetitionY: c.RepetitionY,
		SpacingX:    c.SpacingX,
		SpacingY:    c.SpacingY,
	}
	switch s := c.Shape.(type) {
	case Rectangle:
		w.Type = KindRectangle
		w.Length, w.Width, w.Rotation = s.Length, s.Width, s.Rotation
	case Circle:
		w.Type = KindCircle
		w.Radius = s.Radius
	case nil:
		return nil, fmt.Errorf("panel: cut %q has no shape", c.ID)
	default:
		return nil, fmt.Errorf("panel: cut %q has unsupported shape %T", c.ID, s)
	}
	return json.Marshal(w)
}

func (c *Cut) UnmarshalJSON(data []byte) error {
	var w cutJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Cut{
		ID:          w.ID,
		PositionX:   w.PositionX,
		PositionY:   w.PositionY,
		Depth:       w.Depth,
		RepetitionX: w.RepetitionX,
		RepetitionY: w.RepetitionY,
		SpacingX:    w.SpacingX,
		SpacingY:    w.SpacingY,
	}
	switch w.Type {
	case KindRectangle:
		c.Shape = Rectangle{Length: w.Length, Width: w.Width, Rotation: w.Rotation}
	case KindCircle:
		c.Shape = Circle{Radius: w.Radius}
	default:
		return fmt.Errorf("panel: cut %q has unknown type %q", w.ID, w.Type)
	}
	return nil
}
