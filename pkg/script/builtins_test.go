package script

import (
	"strings"
	"testing"

	"github.com/chazu/panelcut/pkg/panel"
)

// ---------------------------------------------------------------------------
// Preprocessing
// ---------------------------------------------------------------------------

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"keyword", `(panel :length 300)`, `(panel "__kw_length" 300)`},
		{"hyphenated keyword", `:spacing-x 60`, `"__kw_spacing-x" 60`},
		{"kebab-case form", `(rect-cut :x 1)`, `(rect_cut "__kw_x" 1)`},
		{"keyword in string preserved", `"see :length"`, `"see :length"`},
		{"escaped quote in string", `"a \" :b"`, `"a \" :b"`},
		{"backtick string preserved", "`circle-cut :x`", "`circle-cut :x`"},
		{"assignment preserved", `(def x := 10)`, `(def x := 10)`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative literal preserved", `:x -5`, `"__kw_x" -5`},
		{"digit after hyphen preserved", `(- x-1)`, `(- x-1)`},
		{"double semicolon comment", `;; pocket :depth`, `// pocket :depth`},
		{"single semicolon comment", "; hole\n(panel)", "// hole\n(panel)"},
		{"unterminated string", `"open`, `"open`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Forms
// ---------------------------------------------------------------------------

func mustEvaluate(t *testing.T, source string) *Design {
	t.Helper()
	d, evalErrs, err := NewEvaluator().Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if d == nil {
		t.Fatal("expected a design")
	}
	return d
}

func TestShelfProgram(t *testing.T) {
	d := mustEvaluate(t, `
; shelf side
(panel :length 300 :width 200 :thickness 18 :shape :rectangle)
(rect-cut :id "slot" :x 100 :y 100 :length 50 :width 30 :depth 18
          :rotation 15 :repeat-x 2 :spacing-x 60)
(circle-cut :id "hole" :x 250 :y 50 :radius 10 :depth 9)
`)
	want := panel.Dimensions{Length: 300, Width: 200, Thickness: 18, Outline: panel.OutlineRectangle}
	if d.Panel != want {
		t.Errorf("panel = %+v, want %+v", d.Panel, want)
	}
	if len(d.Cuts) != 2 {
		t.Fatalf("expected 2 cuts, got %d", len(d.Cuts))
	}

	slot := d.Cuts[0]
	if slot.ID != "slot" || slot.PositionX != 100 || slot.PositionY != 100 || slot.Depth != 18 {
		t.Errorf("unexpected slot placement: %+v", slot)
	}
	if slot.RepetitionX != 2 || slot.SpacingX != 60 || slot.RepetitionY != 0 {
		t.Errorf("unexpected slot repetition: %+v", slot)
	}
	r, ok := slot.Shape.(panel.Rectangle)
	if !ok {
		t.Fatalf("expected Rectangle, got %T", slot.Shape)
	}
	if r != (panel.Rectangle{Length: 50, Width: 30, Rotation: 15}) {
		t.Errorf("rectangle = %+v", r)
	}

	hole := d.Cuts[1]
	c, ok := hole.Shape.(panel.Circle)
	if !ok {
		t.Fatalf("expected Circle, got %T", hole.Shape)
	}
	if c.Radius != 10 || hole.Depth != 9 || hole.ID != "hole" {
		t.Errorf("unexpected hole: %+v", hole)
	}
}

func TestCircularPanel(t *testing.T) {
	d := mustEvaluate(t, `(panel :length 400 :width 400 :thickness 12 :shape :circle)`)
	if d.Panel.Outline != panel.OutlineCircle {
		t.Errorf("outline = %q, want circle", d.Panel.Outline)
	}
	if len(d.Cuts) != 0 {
		t.Errorf("expected no cuts, got %d", len(d.Cuts))
	}
}

func TestDefaultCutIDs(t *testing.T) {
	d := mustEvaluate(t, `
(panel :length 300 :width 200 :thickness 18)
(circle-cut :x 20 :y 20 :radius 5 :depth 5)
(circle-cut :x 60 :y 20 :radius 5 :depth 5)
`)
	if d.Cuts[0].ID != "cut-1" || d.Cuts[1].ID != "cut-2" {
		t.Errorf("ids = %q, %q", d.Cuts[0].ID, d.Cuts[1].ID)
	}
}

func TestVariablesAndArithmetic(t *testing.T) {
	d := mustEvaluate(t, `
(def thick 18)
(def pitch (* 2 30))
(panel :length 300 :width 200 :thickness thick)
(rect-cut :x 50 :y 50 :length 20 :width 20 :depth (/ thick 2)
          :repeat-y 1 :spacing-y pitch)
`)
	c := d.Cuts[0]
	if d.Panel.Thickness != 18 || c.Depth != 9 || c.SpacingY != 60 || c.RepetitionY != 1 {
		t.Errorf("unexpected design: panel %+v cut %+v", d.Panel, c)
	}
}

func TestFormErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"missing panel", `(circle-cut :x 1 :y 1 :radius 1 :depth 1)`, "no (panel ...) form"},
		{"empty program", "  \n ", "expected a (panel ...) form"},
		{"second panel", "(panel :length 1 :width 1 :thickness 1)\n(panel :length 1 :width 1 :thickness 1)", "already defined"},
		{"missing argument", `(panel :length 300 :width 200)`, ":thickness is required"},
		{"unknown argument", `(panel :length 1 :width 1 :thickness 1 :colour "red")`, "unknown argument :colour"},
		{"bad shape", `(panel :length 1 :width 1 :thickness 1 :shape :hexagon)`, "must be :rectangle or :circle"},
		{"non-number", `(panel :length "long" :width 1 :thickness 1)`, "expected number"},
		{"huge repeat", "(panel :length 100 :width 100 :thickness 10)\n(rect-cut :x 1 :y 1 :length 1 :width 1 :depth 1 :repeat-x 10000000000)", "out of range"},
		{"fractional repeat", "(panel :length 100 :width 100 :thickness 10)\n(rect-cut :x 1 :y 1 :length 1 :width 1 :depth 1 :repeat-x 1.5)", "whole number"},
		{"positional argument", `(panel 300 :width 1 :thickness 1)`, "unexpected positional argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, evalErrs, err := NewEvaluator().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected eval error, got fatal: %v", err)
			}
			if d != nil {
				t.Fatal("expected nil design")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected an eval error")
			}
			if !strings.Contains(evalErrs[0].Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", evalErrs[0].Error(), tt.want)
			}
		})
	}
}
