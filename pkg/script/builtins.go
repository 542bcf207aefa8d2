package script

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/chazu/panelcut/pkg/panel"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/samber/lo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix marks keyword string literals produced by preprocessSource.
const kwPrefix = "__kw_"

// rewriter copies source to out while applying the surface syntax
// rewrites zygomys does not understand itself.
type rewriter struct {
	src []byte
	out []byte
	i   int
}

// preprocessSource rewrites the panel language into plain zygomys:
//
//   - :keyword becomes the string literal "__kw_keyword"
//   - kebab-case identifiers become snake_case (rect-cut -> rect_cut)
//   - ; and ;; line comments become // comments
//
// String literals, := and the minus operator are left alone.
func preprocessSource(source string) string {
	r := &rewriter{src: []byte(source), out: make([]byte, 0, len(source)+len(source)/4)}
	for r.i < len(r.src) {
		c := r.src[r.i]
		switch {
		case c == '"':
			r.quoted('"', true)
		case c == '`':
			r.quoted('`', false)
		case c == ';':
			r.comment()
		case c == ':' && r.peek(1) == '=':
			r.copy(2)
		case c == ':' && isLetter(r.peek(1)):
			r.keyword()
		case c == '-' && r.i > 0 && isIdentChar(r.src[r.i-1]) && isLetter(r.peek(1)):
			r.out = append(r.out, '_')
			r.i++
		default:
			r.copy(1)
		}
	}
	return string(r.out)
}

func (r *rewriter) peek(n int) byte {
	if r.i+n < len(r.src) {
		return r.src[r.i+n]
	}
	return 0
}

func (r *rewriter) copy(n int) {
	end := min(r.i+n, len(r.src))
	r.out = append(r.out, r.src[r.i:end]...)
	r.i = end
}

func (r *rewriter) quoted(q byte, escapes bool) {
	r.copy(1)
	for r.i < len(r.src) && r.src[r.i] != q {
		if escapes && r.src[r.i] == '\\' {
			r.copy(2)
			continue
		}
		r.copy(1)
	}
	r.copy(1)
}

func (r *rewriter) comment() {
	r.out = append(r.out, '/', '/')
	for r.i < len(r.src) && r.src[r.i] == ';' {
		r.i++
	}
	for r.i < len(r.src) && r.src[r.i] != '\n' {
		r.copy(1)
	}
}

func (r *rewriter) keyword() {
	j := r.i + 1
	for j < len(r.src) && isKWChar(r.src[j]) {
		j++
	}
	r.out = append(r.out, '"')
	r.out = append(r.out, kwPrefix...)
	r.out = append(r.out, r.src[r.i+1:j]...)
	r.out = append(r.out, '"')
	r.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Argument reading
// ---------------------------------------------------------------------------

func keywordName(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// args reads the keyword arguments of one form. The first failure sticks;
// later reads become no-ops and done reports it.
type args struct {
	form string
	kw   map[string]zygo.Sexp
	err  error
}

func readArgs(form string, list []zygo.Sexp) *args {
	a := &args{form: form, kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(list); i++ {
		name, ok := keywordName(list[i])
		if !ok {
			a.fail(fmt.Errorf("unexpected positional argument %s", list[i].SexpString(nil)))
			return a
		}
		if i+1 >= len(list) {
			a.fail(fmt.Errorf(":%s has no value", name))
			return a
		}
		if _, dup := a.kw[name]; dup {
			a.fail(fmt.Errorf(":%s given twice", name))
			return a
		}
		a.kw[name] = list[i+1]
		i++
	}
	return a
}

func (a *args) fail(err error) {
	if a.err == nil {
		a.err = fmt.Errorf("%s: %w", a.form, err)
	}
}

func (a *args) take(name string) (zygo.Sexp, bool) {
	if a.err != nil {
		return nil, false
	}
	v, ok := a.kw[name]
	delete(a.kw, name)
	return v, ok
}

func (a *args) required(names ...string) {
	for _, n := range names {
		if _, ok := a.kw[n]; !ok {
			a.fail(fmt.Errorf(":%s is required", n))
		}
	}
}

func (a *args) number(name string, dst *float64) {
	v, ok := a.take(name)
	if !ok {
		return
	}
	switch n := v.(type) {
	case *zygo.SexpInt:
		*dst = float64(n.Val)
	case *zygo.SexpFloat:
		*dst = n.Val
	default:
		a.fail(fmt.Errorf(":%s: expected number, got %s", name, v.SexpString(nil)))
	}
}

func (a *args) count(name string, dst *int) {
	var f float64
	a.number(name, &f)
	if a.err != nil {
		return
	}
	if f != math.Trunc(f) {
		a.fail(fmt.Errorf(":%s: expected a whole number, got %g", name, f))
		return
	}
	if math.Abs(f) > math.MaxInt32 {
		a.fail(fmt.Errorf(":%s: %g is out of range", name, f))
		return
	}
	*dst = int(f)
}

func (a *args) str(name string, dst *string) {
	v, ok := a.take(name)
	if !ok {
		return
	}
	s, isStr := v.(*zygo.SexpStr)
	if !isStr {
		a.fail(fmt.Errorf(":%s: expected string, got %s", name, v.SexpString(nil)))
		return
	}
	if kw, isKW := keywordName(v); isKW {
		*dst = kw
		return
	}
	*dst = s.S
}

// done reports the first failure, or any argument nobody read.
func (a *args) done() error {
	if a.err == nil && len(a.kw) > 0 {
		left := lo.Keys(a.kw)
		slices.Sort(left)
		a.fail(fmt.Errorf("unknown argument :%s", strings.Join(left, ", :")))
	}
	return a.err
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// registerBuiltins installs the panel forms into env. Forms append to d as
// they run. Source must go through preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, d *Design) {
	// (panel :length 300 :width 200 :thickness 18 :shape :rectangle)
	env.AddFunction("panel", func(env *zygo.Zlisp, name string, list []zygo.Sexp) (zygo.Sexp, error) {
		if d.hasPanel {
			return zygo.SexpNull, fmt.Errorf("panel: already defined")
		}
		a := readArgs("panel", list)
		a.required("length", "width", "thickness")
		var dims panel.Dimensions
		var shape string
		a.number("length", &dims.Length)
		a.number("width", &dims.Width)
		a.number("thickness", &dims.Thickness)
		a.str("shape", &shape)
		if err := a.done(); err != nil {
			return zygo.SexpNull, err
		}
		switch panel.Outline(shape) {
		case "", panel.OutlineRectangle:
			dims.Outline = panel.OutlineRectangle
		case panel.OutlineCircle:
			dims.Outline = panel.OutlineCircle
		default:
			return zygo.SexpNull, fmt.Errorf("panel: :shape must be :rectangle or :circle, got %q", shape)
		}
		d.Panel = dims
		d.hasPanel = true
		return zygo.SexpNull, nil
	})

	// (rect-cut :id "slot" :x 100 :y 100 :length 50 :width 30 :depth 18
	//           :rotation 0 :repeat-x 2 :spacing-x 60)
	env.AddFunction("rect_cut", func(env *zygo.Zlisp, name string, list []zygo.Sexp) (zygo.Sexp, error) {
		a := readArgs("rect-cut", list)
		a.required("x", "y", "length", "width", "depth")
		var r panel.Rectangle
		a.number("length", &r.Length)
		a.number("width", &r.Width)
		a.number("rotation", &r.Rotation)
		c := readPlacement(a, d)
		if err := a.done(); err != nil {
			return zygo.SexpNull, err
		}
		c.Shape = r
		d.Cuts = append(d.Cuts, c)
		return &zygo.SexpStr{S: c.ID}, nil
	})

	// (circle-cut :id "hole" :x 250 :y 50 :radius 10 :depth 9)
	env.AddFunction("circle_cut", func(env *zygo.Zlisp, name string, list []zygo.Sexp) (zygo.Sexp, error) {
		a := readArgs("circle-cut", list)
		a.required("x", "y", "radius", "depth")
		var ci panel.Circle
		a.number("radius", &ci.Radius)
		c := readPlacement(a, d)
		if err := a.done(); err != nil {
			return zygo.SexpNull, err
		}
		c.Shape = ci
		d.Cuts = append(d.Cuts, c)
		return &zygo.SexpStr{S: c.ID}, nil
	})
}

// readPlacement reads the arguments shared by every cut form. A cut
// without :id is named after its position in the source.
func readPlacement(a *args, d *Design) panel.Cut {
	var c panel.Cut
	a.str("id", &c.ID)
	a.number("x", &c.PositionX)
	a.number("y", &c.PositionY)
	a.number("depth", &c.Depth)
	a.count("repeat-x", &c.RepetitionX)
	a.count("repeat-y", &c.RepetitionY)
	a.number("spacing-x", &c.SpacingX)
	a.number("spacing-y", &c.SpacingY)
	if c.ID == "" {
		c.ID = fmt.Sprintf("cut-%d", len(d.Cuts)+1)
	}
	return c
}
