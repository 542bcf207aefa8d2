// Package script evaluates the panel description language: a sandboxed
// zygomys Lisp with panel, rect-cut and circle-cut forms. A program
// describes exactly one panel and any number of cuts.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/panelcut/pkg/panel"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError is a non-fatal problem in user source, such as a parse error
// or a bad argument to a form.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Design is what a program describes.
type Design struct {
	Panel panel.Dimensions
	Cuts  []panel.Cut

	hasPanel bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// Evaluator runs programs, each in a fresh sandbox. It is safe for
// concurrent use; only the most recent call's result is returned.
type Evaluator struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{timeout: EvalTimeout}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Evaluator) current() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Evaluate runs source and returns the design it describes.
//
//   - success: design, nil, nil
//   - problems in the source: nil, eval errors, nil
//   - timeout, panic or a newer call superseding this one: nil, nil, error
func (e *Evaluator) Evaluate(source string) (*Design, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("script: panic during evaluation: %v", r)}
			}
		}()
		d, evalErrs := evaluate(source)
		ch <- evalResult{design: d, errors: evalErrs}
	}()

	return waitWithTimeout(ch, gen, e.timeout, e.current)
}

func evaluate(source string) (*Design, []EvalError) {
	if strings.TrimSpace(source) == "" {
		return nil, []EvalError{{Message: "empty program: expected a (panel ...) form"}}
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	d := &Design{}
	registerBuiltins(env, d)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err)
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err)
	}
	if !d.hasPanel {
		return nil, []EvalError{{Message: "no (panel ...) form"}}
	}
	return d, nil
}

// lineInfo matches "Error on line N: ..." and "line N: ..." in zygomys
// messages.
var lineInfo = regexp.MustCompile(`(?i)on line (\d+):\s*(.*)|^line (\d+):\s*(.*)`)

func parseZygomysError(err error) []EvalError {
	msg := strings.TrimSpace(err.Error())
	m := lineInfo.FindStringSubmatch(msg)
	if m == nil {
		return []EvalError{{Message: msg}}
	}
	num, detail := m[1], m[2]
	if num == "" {
		num, detail = m[3], m[4]
	}
	line, _ := strconv.Atoi(num)
	return []EvalError{{Line: line, Message: strings.TrimSpace(detail)}}
}
