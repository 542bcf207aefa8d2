package script

import (
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer Evaluate call started before
// this one finished.
var ErrSuperseded = errors.New("script: evaluation superseded by newer request")

type evalResult struct {
	design *Design
	errors []EvalError
	err    error
}

// waitWithTimeout waits for ch for at most timeout. A result whose
// generation is no longer current is discarded. On timeout the evaluating
// goroutine keeps running; its result lands in the buffered channel and
// is dropped.
func waitWithTimeout(ch <-chan evalResult, gen uint64, timeout time.Duration, current func() uint64) (*Design, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if gen != current() {
			return nil, nil, ErrSuperseded
		}
		return res.design, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("script: evaluation timed out after %s", timeout)
	}
}
