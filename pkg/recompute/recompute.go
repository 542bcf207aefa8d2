// Package recompute coordinates recompute requests from an interactive
// caller. Bursts are debounced, and only the result of the most recently
// dispatched request is ever delivered.
package recompute

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/chazu/panelcut/pkg/config"
	"github.com/chazu/panelcut/pkg/engine"
	"github.com/chazu/panelcut/pkg/panel"
	"github.com/rs/zerolog"
)

// Computer produces cut panels. *engine.Engine implements it.
type Computer interface {
	CreatePanelWithCuts(ctx context.Context, d panel.Dimensions, cuts []panel.Cut) (*engine.PanelResult, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// OnResult registers the callback for delivered results.
func OnResult(f func(*engine.PanelResult)) Option {
	return func(c *Coordinator) { c.onResult = f }
}

// OnError registers the callback for delivered errors.
func OnError(f func(error)) Option {
	return func(c *Coordinator) { c.onError = f }
}

type inputs struct {
	dims panel.Dimensions
	cuts []panel.Cut
}

// Coordinator debounces requests, tags each dispatch with an epoch and
// drops results whose epoch is no longer current. Callbacks run on
// dispatch goroutines, one at a time.
type Coordinator struct {
	c        Computer
	timeout  time.Duration
	debounce func(func())
	log      zerolog.Logger
	onResult func(*engine.PanelResult)
	onError  func(error)

	mu      sync.Mutex
	epoch   uint64
	applied string
	latest  *inputs

	deliverMu sync.Mutex
	inflight  sync.WaitGroup
}

// New returns a Coordinator sending work to c, using the debounce interval
// and request timeout of cfg. A zero timeout leaves dispatches without a
// deadline of their own.
func New(c Computer, cfg config.EngineConfig, opts ...Option) *Coordinator {
	co := &Coordinator{
		c:        c,
		timeout:  cfg.RequestTimeout.Std(),
		debounce: debounce.New(cfg.Debounce.Std()),
		log:      zerolog.Nop(),
		onResult: func(*engine.PanelResult) {},
		onError:  func(error) {},
	}
	for _, o := range opts {
		o(co)
	}
	return co
}

// Request schedules a recompute after the debounce interval. Requests
// arriving within the interval replace each other; only the last is sent.
func (co *Coordinator) Request(d panel.Dimensions, cuts []panel.Cut) {
	co.mu.Lock()
	co.latest = &inputs{dims: d, cuts: append([]panel.Cut(nil), cuts...)}
	co.mu.Unlock()
	co.debounce(co.flush)
}

func (co *Coordinator) flush() {
	co.mu.Lock()
	in := co.latest
	co.latest = nil
	co.mu.Unlock()
	if in != nil {
		co.dispatch(in.dims, in.cuts)
	}
}

// RequestNow dispatches a recompute immediately.
func (co *Coordinator) RequestNow(d panel.Dimensions, cuts []panel.Cut) {
	co.dispatch(d, append([]panel.Cut(nil), cuts...))
}

// Epoch returns the number of dispatches so far, skipped ones included.
func (co *Coordinator) Epoch() uint64 {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.epoch
}

// Wait blocks until every dispatched request has finished. Requests still
// inside the debounce interval are not waited for.
func (co *Coordinator) Wait() {
	co.inflight.Wait()
}

func (co *Coordinator) dispatch(d panel.Dimensions, cuts []panel.Cut) {
	sig, err := panel.Signature(d, cuts)

	co.mu.Lock()
	co.epoch++
	epoch := co.epoch
	if err == nil && sig == co.applied {
		co.mu.Unlock()
		co.log.Debug().Uint64("epoch", epoch).Msg("inputs unchanged, recompute skipped")
		return
	}
	co.inflight.Add(1)
	co.mu.Unlock()

	if err != nil {
		go func() {
			defer co.inflight.Done()
			co.deliver(epoch, "", nil, err)
		}()
		return
	}

	go func() {
		defer co.inflight.Done()
		ctx, cancel := co.dispatchContext()
		defer cancel()
		res, err := co.c.CreatePanelWithCuts(ctx, d, cuts)
		co.deliver(epoch, sig, res, err)
	}()
}

func (co *Coordinator) dispatchContext() (context.Context, context.CancelFunc) {
	if co.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), co.timeout)
}

func (co *Coordinator) deliver(epoch uint64, sig string, res *engine.PanelResult, err error) {
	co.deliverMu.Lock()
	defer co.deliverMu.Unlock()

	co.mu.Lock()
	if epoch != co.epoch {
		current := co.epoch
		co.mu.Unlock()
		co.log.Debug().Uint64("epoch", epoch).Uint64("current", current).Msg("stale result discarded")
		return
	}
	if err != nil {
		co.applied = ""
	} else {
		co.applied = sig
	}
	co.mu.Unlock()

	if err != nil {
		co.log.Warn().Uint64("epoch", epoch).Err(err).Msg("recompute failed")
		co.onError(err)
		return
	}
	co.onResult(res)
}
