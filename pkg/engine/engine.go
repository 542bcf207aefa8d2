// Package engine owns a geometry kernel and serves panel requests on a
// single goroutine.
//
// The kernels are not reentrant, so every request is sent to the engine's
// run loop and executed there one at a time. Callers block on the reply or
// their context, whichever comes first. A request abandoned by its caller
// still runs to completion; its reply is simply dropped.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chazu/panelcut/pkg/config"
	"github.com/chazu/panelcut/pkg/cutting"
	"github.com/chazu/panelcut/pkg/extract"
	"github.com/chazu/panelcut/pkg/kernel"
	"github.com/chazu/panelcut/pkg/kernel/bsp"
	"github.com/chazu/panelcut/pkg/kernel/manifold"
	"github.com/chazu/panelcut/pkg/kernel/sdfx"
	"github.com/chazu/panelcut/pkg/panel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotReady is returned for requests made before Init succeeded.
	ErrNotReady = errors.New("engine: kernel not ready")
	// ErrClosed is returned for requests made after Close.
	ErrClosed = errors.New("engine: closed")
)

// BoxResult is the output of CreateBox.
type BoxResult struct {
	Geometry *extract.Geometry `json:"geometry"`
	Edges    []extract.Edge    `json:"edges"`
}

// PanelResult is the output of CreatePanelWithCuts. Results may be shared
// between callers through the cache and must not be modified.
type PanelResult struct {
	Geometry    *extract.Geometry       `json:"geometry"`
	Edges       []extract.Edge          `json:"edges"`
	CuttingInfo cutting.CuttingInfo     `json:"cuttingInfo"`
	Warnings    []panel.ValidationError `json:"warnings,omitempty"`
}

// KernelFactory creates the kernel named by the engine configuration.
type KernelFactory func(name string) (kernel.Kernel, error)

// NewKernel is the default KernelFactory.
func NewKernel(name string) (kernel.Kernel, error) {
	switch name {
	case config.KernelBSP:
		return bsp.New(), nil
	case config.KernelSDFX:
		return sdfx.New(), nil
	case config.KernelManifold:
		return manifold.New()
	default:
		return nil, fmt.Errorf("engine: unknown kernel %q", name)
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The pipeline and extractors log
// through it too.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithKernelFactory replaces NewKernel.
func WithKernelFactory(f KernelFactory) Option {
	return func(e *Engine) { e.factory = f }
}

type request struct {
	id    string
	op    string
	fn    func() (any, error)
	reply chan reply
}

type reply struct {
	v   any
	err error
}

// initFuture is resolved once by the run loop.
type initFuture struct {
	done chan struct{}
	err  error
}

// Engine is the explicit owner of one kernel context. It is safe for
// concurrent use; requests are serialised by its run loop.
type Engine struct {
	cfg     config.Config
	log     zerolog.Logger
	factory KernelFactory

	requests  chan request
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	initMu  sync.Mutex
	pending *initFuture
	ready   bool

	// Everything below is owned by the run loop.
	k         kernel.Kernel
	pipeline  *cutting.Pipeline
	extractor *extract.Extractor
	boxCache  cacheEntry[*BoxResult]
	cutCache  cacheEntry[*PanelResult]
}

type cacheEntry[T any] struct {
	signature string
	value     T
}

func (c *cacheEntry[T]) get(signature string) (T, bool) {
	var zero T
	if c.signature == "" || c.signature != signature {
		return zero, false
	}
	return c.value, true
}

func (c *cacheEntry[T]) put(signature string, v T) {
	c.signature, c.value = signature, v
}

// New validates cfg and starts the engine's run loop. The kernel is not
// created until Init.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		log:      zerolog.Nop(),
		factory:  NewKernel,
		requests: make(chan request, cfg.Engine.QueueSize),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	go e.loop()
	return e, nil
}

func (e *Engine) loop() {
	defer close(e.stopped)
	for {
		select {
		case r := <-e.requests:
			e.serve(r)
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) serve(r request) {
	start := time.Now()
	log := e.log.With().Str("request", r.id).Str("op", r.op).Logger()
	log.Debug().Msg("request started")

	v, err := func() (v any, err error) {
		defer func() {
			if p := recover(); p != nil {
				v, err = nil, fmt.Errorf("engine: %s panicked: %v", r.op, p)
			}
		}()
		return r.fn()
	}()

	ev := log.Debug()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Dur("took", time.Since(start)).Msg("request finished")
	r.reply <- reply{v: v, err: err}
}

// submit runs fn on the loop and waits for its reply.
func (e *Engine) submit(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	select {
	case <-e.quit:
		return nil, ErrClosed
	default:
	}
	r := request{id: uuid.NewString(), op: op, fn: fn, reply: make(chan reply, 1)}

	select {
	case e.requests <- r:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		return nil, ErrClosed
	}

	select {
	case rep := <-r.reply:
		return rep.v, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stopped:
		return nil, ErrClosed
	}
}

// Init brings the kernel up. Concurrent callers share one attempt; after
// a success every call returns true immediately. A failed attempt is not
// cached, so the next call tries again.
func (e *Engine) Init(ctx context.Context) (bool, error) {
	e.initMu.Lock()
	if e.ready {
		e.initMu.Unlock()
		return true, nil
	}
	f := e.pending
	if f == nil {
		f = &initFuture{done: make(chan struct{})}
		e.pending = f
		go e.bringUp(f)
	}
	e.initMu.Unlock()

	select {
	case <-f.done:
		if f.err != nil {
			return false, f.err
		}
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// bringUp resolves f from the run loop.
func (e *Engine) bringUp(f *initFuture) {
	_, err := e.submit(context.Background(), "init", func() (any, error) {
		k, err := e.factory(e.cfg.Engine.Kernel)
		if err != nil {
			return nil, err
		}
		e.k = k
		e.pipeline = cutting.NewPipeline(k, e.cfg.Geometry, cutting.WithLogger(e.log))
		e.extractor = extract.New(k, e.cfg.Geometry, extract.WithLogger(e.log))
		return nil, nil
	})

	e.initMu.Lock()
	if err == nil {
		e.ready = true
		e.log.Info().Str("kernel", e.cfg.Engine.Kernel).Msg("kernel ready")
	} else {
		e.log.Error().Err(err).Str("kernel", e.cfg.Engine.Kernel).Msg("kernel init failed")
	}
	e.pending = nil
	f.err = err
	e.initMu.Unlock()
	close(f.done)
}

// Ready reports whether Init has succeeded.
func (e *Engine) Ready() bool {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	return e.ready
}

func (e *Engine) call(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	select {
	case <-e.quit:
		return nil, ErrClosed
	default:
	}
	if !e.Ready() {
		return nil, ErrNotReady
	}
	return e.submit(ctx, op, fn)
}

// CreateBox returns the uncut panel.
func (e *Engine) CreateBox(ctx context.Context, d panel.Dimensions) (*BoxResult, error) {
	if errs := panel.ValidateDimensions(d); len(errs) > 0 {
		return nil, &panel.ConfigurationError{Errors: errs}
	}
	sig, err := panel.Signature(d, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	v, err := e.call(ctx, "create-box", func() (any, error) {
		if res, ok := e.boxCache.get(sig); ok {
			e.log.Debug().Msg("box unchanged, serving cached result")
			return res, nil
		}
		s, err := e.pipeline.Builder().Panel(d)
		if err != nil {
			return nil, err
		}
		res := &BoxResult{}
		var faces, edges extract.Stats
		res.Geometry, faces = e.extractor.Mesh(s)
		res.Edges, edges = e.extractor.Edges(s)
		e.log.Debug().
			Int("vertices", res.Geometry.VertexCount()).
			Int("skippedFaces", faces.Skipped).
			Int("edges", len(res.Edges)).
			Int("skippedEdges", edges.Skipped).
			Msg("extracted")
		e.boxCache.put(sig, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BoxResult), nil
}

// CreatePanelWithCuts runs the full pipeline. Configuration errors are
// returned before the request reaches the kernel. cuts is copied, so the
// caller may reuse it once the call returns.
func (e *Engine) CreatePanelWithCuts(ctx context.Context, d panel.Dimensions, cuts []panel.Cut) (*PanelResult, error) {
	cuts = slices.Clone(cuts)
	if _, err := panel.Validate(d, cuts, e.cfg.Geometry.SafetyMargin); err != nil {
		return nil, err
	}
	sig, err := panel.Signature(d, cuts)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	v, err := e.call(ctx, "create-panel-with-cuts", func() (any, error) {
		if res, ok := e.cutCache.get(sig); ok {
			e.log.Debug().Msg("inputs unchanged, serving cached result")
			return res, nil
		}
		out, err := e.pipeline.Run(d, cuts)
		if err != nil {
			return nil, err
		}
		res := &PanelResult{CuttingInfo: out.Info, Warnings: out.Warnings}
		var faces, edges extract.Stats
		res.Geometry, faces = e.extractor.Mesh(out.Solid)
		res.Edges, edges = e.extractor.Edges(out.Solid)
		e.log.Debug().
			Int("vertices", res.Geometry.VertexCount()).
			Int("skippedFaces", faces.Skipped).
			Int("edges", len(res.Edges)).
			Int("skippedEdges", edges.Skipped).
			Msg("extracted")
		e.cutCache.put(sig, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PanelResult), nil
}

// Close stops the run loop after the request it is executing, if any.
// Queued requests are not served. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.stopped
	return nil
}
