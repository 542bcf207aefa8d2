package cutting

import (
	"fmt"

	"github.com/chazu/panelcut/pkg/config"
	"github.com/chazu/panelcut/pkg/kernel"
	"github.com/chazu/panelcut/pkg/panel"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Stage is a step of a pipeline run.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageBuildingShapes
	StageSubtracting
	StageAggregating
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageValidating:
		return "validating"
	case StageBuildingShapes:
		return "building-shapes"
	case StageSubtracting:
		return "subtracting"
	case StageAggregating:
		return "aggregating"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// CuttingInfo aggregates one run. Counts and totals cover every attempted
// cut specification, including failed ones, since they describe what was
// asked for. TotalCutArea and TotalCutVolume count one footprint per
// specification.
type CuttingInfo struct {
	TotalCuts       int      `json:"totalCuts"`
	RectangularCuts int      `json:"rectangularCuts"`
	CircularCuts    int      `json:"circularCuts"`
	TotalCutArea    float64  `json:"totalCutArea"`
	TotalCutVolume  float64  `json:"totalCutVolume"`
	FailedCuts      []string `json:"failedCuts"`
	TotalInstances  int      `json:"totalInstances"`
}

// Result is the output of a successful run.
type Result struct {
	Solid    kernel.Solid
	Info     CuttingInfo
	Warnings []panel.ValidationError
}

// Observer is told about every stage transition. cut is the index of the
// cut being subtracted during StageSubtracting and -1 otherwise.
type Observer func(stage Stage, cut int)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for stage and failure events.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithObserver registers a stage observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observe = o }
}

// Pipeline runs validation, shape building and sequential subtraction.
// It is not safe for concurrent use; neither are the kernels it drives.
type Pipeline struct {
	k       kernel.Kernel
	builder *Builder
	geom    config.GeometryConfig
	log     zerolog.Logger
	observe Observer
}

// NewPipeline returns a Pipeline over k.
func NewPipeline(k kernel.Kernel, geom config.GeometryConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		k:       k,
		builder: NewBuilder(k, geom),
		geom:    geom,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Builder returns the shape builder bound to the pipeline's kernel.
func (p *Pipeline) Builder() *Builder { return p.builder }

func (p *Pipeline) enter(stage Stage, cut int) {
	ev := p.log.Debug().Stringer("stage", stage)
	if cut >= 0 {
		ev = ev.Int("cut", cut)
	}
	ev.Msg("pipeline stage")
	if p.observe != nil {
		p.observe(stage, cut)
	}
}

// Run validates the request and cuts the panel. Configuration errors and a
// failure to build the panel itself are returned as errors; a cut that
// cannot be built or subtracted is listed in Info.FailedCuts instead.
func (p *Pipeline) Run(d panel.Dimensions, cuts []panel.Cut) (*Result, error) {
	p.enter(StageValidating, -1)
	warnings, err := panel.Validate(d, cuts, p.geom.SafetyMargin)
	if err != nil {
		p.enter(StageFailed, -1)
		return nil, err
	}
	for _, w := range warnings {
		p.log.Warn().Str("cut", w.CutID).Msg(w.Message)
	}

	running, err := p.builder.Panel(d)
	if err != nil {
		p.enter(StageFailed, -1)
		return nil, err
	}

	p.enter(StageBuildingShapes, -1)
	failed := make(map[int]bool)
	shapes := make([]kernel.Solid, len(cuts))
	for i, c := range cuts {
		s, err := p.builder.Build(c, d.Thickness)
		if err != nil {
			p.log.Warn().Str("cut", c.ID).Err(err).Msg("cut shape failed")
			failed[i] = true
			continue
		}
		shapes[i] = s
	}

	for i, c := range cuts {
		if failed[i] {
			continue
		}
		p.enter(StageSubtracting, i)
		next, err := p.subtract(running, shapes[i])
		if err != nil {
			p.log.Warn().Str("cut", c.ID).Err(err).Msg("boolean subtraction failed, cut skipped")
			failed[i] = true
			continue
		}
		running = next
	}

	p.enter(StageAggregating, -1)
	info := aggregate(cuts, failed)

	p.enter(StageDone, -1)
	p.log.Debug().
		Int("cuts", info.TotalCuts).
		Int("instances", info.TotalInstances).
		Int("failed", len(info.FailedCuts)).
		Msg("pipeline finished")
	return &Result{Solid: running, Info: info, Warnings: warnings}, nil
}

// subtract wraps Difference so a kernel panic fails only the current cut.
func (p *Pipeline) subtract(a, b kernel.Solid) (result kernel.Solid, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("cutting: kernel panic: %v", r)
		}
	}()
	result, err = p.k.Difference(a, b)
	if err == nil && result == nil {
		err = kernel.ErrEmptySolid
	}
	return result, err
}

func aggregate(cuts []panel.Cut, failed map[int]bool) CuttingInfo {
	info := CuttingInfo{
		TotalCuts: len(cuts),
		RectangularCuts: lo.CountBy(cuts, func(c panel.Cut) bool {
			return c.Shape.Kind() == panel.KindRectangle
		}),
		CircularCuts: lo.CountBy(cuts, func(c panel.Cut) bool {
			return c.Shape.Kind() == panel.KindCircle
		}),
		TotalCutArea: lo.SumBy(cuts, func(c panel.Cut) float64 {
			return c.FootprintArea()
		}),
		TotalCutVolume: lo.SumBy(cuts, func(c panel.Cut) float64 {
			return c.FootprintArea() * c.Depth
		}),
		TotalInstances: lo.SumBy(cuts, func(c panel.Cut) int {
			return c.Instances()
		}),
		FailedCuts: []string{},
	}
	for i, c := range cuts {
		if failed[i] {
			info.FailedCuts = append(info.FailedCuts, c.ID)
		}
	}
	return info
}
