// Package config holds the named tolerances and limits used across the
// engine, plus a JSON configuration file with defaults for everything.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Geometry defaults, in millimetres unless noted.
const (
	// Epsilon pads cut volumes on both ends so they strictly penetrate the
	// panel faces and no boolean operand shares a plane with the panel.
	Epsilon = 0.01
	// MeshDeflection is the linear deflection used for face triangulation.
	MeshDeflection = 0.5
	// EdgeDeflection is the linear deflection used for edge sampling.
	EdgeDeflection = 0.5
	// SafetyMargin is the gap kept between neighbouring grid instances.
	SafetyMargin = 1.0
	// MaxUint16Vertices is the largest vertex count addressable by 16-bit
	// indices. Above it indices wrap, so 32-bit indices are required.
	MaxUint16Vertices = 65535
	// MinCircleSegments and MaxCircleSegments bound cylinder faceting.
	MinCircleSegments = 16
	MaxCircleSegments = 256
)

// Engine defaults.
const (
	DefaultKernel         = KernelBSP
	DefaultRequestTimeout = 30 * time.Second
	DefaultDebounce       = 250 * time.Millisecond
	DefaultQueueSize      = 16
	DefaultLogLevel       = "info"
)

// Kernel backend names.
const (
	KernelBSP      = "bsp"
	KernelSDFX     = "sdfx"
	KernelManifold = "manifold"
)

// Kernels lists the accepted kernel backend names.
var Kernels = []string{KernelBSP, KernelSDFX, KernelManifold}

// Duration is a time.Duration that encodes to JSON as a string like "250ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Accept bare nanosecond numbers as well.
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return fmt.Errorf("config: duration must be a string like \"250ms\": %w", err)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GeometryConfig holds tolerances used by the cutting pipeline and the
// extractors.
type GeometryConfig struct {
	Epsilon           float64 `json:"epsilon"`
	MeshDeflection    float64 `json:"meshDeflection"`
	EdgeDeflection    float64 `json:"edgeDeflection"`
	SafetyMargin      float64 `json:"safetyMargin"`
	MaxUint16Vertices int     `json:"maxUint16Vertices"`
	MinCircleSegments int     `json:"minCircleSegments"`
	MaxCircleSegments int     `json:"maxCircleSegments"`
}

// EngineConfig selects the kernel and bounds request handling.
type EngineConfig struct {
	Kernel         string   `json:"kernel"`
	RequestTimeout Duration `json:"requestTimeout"`
	Debounce       Duration `json:"debounce"`
	QueueSize      int      `json:"queueSize"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

// Config is the complete configuration file.
type Config struct {
	Geometry GeometryConfig `json:"geometry"`
	Engine   EngineConfig   `json:"engine"`
	Log      LogConfig      `json:"log"`
}

// Default returns a Config populated with the package constants.
func Default() Config {
	return Config{
		Geometry: DefaultGeometry(),
		Engine: EngineConfig{
			Kernel:         DefaultKernel,
			RequestTimeout: Duration(DefaultRequestTimeout),
			Debounce:       Duration(DefaultDebounce),
			QueueSize:      DefaultQueueSize,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// DefaultGeometry returns the geometry tolerances.
func DefaultGeometry() GeometryConfig {
	return GeometryConfig{
		Epsilon:           Epsilon,
		MeshDeflection:    MeshDeflection,
		EdgeDeflection:    EdgeDeflection,
		SafetyMargin:      SafetyMargin,
		MaxUint16Vertices: MaxUint16Vertices,
		MinCircleSegments: MinCircleSegments,
		MaxCircleSegments: MaxCircleSegments,
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	g := c.Geometry
	if g.Epsilon <= 0 {
		errs = append(errs, fmt.Errorf("geometry.epsilon must be positive, got %g", g.Epsilon))
	}
	if g.MeshDeflection <= 0 {
		errs = append(errs, fmt.Errorf("geometry.meshDeflection must be positive, got %g", g.MeshDeflection))
	}
	if g.EdgeDeflection <= 0 {
		errs = append(errs, fmt.Errorf("geometry.edgeDeflection must be positive, got %g", g.EdgeDeflection))
	}
	if g.SafetyMargin < 0 {
		errs = append(errs, fmt.Errorf("geometry.safetyMargin must not be negative, got %g", g.SafetyMargin))
	}
	if g.MaxUint16Vertices <= 0 || g.MaxUint16Vertices > MaxUint16Vertices {
		errs = append(errs, fmt.Errorf("geometry.maxUint16Vertices must be in [1, %d], got %d", MaxUint16Vertices, g.MaxUint16Vertices))
	}
	if g.MinCircleSegments < 3 || g.MaxCircleSegments < g.MinCircleSegments {
		errs = append(errs, fmt.Errorf("geometry circle segments must satisfy 3 <= min <= max, got %d..%d", g.MinCircleSegments, g.MaxCircleSegments))
	}
	if !lo.Contains(Kernels, c.Engine.Kernel) {
		errs = append(errs, fmt.Errorf("engine.kernel %q is not one of %s", c.Engine.Kernel, strings.Join(Kernels, ", ")))
	}
	if c.Engine.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine.requestTimeout must be positive, got %s", c.Engine.RequestTimeout.Std()))
	}
	if c.Engine.Debounce < 0 {
		errs = append(errs, fmt.Errorf("engine.debounce must not be negative"))
	}
	if c.Engine.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("engine.queueSize must be at least 1, got %d", c.Engine.QueueSize))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultPath returns ~/.panelcut/config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".panelcut", "config.json")
}

// Load reads a Config from path. Fields absent from the file keep their
// defaults. A missing file returns Default with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Logger builds a zerolog.Logger writing to w. Console mode uses the
// human readable console writer; otherwise records are timestamped JSON.
func (l LogConfig) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("config: log level: %w", err)
	}
	if l.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
