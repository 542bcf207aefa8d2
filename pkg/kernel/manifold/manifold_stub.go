//go:build !manifold

// Package manifold binds the Manifold C library as a geometry kernel.
// Without the "manifold" build tag only this stub is compiled and New
// reports ErrUnavailable, so callers can fall back to another backend.
package manifold

import (
	"errors"

	"github.com/chazu/panelcut/pkg/kernel"
)

// ErrUnavailable is returned by New when the binary was built without
// the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New always fails in stub builds.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
