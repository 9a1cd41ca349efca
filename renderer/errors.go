package renderer

import (
	"errors"

	"github.com/achilleasa/wavefront/tracer"
)

var (
	ErrNotInitialized  = errors.New("renderer: core not initialized")
	ErrNoTarget        = tracer.ErrNoTarget
	ErrSurfaceNotBound = tracer.ErrSurfaceNotBound
)
