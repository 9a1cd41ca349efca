package renderer

import (
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/device"
)

// The backend used when Options.Backend is empty.
const DefaultBackend = "host"

type Options struct {
	// Device backend name (see device.Backends).
	Backend string

	// Device selection, validation and kernel cache options.
	Device device.Options

	// Initial tracer settings. The zero value selects the defaults.
	Settings tracer.Settings

	// Stages executed after each presented frame.
	PostProcess []tracer.PipelineStage
}
