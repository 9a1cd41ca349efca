//go:build opencl

package cmd

import (
	// Register the opencl device backend.
	_ "github.com/achilleasa/wavefront/tracer/device/opencl"
)
