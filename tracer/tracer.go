// Package tracer implements the wavefront path scheduler. It mirrors the
// scene into device buffers and drives the counter, trace, shade and
// finalize kernels to progressively refine the image bound to a Surface.
package tracer

import (
	"errors"
	"fmt"

	"github.com/achilleasa/wavefront/accel"
	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
)

// Seed of the frame random stream after a restart.
const initialSeed uint32 = 0x12345678

var (
	ErrNoTarget        = errors.New("tracer: no render target")
	ErrSurfaceNotBound = errors.New("tracer: surface not bound")
	ErrClosed          = errors.New("tracer: closed")
)

// Convergence selects whether a frame refines the accumulated image or
// starts over.
type Convergence uint8

const (
	Continue Convergence = iota
	Restart
)

func (c Convergence) String() string {
	if c == Restart {
		return "restart"
	}
	return "continue"
}

// A Surface receives the presented frames. Blit receives one packed RGBA8
// value per pixel (R in the low byte) in row-major order.
type Surface interface {
	Size() (width, height int)
	Bind() error
	Blit(pixels []uint32) error
	Unbind() error
}

// Tunable tracer settings.
type Settings struct {
	// Offset applied to secondary ray origins to avoid self intersections.
	Epsilon float32

	// Maximum radiance of a single sample; suppresses fireflies.
	ClampValue float32
}

func DefaultSettings() Settings {
	return Settings{
		Epsilon:    1e-4,
		ClampValue: 10,
	}
}

// Tracer options.
type Options struct {
	Settings   Settings
	Validation device.ValidationLevel

	// Stages executed after each presented frame.
	PostProcess []PipelineStage
}

// Tracer renders a scene on a compute device. A tracer is not safe for
// concurrent use.
type Tracer struct {
	logger log.Logger

	// The device associated with this tracer instance and its kernels.
	dev     device.Device
	kernels []device.Kernel

	// The allocated device buffers and the buffer generation the kernel
	// arguments were bound to.
	buffers         *bufferSet
	boundGeneration uint64

	// Scene sources.
	scene *scene.Scene
	accel *accel.Manager
	skyW  int
	skyH  int

	// Render target.
	surface Surface
	width   int
	height  int
	spp     int

	// Convergence state.
	samplesTaken uint32
	seed         uint32
	frame        uint64

	settings   Settings
	validation device.ValidationLevel
	probePixel int32

	stats       Stats
	postProcess []PipelineStage
}

// Create a tracer that renders the given scene on dev. The tracer does not
// take ownership of the device.
func New(dev device.Device, sc *scene.Scene, acc *accel.Manager, opts Options) (*Tracer, error) {
	if dev == nil || sc == nil || acc == nil {
		return nil, fmt.Errorf("tracer: invalid device or scene handle")
	}

	tr := &Tracer{
		logger:      log.New(fmt.Sprintf("tracer (%s)", dev.Info().Name)),
		dev:         dev,
		scene:       sc,
		accel:       acc,
		seed:        initialSeed,
		settings:    opts.Settings,
		validation:  opts.Validation,
		probePixel:  -1,
		postProcess: opts.PostProcess,
	}
	if tr.settings == (Settings{}) {
		tr.settings = DefaultSettings()
	}
	tr.stats.reset()

	var err error
	tr.buffers, err = newBufferSet(dev)
	if err != nil {
		tr.Close()
		return nil, err
	}

	// Load all tracer kernels
	tr.kernels = make([]device.Kernel, numKernels)
	for kt := kernelType(0); kt < numKernels; kt++ {
		tr.kernels[kt], err = dev.Kernel(kt.String())
		if err != nil {
			tr.Close()
			return nil, err
		}
	}

	return tr, nil
}

// Release all tracer resources. The device itself is left open.
func (tr *Tracer) Close() {
	if tr.buffers != nil {
		tr.buffers.Release()
		tr.buffers = nil
	}
	for _, kernel := range tr.kernels {
		if kernel != nil {
			kernel.Release()
		}
	}
	tr.kernels = nil
	tr.surface = nil
}

// Bind the render target. Frame buffers are regrown if needed and the
// accumulated image is discarded.
func (tr *Tracer) SetTarget(surface Surface, spp int) error {
	if tr.buffers == nil {
		return ErrClosed
	}
	if surface == nil {
		return ErrNoTarget
	}
	width, height := surface.Size()
	if spp <= 0 {
		spp = 1
	}

	resized, err := tr.buffers.Resize(width, height, spp)
	if err != nil {
		return err
	}
	if resized {
		tr.logger.Debugf("frame buffers resized to %d pixels at %d spp", tr.buffers.capacity, spp)
	}

	tr.surface = surface
	tr.width, tr.height, tr.spp = width, height, spp
	return tr.reset()
}

// Get the current settings.
func (tr *Tracer) Settings() Settings {
	return tr.settings
}

// Replace the tracer settings. They apply from the next frame.
func (tr *Tracer) SetSettings(settings Settings) {
	tr.settings = settings
}

// Select the pixel whose first sample reports its closest hit in the frame
// stats. Coordinates outside the target disable probing.
func (tr *Tracer) SetProbePos(x, y int) {
	if x < 0 || y < 0 || x >= tr.width || y >= tr.height {
		tr.probePixel = -1
		return
	}
	tr.probePixel = int32(y*tr.width + x)
}

// Get the statistics of the last rendered frame.
func (tr *Tracer) Stats() Stats {
	return tr.stats
}

// Number of accumulated samples per pixel.
func (tr *Tracer) SamplesTaken() uint32 {
	return tr.samplesTaken
}

// Discard the accumulated image and restart the random stream.
func (tr *Tracer) reset() error {
	if err := tr.buffers.Accumulator.Clear(device.OnDevice); err != nil {
		return err
	}
	tr.samplesTaken = 0
	tr.seed = initialSeed
	return nil
}
