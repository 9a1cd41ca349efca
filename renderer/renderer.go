// Package renderer exposes the render core to host applications. The host
// pushes scene data into a Core, binds an output surface and calls Render
// once per frame to progressively refine the image.
package renderer

import (
	"fmt"

	"github.com/achilleasa/wavefront/accel"
	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/types"

	// The host backend is always available.
	_ "github.com/achilleasa/wavefront/tracer/device/host"
)

type (
	Convergence = tracer.Convergence
	Settings    = tracer.Settings
	Stats       = tracer.Stats
)

const (
	Continue = tracer.Continue
	Restart  = tracer.Restart
)

var logger = log.New("renderer")

// Core is the render core. The zero value is ready for Init. A Core is not
// safe for concurrent use.
type Core struct {
	dev    device.Device
	scene  *scene.Scene
	accel  *accel.Manager
	tracer *tracer.Tracer
}

// Open the configured device and allocate the persistent tracer state.
// Calling Init on an initialized core shuts it down first.
func (c *Core) Init(opts Options) error {
	c.Shutdown()

	backend := opts.Backend
	if backend == "" {
		backend = DefaultBackend
	}
	dev, err := device.Open(backend, opts.Device)
	if err != nil {
		return err
	}
	logger.Noticef("using device %s", dev.Info())

	sc := scene.New()
	acc := accel.NewManager()
	tr, err := tracer.New(dev, sc, acc, tracer.Options{
		Settings:    opts.Settings,
		Validation:  opts.Device.Validation,
		PostProcess: opts.PostProcess,
	})
	if err != nil {
		dev.Close()
		return err
	}

	c.dev, c.scene, c.accel, c.tracer = dev, sc, acc, tr
	return nil
}

// Release the tracer and close the device.
func (c *Core) Shutdown() {
	if c.tracer != nil {
		c.tracer.Close()
	}
	if c.dev != nil {
		if err := c.dev.Close(); err != nil {
			logger.Warningf("error closing device: %v", err)
		}
	}
	c.dev, c.scene, c.accel, c.tracer = nil, nil, nil, nil
}

// Get info about the device used by the core.
func (c *Core) DeviceInfo() (device.Info, error) {
	if c.dev == nil {
		return device.Info{}, ErrNotInitialized
	}
	return c.dev.Info(), nil
}

// Bind the output surface and the number of samples per pixel per frame.
// The accumulated image is discarded.
func (c *Core) SetTarget(surface Surface, spp int) error {
	if c.tracer == nil {
		return ErrNotInitialized
	}
	return c.tracer.SetTarget(surface, spp)
}

// Set or replace the geometry of a mesh. Meshes are appended when meshIdx
// equals the mesh count.
func (c *Core) SetGeometry(meshIdx int, vertices []types.Vec4, triangles []scene.Triangle, alphaFlags []uint32) error {
	if c.scene == nil {
		return ErrNotInitialized
	}
	if err := c.scene.SetGeometry(meshIdx, vertices, triangles, alphaFlags); err != nil {
		return err
	}
	mesh, err := c.scene.Mesh(meshIdx)
	if err != nil {
		return err
	}
	return c.accel.SetMesh(meshIdx, mesh)
}

// Set or replace an instance of a mesh. Instances are appended when instIdx
// equals the instance count.
func (c *Core) SetInstance(instIdx, meshIdx int, transform types.Mat4) error {
	if c.scene == nil {
		return ErrNotInitialized
	}
	if err := c.scene.SetInstance(instIdx, meshIdx, transform); err != nil {
		return err
	}
	return c.accel.SetInstance(instIdx, meshIdx, transform)
}

func (c *Core) SetTextures(textures []scene.Texture) error {
	if c.scene == nil {
		return ErrNotInitialized
	}
	return c.scene.SetTextures(textures)
}

func (c *Core) SetMaterials(materials []scene.Material) error {
	if c.scene == nil {
		return ErrNotInitialized
	}
	return c.scene.SetMaterials(materials)
}

func (c *Core) SetLights(area []scene.AreaLight, point []scene.PointLight, spot []scene.SpotLight, directional []scene.DirectionalLight) error {
	if c.scene == nil {
		return ErrNotInitialized
	}
	c.scene.SetLights(area, point, spot, directional)
	return nil
}

// Replace the equirectangular sky map.
func (c *Core) SetSkyData(pixels []types.Vec3, width, height int) error {
	if c.scene == nil {
		return ErrNotInitialized
	}
	return c.scene.SetSkyData(pixels, width, height)
}

// Set a named setting. Supported names are "epsilon" and "clampValue";
// unknown names are ignored.
func (c *Core) Setting(name string, value float32) error {
	if c.tracer == nil {
		return ErrNotInitialized
	}
	settings := c.tracer.Settings()
	switch name {
	case "epsilon":
		settings.Epsilon = value
	case "clampValue":
		settings.ClampValue = value
	default:
		logger.Debugf("ignoring unknown setting %q", name)
		return nil
	}
	c.tracer.SetSettings(settings)
	return nil
}

func (c *Core) SetSettings(settings Settings) error {
	if c.tracer == nil {
		return ErrNotInitialized
	}
	c.tracer.SetSettings(settings)
	return nil
}

func (c *Core) Settings() (Settings, error) {
	if c.tracer == nil {
		return Settings{}, ErrNotInitialized
	}
	return c.tracer.Settings(), nil
}

// Select the pixel whose closest hit is reported in the frame stats.
func (c *Core) SetProbePos(x, y int) error {
	if c.tracer == nil {
		return ErrNotInitialized
	}
	c.tracer.SetProbePos(x, y)
	return nil
}

// Render a frame using the given view.
func (c *Core) Render(view scene.ViewPyramid, convergence Convergence, brightness, contrast float32) error {
	if c.tracer == nil {
		return ErrNotInitialized
	}
	if err := c.tracer.Render(view, convergence, brightness, contrast); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

// Get the statistics of the last rendered frame.
func (c *Core) Stats() (Stats, error) {
	if c.tracer == nil {
		return Stats{}, ErrNotInitialized
	}
	return c.tracer.Stats(), nil
}
