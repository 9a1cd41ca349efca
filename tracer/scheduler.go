package tracer

import (
	"fmt"
	"time"

	"github.com/achilleasa/wavefront/scene"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

var exceptionNames = map[uint32]string{
	layout.ExcNone:               "none",
	layout.ExcInstanceRange:      "instance out of range",
	layout.ExcTriangleRange:      "triangle out of range",
	layout.ExcMaterialRange:      "material out of range",
	layout.ExcTexelRange:         "texel out of range",
	layout.ExcPathOverflow:       "path buffer overflow",
	layout.ExcConnectionOverflow: "connection buffer overflow",
}

// Render a frame. With Restart the accumulated image is discarded first;
// with Continue the frame adds spp samples per pixel to it. Brightness and
// contrast are applied when the accumulated image is presented.
func (tr *Tracer) Render(view scene.ViewPyramid, convergence Convergence, brightness, contrast float32) error {
	if tr.buffers == nil {
		return ErrClosed
	}
	if tr.surface == nil {
		return ErrNoTarget
	}

	start := time.Now()
	tr.stats.reset()

	if convergence == Restart {
		if err := tr.reset(); err != nil {
			return err
		}
	}

	if err := tr.syncScene(); err != nil {
		return err
	}

	if tr.boundGeneration != tr.buffers.generation {
		if err := tr.bindKernels(); err != nil {
			return err
		}
	}

	if tr.validation == device.ValidationReport {
		if err := tr.buffers.Exceptions.Clear(device.OnHost | device.OnDevice); err != nil {
			return err
		}
	}

	tr.setupParams(view, brightness, contrast)

	shadowRays, err := tr.traceBounces()
	if err != nil {
		return err
	}
	if err = tr.connect(shadowRays); err != nil {
		return err
	}
	if err = tr.present(); err != nil {
		return err
	}

	if tr.validation == device.ValidationReport {
		if err = tr.reportExceptions(); err != nil {
			return err
		}
	}

	tr.frame++
	tr.stats.SamplesTaken = tr.samplesTaken
	tr.stats.RenderTime = time.Since(start)
	tr.logger.Debugf("frame %d: %d spp, %d extension rays, %d shadow rays in %s", tr.frame, tr.samplesTaken, tr.stats.TotalExtensionRays, tr.stats.TotalShadowRays, tr.stats.RenderTime)

	return tr.runPostProcess()
}

// Upload dirty scene data and rebuild the acceleration structure.
func (tr *Tracer) syncScene() error {
	sc, bs := tr.scene, tr.buffers

	if sc.Consume(scene.DirtyGeometry) {
		if err := upload(bs, bs.Triangles, sc.Triangles()); err != nil {
			return err
		}
	}
	if sc.Consume(scene.DirtyTextures) {
		pools := sc.Texels()
		if err := upload(bs, bs.TexARGB32, pools.ARGB32); err != nil {
			return err
		}
		if err := upload(bs, bs.TexARGB128, pools.ARGB128); err != nil {
			return err
		}
		if err := upload(bs, bs.TexNRM32, pools.NRM32); err != nil {
			return err
		}
	}
	if sc.Consume(scene.DirtyMaterials) {
		if err := upload(bs, bs.Materials, sc.Materials()); err != nil {
			return err
		}
	}
	if sc.Consume(scene.DirtyLights) {
		lights := sc.Lights()
		if err := upload(bs, bs.AreaLights, lights.Area); err != nil {
			return err
		}
		if err := upload(bs, bs.PointLights, lights.Point); err != nil {
			return err
		}
		if err := upload(bs, bs.SpotLights, lights.Spot); err != nil {
			return err
		}
		if err := upload(bs, bs.DirLights, lights.Directional); err != nil {
			return err
		}
	}
	if sc.Consume(scene.DirtySky) {
		var sky []types.Vec4
		sky, tr.skyW, tr.skyH = sc.Sky()
		if err := upload(bs, bs.Sky, sky); err != nil {
			return err
		}
	}
	if descs, dirty := sc.ConsumeInstances(); dirty {
		if err := bs.UploadInstances(descs); err != nil {
			return err
		}
	}

	tr.accel.UpdateToplevel()
	if tr.accel.Build() {
		if err := upload(bs, bs.BvhNodes, tr.accel.Nodes()); err != nil {
			return err
		}
		if err := upload(bs, bs.BvhIndices, tr.accel.Indices()); err != nil {
			return err
		}
		if err := upload(bs, bs.MeshRoots, tr.accel.MeshRoots()); err != nil {
			return err
		}
		tr.logger.Debugf("uploaded BVH with %d nodes and %d indices", len(tr.accel.Nodes()), len(tr.accel.Indices()))
	}
	return nil
}

// Publish the current device allocations to every kernel.
func (tr *Tracer) bindKernels() error {
	bs := tr.buffers
	args := [numKernels][]interface{}{
		initCountersForExtend: {
			bs.Counters.DevPtr(),
			bs.Params.DevPtr(),
		},
		initCountersSubsequent: {
			bs.Counters.DevPtr(),
		},
		traceRays: {
			bs.Params.DevPtr(),
			bs.Counters.DevPtr(),
			bs.Paths.DevPtr(),
			bs.Hits.DevPtr(),
			bs.Connections.DevPtr(),
			bs.Accumulator.DevPtr(),
			bs.Instances.DevPtr(),
			bs.BvhNodes.DevPtr(),
			bs.BvhIndices.DevPtr(),
			bs.MeshRoots.DevPtr(),
			bs.Triangles.DevPtr(),
			bs.BlueNoise.DevPtr(),
			bs.Exceptions.DevPtr(),
		},
		shade: {
			bs.Params.DevPtr(),
			bs.Counters.DevPtr(),
			bs.Paths.DevPtr(),
			bs.Hits.DevPtr(),
			bs.Connections.DevPtr(),
			bs.Accumulator.DevPtr(),
			bs.Instances.DevPtr(),
			bs.Triangles.DevPtr(),
			bs.Materials.DevPtr(),
			bs.TexARGB32.DevPtr(),
			bs.TexARGB128.DevPtr(),
			bs.TexNRM32.DevPtr(),
			bs.AreaLights.DevPtr(),
			bs.PointLights.DevPtr(),
			bs.SpotLights.DevPtr(),
			bs.DirLights.DevPtr(),
			bs.Sky.DevPtr(),
			bs.Exceptions.DevPtr(),
		},
		finalize: {
			bs.Params.DevPtr(),
			bs.Accumulator.DevPtr(),
			bs.Output.DevPtr(),
		},
	}

	for kt, kernelArgs := range args {
		if err := tr.kernels[kt].SetArgs(kernelArgs...); err != nil {
			return fmt.Errorf("tracer: binding args of %s: %w", kernelType(kt), err)
		}
	}
	tr.boundGeneration = bs.generation
	return nil
}

// Fill the frame invariant part of the dispatch params.
func (tr *Tracer) setupParams(view scene.ViewPyramid, brightness, contrast float32) {
	bs := tr.buffers
	p := &bs.Params.HostPtr()[0]

	p.PosLensSize = view.Pos.Vec4(view.Aperture)
	p.Right = view.P2.Sub(view.P1).Vec4(view.SpreadAngle)
	p.Up = view.P3.Sub(view.P1).Vec4(0)
	p.P1 = view.P1.Vec4(1)

	p.Width = uint32(tr.width)
	p.Height = uint32(tr.height)
	p.SamplesPerPixel = uint32(tr.spp)
	p.Pass = tr.samplesTaken

	p.ProbePixel = tr.probePixel
	p.PathStride = uint32(bs.PathStride())
	p.PixelStride = uint32(tr.width * tr.height)
	p.MaxPathLength = layout.MaxPathLength

	p.Epsilon = tr.settings.Epsilon
	p.ClampValue = tr.settings.ClampValue
	p.Brightness = brightness
	p.Contrast = contrast

	p.AreaLights = uint32(bs.AreaLights.Len())
	p.PointLights = uint32(bs.PointLights.Len())
	p.SpotLights = uint32(bs.SpotLights.Len())
	p.DirectionalLights = uint32(bs.DirLights.Len())

	p.SkyWidth = uint32(tr.skyW)
	p.SkyHeight = uint32(tr.skyH)
	p.Validate = 0
	if tr.validation == device.ValidationReport {
		p.Validate = 1
	}
	p.InstanceCount = uint32(bs.Instances.Len())
	p.BlueNoiseSize = blueNoiseSize

	// Buffers only grow, so kernels bound their lookups by the live counts.
	p.TriangleCount = uint32(bs.Triangles.Len())
	p.MaterialCount = uint32(bs.Materials.Len())
	p.TexARGB32Texels = uint32(bs.TexARGB32.Len())
	p.TexARGB128Texels = uint32(bs.TexARGB128.Len())
	p.TexNRM32Texels = uint32(bs.TexNRM32.Len())
}

// Run the extend/shade loop and return the number of emitted shadow rays.
func (tr *Tracer) traceBounces() (uint32, error) {
	p := &tr.buffers.Params.HostPtr()[0]
	pathCount := uint32(tr.width * tr.height * tr.spp)

	// Camera rays get their own seed.
	p.Seed = layout.RandomUInt(&tr.seed)

	var shadowRays uint32
	for pathLength := uint32(1); pathLength <= layout.MaxPathLength; pathLength++ {
		p.PathLength = pathLength
		p.PathCount = pathCount
		tr.stats.PathCount[pathLength-1] = pathCount

		if pathLength == 1 {
			p.Phase = layout.PhaseSpawn
			if _, err := tr.dispatch(initCountersForExtend, 1); err != nil {
				return 0, err
			}
			tr.stats.PrimaryRays = pathCount
		} else {
			p.Phase = layout.PhaseExtend
			if _, err := tr.dispatch(initCountersSubsequent, 1); err != nil {
				return 0, err
			}
			if pathLength == 2 {
				tr.stats.Bounce1Rays = pathCount
			} else {
				tr.stats.DeepRays += pathCount
			}
		}

		elapsed, err := tr.dispatch(traceRays, pathCount)
		if err != nil {
			return 0, err
		}
		tr.stats.addTraceTime(pathLength, elapsed)

		p.Seed = layout.RandomUInt(&tr.seed)
		if elapsed, err = tr.dispatch(shade, pathCount); err != nil {
			return 0, err
		}
		tr.stats.ShadeTime += elapsed

		counters, err := tr.readCounters()
		if err != nil {
			return 0, err
		}
		tr.stats.ShadowDeltas[pathLength-1] = counters.ShadowRays - shadowRays
		shadowRays = counters.ShadowRays
		if pathLength == 1 {
			tr.stats.ProbedInstID = counters.ProbedInstID
			tr.stats.ProbedTriID = counters.ProbedTriID
			tr.stats.ProbedDist = counters.ProbedDist
		}

		pathCount = counters.ExtensionRays
		if pathCount == 0 {
			break
		}
	}
	return shadowRays, nil
}

// Trace the shadow rays emitted while shading and accumulate the
// contribution of the unoccluded ones.
func (tr *Tracer) connect(shadowRays uint32) error {
	p := &tr.buffers.Params.HostPtr()[0]

	dispatchSize := shadowRays
	if capacity := uint32(tr.buffers.ConnectionCapacity()); dispatchSize > capacity {
		tr.logger.Warningf("dropping %d shadow rays that exceed the connection buffer capacity (%d)", dispatchSize-capacity, capacity)
		dispatchSize = capacity
	}

	p.Phase = layout.PhaseConnect
	p.PathCount = dispatchSize
	elapsed, err := tr.dispatch(traceRays, dispatchSize)
	if err != nil {
		return err
	}

	counters, err := tr.readCounters()
	if err != nil {
		return err
	}
	tr.stats.ShadowTraceTime = elapsed
	tr.stats.ConnectDispatch = dispatchSize
	tr.stats.TotalShadowRays = shadowRays
	tr.stats.TotalExtensionRays = counters.TotalExtensionRays
	return nil
}

// Finalize the accumulated image and blit it to the bound surface.
func (tr *Tracer) present() (err error) {
	tick := time.Now()
	bs := tr.buffers
	p := &bs.Params.HostPtr()[0]

	if err = tr.surface.Bind(); err != nil {
		return err
	}
	defer func() {
		if unbindErr := tr.surface.Unbind(); err == nil {
			err = unbindErr
		}
	}()

	tr.samplesTaken += uint32(tr.spp)
	p.Pass = tr.samplesTaken

	pixels := tr.width * tr.height
	if _, err = tr.dispatch(finalize, uint32(pixels)); err != nil {
		return err
	}
	if err = bs.Output.CopyToHost(); err != nil {
		return err
	}
	if err = tr.surface.Blit(bs.Output.HostPtr()[:pixels]); err != nil {
		return err
	}

	tr.stats.PresentTime = time.Since(tick)
	return nil
}

// Log the exceptions recorded by the kernels during the frame.
func (tr *Tracer) reportExceptions() error {
	if err := tr.buffers.Exceptions.CopyToHost(); err != nil {
		return err
	}
	exc := tr.buffers.Exceptions.HostPtr()[0]
	if exc.Count == 0 {
		return nil
	}
	tr.logger.Warningf(
		"frame %d: kernels raised %d exception(s); first: %s (work item %d, value %d)",
		tr.frame+1, exc.Count, exceptionNames[exc.Code], exc.Item, exc.Value,
	)
	return nil
}

// Upload the params and run a kernel over workItems items.
func (tr *Tracer) dispatch(kt kernelType, workItems uint32) (time.Duration, error) {
	if err := tr.buffers.Params.CopyToDevice(); err != nil {
		return 0, err
	}
	elapsed, err := tr.kernels[kt].Exec1D(0, int(workItems), 0)
	if err != nil {
		return 0, fmt.Errorf("tracer: %s: %w", kt, err)
	}
	return elapsed, nil
}

func (tr *Tracer) readCounters() (layout.Counters, error) {
	if err := tr.buffers.Counters.CopyToHost(); err != nil {
		return layout.Counters{}, err
	}
	return tr.buffers.Counters.HostPtr()[0], nil
}
