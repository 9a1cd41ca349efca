//go:build opencl

package opencl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/tracer/kernelcache"
)

var logger = log.New("opencl")

func init() {
	device.Register("opencl", backend{})
}

type backend struct{}

// A platform device together with its description.
type candidate struct {
	dev  *cl.Device
	info device.Info
}

func enumerate() ([]candidate, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("opencl: could not query platforms: %w", err)
	}

	var list []candidate
	for _, p := range platforms {
		for _, typeSpec := range []struct {
			clType  cl.DeviceType
			devType device.DeviceType
		}{
			{cl.DeviceTypeGPU, device.GpuDevice},
			{cl.DeviceTypeCPU, device.CpuDevice},
		} {
			devices, err := p.GetDevices(typeSpec.clType)
			if err != nil && err != cl.ErrDeviceNotFound {
				logger.Warningf("skipping platform %s: %v", p.Name(), err)
				continue
			}
			for _, d := range devices {
				list = append(list, candidate{
					dev: d,
					info: device.Info{
						Name:         strings.TrimSpace(d.Name()),
						Backend:      "opencl",
						Type:         typeSpec.devType,
						ComputeUnits: d.MaxComputeUnits(),
						Tier:         tierOf(d),
					},
				})
			}
		}
	}
	return list, nil
}

// Devices sharing the same name and driver run the same compiled program.
func tierOf(d *cl.Device) string {
	return fmt.Sprintf("%s-%s", strings.TrimSpace(d.Name()), strings.TrimSpace(d.DriverVersion()))
}

func (backend) List() ([]device.Info, error) {
	candidates, err := enumerate()
	if err != nil {
		return nil, err
	}
	out := make([]device.Info, len(candidates))
	for i, c := range candidates {
		out[i] = c.info
	}
	return out, nil
}

func (backend) Open(opts device.Options) (device.Device, error) {
	candidates, err := enumerate()
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if opts.Match(c.info.Name, c.info.Type) {
			return open(c, opts)
		}
	}
	return nil, fmt.Errorf("opencl: %w", device.ErrNoDevice)
}

// Wrapper around an opencl device with its context, queue and program.
type clDevice struct {
	info     device.Info
	dev      *cl.Device
	ctx      *cl.Context
	cmdQueue *cl.CommandQueue
	program  *cl.Program
}

func open(c candidate, opts device.Options) (*clDevice, error) {
	d := &clDevice{info: c.info, dev: c.dev}

	var err error
	if d.ctx, err = cl.CreateContext([]*cl.Device{c.dev}); err != nil {
		return nil, fmt.Errorf("opencl device (%s): could not create context: %w", d.info.Name, err)
	}
	if d.cmdQueue, err = d.ctx.CreateCommandQueue(c.dev, 0); err != nil {
		d.Close()
		return nil, fmt.Errorf("opencl device (%s): could not create command queue: %w", d.info.Name, err)
	}

	source, err := d.programSource(opts)
	if err != nil {
		d.Close()
		return nil, err
	}
	if d.program, err = d.ctx.CreateProgramWithSource([]string{source}); err != nil {
		d.Close()
		return nil, fmt.Errorf("opencl device (%s): could not create program: %w", d.info.Name, err)
	}

	buildOpts := "-cl-fast-relaxed-math"
	if err = d.program.BuildProgram([]*cl.Device{c.dev}, buildOpts); err != nil {
		d.Close()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("opencl device (%s): could not build kernels:\n%s", d.info.Name, string(buildErr))
		}
		return nil, fmt.Errorf("opencl device (%s): could not build kernels: %w", d.info.Name, err)
	}

	logger.Noticef("opened %s", d.info)
	return d, nil
}

// Get the flattened kernel source, going through the kernel cache when one
// is configured. The binding exposes no program binaries, so the cache holds
// the flattened source and the program is still built on every open.
func (d *clDevice) programSource(opts device.Options) (string, error) {
	mainFile := mainKernelPath()
	if opts.KernelCacheDir == "" {
		prog, err := loadProgram(mainFile)
		if err != nil {
			return "", err
		}
		return string(prog.source), nil
	}

	sources, err := kernelSources(mainFile)
	if err != nil {
		return "", err
	}
	cacheFile := kernelcache.Path(opts.KernelCacheDir, d.info.Tier)
	stale, err := kernelcache.NeedsRecompile(cacheFile, sources...)
	if err != nil {
		return "", err
	}
	if !stale {
		blob, err := kernelcache.Load(cacheFile)
		if err == nil {
			logger.Debugf("loaded kernel source from %s", cacheFile)
			return string(blob), nil
		}
		logger.Warningf("ignoring kernel cache: %v", err)
	}

	prog, err := loadProgram(mainFile)
	if err != nil {
		return "", err
	}
	if err = kernelcache.Store(cacheFile, prog.source); err != nil {
		logger.Warningf("could not update kernel cache: %v", err)
	}
	return string(prog.source), nil
}

func (d *clDevice) Info() device.Info {
	return d.info
}

func (d *clDevice) Alloc(name string, size int) (device.Memory, error) {
	buf, err := d.ctx.CreateEmptyBuffer(cl.MemReadWrite, size)
	if err != nil {
		return nil, fmt.Errorf("opencl device (%s): could not allocate %d bytes for %s: %w", d.info.Name, size, name, err)
	}
	m := &memory{dev: d, name: name, size: size, buf: buf}
	if err = m.Clear(); err != nil {
		m.Release()
		return nil, err
	}
	return m, nil
}

func (d *clDevice) Kernel(name string) (device.Kernel, error) {
	k, err := d.program.CreateKernel(name)
	if err != nil {
		return nil, fmt.Errorf("opencl device (%s): %w: %s: %v", d.info.Name, device.ErrUnknownKernel, name, err)
	}
	return &kernel{dev: d, name: name, handle: k}, nil
}

func (d *clDevice) Synchronize() error {
	if err := d.cmdQueue.Finish(); err != nil {
		return fmt.Errorf("opencl device (%s): %w", d.info.Name, err)
	}
	return nil
}

func (d *clDevice) Close() error {
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
	if d.cmdQueue != nil {
		d.cmdQueue.Release()
		d.cmdQueue = nil
	}
	if d.ctx != nil {
		d.ctx.Release()
		d.ctx = nil
	}
	return nil
}
