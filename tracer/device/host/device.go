// Package host implements a software compute device that runs the tracer
// kernels as Go functions spread over a pool of worker goroutines.
package host

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/achilleasa/wavefront/log"
	"github.com/achilleasa/wavefront/tracer/device"
)

const backendName = "host"

var logger = log.New("host device")

func init() {
	device.Register(backendName, backend{})
}

type backend struct{}

func (backend) List() ([]device.Info, error) {
	return []device.Info{info(runtime.NumCPU())}, nil
}

func (backend) Open(opts device.Options) (device.Device, error) {
	inf := info(opts.Workers)
	if !opts.Match(inf.Name, inf.Type) {
		return nil, fmt.Errorf("%w: host device filtered out by options", device.ErrNoDevice)
	}
	return New(opts.Workers), nil
}

func info(workers int) device.Info {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return device.Info{
		Name:         fmt.Sprintf("Go host device (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Backend:      backendName,
		Type:         device.CpuDevice,
		ComputeUnits: workers,
		Tier:         "go-" + runtime.GOARCH,
	}
}

// Device runs kernels on the host CPU.
type Device struct {
	info    device.Info
	workers int
	closed  bool
}

// Create a host device using the given number of workers; zero or a negative
// value uses all available CPUs. A single worker executes work items in
// order which makes kernel output fully deterministic.
func New(workers int) *Device {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Device{
		info:    info(workers),
		workers: workers,
	}
}

func (d *Device) Info() device.Info {
	return d.info
}

func (d *Device) Alloc(name string, size int) (device.Memory, error) {
	if d.closed {
		return nil, fmt.Errorf("host device: alloc %s on closed device", name)
	}
	if size <= 0 {
		return nil, fmt.Errorf("host device: invalid size %d for buffer %s", size, name)
	}
	return &memory{
		name: name,
		size: size,
		data: make([]uint64, (size+7)/8),
	}, nil
}

func (d *Device) Kernel(name string) (device.Kernel, error) {
	fn, ok := kernels[name]
	if !ok {
		return nil, fmt.Errorf("host device: %w %q", device.ErrUnknownKernel, name)
	}
	return &kernel{dev: d, name: name, bind: fn}, nil
}

// Kernels run synchronously so there is never outstanding work.
func (d *Device) Synchronize() error {
	return nil
}

func (d *Device) Close() error {
	d.closed = true
	return nil
}

// Split n work items into contiguous batches and run them on the worker pool.
func (d *Device) run(name string, offset, n int, work func(i int)) error {
	if d.workers == 1 {
		return safeRun(name, func() {
			for i := offset; i < offset+n; i++ {
				work(i)
			}
		})
	}

	batch := n / (d.workers * 4)
	if batch < 64 {
		batch = 64
	}

	var g errgroup.Group
	g.SetLimit(d.workers)
	for start := offset; start < offset+n; start += batch {
		from, to := start, start+batch
		if to > offset+n {
			to = offset + n
		}
		g.Go(func() error {
			return safeRun(name, func() {
				for i := from; i < to; i++ {
					work(i)
				}
			})
		})
	}
	return g.Wait()
}

// Convert a panic inside a kernel (e.g. an out of range access) into an error.
func safeRun(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host device: kernel %s aborted: %v", name, r)
		}
	}()
	fn()
	return nil
}

type kernel struct {
	dev  *Device
	name string
	bind kernelFunc
	args []interface{}
}

func (k *kernel) Name() string {
	return k.name
}

func (k *kernel) SetArgs(args ...interface{}) error {
	for argIndex, arg := range args {
		switch t := arg.(type) {
		case *memory:
			if t == nil {
				return fmt.Errorf("host device: %w: nil memory for arg %d of kernel %s", device.ErrInvalidArg, argIndex, k.name)
			}
		case int32, uint32, float32:
		default:
			return fmt.Errorf("host device: %w: unsupported type %T for arg %d of kernel %s", device.ErrInvalidArg, arg, argIndex, k.name)
		}
	}
	k.args = append(k.args[:0], args...)
	return nil
}

func (k *kernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	if globalWorkSize <= 0 {
		return 0, nil
	}

	for argIndex, arg := range k.args {
		if mem, ok := arg.(*memory); ok && mem.released {
			return 0, fmt.Errorf("host device: kernel %s arg %d (%s): %w", k.name, argIndex, mem.name, device.ErrReleased)
		}
	}

	tick := time.Now()
	work, err := k.bind(k.args)
	if err != nil {
		return 0, fmt.Errorf("host device: kernel %s: %w", k.name, err)
	}
	if err = k.dev.run(k.name, offset, globalWorkSize, work); err != nil {
		return 0, err
	}
	return time.Since(tick), nil
}

func (k *kernel) Release() {
	k.args = nil
}
