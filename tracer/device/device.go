// Package device abstracts the compute device that runs the tracer kernels.
// Backends register themselves by name and are opened through Open.
package device

import (
	"fmt"
	"strings"
	"time"
)

type DeviceType uint8

// Supported device types.
const (
	CpuDevice DeviceType = 1 << iota
	GpuDevice
	OtherDevice
	AllDevices DeviceType = 0xFF
)

func (dt DeviceType) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	case AllDevices:
		return "All"
	}
	panic("device: unsupported device type")
}

// Info describes a compute device.
type Info struct {
	Name         string
	Backend      string
	Type         DeviceType
	ComputeUnits int

	// The compute capability tier of the device. Kernels compiled for one
	// tier are not reused on another.
	Tier string
}

// Implements Stringer.
func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s, %d compute units, tier %s)", i.Name, i.Backend, i.Type, i.ComputeUnits, i.Tier)
}

// Memory is a linear device allocation.
type Memory interface {
	// Allocation size in bytes.
	Size() int

	// Copy data into the allocation starting at the given byte offset.
	Write(offset int, data []byte) error

	// Copy len(data) bytes starting at the given byte offset into data.
	Read(offset int, data []byte) error

	// Zero the allocation.
	Clear() error

	// Free the allocation. Any kernel still bound to it fails with ErrReleased.
	Release()
}

// Kernel is a compiled compute kernel. Supported argument types are Memory,
// int32, uint32 and float32.
type Kernel interface {
	Name() string

	// Bind kernel arguments. Bindings persist across Exec1D calls.
	SetArgs(args ...interface{}) error

	// Run the kernel over globalWorkSize work items and block until it
	// completes. A zero work size is a no-op. A localWorkSize of 0 lets the
	// backend pick a work group size.
	Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error)

	Release()
}

// Device is an opened compute device. A device and everything allocated from
// it is owned by a single goroutine.
type Device interface {
	Info() Info

	// Allocate size bytes of zeroed device memory. The name is used for
	// error reporting.
	Alloc(name string, size int) (Memory, error)

	// Look up a kernel by its entrypoint name.
	Kernel(name string) (Kernel, error)

	// Block until all enqueued work completes.
	Synchronize() error

	// Release the device and all resources allocated through it.
	Close() error
}

// ValidationLevel controls kernel side validation.
type ValidationLevel uint8

const (
	// Kernels perform no checks.
	ValidationNone ValidationLevel = iota

	// Kernels record out of range accesses in an exception buffer that is
	// reported after each frame.
	ValidationReport
)

func (vl ValidationLevel) String() string {
	switch vl {
	case ValidationNone:
		return "none"
	case ValidationReport:
		return "report"
	}
	panic("device: unsupported validation level")
}

// Parse a validation level name.
func ParseValidationLevel(name string) (ValidationLevel, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return ValidationNone, nil
	case "report":
		return ValidationReport, nil
	}
	return ValidationNone, fmt.Errorf("device: unknown validation level %q", name)
}

// Options passed to a backend when opening a device.
type Options struct {
	// Select the first device whose name contains this value.
	Name string

	// Skip devices whose names contain any of these values.
	Blacklist []string

	// Device type mask; zero selects all types.
	Type DeviceType

	// Number of worker goroutines used by software backends; zero uses
	// all available CPUs.
	Workers int

	Validation ValidationLevel

	// Directory for kernel program caches. An empty value disables caching.
	KernelCacheDir string
}

// Match returns true if a device with the given name and type passes the
// name, blacklist and type filters.
func (o Options) Match(name string, devType DeviceType) bool {
	if o.Type != 0 && o.Type&devType == 0 {
		return false
	}
	for _, bl := range o.Blacklist {
		if bl != "" && strings.Contains(name, bl) {
			return false
		}
	}
	return o.Name == "" || strings.Contains(name, o.Name)
}
