//go:build opencl

package opencl

import (
	"fmt"
	"time"

	"github.com/jgillich/go-opencl/cl"

	"github.com/achilleasa/wavefront/tracer/device"
)

// A wrapper around an opencl kernel handle.
type kernel struct {
	dev    *clDevice
	name   string
	handle *cl.Kernel

	// Bound memory args; checked before each dispatch.
	bound []*memory
}

func (k *kernel) Name() string {
	return k.name
}

// Bind arguments to the kernel.
func (k *kernel) SetArgs(args ...interface{}) error {
	k.bound = k.bound[:0]
	for argIndex, arg := range args {
		var err error
		switch v := arg.(type) {
		case *memory:
			if v.buf == nil {
				return fmt.Errorf("opencl kernel %s: arg %d (%s): %w", k.name, argIndex, v.name, device.ErrReleased)
			}
			k.bound = append(k.bound, v)
			err = k.handle.SetArgBuffer(argIndex, v.buf)
		case int32:
			err = k.handle.SetArgInt32(argIndex, v)
		case uint32:
			err = k.handle.SetArgUint32(argIndex, v)
		case float32:
			err = k.handle.SetArgFloat32(argIndex, v)
		default:
			return fmt.Errorf("opencl kernel %s: %w: arg %d has unsupported type %T", k.name, device.ErrInvalidArg, argIndex, arg)
		}
		if err != nil {
			return fmt.Errorf("opencl kernel %s: could not set arg %d: %w", k.name, argIndex, err)
		}
	}
	return nil
}

// Execute the kernel and wait for it to complete. If localWorkSize is 0 the
// opencl implementation picks the work group size.
func (k *kernel) Exec1D(offset, globalWorkSize, localWorkSize int) (time.Duration, error) {
	if globalWorkSize == 0 {
		return 0, nil
	}
	for _, m := range k.bound {
		if m.buf == nil {
			return 0, fmt.Errorf("opencl kernel %s: bound buffer %s: %w", k.name, m.name, device.ErrReleased)
		}
	}

	var offsets, localSizes []int
	if offset > 0 {
		offsets = []int{offset}
	}
	if localWorkSize > 0 {
		localSizes = []int{localWorkSize}
	}

	tick := time.Now()
	ev, err := k.dev.cmdQueue.EnqueueNDRangeKernel(k.handle, offsets, []int{globalWorkSize}, localSizes, nil)
	if err != nil {
		return 0, fmt.Errorf("opencl kernel %s: unable to execute: %w", k.name, err)
	}
	defer ev.Release()
	if err := k.dev.cmdQueue.Finish(); err != nil {
		return 0, fmt.Errorf("opencl kernel %s: did not complete successfully: %w", k.name, err)
	}
	return time.Since(tick), nil
}

func (k *kernel) Release() {
	if k.handle != nil {
		k.handle.Release()
		k.handle = nil
	}
}
