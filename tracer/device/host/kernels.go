package host

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/tracer/layout"
)

// A kernelFunc resolves the bound arguments into typed views and returns the
// function executed for each work item.
type kernelFunc func(args []interface{}) (func(i int), error)

// The kernels exposed by the host device. Names and argument order match the
// entrypoints of the OpenCL kernel sources.
var kernels = map[string]kernelFunc{
	"initCountersForExtend":  bindInitCountersForExtend,
	"initCountersSubsequent": bindInitCountersSubsequent,
	"traceRays":              bindTraceRays,
	"shade":                  bindShade,
	"finalize":               bindFinalize,
}

func memArg[T any](args []interface{}, index int) ([]T, error) {
	if index >= len(args) {
		return nil, fmt.Errorf("%w: missing arg %d", device.ErrInvalidArg, index)
	}
	mem, ok := args[index].(*memory)
	if !ok {
		return nil, fmt.Errorf("%w: arg %d: expected memory; got %T", device.ErrInvalidArg, index, args[index])
	}
	return view[T](mem), nil
}

// Resolve a list of memory args into views, stopping at the first error.
type argReader struct {
	args []interface{}
	err  error
}

func readArg[T any](r *argReader, index int) []T {
	if r.err != nil {
		return nil
	}
	var out []T
	out, r.err = memArg[T](r.args, index)
	return out
}

func paramsArg(r *argReader, index int) *layout.Params {
	params := readArg[layout.Params](r, index)
	if r.err == nil && len(params) == 0 {
		r.err = fmt.Errorf("%w: arg %d: params buffer too small", device.ErrInvalidArg, index)
	}
	if r.err != nil {
		return nil
	}
	return &params[0]
}

// initCountersForExtend(counters, params)
func bindInitCountersForExtend(args []interface{}) (func(int), error) {
	r := &argReader{args: args}
	counters := readArg[layout.Counters](r, 0)
	params := paramsArg(r, 1)
	if r.err != nil {
		return nil, r.err
	}

	return func(int) {
		c := &counters[0]
		c.ActivePaths = params.PathCount
		c.ExtensionRays = 0
		c.ShadowRays = 0
		c.TotalExtensionRays = params.PathCount
		c.ProbedInstID = -1
		c.ProbedTriID = -1
		c.ProbedDist = 0
	}, nil
}

// initCountersSubsequent(counters)
func bindInitCountersSubsequent(args []interface{}) (func(int), error) {
	r := &argReader{args: args}
	counters := readArg[layout.Counters](r, 0)
	if r.err != nil {
		return nil, r.err
	}

	return func(int) {
		c := &counters[0]
		c.TotalExtensionRays += c.ExtensionRays
		c.ActivePaths = c.ExtensionRays
		c.ExtensionRays = 0
	}, nil
}

// finalize(params, accumulator, output)
func bindFinalize(args []interface{}) (func(int), error) {
	r := &argReader{args: args}
	params := paramsArg(r, 0)
	accumulator := readArg[[4]float32](r, 1)
	output := readArg[uint32](r, 2)
	if r.err != nil {
		return nil, r.err
	}

	scale := float32(0)
	if params.Pass > 0 {
		scale = 1 / float32(params.Pass)
	}
	stride := int(params.PixelStride)

	return func(i int) {
		direct, indirect := accumulator[i], accumulator[i+stride]
		var rgb [3]uint32
		for c := 0; c < 3; c++ {
			v := math32.Sqrt(math32.Max((direct[c]+indirect[c])*scale, 0))
			v = (v-0.5)*(1+params.Contrast) + 0.5 + params.Brightness
			rgb[c] = uint32(math32.Min(math32.Max(v, 0), 1)*255 + 0.5)
		}
		output[i] = rgb[0] | rgb[1]<<8 | rgb[2]<<16 | 0xff<<24
	}, nil
}

func atomicAddFloat32(addr *float32, delta float32) {
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		next := math32.Float32bits(math32.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(p, old, next) {
			return
		}
	}
}

// Record an exception. Only the first exception of a frame keeps its details.
func raise(exc []layout.Exception, code, item uint32, value int32) {
	e := &exc[0]
	if atomic.AddUint32(&e.Count, 1) == 1 {
		e.Code = code
		e.Item = item
		e.Value = value
	}
}
