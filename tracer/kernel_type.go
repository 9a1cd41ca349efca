package tracer

import "fmt"

type kernelType uint8

// The list of kernels that implement the tracer.
const (
	// counter kernels
	initCountersForExtend kernelType = iota
	initCountersSubsequent
	// trace kernel; the phase param selects spawn, extend or connect
	traceRays
	// shading kernel
	shade
	// presentation
	finalize
	//
	numKernels
)

// Implements Stringer; map kernel type to the kernel entrypoint name.
func (kt kernelType) String() string {
	switch kt {
	case initCountersForExtend:
		return "initCountersForExtend"
	case initCountersSubsequent:
		return "initCountersSubsequent"
	case traceRays:
		return "traceRays"
	case shade:
		return "shade"
	case finalize:
		return "finalize"
	default:
		panic(fmt.Sprintf("Unsupported kernel type: %d", kt))
	}
}
