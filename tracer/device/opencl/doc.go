// Package opencl implements the "opencl" device backend. The backend is only
// compiled with the opencl build tag; importing the package for its side
// effects registers it with the device registry.
package opencl
