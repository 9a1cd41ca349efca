package tracer

import (
	"fmt"
	"math"

	"github.com/achilleasa/wavefront/tracer/device"
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Side of the square dither table used for primary ray jittering.
const blueNoiseSize = 64

type bufferSet struct {
	dev device.Device

	// Bumped whenever an allocation bound to a kernel is replaced.
	generation uint64

	// Scene data
	Instances   *device.Buffer[layout.InstanceDesc]
	Triangles   *device.Buffer[layout.Triangle]
	BvhNodes    *device.Buffer[layout.BvhNode]
	BvhIndices  *device.Buffer[uint32]
	MeshRoots   *device.Buffer[int32]
	Materials   *device.Buffer[layout.Material]
	TexARGB32   *device.Buffer[uint32]
	TexARGB128  *device.Buffer[types.Vec4]
	TexNRM32    *device.Buffer[uint32]
	AreaLights  *device.Buffer[layout.AreaLight]
	PointLights *device.Buffer[layout.PointLight]
	SpotLights  *device.Buffer[layout.SpotLight]
	DirLights   *device.Buffer[layout.DirectionalLight]
	Sky         *device.Buffer[types.Vec4]
	BlueNoise   *device.Buffer[uint32]

	// Dispatch params, counters and validation output
	Params     *device.Buffer[layout.Params]
	Counters   *device.Buffer[layout.Counters]
	Exceptions *device.Buffer[layout.Exception]

	// Frame data. Path states hold two halves of pathStride records.
	Paths       *device.Buffer[layout.PathState]
	Hits        *device.Buffer[layout.Hit]
	Connections *device.Buffer[layout.Connection]
	Accumulator *device.Buffer[types.Vec4]
	Output      *device.Buffer[uint32]

	// Pixel capacity and samples per pixel of the frame buffers.
	capacity int
	spp      int
}

// Allocate new buffer set. Frame buffers start with a single pixel; call
// Resize once the target size is known.
func newBufferSet(dev device.Device) (*bufferSet, error) {
	bs := &bufferSet{dev: dev, capacity: 1, spp: 1, generation: 1}
	if err := bs.alloc(); err != nil {
		bs.Release()
		return nil, err
	}
	return bs, nil
}

func (bs *bufferSet) alloc() error {
	var err error
	dev := bs.dev
	hostAndDev := device.OnHost | device.OnDevice

	// Scene data
	if bs.Instances, err = device.NewBuffer[layout.InstanceDesc](dev, "instances", 0, hostAndDev); err != nil {
		return err
	}
	if bs.Triangles, err = device.NewBuffer[layout.Triangle](dev, "triangles", 0, hostAndDev); err != nil {
		return err
	}
	if bs.BvhNodes, err = device.NewBuffer[layout.BvhNode](dev, "bvhNodes", 0, hostAndDev); err != nil {
		return err
	}
	if bs.BvhIndices, err = device.NewBuffer[uint32](dev, "bvhIndices", 0, hostAndDev); err != nil {
		return err
	}
	if bs.MeshRoots, err = device.NewBuffer[int32](dev, "meshRoots", 0, hostAndDev); err != nil {
		return err
	}
	if bs.Materials, err = device.NewBuffer[layout.Material](dev, "materials", 0, hostAndDev); err != nil {
		return err
	}
	if bs.TexARGB32, err = device.NewBuffer[uint32](dev, "texARGB32", 0, hostAndDev); err != nil {
		return err
	}
	if bs.TexARGB128, err = device.NewBuffer[types.Vec4](dev, "texARGB128", 0, hostAndDev); err != nil {
		return err
	}
	if bs.TexNRM32, err = device.NewBuffer[uint32](dev, "texNRM32", 0, hostAndDev); err != nil {
		return err
	}
	if bs.AreaLights, err = device.NewBuffer[layout.AreaLight](dev, "areaLights", 0, hostAndDev); err != nil {
		return err
	}
	if bs.PointLights, err = device.NewBuffer[layout.PointLight](dev, "pointLights", 0, hostAndDev); err != nil {
		return err
	}
	if bs.SpotLights, err = device.NewBuffer[layout.SpotLight](dev, "spotLights", 0, hostAndDev); err != nil {
		return err
	}
	if bs.DirLights, err = device.NewBuffer[layout.DirectionalLight](dev, "directionalLights", 0, hostAndDev); err != nil {
		return err
	}
	if bs.Sky, err = device.NewBuffer[types.Vec4](dev, "sky", 0, hostAndDev); err != nil {
		return err
	}
	if bs.BlueNoise, err = device.NewBuffer[uint32](dev, "blueNoise", 0, hostAndDev); err != nil {
		return err
	}
	if _, err = bs.BlueNoise.SetData(newBlueNoiseTable(blueNoiseSize)); err != nil {
		return err
	}

	// Params, counters and validation output
	if bs.Params, err = device.NewBuffer[layout.Params](dev, "params", 1, hostAndDev); err != nil {
		return err
	}
	if bs.Counters, err = device.NewBuffer[layout.Counters](dev, "counters", 1, hostAndDev); err != nil {
		return err
	}
	if bs.Exceptions, err = device.NewBuffer[layout.Exception](dev, "exceptions", 1, hostAndDev); err != nil {
		return err
	}

	// Frame data
	if bs.Paths, err = device.NewBuffer[layout.PathState](dev, "paths", 2, device.OnDevice); err != nil {
		return err
	}
	if bs.Hits, err = device.NewBuffer[layout.Hit](dev, "hits", 1, device.OnDevice); err != nil {
		return err
	}
	if bs.Connections, err = device.NewBuffer[layout.Connection](dev, "connections", layout.MaxPathLength, device.OnDevice); err != nil {
		return err
	}
	if bs.Accumulator, err = device.NewBuffer[types.Vec4](dev, "accumulator", 2, device.OnDevice); err != nil {
		return err
	}
	if bs.Output, err = device.NewBuffer[uint32](dev, "output", 1, hostAndDev); err != nil {
		return err
	}
	return nil
}

// Number of path states in each half of the path buffer.
func (bs *bufferSet) PathStride() int {
	return bs.capacity * bs.spp
}

// Number of shadow connections that fit the connection buffer.
func (bs *bufferSet) ConnectionCapacity() int {
	return bs.Connections.Len()
}

// Reallocate the frame buffers if the pixel count exceeds the current
// capacity or spp changed. The accumulator is cleared whenever the frame
// buffers are replaced. Returns true if any allocation changed.
func (bs *bufferSet) Resize(width, height, spp int) (bool, error) {
	if width <= 0 || height <= 0 || spp <= 0 {
		return false, fmt.Errorf("tracer: invalid frame size %dx%d@%dspp", width, height, spp)
	}

	pixels := width * height
	if pixels <= bs.capacity && spp == bs.spp {
		return false, nil
	}

	capacity := bs.capacity
	if pixels > capacity {
		capacity = device.GrowCapacity(pixels, capacity)
	}
	pathStride := capacity * spp

	if err := bs.Paths.Resize(2 * pathStride); err != nil {
		return false, err
	}
	// The previous path buffer is gone; kernels must be rebound even if a
	// later resize fails.
	bs.generation++

	if err := bs.Hits.Resize(pathStride); err != nil {
		return false, err
	}
	if err := bs.Connections.Resize(pathStride * layout.MaxPathLength); err != nil {
		return false, err
	}
	if err := bs.Accumulator.Resize(2 * capacity); err != nil {
		return false, err
	}
	if err := bs.Output.Resize(capacity); err != nil {
		return false, err
	}

	// Allocations are zeroed but a backend may recycle memory.
	if err := bs.Accumulator.Clear(device.OnDevice); err != nil {
		return false, err
	}

	bs.capacity, bs.spp = capacity, spp
	return true, nil
}

// Upload data to a scene buffer, bumping the generation when the buffer had
// to be reallocated.
func upload[T any](bs *bufferSet, buf *device.Buffer[T], data []T) error {
	reallocated, err := buf.SetData(data)
	if err != nil {
		return err
	}
	if reallocated {
		bs.generation++
	}
	return nil
}

// Upload instance descriptors. The descriptor buffer is regrown to twice the
// instance count when it is too small.
func (bs *bufferSet) UploadInstances(descs []layout.InstanceDesc) error {
	if len(descs) > bs.Instances.Capacity() {
		if err := bs.Instances.Resize(2 * len(descs)); err != nil {
			return err
		}
		bs.generation++
	}
	return upload(bs, bs.Instances, descs)
}

// Release all buffers.
func (bs *bufferSet) Release() {
	for _, release := range []func(){
		releaser(bs.Instances), releaser(bs.Triangles), releaser(bs.BvhNodes),
		releaser(bs.BvhIndices), releaser(bs.MeshRoots), releaser(bs.Materials),
		releaser(bs.TexARGB32), releaser(bs.TexARGB128), releaser(bs.TexNRM32),
		releaser(bs.AreaLights), releaser(bs.PointLights), releaser(bs.SpotLights),
		releaser(bs.DirLights), releaser(bs.Sky), releaser(bs.BlueNoise),
		releaser(bs.Params), releaser(bs.Counters), releaser(bs.Exceptions),
		releaser(bs.Paths), releaser(bs.Hits), releaser(bs.Connections),
		releaser(bs.Accumulator), releaser(bs.Output),
	} {
		release()
	}
	bs.generation++
}

func releaser[T any](buf *device.Buffer[T]) func() {
	return func() {
		if buf != nil {
			buf.Release()
		}
	}
}

// Generate a dither table of size*size entries. Each entry packs two 8-bit
// sample offsets taken from the R2 low discrepancy sequence so neighboring
// pixels receive well separated jitter offsets.
func newBlueNoiseTable(size int) []uint32 {
	const (
		a1 = 0.7548776662466927
		a2 = 0.5698402909980532
	)
	table := make([]uint32, size*size)
	for i := range table {
		n := float64(i)
		u := frac(0.5 + a1*n)
		v := frac(0.5 + a2*n)
		table[i] = uint32(u*256)&0xff | (uint32(v*256)&0xff)<<8
	}
	return table
}

func frac(v float64) float64 {
	return v - math.Floor(v)
}
