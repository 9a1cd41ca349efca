// Package layout defines the fixed-size records shared between the host and
// the compute kernels. Every struct mirrors a struct in the kernel sources and
// its size is a multiple of 16 bytes so arrays keep float4 alignment.
package layout

import (
	"unsafe"

	"github.com/achilleasa/wavefront/types"
)

// Maximum number of bounces per path.
const MaxPathLength = 3

// Trace kernel phases.
const (
	PhaseSpawn   uint32 = 0
	PhaseExtend  uint32 = 1
	PhaseConnect uint32 = 2
)

// Accumulator channels.
const (
	ChannelDirect   uint32 = 0
	ChannelIndirect uint32 = 1
)

// The state of an in-flight light path.
type PathState struct {
	Origin     types.Vec4
	Direction  types.Vec4
	Throughput types.Vec4
	PixelIdx   uint32
	SampleIdx  uint32
	Seed       uint32
	pad        uint32
}

// The closest intersection of a path ray. Inst is negative for a miss.
type Hit struct {
	U    float32
	V    float32
	T    float32
	Inst int32
	Tri  int32
	pad  [3]uint32
}

// Miss returns true if the ray did not hit any geometry.
func (h *Hit) Miss() bool {
	return h.Inst < 0
}

// A shadow ray emitted while shading. The W component of Origin stores the
// maximum ray distance.
type Connection struct {
	Origin       types.Vec4
	Direction    types.Vec4
	Contribution types.Vec4
	PixelIdx     uint32
	Channel      uint32
	pad          [2]uint32
}

// Device-side atomic counters.
type Counters struct {
	ActivePaths        uint32
	ExtensionRays      uint32
	ShadowRays         uint32
	TotalExtensionRays uint32
	ProbedInstID       int32
	ProbedTriID        int32
	ProbedDist         float32
	pad                uint32
}

// Per-instance data needed to shade a hit.
type InstanceDesc struct {
	InvTransform types.Mat4
	TriOffset    uint32
	TriCount     uint32
	MeshIndex    uint32
	pad          uint32
}

// A shading-ready triangle.
type Triangle struct {
	V0       types.Vec4
	V1       types.Vec4
	V2       types.Vec4
	Normal   types.Vec4
	UV       [3]types.Vec2
	Material uint32
	LightIdx int32
}

// A flattened BVH node. For inner nodes LData and RData are the child node
// indices. Leaf nodes store -firstIndex in LData and the index count in RData.
type BvhNode struct {
	Min   types.Vec3
	LData int32
	Max   types.Vec3
	RData int32
}

// Texture slot indices of a material.
const (
	TexColor = iota
	TexNormal
	TexRoughness
	TexSpecularity
	TexMetallic
	TexTransmission
	TexEmission
	TexDetailColor
	TexReserved
	TexDetailNormal
	TexAlpha
	NumTextureSlots
)

// Texel storage pools.
const (
	StorageARGB32 uint32 = iota
	StorageARGB128
	StorageNRM32
	NumStorageTypes
)

// A texture reference resolved to an absolute offset in a texel pool. Offset
// is negative when the slot is unused.
type TextureSlot struct {
	Offset  int32
	Width   uint32
	Height  uint32
	Storage uint32
}

// A shading-ready material.
type Material struct {
	Diffuse  types.Vec4
	Emission types.Vec4
	Params   types.Vec4
	Flags    uint32
	pad0     [3]uint32
	Textures [NumTextureSlots]TextureSlot
	pad1     [4]uint32
}

// Material flags.
const (
	MaterialEmissive uint32 = 1 << iota
)

type AreaLight struct {
	V0       types.Vec4
	V1       types.Vec4
	V2       types.Vec4
	Normal   types.Vec4 // W stores the triangle area
	Radiance types.Vec4
}

type PointLight struct {
	Position types.Vec4
	Radiance types.Vec4
}

// Position.W stores the cosine of the inner cone angle and Direction.W the
// cosine of the outer cone angle.
type SpotLight struct {
	Position  types.Vec4
	Direction types.Vec4
	Radiance  types.Vec4
}

type DirectionalLight struct {
	Direction types.Vec4
	Radiance  types.Vec4
}

// Exception codes recorded by kernels when validation is enabled.
const (
	ExcNone uint32 = iota
	ExcInstanceRange
	ExcTriangleRange
	ExcMaterialRange
	ExcTexelRange
	ExcPathOverflow
	ExcConnectionOverflow
)

// The first exception raised during a frame plus the total count.
type Exception struct {
	Count uint32
	Code  uint32
	Item  uint32
	Value int32
}

// The dispatch parameter block.
type Params struct {
	PosLensSize types.Vec4 // camera position; W stores the aperture
	Right       types.Vec4 // p2 - p1; W stores the spread angle
	Up          types.Vec4 // p3 - p1
	P1          types.Vec4

	Width           uint32
	Height          uint32
	SamplesPerPixel uint32
	Pass            uint32

	PathLength uint32
	Phase      uint32
	PathCount  uint32
	Seed       uint32

	ProbePixel    int32
	PathStride    uint32
	PixelStride   uint32
	MaxPathLength uint32

	Epsilon    float32
	ClampValue float32
	Brightness float32
	Contrast   float32

	AreaLights        uint32
	PointLights       uint32
	SpotLights        uint32
	DirectionalLights uint32

	SkyWidth      uint32
	SkyHeight     uint32
	Validate      uint32
	InstanceCount uint32

	BlueNoiseSize   uint32
	TriangleCount   uint32
	MaterialCount   uint32
	TexARGB32Texels uint32

	TexARGB128Texels uint32
	TexNRM32Texels   uint32
	pad              [2]uint32
}

// Record sizes in bytes.
var (
	SizeOfPathState        = int(unsafe.Sizeof(PathState{}))
	SizeOfHit              = int(unsafe.Sizeof(Hit{}))
	SizeOfConnection       = int(unsafe.Sizeof(Connection{}))
	SizeOfCounters         = int(unsafe.Sizeof(Counters{}))
	SizeOfInstanceDesc     = int(unsafe.Sizeof(InstanceDesc{}))
	SizeOfTriangle         = int(unsafe.Sizeof(Triangle{}))
	SizeOfBvhNode          = int(unsafe.Sizeof(BvhNode{}))
	SizeOfMaterial         = int(unsafe.Sizeof(Material{}))
	SizeOfAreaLight        = int(unsafe.Sizeof(AreaLight{}))
	SizeOfPointLight       = int(unsafe.Sizeof(PointLight{}))
	SizeOfSpotLight        = int(unsafe.Sizeof(SpotLight{}))
	SizeOfDirectionalLight = int(unsafe.Sizeof(DirectionalLight{}))
	SizeOfException        = int(unsafe.Sizeof(Exception{}))
	SizeOfParams           = int(unsafe.Sizeof(Params{}))
)
