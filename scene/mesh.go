package scene

import (
	"github.com/achilleasa/wavefront/tracer/layout"
	"github.com/achilleasa/wavefront/types"
)

// Per-triangle attributes. Positions live in the mesh vertex list, three
// consecutive vertices per triangle.
type Triangle struct {
	UV       [3]types.Vec2
	Material uint32

	// Index of the area light emitted by this triangle or -1.
	LightIdx int32
}

// A triangle mesh.
type Mesh struct {
	Vertices   []types.Vec4
	Triangles  []Triangle
	AlphaFlags []uint32

	// Index of the first mesh triangle in the packed triangle buffer.
	triOffset uint32
}

// Local space bounds of triangle i.
func (m *Mesh) TriangleBounds(i int) (lo, hi types.Vec3) {
	v0, v1, v2 := m.Vertices[3*i].Vec3(), m.Vertices[3*i+1].Vec3(), m.Vertices[3*i+2].Vec3()
	return types.MinVec3(v0, types.MinVec3(v1, v2)), types.MaxVec3(v0, types.MaxVec3(v1, v2))
}

// Convert triangle i to its device representation.
func (m *Mesh) packTriangle(i int) layout.Triangle {
	v0, v1, v2 := m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]
	e1 := v1.Vec3().Sub(v0.Vec3())
	e2 := v2.Vec3().Sub(v0.Vec3())
	cross := e1.Cross(e2)
	tri := m.Triangles[i]
	return layout.Triangle{
		V0:       v0,
		V1:       v1,
		V2:       v2,
		Normal:   cross.Normalize().Vec4(cross.Len() * 0.5),
		UV:       tri.UV,
		Material: tri.Material,
		LightIdx: tri.LightIdx,
	}
}

// An instance places a mesh in the world.
type Instance struct {
	Mesh         int
	Transform    types.Mat4
	InvTransform types.Mat4
}
