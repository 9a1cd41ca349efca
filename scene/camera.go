package scene

import (
	"fmt"

	"github.com/achilleasa/wavefront/types"
)

// The view pyramid describes the camera image plane. P1, P2 and P3 are the
// top-left, top-right and bottom-left image plane corners in world space.
type ViewPyramid struct {
	Pos         types.Vec3
	P1          types.Vec3
	P2          types.Vec3
	P3          types.Vec3
	Aperture    float32
	SpreadAngle float32
}

func (v ViewPyramid) String() string {
	return fmt.Sprintf(
		"View pyramid:\nPos: (%3.3f, %3.3f, %3.3f)\nP1 : (%3.3f, %3.3f, %3.3f)\nP2 : (%3.3f, %3.3f, %3.3f)\nP3 : (%3.3f, %3.3f, %3.3f)",
		v.Pos[0], v.Pos[1], v.Pos[2],
		v.P1[0], v.P1[1], v.P1[2],
		v.P2[0], v.P2[1], v.P2[2],
		v.P3[0], v.P3[1], v.P3[2],
	)
}

// The camera type controls the scene camera.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3
	Pitch    float32
	Yaw      float32

	ViewMat types.Mat4
	ProjMat types.Mat4

	// Camera FOV in radians.
	FOV float32

	// Thin lens aperture; zero selects a pinhole camera.
	Aperture float32

	// Image plane corners relative to the camera position (TL, TR, BL).
	corners [3]types.Vec3
	height  int
}

func NewCamera(fov float32) *Camera {
	return &Camera{
		ViewMat:  types.Ident4(),
		ProjMat:  types.Ident4(),
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
	}
}

// Setup camera projection matrix for a frame of the given size.
func (c *Camera) SetupProjection(width, height int) {
	c.ProjMat = types.Perspective4(c.FOV, float32(width)/float32(height), 1, 1000)
	c.height = height
	c.Update()
}

// Update camera.
func (c *Camera) Update() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	pitchAxis := dir.Cross(c.Up)
	pitchQuat := types.QuatFromAxisAngle(pitchAxis, c.Pitch)
	yawQuat := types.QuatFromAxisAngle(c.Up, c.Yaw)

	orientQuat := pitchQuat.Mul(yawQuat).Normalize()

	dir = orientQuat.Rotate(dir)
	c.LookAt = c.Position.Add(dir)
	c.Pitch, c.Yaw = 0, 0

	c.ViewMat = types.LookAtV(c.Position, c.LookAt, c.Up)
	c.updateCorners()
}

// Generate the near plane corners by multiplying clip space vectors with the
// inverse proj/view matrix, applying perspective and subtracting the camera
// eye position.
func (c *Camera) updateCorners() {
	invProjViewMat := c.ProjMat.Mul4(c.ViewMat).Inv()
	for i, clip := range []types.Vec4{
		types.XYZW(-1, 1, -1, 1),
		types.XYZW(1, 1, -1, 1),
		types.XYZW(-1, -1, -1, 1),
	} {
		v := invProjViewMat.Mul4x1(clip)
		c.corners[i] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position)
	}
}

// Get the view pyramid for the current camera state.
func (c *Camera) ViewPyramid() ViewPyramid {
	view := ViewPyramid{
		Pos:      c.Position,
		P1:       c.Position.Add(c.corners[0]),
		P2:       c.Position.Add(c.corners[1]),
		P3:       c.Position.Add(c.corners[2]),
		Aperture: c.Aperture,
	}
	if c.height > 0 {
		view.SpreadAngle = c.FOV / float32(c.height)
	}
	return view
}
