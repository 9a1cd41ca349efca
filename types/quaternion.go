package types

import "github.com/go-gl/mathgl/mgl32"

// A rotation quaternion used by the camera controller.
type Quat mgl32.Quat

// Identity quaternion.
func QuatIdent() Quat {
	return Quat(mgl32.QuatIdent())
}

// Create a quaternion for a rotation of angle radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	return Quat(mgl32.QuatRotate(angle, mgl32.Vec3(axis)))
}

// Rotate a vector by the rotation this quaternion represents.
func (q Quat) Rotate(v Vec3) Vec3 {
	return Vec3(mgl32.Quat(q).Rotate(mgl32.Vec3(v)))
}

// Multiply two quaternions. q.Mul(q2) applies q2 first.
func (q Quat) Mul(q2 Quat) Quat {
	return Quat(mgl32.Quat(q).Mul(mgl32.Quat(q2)))
}

// Norm of the quaternion.
func (q Quat) Len() float32 {
	return mgl32.Quat(q).Len()
}

// Get the unit quaternion. A zero quaternion normalizes to the identity.
func (q Quat) Normalize() Quat {
	return Quat(mgl32.Quat(q).Normalize())
}
