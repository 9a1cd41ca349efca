package types

import "testing"

func TestMat4Inverse(t *testing.T) {
	m := Translate4(XYZ(1, 2, 3)).Mul4(Scale4(XYZ(2, 2, 2)))
	inv := m.Inv()

	if !m.Mul4(inv).ApproxEqual(Ident4()) {
		t.Fatalf("expected m * inv(m) to be the identity; got %v", m.Mul4(inv))
	}

	p := m.TransformPoint(XYZ(1, 1, 1))
	if exp := XYZ(3, 4, 5); p != exp {
		t.Fatalf("expected transformed point to be %v; got %v", exp, p)
	}

	if back := inv.TransformPoint(p); back.Sub(XYZ(1, 1, 1)).Len() > 1e-5 {
		t.Fatalf("expected inverse to map %v back to (1, 1, 1); got %v", p, back)
	}

	d := m.TransformDirection(XYZ(0, 0, 1))
	if exp := XYZ(0, 0, 2); d != exp {
		t.Fatalf("expected translation not to affect directions; got %v", d)
	}
}

func TestMulTransposeDir(t *testing.T) {
	// Non-uniform scale: normals must be transformed by the inverse transpose.
	m := Scale4(XYZ(2, 1, 1))
	n := m.Inv().MulTransposeDir(XYZ(1, 1, 0)).Normalize()
	exp := XYZ(0.5, 1, 0).Normalize()
	if n.Sub(exp).Len() > 1e-5 {
		t.Fatalf("expected normal %v; got %v", exp, n)
	}
}

func TestVectorOps(t *testing.T) {
	v := XYZ(3, 0, 4)
	if v.Len() != 5 {
		t.Fatalf("expected length 5; got %f", v.Len())
	}
	if n := (Vec3{}).Normalize(); n != (Vec3{}) {
		t.Fatalf("expected normalizing a zero vector to yield a zero vector; got %v", n)
	}
	if c := XYZ(1, 0, 0).Cross(XYZ(0, 1, 0)); c != XYZ(0, 0, 1) {
		t.Fatalf("expected X cross Y to be Z; got %v", c)
	}
	if m := XYZ(0.1, 0.7, 0.3).MaxComponent(); m != 0.7 {
		t.Fatalf("expected max component 0.7; got %f", m)
	}
	min, max := MinVec3(XYZ(1, 5, -2), XYZ(2, 3, -4)), MaxVec3(XYZ(1, 5, -2), XYZ(2, 3, -4))
	if min != XYZ(1, 3, -4) || max != XYZ(2, 5, -2) {
		t.Fatalf("unexpected min/max: %v %v", min, max)
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(XYZ(0, 1, 0), 3.14159265/2)
	v := q.Rotate(XYZ(1, 0, 0))
	if v.Sub(XYZ(0, 0, -1)).Len() > 1e-5 {
		t.Fatalf("expected rotating X by 90 degrees around Y to yield -Z; got %v", v)
	}
}

func TestQuatMulNormalize(t *testing.T) {
	quarter := QuatFromAxisAngle(XYZ(0, 1, 0), 3.14159265/2)
	half := quarter.Mul(quarter)
	if v := half.Rotate(XYZ(1, 0, 0)); v.Sub(XYZ(-1, 0, 0)).Len() > 1e-5 {
		t.Fatalf("expected two quarter turns around Y to yield -X; got %v", v)
	}

	scaled := Quat{W: 2}
	if l := scaled.Normalize().Len(); l < 1-1e-6 || l > 1+1e-6 {
		t.Fatalf("expected unit length; got %f", l)
	}
	if got := (Quat{}).Normalize(); got != QuatIdent() {
		t.Fatalf("expected the zero quaternion to normalize to identity; got %v", got)
	}
}
