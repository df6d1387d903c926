package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an instance: scale about the origin, then rotate, then
// translate.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// ObjectToWorld composes Translate * Rotate * Scale.
func (t Transform) ObjectToWorld() mgl32.Mat4 {
	p, s := t.Position, t.Scale
	return mgl32.Translate3D(p[0], p[1], p[2]).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// WorldToObject is the exact inverse of ObjectToWorld, built factor by factor
// so it stays accurate for large translations and small scales where a general
// 4x4 inverse loses precision. Scale components must be non-zero.
func (t Transform) WorldToObject() mgl32.Mat4 {
	p, s := t.Position, t.Scale
	return mgl32.Scale3D(1/s[0], 1/s[1], 1/s[2]).
		Mul4(t.Rotation.Normalize().Conjugate().Mat4()).
		Mul4(mgl32.Translate3D(-p[0], -p[1], -p[2]))
}

// Matrices returns both directions at once.
func (t Transform) Matrices() (toWorld, toObject mgl32.Mat4) {
	return t.ObjectToWorld(), t.WorldToObject()
}

// NormalMatrix returns the inverse transpose of the linear part of m, which
// keeps normals perpendicular to surfaces under non-uniform scale.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	return m.Mat3().Inv().Transpose()
}

// TransformNormal maps a normal with the matrix from NormalMatrix and
// renormalizes it. Zero normals stay zero.
func TransformNormal(nm mgl32.Mat3, n mgl32.Vec3) mgl32.Vec3 {
	out := nm.Mul3x1(n)
	l := out.Len()
	if l == 0 {
		return mgl32.Vec3{}
	}
	return out.Mul(1 / l)
}
