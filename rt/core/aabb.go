package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	posInf = float32(math.Inf(1))
	negInf = float32(math.Inf(-1))
)

// AABB is an axis aligned bounding box. An AABB with Min > Max on any axis is
// empty and never intersects a ray.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyAABB returns an inverted box that acts as the identity for Union.
func EmptyAABB() AABB {
	return AABB{
		Min: mgl32.Vec3{posInf, posInf, posInf},
		Max: mgl32.Vec3{negInf, negInf, negInf},
	}
}

func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b AABB) Grow(p mgl32.Vec3) AABB {
	return AABB{
		Min: mgl32.Vec3{min(b.Min[0], p[0]), min(b.Min[1], p[1]), min(b.Min[2], p[2])},
		Max: mgl32.Vec3{max(b.Max[0], p[0]), max(b.Max[1], p[1]), max(b.Max[2], p[2])},
	}
}

func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{min(b.Min[0], o.Min[0]), min(b.Min[1], o.Min[1]), min(b.Min[2], o.Min[2])},
		Max: mgl32.Vec3{max(b.Max[0], o.Max[0]), max(b.Max[1], o.Max[1]), max(b.Max[2], o.Max[2])},
	}
}

func (b AABB) Extent() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// HalfArea returns half the surface area of the box, which is all the SAH
// needs. Empty boxes have zero area.
func (b AABB) HalfArea() float32 {
	if b.IsEmpty() {
		return 0
	}
	e := b.Extent()
	return e[0]*e[1] + e[1]*e[2] + e[2]*e[0]
}

// LongestAxis returns 0, 1 or 2 for X, Y or Z.
func (b AABB) LongestAxis() int {
	e := b.Extent()
	axis := 0
	if e[1] > e[0] {
		axis = 1
	}
	if e[2] > e[axis] {
		axis = 2
	}
	return axis
}

// Contains reports whether o lies inside b. An empty o is contained in anything.
func (b AABB) Contains(o AABB) bool {
	if o.IsEmpty() {
		return true
	}
	for a := 0; a < 3; a++ {
		if o.Min[a] < b.Min[a] || o.Max[a] > b.Max[a] {
			return false
		}
	}
	return true
}

// Transform returns the box enclosing the 8 transformed corners of b. The
// result is conservative, not a refit of the underlying geometry.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	if b.IsEmpty() {
		return EmptyAABB()
	}
	corners := [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}

	out := EmptyAABB()
	for _, c := range corners {
		out = out.Grow(TransformPoint(m, c))
	}
	return out
}

// Slab intersects the ray with the box over [r.TMin, tMax] and returns the
// entry distance. Zero direction components yield infinite reciprocals which
// disable that axis; the NaN produced by 0*Inf fails every comparison and is
// ignored the same way.
func (b AABB) Slab(r *Ray, tMax float32) (float32, bool) {
	tNear, tFar := r.TMin, tMax
	for a := 0; a < 3; a++ {
		inv := r.InvDir[a]
		t0 := (b.Min[a] - r.Origin[a]) * inv
		t1 := (b.Max[a] - r.Origin[a]) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
	}
	return tNear, tNear <= tFar
}
