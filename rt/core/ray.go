package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type TraceMode uint8

const (
	// ClosestHit returns the nearest intersection along the ray.
	ClosestHit TraceMode = iota
	// AnyHit returns the first intersection found. Used for occlusion queries.
	AnyHit
)

func (m TraceMode) String() string {
	switch m {
	case ClosestHit:
		return "closest"
	case AnyHit:
		return "any"
	}
	return "unknown"
}

// NoInstance is the InstanceID of hits reported by a BLAS traced directly.
const NoInstance = math.MaxUint32

// Ray is a parametric ray origin + t*dir valid over [TMin, TMax]. Dir is not
// required to be unit length; t is measured in multiples of Dir.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
	InvDir mgl32.Vec3
	TMin   float32
	TMax   float32
}

// NewRay builds an unbounded ray starting at the origin.
func NewRay(origin, dir mgl32.Vec3) Ray {
	return NewSegment(origin, dir, 0, posInf)
}

func NewSegment(origin, dir mgl32.Vec3, tMin, tMax float32) Ray {
	return Ray{
		Origin: origin,
		Dir:    dir,
		InvDir: reciprocal(dir),
		TMin:   tMin,
		TMax:   tMax,
	}
}

func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Transform maps the ray through m. The direction is not renormalized, so a
// hit at t in the transformed space is the same point at t in the original
// space for any affine m.
func (r Ray) Transform(m mgl32.Mat4) Ray {
	dir := TransformVector(m, r.Dir)
	return Ray{
		Origin: TransformPoint(m, r.Origin),
		Dir:    dir,
		InvDir: reciprocal(dir),
		TMin:   r.TMin,
		TMax:   r.TMax,
	}
}

// reciprocal relies on IEEE division: 1/±0 is ±Inf.
func reciprocal(d mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{1 / d[0], 1 / d[1], 1 / d[2]}
}

func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12],
		m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13],
		m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14],
	}
}

func TransformVector(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*v[0] + m[4]*v[1] + m[8]*v[2],
		m[1]*v[0] + m[5]*v[1] + m[9]*v[2],
		m[2]*v[0] + m[6]*v[1] + m[10]*v[2],
	}
}

// Hit is a geometric intersection record.
type Hit struct {
	InstanceID  uint32
	PrimitiveID uint32
	T           float32
	// Barycentric holds (w, u, v) with w = 1-u-v, weighting V0, V1, V2.
	Barycentric mgl32.Vec3
	// Normal is the unit geometric normal in world space, or zero for a
	// degenerate primitive.
	Normal mgl32.Vec3
}

// Point reconstructs the world space hit position for the ray that produced h.
func (h Hit) Point(r Ray) mgl32.Vec3 {
	return r.At(h.T)
}
