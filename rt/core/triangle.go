package core

import "github.com/go-gl/mathgl/mgl32"

type Triangle struct {
	V0, V1, V2 mgl32.Vec3
}

func (t *Triangle) Bounds() AABB {
	return EmptyAABB().Grow(t.V0).Grow(t.V1).Grow(t.V2)
}

func (t *Triangle) Centroid() mgl32.Vec3 {
	return t.V0.Add(t.V1).Add(t.V2).Mul(1.0 / 3.0)
}

// Normal returns the unit geometric normal (counter-clockwise winding), or the
// zero vector when the triangle has no area.
func (t *Triangle) Normal() mgl32.Vec3 {
	n := t.V1.Sub(t.V0).Cross(t.V2.Sub(t.V0))
	l := n.Len()
	if l == 0 {
		return mgl32.Vec3{}
	}
	return n.Mul(1 / l)
}

// Intersect runs the Moller-Trumbore test against the open interval
// (r.TMin, tMax). Both faces are hit. A zero-area triangle has a zero
// determinant for every ray and never reports a hit.
func (t *Triangle) Intersect(r *Ray, tMax float32) (dist, u, v float32, ok bool) {
	e1 := t.V1.Sub(t.V0)
	e2 := t.V2.Sub(t.V0)
	h := r.Dir.Cross(e2)
	det := e1.Dot(h)
	if det == 0 {
		return 0, 0, 0, false
	}

	invDet := 1 / det
	s := r.Origin.Sub(t.V0)
	u = invDet * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(e1)
	v = invDet * r.Dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	dist = invDet * e2.Dot(q)
	if dist <= r.TMin || dist >= tMax {
		return 0, 0, 0, false
	}
	return dist, u, v, true
}
