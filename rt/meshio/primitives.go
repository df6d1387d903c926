package meshio

import (
	"math"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// outward flips t when its winding makes the normal point towards center.
func outward(t core.Triangle, center mgl32.Vec3) core.Triangle {
	if t.Normal().Dot(t.Centroid().Sub(center)) < 0 {
		t.V1, t.V2 = t.V2, t.V1
	}
	return t
}

func quadTris(a, b, c, d, center mgl32.Vec3) []core.Triangle {
	return []core.Triangle{
		outward(core.Triangle{V0: a, V1: b, V2: c}, center),
		outward(core.Triangle{V0: a, V1: c, V2: d}, center),
	}
}

// Box returns the 12 triangles of an axis aligned box with outward normals.
func Box(minB, maxB mgl32.Vec3) []core.Triangle {
	c := minB.Add(maxB).Mul(0.5)
	p := func(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x, y, z} }
	x0, y0, z0 := minB.X(), minB.Y(), minB.Z()
	x1, y1, z1 := maxB.X(), maxB.Y(), maxB.Z()

	var out []core.Triangle
	out = append(out, quadTris(p(x0, y0, z0), p(x0, y1, z0), p(x0, y1, z1), p(x0, y0, z1), c)...)
	out = append(out, quadTris(p(x1, y0, z0), p(x1, y1, z0), p(x1, y1, z1), p(x1, y0, z1), c)...)
	out = append(out, quadTris(p(x0, y0, z0), p(x1, y0, z0), p(x1, y0, z1), p(x0, y0, z1), c)...)
	out = append(out, quadTris(p(x0, y1, z0), p(x1, y1, z0), p(x1, y1, z1), p(x0, y1, z1), c)...)
	out = append(out, quadTris(p(x0, y0, z0), p(x1, y0, z0), p(x1, y1, z0), p(x0, y1, z0), c)...)
	out = append(out, quadTris(p(x0, y0, z1), p(x1, y0, z1), p(x1, y1, z1), p(x0, y1, z1), c)...)
	return out
}

// Quad is a square of the given side in the XY plane facing +Z.
func Quad(center mgl32.Vec3, size float32) []core.Triangle {
	h := size / 2
	a := center.Add(mgl32.Vec3{-h, -h, 0})
	b := center.Add(mgl32.Vec3{h, -h, 0})
	c := center.Add(mgl32.Vec3{h, h, 0})
	d := center.Add(mgl32.Vec3{-h, h, 0})
	return []core.Triangle{{V0: a, V1: b, V2: c}, {V0: a, V1: c, V2: d}}
}

// basis returns two unit vectors perpendicular to axis and to each other.
func basis(axis mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	ref := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(axis.Dot(ref))) > 0.9 {
		ref = mgl32.Vec3{1, 0, 0}
	}
	u := axis.Cross(ref).Normalize()
	v := axis.Cross(u).Normalize()
	return u, v
}

// Cone builds a capped cone. base is the center of the base circle, tip is
// the apex.
func Cone(base, tip mgl32.Vec3, radius float32, segments int) []core.Triangle {
	segments = max(segments, 3)
	axis := tip.Sub(base)
	if axis.Len() == 0 {
		return nil
	}
	u, v := basis(axis.Normalize())
	center := base.Add(axis.Mul(0.25))

	ring := make([]mgl32.Vec3, segments)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(segments)
		s, c := math.Sincos(a)
		ring[i] = base.Add(u.Mul(radius * float32(c))).Add(v.Mul(radius * float32(s)))
	}

	out := make([]core.Triangle, 0, 2*segments)
	for i := range ring {
		a, b := ring[i], ring[(i+1)%segments]
		out = append(out,
			outward(core.Triangle{V0: a, V1: b, V2: tip}, center),
			outward(core.Triangle{V0: b, V1: a, V2: base}, center),
		)
	}
	return out
}

// Pyramid builds a square pyramid whose base has side size.
func Pyramid(base, tip mgl32.Vec3, size float32) []core.Triangle {
	axis := tip.Sub(base)
	if axis.Len() == 0 {
		return nil
	}
	u, v := basis(axis.Normalize())
	h := size / 2
	corners := [4]mgl32.Vec3{
		base.Add(u.Mul(-h)).Add(v.Mul(-h)),
		base.Add(u.Mul(h)).Add(v.Mul(-h)),
		base.Add(u.Mul(h)).Add(v.Mul(h)),
		base.Add(u.Mul(-h)).Add(v.Mul(h)),
	}
	center := base.Add(axis.Mul(0.25))

	out := make([]core.Triangle, 0, 6)
	for i := range corners {
		out = append(out, outward(core.Triangle{V0: corners[i], V1: corners[(i+1)%4], V2: tip}, center))
	}
	out = append(out, quadTris(corners[0], corners[1], corners[2], corners[3], center)...)
	return out
}
