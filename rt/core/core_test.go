package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitTriangle() Triangle {
	return Triangle{
		V0: mgl32.Vec3{0, 0, 0},
		V1: mgl32.Vec3{1, 0, 0},
		V2: mgl32.Vec3{0, 1, 0},
	}
}

func TestTriangleCentroidHit(t *testing.T) {
	tri := unitTriangle()
	c := tri.Centroid()
	ray := NewRay(mgl32.Vec3{c.X(), c.Y(), -5}, mgl32.Vec3{0, 0, 1})

	dist, u, v, ok := tri.Intersect(&ray, ray.TMax)
	require.True(t, ok)
	assert.InDelta(t, 5.0, dist, 1e-5)
	assert.InDelta(t, 1.0/3.0, u, 1e-5)
	assert.InDelta(t, 1.0/3.0, v, 1e-5)
	assert.InDelta(t, 1.0/3.0, 1-u-v, 1e-5)
}

func TestTriangleRespectsInterval(t *testing.T) {
	tri := unitTriangle()
	ray := NewSegment(mgl32.Vec3{0.2, 0.2, -5}, mgl32.Vec3{0, 0, 1}, 0, 4)
	_, _, _, ok := tri.Intersect(&ray, ray.TMax)
	assert.False(t, ok, "hit beyond TMax must be rejected")

	behind := NewRay(mgl32.Vec3{0.2, 0.2, 5}, mgl32.Vec3{0, 0, 1})
	_, _, _, ok = tri.Intersect(&behind, behind.TMax)
	assert.False(t, ok, "hit behind the origin must be rejected")
}

func TestDegenerateTriangleNeverHits(t *testing.T) {
	cases := []Triangle{
		{V0: mgl32.Vec3{1, 1, 1}, V1: mgl32.Vec3{1, 1, 1}, V2: mgl32.Vec3{1, 1, 1}},
		{V0: mgl32.Vec3{0, 0, 0}, V1: mgl32.Vec3{1, 0, 0}, V2: mgl32.Vec3{2, 0, 0}},
	}
	for _, tri := range cases {
		ray := NewRay(mgl32.Vec3{1, 0, -5}, mgl32.Vec3{0, 0, 1})
		_, _, _, ok := tri.Intersect(&ray, ray.TMax)
		assert.False(t, ok)
		assert.Equal(t, mgl32.Vec3{}, tri.Normal())

		b := tri.Bounds()
		assert.False(t, b.IsEmpty(), "degenerate triangles still have a (flat) box")
	}
}

func TestSlabAxisParallelRay(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}

	tests := []struct {
		name   string
		origin mgl32.Vec3
		dir    mgl32.Vec3
		hit    bool
		entry  float32
	}{
		{"straight in", mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 1}, true, 4},
		{"parallel outside", mgl32.Vec3{2, 0, -5}, mgl32.Vec3{0, 0, 1}, false, 0},
		{"origin on slab face", mgl32.Vec3{1, 0, -5}, mgl32.Vec3{0, 0, 1}, true, 4},
		{"negative zero", mgl32.Vec3{0, 0, 5}, mgl32.Vec3{float32(math.Copysign(0, -1)), 0, -1}, true, 4},
		{"pointing away", mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1}, false, 0},
		{"inside", mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ray := NewRay(tt.origin, tt.dir)
			entry, hit := box.Slab(&ray, ray.TMax)
			assert.Equal(t, tt.hit, hit)
			if tt.hit {
				assert.InDelta(t, tt.entry, entry, 1e-5)
			}
		})
	}
}

func TestSlabEmptyAndFlatBoxes(t *testing.T) {
	empty := EmptyAABB()
	for _, dir := range []mgl32.Vec3{{0, 0, 1}, {0, 0, -1}, {1, -1, 0.5}, {-1, 0, 0}} {
		ray := NewRay(mgl32.Vec3{0, 0, 0}, dir)
		_, hit := empty.Slab(&ray, ray.TMax)
		assert.False(t, hit, "empty box hit by %v", dir)
	}

	flat := AABB{Min: mgl32.Vec3{-1, -1, 0}, Max: mgl32.Vec3{1, 1, 0}}
	ray := NewRay(mgl32.Vec3{0, 0, -3}, mgl32.Vec3{0, 0, 1})
	entry, hit := flat.Slab(&ray, ray.TMax)
	assert.True(t, hit)
	assert.InDelta(t, 3.0, entry, 1e-6)

	point := AABB{Min: mgl32.Vec3{2, 2, 2}, Max: mgl32.Vec3{2, 2, 2}}
	_, hit = point.Slab(&ray, ray.TMax)
	assert.False(t, hit)
}

func TestSlabHonorsTMax(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, 9}, Max: mgl32.Vec3{1, 1, 11}}
	ray := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})
	_, hit := box.Slab(&ray, 5)
	assert.False(t, hit)
	_, hit = box.Slab(&ray, 10)
	assert.True(t, hit)
}

func TestSlabOnReturnedBox(t *testing.T) {
	tri := Triangle{V0: mgl32.Vec3{-1, -1, 4}, V1: mgl32.Vec3{1, -1, 4}, V2: mgl32.Vec3{0, 1, 6}}
	ray := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})
	entry, hit := tri.Bounds().Slab(&ray, ray.TMax)
	assert.True(t, hit)
	assert.InDelta(t, 4, entry, 1e-6)
}

func TestAABBTransformIsConservative(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	m := mgl32.Translate3D(10, 0, 0).Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(45)))
	out := box.Transform(m)

	assert.InDelta(t, 10-math.Sqrt2, out.Min.X(), 1e-5)
	assert.InDelta(t, 10+math.Sqrt2, out.Max.X(), 1e-5)
	assert.InDelta(t, -1, out.Min.Z(), 1e-5)
	assert.True(t, EmptyAABB().Transform(m).IsEmpty())
}

func TestRayTransformPreservesT(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{3, -2, 7}
	tr.Rotation = mgl32.QuatRotate(0.7, mgl32.Vec3{1, 2, 3}.Normalize())
	tr.Scale = mgl32.Vec3{2, 0.5, 3}

	world := NewRay(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0.3, -0.2, 0.9})
	local := world.Transform(tr.WorldToObject())

	for _, tv := range []float32{0, 1, 2.5, 10} {
		back := TransformPoint(tr.ObjectToWorld(), local.At(tv))
		assert.InDelta(t, 0, back.Sub(world.At(tv)).Len(), 1e-3, "t=%v", tv)
	}
}

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{10, 20, 30}
	tr.Scale = mgl32.Vec3{2, 2, 2}

	o2w := tr.ObjectToWorld()
	w2o := tr.WorldToObject()

	identity := o2w.Mul4(w2o)
	for i := 0; i < 4; i++ {
		if !closeEnough(identity.At(i, i), 1.0, 0.001) {
			t.Errorf("Identity matrix element [%d,%d] should be 1.0, got %f", i, i, identity.At(i, i))
		}
	}
}

func TestWorldToObjectMatchesInverse(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{-4, 12, 0.5}
	tr.Rotation = mgl32.QuatRotate(1.1, mgl32.Vec3{-2, 1, 4}.Normalize())
	tr.Scale = mgl32.Vec3{0.25, 3, 1.5}

	toWorld, toObject := tr.Matrices()
	general := toWorld.Inv()
	for i := range toObject {
		assert.InDelta(t, general[i], toObject[i], 1e-3, "element %d", i)
	}
	product := toWorld.Mul4(toObject)
	ident := mgl32.Ident4()
	for i := range product {
		assert.InDelta(t, ident[i], product[i], 1e-4, "element %d", i)
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// A plane tilted 45 degrees, squashed along X.
	m := mgl32.Scale3D(4, 1, 1)
	n := mgl32.Vec3{1, 1, 0}.Normalize()
	tangent := mgl32.Vec3{1, -1, 0}

	worldN := TransformNormal(NormalMatrix(m), n)
	worldTangent := TransformVector(m, tangent)

	assert.InDelta(t, 0, worldN.Dot(worldTangent), 1e-5)
	assert.InDelta(t, 1, worldN.Len(), 1e-5)
}

func closeEnough(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}
