package bvh

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestBuilder(t testing.TB, cfg PoolConfig) *Builder {
	t.Helper()
	return NewBuilder(NewPools(cfg), DefaultBuildConfig(), nil)
}

func randVec(rng *rand.Rand, lo, hi float32) mgl32.Vec3 {
	return mgl32.Vec3{
		lo + rng.Float32()*(hi-lo),
		lo + rng.Float32()*(hi-lo),
		lo + rng.Float32()*(hi-lo),
	}
}

// randomSoup scatters n small triangles through a cube of the given half size.
func randomSoup(rng *rand.Rand, n int, spread, size float32) []core.Triangle {
	tris := make([]core.Triangle, n)
	for i := range tris {
		c := randVec(rng, -spread, spread)
		tris[i] = core.Triangle{
			V0: c.Add(randVec(rng, -size, size)),
			V1: c.Add(randVec(rng, -size, size)),
			V2: c.Add(randVec(rng, -size, size)),
		}
	}
	return tris
}

// randomRays starts rays outside the soup and aims them at points inside it.
func randomRays(rng *rand.Rand, n int, spread float32) []core.Ray {
	rays := make([]core.Ray, n)
	for i := range rays {
		origin := randVec(rng, -3*spread, 3*spread)
		target := randVec(rng, -spread, spread)
		rays[i] = core.NewRay(origin, target.Sub(origin).Normalize())
	}
	return rays
}

type bruteHit struct {
	t    float32
	prim int
}

func bruteForce(tris []core.Triangle, r core.Ray) (bruteHit, bool) {
	best := bruteHit{t: r.TMax, prim: -1}
	for i := range tris {
		if d, _, _, ok := tris[i].Intersect(&r, best.t); ok {
			best = bruteHit{t: d, prim: i}
		}
	}
	return best, best.prim >= 0
}

func transformTris(tris []core.Triangle, m mgl32.Mat4) []core.Triangle {
	out := make([]core.Triangle, len(tris))
	for i, tri := range tris {
		out[i] = core.Triangle{
			V0: core.TransformPoint(m, tri.V0),
			V1: core.TransformPoint(m, tri.V1),
			V2: core.TransformPoint(m, tri.V2),
		}
	}
	return out
}

func closeEnough(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps*max(1, float32(math.Abs(float64(a))))
}
