package main

import (
	"math/rand"
	"testing"

	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaders(t *testing.T) {
	rays := []core.Ray{
		core.NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}),
		core.NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}),
		core.NewRay(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}),
	}
	results := []rtaccel.TraceResult{
		{Hit: core.Hit{T: 1, Normal: mgl32.Vec3{0, 0, 1}}, OK: true},
		{},
		{Hit: core.Hit{T: 3, Normal: mgl32.Vec3{0, 0, 1}}, OK: true},
	}

	img := shadeNormals(rays, results, 3, 1)
	assert.Equal(t, uint8(255), img.RGBAAt(0, 0).B)
	assert.Equal(t, uint8(128), img.RGBAAt(0, 0).R)
	assert.Equal(t, background, img.RGBAAt(1, 0))

	img = shadeDepth(rays, results, 3, 1)
	assert.Equal(t, uint8(255), img.RGBAAt(0, 0).R, "nearest hit is white")
	assert.Equal(t, uint8(51), img.RGBAAt(2, 0).R)
	assert.Equal(t, background, img.RGBAAt(1, 0))

	_, err := shader("phong")
	assert.Error(t, err)
}

func TestDownscale(t *testing.T) {
	rays := make([]core.Ray, 16)
	results := make([]rtaccel.TraceResult, 16)
	src := shadeNormals(rays, results, 4, 4)

	out := downscale(src, 2, 2)
	require.Equal(t, 2, out.Bounds().Dx())
	r, g, b, _ := out.At(1, 1).RGBA()
	assert.InDelta(t, float64(background.R), float64(r>>8), 1)
	assert.InDelta(t, float64(background.G), float64(g>>8), 1)
	assert.InDelta(t, float64(background.B), float64(b>>8), 1)

	assert.Same(t, src, downscale(src, 4, 4))
}

func TestBenchRaysAimInside(t *testing.T) {
	bounds := core.AABB{Min: mgl32.Vec3{-2, 0, 1}, Max: mgl32.Vec3{2, 1, 5}}
	rays := benchRays(bounds, 500, rand.New(rand.NewSource(7)))
	require.Len(t, rays, 500)
	for _, r := range rays {
		_, ok := bounds.Slab(&r, r.TMax)
		assert.True(t, ok)
		assert.InDelta(t, 1, r.Dir.Len(), 1e-5)
	}

	assert.Len(t, benchRays(core.EmptyAABB(), 3, rand.New(rand.NewSource(1))), 3)
	assert.Equal(t, 2, countHits([]rtaccel.TraceResult{{OK: true}, {}, {OK: true}}))
}
