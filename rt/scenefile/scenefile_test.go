package scenefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoQuads = `
camera:
  position: [0, 0, 5]
  look_at: [0, 0, 0]
  fov: 60
meshes:
  - name: floor
    shape: quad
  - name: tri
    path: tri.obj
instances:
  - mesh: floor
    position: [0, 0, 1]
  - mesh: floor
    position: [10, 0, 0]
    scale: [3, 3, 3]
  - mesh: tri
    position: [-10, 0, 0]
`

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte("meshes:\n  - name: a\n    shape: cube\n"))
	require.NoError(t, err)
	assert.Equal(t, float32(45), f.Camera.FOV)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, f.Camera.Up)
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, f.Camera.Position)

	f, err = Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Meshes)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "meshes:\n  - name: a\n    shape: cube\n    colour: red\n",
		"no source":     "meshes:\n  - name: a\n",
		"two sources":   "meshes:\n  - name: a\n    shape: cube\n    path: a.obj\n",
		"duplicate":     "meshes:\n  - name: a\n    shape: cube\n  - name: a\n    shape: quad\n",
		"unknown mesh":  "instances:\n  - mesh: nope\n",
		"zero scale":    "meshes:\n  - name: a\n    shape: cube\ninstances:\n  - mesh: a\n    scale: [1, 0, 1]\n",
		"bad simplify":  "meshes:\n  - name: a\n    shape: cube\n    simplify: 2\n",
		"bad fov":       "camera:\n  fov: 200\n",
		"short vector":  "camera:\n  position: [1, 2]\n",
		"not a mapping": "- 1\n- 2\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestInstanceTransform(t *testing.T) {
	scale := mgl32.Vec3{2, 2, 2}
	d := InstanceDef{Position: mgl32.Vec3{1, 2, 3}, Scale: &scale}
	p := core.TransformPoint(d.Transform(), mgl32.Vec3{1, 0, 0})
	assertVec(t, mgl32.Vec3{3, 2, 3}, p)

	// A quarter turn leaves float32 rounding in the components that should be
	// zero.
	d = InstanceDef{Rotation: mgl32.Vec3{0, 90, 0}}
	p = core.TransformPoint(d.Transform(), mgl32.Vec3{1, 0, 0})
	assertVec(t, mgl32.Vec3{0, 0, -1}, p)
}

func TestInstanceInverse(t *testing.T) {
	scale := mgl32.Vec3{3, 0.5, 2}
	d := InstanceDef{Position: mgl32.Vec3{100, -20, 7}, Rotation: mgl32.Vec3{30, 90, -45}, Scale: &scale}
	for _, local := range []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {-2, 5, 0.25}} {
		back := core.TransformPoint(d.Inverse(), core.TransformPoint(d.Transform(), local))
		assertVec(t, local, back)
	}
}

func assertVec(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3, "component %d of %v", i, got)
	}
}

func TestCameraRays(t *testing.T) {
	c := CameraDef{Position: mgl32.Vec3{0, 0, 5}, Up: mgl32.Vec3{0, 1, 0}, FOV: 90}
	rays := c.Rays(3, 3)
	require.Len(t, rays, 9)

	center := rays[4]
	assertVec(t, mgl32.Vec3{0, 0, -1}, center.Dir)

	// Top left looks up and to the left.
	assert.Less(t, rays[0].Dir.X(), float32(0))
	assert.Greater(t, rays[0].Dir.Y(), float32(0))
	assert.Greater(t, rays[8].Dir.X(), float32(0))
	assert.Less(t, rays[8].Dir.Y(), float32(0))
	for _, r := range rays {
		assert.InDelta(t, 1, r.Dir.Len(), 1e-5)
	}
}

func TestPopulate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.obj"), []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0o644))
	scenePath := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(scenePath, []byte(twoQuads), 0o644))

	f, err := Load(scenePath)
	require.NoError(t, err)

	scene := rtaccel.NewScene(rtaccel.DefaultConfig())
	defer scene.Close()
	ids, err := f.Populate(scene, dir)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "floor", scene.MeshName(ids["floor"]))

	hit, ok := scene.Trace(core.NewRay(f.Camera.Position, mgl32.Vec3{0, 0, -1}), core.ClosestHit)
	require.True(t, ok)
	assert.Equal(t, uint32(0), hit.InstanceID)
	assert.InDelta(t, 4, hit.T, 1e-5)

	// The scaled quad spans [7, 13] on x.
	hit, ok = scene.Trace(core.NewRay(mgl32.Vec3{12.5, 2.5, 5}, mgl32.Vec3{0, 0, -1}), core.ClosestHit)
	require.True(t, ok)
	assert.Equal(t, uint32(1), hit.InstanceID)
	assert.InDelta(t, 5, hit.T, 1e-5)

	hit, ok = scene.Trace(core.NewRay(mgl32.Vec3{-9.75, 0.25, 5}, mgl32.Vec3{0, 0, -1}), core.ClosestHit)
	require.True(t, ok)
	assert.Equal(t, uint32(2), hit.InstanceID)
	assert.Equal(t, uint32(0), hit.PrimitiveID)

	st, err := scene.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Instances)
	assert.Len(t, st.Meshes, 2)
}

func TestPopulateMissingFile(t *testing.T) {
	f, err := Parse([]byte("meshes:\n  - name: a\n    path: gone.obj\n"))
	require.NoError(t, err)
	scene := rtaccel.NewScene(rtaccel.DefaultConfig())
	defer scene.Close()
	_, err = f.Populate(scene, t.TempDir())
	assert.Error(t, err)
}

func TestDemoScene(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "scenes", "demo.yaml"))
	require.NoError(t, err)

	scene := rtaccel.NewScene(rtaccel.DefaultConfig())
	defer scene.Close()
	_, err = f.Populate(scene, filepath.Join("..", "..", "scenes"))
	require.NoError(t, err)
	require.NoError(t, scene.Validate())

	// The floor fills the lower half of the frame.
	rays := f.Camera.Rays(8, 8)
	_, ok := scene.Trace(rays[len(rays)-1], core.ClosestHit)
	assert.True(t, ok)
}
