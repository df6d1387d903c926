// Package meshio turns mesh files and procedural shapes into triangle lists
// for the BLAS builder. Nothing in the intersection core depends on it.
package meshio

import (
	"fmt"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/fogleman/simplify"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Load reads an OBJ, STL, PLY or 3DS file, picked by extension.
func Load(path string) ([]core.Triangle, error) {
	m, err := fauxgl.LoadMesh(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: loading %s: %w", path, err)
	}
	return FromFauxGL(m), nil
}

func vec(v fauxgl.Vector) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

func fvec(v mgl32.Vec3) fauxgl.Vector {
	return fauxgl.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// FromFauxGL copies the triangle positions of m. Normals, colors and texture
// coordinates are dropped.
func FromFauxGL(m *fauxgl.Mesh) []core.Triangle {
	out := make([]core.Triangle, len(m.Triangles))
	for i, t := range m.Triangles {
		out[i] = core.Triangle{
			V0: vec(t.V1.Position),
			V1: vec(t.V2.Position),
			V2: vec(t.V3.Position),
		}
	}
	return out
}

func ToFauxGL(tris []core.Triangle) *fauxgl.Mesh {
	ft := make([]*fauxgl.Triangle, len(tris))
	for i, t := range tris {
		ft[i] = fauxgl.NewTriangleForPoints(fvec(t.V0), fvec(t.V1), fvec(t.V2))
	}
	return fauxgl.NewTriangleMesh(ft)
}

// FitBiUnitCube scales and centers tris into [-1, 1] on the longest axis,
// keeping proportions.
func FitBiUnitCube(tris []core.Triangle) []core.Triangle {
	if len(tris) == 0 {
		return nil
	}
	m := ToFauxGL(tris)
	m.BiUnitCube()
	return FromFauxGL(m)
}

// Simplify decimates tris to roughly factor times as many triangles with
// quadric error edge collapses. Factors outside (0, 1) return a copy.
func Simplify(tris []core.Triangle, factor float64) []core.Triangle {
	if factor <= 0 || factor >= 1 || len(tris) == 0 {
		return append([]core.Triangle(nil), tris...)
	}
	st := make([]*simplify.Triangle, len(tris))
	for i, t := range tris {
		st[i] = simplify.NewTriangle(svec(t.V0), svec(t.V1), svec(t.V2))
	}
	sm := simplify.NewMesh(st).Simplify(factor)

	out := make([]core.Triangle, len(sm.Triangles))
	for i, t := range sm.Triangles {
		out[i] = core.Triangle{
			V0: mgl32.Vec3{float32(t.V1.X), float32(t.V1.Y), float32(t.V1.Z)},
			V1: mgl32.Vec3{float32(t.V2.X), float32(t.V2.Y), float32(t.V2.Z)},
			V2: mgl32.Vec3{float32(t.V3.X), float32(t.V3.Y), float32(t.V3.Z)},
		}
	}
	return out
}

func svec(v mgl32.Vec3) simplify.Vector {
	return simplify.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// Shape builds a named procedural mesh. Detail is the sphere subdivision
// level or the segment count of a cone.
func Shape(name string, detail int) ([]core.Triangle, error) {
	switch strings.ToLower(name) {
	case "cube":
		return Box(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}), nil
	case "sphere":
		return FromFauxGL(fauxgl.NewSphere(max(detail, 0))), nil
	case "cone":
		return Cone(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 1, 0}, 1, max(detail, 3)), nil
	case "pyramid":
		return Pyramid(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 1, 0}, 2), nil
	case "quad":
		return Quad(mgl32.Vec3{}, 2), nil
	}
	return nil, fmt.Errorf("meshio: unknown shape %q", name)
}
