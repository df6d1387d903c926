// Package scenefile reads YAML scene descriptions: a camera, a list of meshes
// loaded from disk or generated procedurally, and their instances.
package scenefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/gekko3d/rtaccel"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/gekko3d/rtaccel/rt/meshio"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

type File struct {
	Camera    CameraDef     `yaml:"camera"`
	Meshes    []MeshDef     `yaml:"meshes"`
	Instances []InstanceDef `yaml:"instances"`
}

type CameraDef struct {
	Position mgl32.Vec3 `yaml:"position"`
	LookAt   mgl32.Vec3 `yaml:"look_at"`
	Up       mgl32.Vec3 `yaml:"up"`
	FOV      float32    `yaml:"fov"` // vertical, degrees
}

// MeshDef names a mesh and where its triangles come from. Exactly one of Path
// and Shape is set. Path is relative to the scene file.
type MeshDef struct {
	Name     string  `yaml:"name"`
	Path     string  `yaml:"path,omitempty"`
	Shape    string  `yaml:"shape,omitempty"`
	Detail   int     `yaml:"detail,omitempty"`
	Simplify float64 `yaml:"simplify,omitempty"`
	Fit      bool    `yaml:"fit,omitempty"`
}

type InstanceDef struct {
	Mesh     string      `yaml:"mesh"`
	Position mgl32.Vec3  `yaml:"position"`
	Rotation mgl32.Vec3  `yaml:"rotation"` // euler XYZ, degrees
	Scale    *mgl32.Vec3 `yaml:"scale,omitempty"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenefile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenefile: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a scene. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	f.defaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) defaults() {
	if f.Camera.FOV == 0 {
		f.Camera.FOV = 45
	}
	if f.Camera.Up == (mgl32.Vec3{}) {
		f.Camera.Up = mgl32.Vec3{0, 1, 0}
	}
	if f.Camera.Position == f.Camera.LookAt {
		f.Camera.Position = f.Camera.LookAt.Add(mgl32.Vec3{0, 0, 5})
	}
}

func (f *File) Validate() error {
	var errs []error
	names := make(map[string]bool, len(f.Meshes))
	for i, m := range f.Meshes {
		switch {
		case m.Name == "":
			errs = append(errs, fmt.Errorf("mesh %d: missing name", i))
		case names[m.Name]:
			errs = append(errs, fmt.Errorf("mesh %q: duplicate name", m.Name))
		}
		names[m.Name] = true
		if (m.Path == "") == (m.Shape == "") {
			errs = append(errs, fmt.Errorf("mesh %q: set exactly one of path and shape", m.Name))
		}
		if m.Simplify < 0 || m.Simplify > 1 {
			errs = append(errs, fmt.Errorf("mesh %q: simplify must be in [0, 1]", m.Name))
		}
	}
	for i, inst := range f.Instances {
		if !names[inst.Mesh] {
			errs = append(errs, fmt.Errorf("instance %d: unknown mesh %q", i, inst.Mesh))
		}
		if s := inst.Scale; s != nil && (s.X() == 0 || s.Y() == 0 || s.Z() == 0) {
			errs = append(errs, fmt.Errorf("instance %d: zero scale", i))
		}
	}
	if f.Camera.FOV <= 0 || f.Camera.FOV >= 180 {
		errs = append(errs, fmt.Errorf("camera: fov %v out of range", f.Camera.FOV))
	}
	return errors.Join(errs...)
}

func (d InstanceDef) placement() core.Transform {
	t := core.NewTransform()
	t.Position = d.Position
	r := d.Rotation
	t.Rotation = mgl32.AnglesToQuat(mgl32.DegToRad(r.X()), mgl32.DegToRad(r.Y()), mgl32.DegToRad(r.Z()), mgl32.XYZ)
	if d.Scale != nil {
		t.Scale = *d.Scale
	}
	return t
}

// Transform is the object to world matrix of the instance.
func (d InstanceDef) Transform() mgl32.Mat4 { return d.placement().ObjectToWorld() }

// Inverse is the world to object matrix, composed from the inverted factors.
func (d InstanceDef) Inverse() mgl32.Mat4 { return d.placement().WorldToObject() }

// Triangles loads or generates the geometry of m. Relative paths resolve
// against baseDir.
func (m MeshDef) Triangles(baseDir string) ([]core.Triangle, error) {
	var (
		tris []core.Triangle
		err  error
	)
	if m.Shape != "" {
		tris, err = meshio.Shape(m.Shape, m.Detail)
	} else {
		path := m.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		tris, err = meshio.Load(path)
	}
	if err != nil {
		return nil, err
	}
	if m.Fit {
		tris = meshio.FitBiUnitCube(tris)
	}
	if m.Simplify > 0 {
		tris = meshio.Simplify(tris, m.Simplify)
	}
	return tris, nil
}

// Populate builds every mesh of f into scene and publishes a TLAS over the
// instances. It returns the mesh ids by name.
func (f *File) Populate(scene *rtaccel.Scene, baseDir string) (map[string]rtaccel.MeshID, error) {
	ids := make(map[string]rtaccel.MeshID, len(f.Meshes))
	for _, m := range f.Meshes {
		tris, err := m.Triangles(baseDir)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		id, err := scene.BuildBLAS(m.Name, tris)
		if err != nil {
			return nil, err
		}
		ids[m.Name] = id
	}

	descs := make([]rtaccel.InstanceDesc, len(f.Instances))
	for i, inst := range f.Instances {
		toWorld, toObject := inst.placement().Matrices()
		descs[i] = rtaccel.InstanceDesc{Mesh: ids[inst.Mesh], Transform: toWorld, Inverse: &toObject}
	}
	if _, err := scene.BuildTLAS(descs); err != nil {
		return nil, err
	}
	return ids, nil
}

// Rays returns one primary ray per pixel through a pinhole at the camera
// position, row by row from the top left.
func (c CameraDef) Rays(width, height int) []core.Ray {
	forward := c.LookAt.Sub(c.Position).Normalize()
	right := forward.Cross(c.Up).Normalize()
	up := right.Cross(forward)

	tanHalf := float32(math.Tan(float64(mgl32.DegToRad(c.FOV)) / 2))
	aspect := float32(width) / float32(height)

	rays := make([]core.Ray, 0, width*height)
	for y := 0; y < height; y++ {
		py := (1 - 2*(float32(y)+0.5)/float32(height)) * tanHalf
		for x := 0; x < width; x++ {
			px := (2*(float32(x)+0.5)/float32(width) - 1) * aspect * tanHalf
			dir := forward.Add(right.Mul(px)).Add(up.Mul(py)).Normalize()
			rays = append(rays, core.NewRay(c.Position, dir))
		}
	}
	return rays
}
