// Package rtaccel is the engine-facing side of the ray intersection core: a
// registry of meshes, each with its own bottom level hierarchy, and a set of
// instances placed in the world through a top level hierarchy.
package rtaccel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/rtaccel/logging"
	"github.com/gekko3d/rtaccel/rt/bvh"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrUnknownMesh     = errors.New("rtaccel: unknown mesh")
	ErrUnknownInstance = errors.New("rtaccel: unknown instance")
	ErrMeshInUse       = errors.New("rtaccel: mesh is still instanced")
)

type MeshID string

type InstanceID = uint32

func makeMeshID() MeshID {
	return MeshID(uuid.NewString())
}

// InstanceDesc places a registered mesh in the world. Inverse is optional; see
// bvh.InstanceDesc.
type InstanceDesc struct {
	Mesh      MeshID
	Transform mgl32.Mat4
	Inverse   *mgl32.Mat4
}

type mesh struct {
	name string
	blas *bvh.BLAS
}

// Scene owns the pools, the meshes built into them and the TLAS over their
// instances. Trace and TraceBatch may run concurrently with any other method.
type Scene struct {
	cfg     Config
	log     logging.Logger
	pools   *bvh.Pools
	builder *bvh.Builder
	tlas    *bvh.TLAS
	prof    *Profiler

	mu        sync.RWMutex
	meshes    map[MeshID]*mesh
	instances []MeshID
}

func NewScene(cfg Config) *Scene {
	log := logging.OrNop(cfg.Logger)
	pools := bvh.NewPools(cfg.Pool)
	builder := bvh.NewBuilder(pools, cfg.Build, log)
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Scene{
		cfg:     cfg,
		log:     log,
		pools:   pools,
		builder: builder,
		tlas:    bvh.NewTLAS(builder),
		prof:    NewProfiler(),
		meshes:  make(map[MeshID]*mesh),
	}
}

// BuildBLAS builds a hierarchy over tris and registers it under a new id.
// Several meshes may be built concurrently.
func (s *Scene) BuildBLAS(name string, tris []core.Triangle) (MeshID, error) {
	defer s.prof.Begin("blas_build")()
	blas, err := s.builder.BuildBLAS(tris)
	if err != nil {
		return "", fmt.Errorf("mesh %q: %w", name, err)
	}
	id := makeMeshID()

	s.mu.Lock()
	s.meshes[id] = &mesh{name: name, blas: blas}
	s.mu.Unlock()

	s.prof.Add("triangles", int64(len(tris)))
	s.log.Infof("mesh %q: %d triangles, depth %d", name, len(tris), blas.Depth)
	return id, nil
}

// Profiler reports build and batch timings.
func (s *Scene) Profiler() *Profiler { return s.prof }

func (s *Scene) Mesh(id MeshID) (*bvh.BLAS, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meshes[id]
	if !ok {
		return nil, false
	}
	return m.blas, true
}

func (s *Scene) MeshName(id MeshID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.meshes[id]; ok {
		return m.name
	}
	return ""
}

func (s *Scene) resolve(d InstanceDesc) (bvh.InstanceDesc, error) {
	m, ok := s.meshes[d.Mesh]
	if !ok {
		return bvh.InstanceDesc{}, fmt.Errorf("%w: %s", ErrUnknownMesh, d.Mesh)
	}
	return bvh.InstanceDesc{BLAS: m.blas, Transform: d.Transform, Inverse: d.Inverse}, nil
}

// BuildTLAS replaces every instance with descs and publishes a new TLAS.
// Instance ids are positions in descs.
func (s *Scene) BuildTLAS(descs []InstanceDesc) ([]InstanceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := make([]bvh.InstanceDesc, len(descs))
	owners := make([]MeshID, len(descs))
	ids := make([]InstanceID, len(descs))
	for i, d := range descs {
		rd, err := s.resolve(d)
		if err != nil {
			return nil, fmt.Errorf("instance %d: %w", i, err)
		}
		resolved[i], owners[i], ids[i] = rd, d.Mesh, InstanceID(i)
	}
	if err := s.tlas.SetInstances(resolved); err != nil {
		return nil, err
	}
	s.instances = owners
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AddInstance appends an instance. It becomes visible after the next Rebuild.
func (s *Scene) AddInstance(d InstanceDesc) (InstanceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd, err := s.resolve(d)
	if err != nil {
		return 0, err
	}
	id, err := s.tlas.AddInstance(rd)
	if err != nil {
		return 0, err
	}
	s.instances = append(s.instances, d.Mesh)
	return id, nil
}

// UpdateInstanceTransform records a new transform for id. Traces keep seeing
// the old placement until Rebuild publishes a new TLAS.
func (s *Scene) UpdateInstanceTransform(id InstanceID, m mgl32.Mat4) error {
	s.mu.RLock()
	n := len(s.instances)
	s.mu.RUnlock()
	if int(id) >= n {
		return fmt.Errorf("%w: %d", ErrUnknownInstance, id)
	}
	return s.tlas.UpdateInstanceTransform(id, m)
}

func (s *Scene) Dirty() bool { return s.tlas.Dirty() }

// Rebuild publishes a TLAS over the current instances. On error the previous
// TLAS stays in use.
func (s *Scene) Rebuild() error {
	return s.rebuild()
}

func (s *Scene) rebuild() error {
	defer s.prof.Begin("tlas_build")()
	return s.tlas.Rebuild()
}

// ReplaceMesh rebuilds the hierarchy of a mesh from new geometry, points its
// instances at it and rebuilds the TLAS. The old hierarchy is freed once no
// trace can reach it.
func (s *Scene) ReplaceMesh(id MeshID, tris []core.Triangle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meshes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMesh, id)
	}
	blas, err := s.builder.BuildBLAS(tris)
	if err != nil {
		return fmt.Errorf("mesh %q: %w", m.name, err)
	}
	var moved []InstanceID
	for i, owner := range s.instances {
		if owner != id {
			continue
		}
		if err := s.tlas.SetInstanceBLAS(InstanceID(i), blas); err != nil {
			for _, j := range moved {
				// The old BLAS is still live, so pointing back cannot fail.
				_ = s.tlas.SetInstanceBLAS(j, m.blas)
			}
			blas.Release()
			return fmt.Errorf("mesh %q: instance %d: %w", m.name, i, err)
		}
		moved = append(moved, InstanceID(i))
	}
	old := m.blas
	m.blas = blas
	s.tlas.Retire(old)
	return s.rebuild()
}

// UnloadMesh drops a mesh no instance refers to anymore.
func (s *Scene) UnloadMesh(id MeshID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meshes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMesh, id)
	}
	for _, owner := range s.instances {
		if owner == id {
			return fmt.Errorf("%w: %q", ErrMeshInUse, m.name)
		}
	}
	delete(s.meshes, id)
	s.tlas.Retire(m.blas)
	return nil
}

func (s *Scene) Trace(ray core.Ray, mode core.TraceMode) (core.Hit, bool) {
	return s.tlas.Trace(ray, mode)
}

// TraceResult is one entry of a TraceBatch.
type TraceResult struct {
	Hit core.Hit
	OK  bool
}

// TraceBatch traces rays on up to workers goroutines (the configured default
// when workers <= 0). Cancelling ctx stops handing out rays; the results
// traced so far are returned along with ctx.Err().
func (s *Scene) TraceBatch(ctx context.Context, rays []core.Ray, mode core.TraceMode, workers int) ([]TraceResult, error) {
	if workers <= 0 {
		workers = s.cfg.Workers
	}
	workers = min(workers, max(1, len(rays)))
	defer s.prof.Begin("trace_batch")()
	s.prof.Add("rays", int64(len(rays)))

	const chunk = 64
	out := make([]TraceResult, len(rays))
	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				start := int(next.Add(chunk)) - chunk
				if start >= len(rays) {
					return
				}
				end := min(start+chunk, len(rays))
				for i := start; i < end; i++ {
					out[i].Hit, out[i].OK = s.tlas.Trace(rays[i], mode)
				}
			}
		}()
	}
	wg.Wait()
	return out, ctx.Err()
}

type MeshStats struct {
	ID        MeshID
	Name      string
	Triangles int
	Stats     bvh.Stats
}

type SceneStats struct {
	Meshes    []MeshStats
	Instances int
	TLAS      bvh.Stats
	Pools     bvh.PoolStats
}

// Stats walks every hierarchy. The walk validates the trees, so an error means
// a structure is corrupt.
func (s *Scene) Stats() (SceneStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := SceneStats{Instances: len(s.instances)}
	for id, m := range s.meshes {
		st, err := m.blas.Stats()
		if err != nil {
			return out, fmt.Errorf("mesh %q: %w", m.name, err)
		}
		out.Meshes = append(out.Meshes, MeshStats{ID: id, Name: m.name, Triangles: m.blas.PrimitiveCount(), Stats: st})
	}
	sort.Slice(out.Meshes, func(i, j int) bool {
		if out.Meshes[i].Name != out.Meshes[j].Name {
			return out.Meshes[i].Name < out.Meshes[j].Name
		}
		return out.Meshes[i].ID < out.Meshes[j].ID
	})

	st, err := s.tlas.Stats()
	if err != nil {
		return out, fmt.Errorf("tlas: %w", err)
	}
	out.TLAS = st
	out.Pools = s.pools.Stats()
	return out, nil
}

func (s *Scene) Validate() error {
	_, err := s.Stats()
	return err
}

// Bounds is the world box of the published TLAS.
func (s *Scene) Bounds() core.AABB {
	return s.tlas.Bounds()
}

// NodeBytes encodes the node pool for upload to a GPU storage buffer.
func (s *Scene) NodeBytes() []byte {
	return s.pools.NodeBytes()
}

// Close frees every structure. No trace may be in flight.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tlas.Release()
	for _, m := range s.meshes {
		m.blas.Release()
	}
	s.meshes = make(map[MeshID]*mesh)
	s.instances = nil
	s.pools.Reset()
}
