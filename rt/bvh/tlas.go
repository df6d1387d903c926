package bvh

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/gekko3d/rtaccel/rt/pool"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrInvalidInstance = errors.New("bvh: invalid instance")

// InstanceDesc places a BLAS in the world. Inverse, when set, is used as the
// world to object matrix instead of inverting Transform; it must agree with
// Transform.
type InstanceDesc struct {
	BLAS      *BLAS
	Transform mgl32.Mat4
	Inverse   *mgl32.Mat4
}

// Instance is an InstanceDesc with everything traversal derives from the
// transform precomputed.
type Instance struct {
	BLAS      *BLAS
	Transform mgl32.Mat4
	Inverse   mgl32.Mat4
	Normal    mgl32.Mat3
	// Bounds is the world space box around the transformed BLAS root box.
	Bounds core.AABB
}

func validateDesc(d InstanceDesc) error {
	if d.BLAS == nil {
		return fmt.Errorf("%w: nil BLAS", ErrInvalidInstance)
	}
	if d.BLAS.retired.Load() {
		return fmt.Errorf("%w: BLAS was retired", ErrInvalidInstance)
	}
	if err := validateTransform(d.Transform); err != nil {
		return err
	}
	if d.Inverse != nil {
		return validateInverse(d.Transform, *d.Inverse)
	}
	return nil
}

// detached copies a supplied inverse so later writes by the caller do not
// reach the pending list.
func (d InstanceDesc) detached() InstanceDesc {
	if d.Inverse != nil {
		inv := *d.Inverse
		d.Inverse = &inv
	}
	return d
}

// inverseTolerance bounds how far Transform*Inverse may stray from identity.
const inverseTolerance = 1e-3

func validateInverse(m, inv mgl32.Mat4) error {
	id := mgl32.Ident4()
	for i, f := range m.Mul4(inv) {
		if math.IsNaN(float64(f)) || math.Abs(float64(f-id[i])) > inverseTolerance {
			return fmt.Errorf("%w: inverse does not match transform", ErrInvalidInstance)
		}
	}
	return nil
}

func validateTransform(m mgl32.Mat4) error {
	for _, f := range m {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w: transform has non-finite entries", ErrInvalidInstance)
		}
	}
	if m.Det() == 0 {
		return fmt.Errorf("%w: transform is singular", ErrInvalidInstance)
	}
	return nil
}

func newInstance(d InstanceDesc) Instance {
	inv := d.Transform.Inv()
	if d.Inverse != nil {
		inv = *d.Inverse
	}
	return Instance{
		BLAS:      d.BLAS,
		Transform: d.Transform,
		Inverse:   inv,
		Normal:    core.NormalMatrix(d.Transform),
		Bounds:    d.BLAS.Bounds.Transform(d.Transform),
	}
}

// tlasState is one published TLAS. It is immutable once published; readers pin
// it through the readers count while they traverse.
type tlasState struct {
	view      View
	root      uint32
	nodes     pool.Range
	indices   pool.Range
	instances []Instance
	depth     int
	leaves    int

	readers atomic.Int64
	// orphans are BLAS retired while this state was current. They are freed
	// together with it.
	orphans []*BLAS
}

// TLAS is the top level hierarchy over instances. Edits go to a pending
// instance list; Rebuild builds a fresh hierarchy from it and publishes it in
// one step. Trace always sees a complete published hierarchy, never one under
// construction.
//
// After UpdateInstanceTransform and until the next Rebuild, Trace keeps using
// the previously published transforms and bounds.
type TLAS struct {
	builder *Builder

	mu      sync.Mutex
	descs   []InstanceDesc
	dirty   bool
	retired []*tlasState
	orphans []*BLAS

	current atomic.Pointer[tlasState]
}

func NewTLAS(b *Builder) *TLAS {
	return &TLAS{builder: b}
}

// BuildTLAS builds and publishes a TLAS over descs.
func (bld *Builder) BuildTLAS(descs []InstanceDesc) (*TLAS, error) {
	t := NewTLAS(bld)
	if err := t.SetInstances(descs); err != nil {
		return nil, err
	}
	if err := t.Rebuild(); err != nil {
		return nil, err
	}
	return t, nil
}

// SetInstances replaces the pending instance list. Instance ids are positions
// in descs.
func (t *TLAS) SetInstances(descs []InstanceDesc) error {
	for i, d := range descs {
		if err := validateDesc(d); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.descs = make([]InstanceDesc, len(descs))
	for i, d := range descs {
		t.descs[i] = d.detached()
	}
	t.dirty = true
	return nil
}

// AddInstance appends to the pending list and returns the new instance id.
func (t *TLAS) AddInstance(d InstanceDesc) (uint32, error) {
	if err := validateDesc(d); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.descs = append(t.descs, d.detached())
	t.dirty = true
	return uint32(len(t.descs) - 1), nil
}

// UpdateInstanceTransform changes the pending transform of instance id and
// marks the TLAS dirty. No BLAS is touched. Any supplied inverse is dropped.
func (t *TLAS) UpdateInstanceTransform(id uint32, m mgl32.Mat4) error {
	if err := validateTransform(m); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) >= len(t.descs) {
		return fmt.Errorf("%w: id %d out of range [0,%d)", ErrInvalidInstance, id, len(t.descs))
	}
	t.descs[id].Transform = m
	t.descs[id].Inverse = nil
	t.dirty = true
	return nil
}

// SetInstanceBLAS points instance id at another BLAS, e.g. after the mesh it
// used was rebuilt.
func (t *TLAS) SetInstanceBLAS(id uint32, b *BLAS) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(id) >= len(t.descs) {
		return fmt.Errorf("%w: id %d out of range [0,%d)", ErrInvalidInstance, id, len(t.descs))
	}
	d := t.descs[id]
	d.BLAS = b
	if err := validateDesc(d); err != nil {
		return err
	}
	t.descs[id] = d
	t.dirty = true
	return nil
}

// Dirty reports whether pending edits have not been published yet.
func (t *TLAS) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

func (t *TLAS) InstanceCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.descs)
}

// Retire hands a BLAS that is no longer referenced by the pending instances to
// the TLAS. Its pool ranges are freed once no published hierarchy that could
// still reference it has readers.
func (t *TLAS) Retire(b *BLAS) {
	if b == nil || b.retired.Swap(true) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orphans = append(t.orphans, b)
}

// Rebuild builds a new hierarchy over the pending instances and publishes it.
// On error the previously published hierarchy stays current.
func (t *TLAS) Rebuild() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reclaim()
	start := time.Now()

	insts := make([]Instance, len(t.descs))
	items := make([]buildItem, len(t.descs))
	blasDepth := 0
	for i, d := range t.descs {
		if err := validateDesc(d); err != nil {
			return fmt.Errorf("tlas: instance %d: %w", i, err)
		}
		insts[i] = newInstance(d)
		items[i] = buildItem{bounds: insts[i].Bounds, centroid: insts[i].Bounds.Center()}
		blasDepth = max(blasDepth, d.BLAS.Depth)
	}
	// Empty BLAS have an inverted box; keep them out of the way of the split.
	for i := range items {
		if items[i].bounds.IsEmpty() {
			items[i].centroid = mgl32.Vec3{}
		}
	}

	res := partition(items, t.builder.Config, true)

	pools := t.builder.Pools
	resv := reservation{pools: pools}
	var err error
	if resv.nodes, err = pools.Nodes.Reserve(len(res.nodes)); err != nil {
		return fmt.Errorf("tlas: reserving nodes: %w", err)
	}
	if resv.indices, err = pools.Indices.Reserve(len(res.order)); err != nil {
		resv.release()
		return fmt.Errorf("tlas: reserving indices: %w", err)
	}
	rebase(res.nodes, resv.nodes.Offset, resv.indices.Offset)
	if err = pools.Indices.Store(resv.indices, res.order); err == nil {
		err = pools.Nodes.Store(resv.nodes, res.nodes)
	}
	if err != nil {
		resv.release()
		return fmt.Errorf("tlas: %w", err)
	}

	s := &tlasState{
		view:      pools.Snapshot(),
		root:      resv.nodes.Offset,
		nodes:     resv.nodes,
		indices:   resv.indices,
		instances: insts,
		depth:     res.depth + blasDepth + 2,
		leaves:    res.leaves,
	}
	old := t.current.Swap(s)
	if old != nil {
		old.orphans = t.orphans
		t.retired = append(t.retired, old)
	} else {
		for _, b := range t.orphans {
			b.Release()
		}
	}
	t.orphans = nil
	t.dirty = false
	t.reclaim()

	t.builder.Logger.Debugf("TLAS build: %d instances, %d nodes, depth %d, %d retired pending, %s",
		len(insts), len(res.nodes), res.depth, len(t.retired), time.Since(start))
	return nil
}

// reclaim frees retired hierarchies, oldest first, up to the first one that
// still has readers. Freeing in order guarantees a BLAS orphaned by a newer
// state is no longer reachable from any older one.
func (t *TLAS) reclaim() {
	n := 0
	for _, s := range t.retired {
		if s.readers.Load() != 0 {
			break
		}
		t.freeState(s)
		n++
	}
	if n > 0 {
		t.retired = append(t.retired[:0], t.retired[n:]...)
	}
}

func (t *TLAS) freeState(s *tlasState) {
	resv := reservation{pools: t.builder.Pools, nodes: s.nodes, indices: s.indices}
	resv.release()
	for _, b := range s.orphans {
		b.Release()
	}
	s.orphans = nil
}

// Reclaim frees whatever retired hierarchies have drained and returns how
// many are still pinned by readers.
func (t *TLAS) Reclaim() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reclaim()
	return len(t.retired)
}

func (t *TLAS) acquire() *tlasState {
	for {
		s := t.current.Load()
		if s == nil {
			return nil
		}
		s.readers.Add(1)
		if t.current.Load() == s {
			return s
		}
		s.readers.Add(-1)
	}
}

// Trace intersects the ray with the published hierarchy. Safe to call from any
// number of goroutines, including while Rebuild runs.
func (t *TLAS) Trace(ray core.Ray, mode core.TraceMode) (core.Hit, bool) {
	s := t.acquire()
	if s == nil {
		return core.Hit{}, false
	}
	defer s.readers.Add(-1)
	return traverse(&s.view, s.root, s.instances, nil, ray, mode, s.depth)
}

// Instance returns the published instance id.
func (t *TLAS) Instance(id uint32) (Instance, bool) {
	s := t.current.Load()
	if s == nil || int(id) >= len(s.instances) {
		return Instance{}, false
	}
	return s.instances[id], true
}

// Bounds returns the world box of the published hierarchy.
func (t *TLAS) Bounds() core.AABB {
	s := t.acquire()
	if s == nil {
		return core.EmptyAABB()
	}
	defer s.readers.Add(-1)
	return s.view.Nodes[s.root].Bounds()
}

// NodeRange returns the node pool range of the published hierarchy.
func (t *TLAS) NodeRange() (pool.Range, bool) {
	s := t.current.Load()
	if s == nil {
		return pool.Range{}, false
	}
	return s.nodes, true
}

// Release frees every hierarchy the TLAS built and every retired BLAS. The
// caller guarantees no Trace is in flight.
func (t *TLAS) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.current.Swap(nil); s != nil {
		s.orphans = append(s.orphans, t.orphans...)
		t.orphans = nil
		t.retired = append(t.retired, s)
	}
	for _, s := range t.retired {
		t.freeState(s)
	}
	for _, b := range t.orphans {
		b.Release()
	}
	t.retired, t.orphans = nil, nil
	t.descs = nil
	t.dirty = false
}
