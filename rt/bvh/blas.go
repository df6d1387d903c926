package bvh

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gekko3d/rtaccel/logging"
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/gekko3d/rtaccel/rt/pool"
)

// Builder writes BLAS and TLAS structures into a shared set of pools. Builds
// reserve pool space only once the tree is complete, so concurrent builds of
// different meshes only contend on the reservation itself.
type Builder struct {
	Pools  *Pools
	Config BuildConfig
	Logger logging.Logger
}

func NewBuilder(pools *Pools, cfg BuildConfig, logger logging.Logger) *Builder {
	return &Builder{
		Pools:  pools,
		Config: cfg.withDefaults(),
		Logger: logging.OrNop(logger),
	}
}

// BLAS is a view of one mesh's hierarchy inside the pools. Index pool entries
// in Indices are absolute offsets into the primitive arena; subtracting
// Prims.Offset gives the caller's original primitive index.
type BLAS struct {
	Root    uint32
	Nodes   pool.Range
	Indices pool.Range
	Prims   pool.Range
	Depth   int
	Leaves  int
	Bounds  core.AABB

	pools    *Pools
	retired  atomic.Bool
	released atomic.Bool
}

func (b *BLAS) PrimitiveCount() int { return int(b.Prims.Count) }

func (b *BLAS) Empty() bool { return b.Prims.Count == 0 }

// BuildBLAS builds a hierarchy over tris in model space. The triangles are
// copied into the primitive arena unchanged and in order. Zero triangles yield
// a valid BLAS that never reports a hit.
func (bld *Builder) BuildBLAS(tris []core.Triangle) (*BLAS, error) {
	start := time.Now()

	items := make([]buildItem, len(tris))
	for i := range tris {
		items[i] = buildItem{bounds: tris[i].Bounds(), centroid: tris[i].Centroid()}
	}
	res := partition(items, bld.Config, false)

	resv := reservation{pools: bld.Pools}
	var err error
	if resv.prims, err = bld.Pools.Primitives.Reserve(len(tris)); err != nil {
		return nil, fmt.Errorf("blas: reserving primitives: %w", err)
	}
	if resv.nodes, err = bld.Pools.Nodes.Reserve(len(res.nodes)); err != nil {
		resv.release()
		return nil, fmt.Errorf("blas: reserving nodes: %w", err)
	}
	if resv.indices, err = bld.Pools.Indices.Reserve(len(res.order)); err != nil {
		resv.release()
		return nil, fmt.Errorf("blas: reserving indices: %w", err)
	}

	rebase(res.nodes, resv.nodes.Offset, resv.indices.Offset)
	for i := range res.order {
		res.order[i] += resv.prims.Offset
	}

	if err = bld.Pools.Primitives.Store(resv.prims, tris); err == nil {
		if err = bld.Pools.Indices.Store(resv.indices, res.order); err == nil {
			err = bld.Pools.Nodes.Store(resv.nodes, res.nodes)
		}
	}
	if err != nil {
		resv.release()
		return nil, fmt.Errorf("blas: %w", err)
	}

	blas := &BLAS{
		Root:    resv.nodes.Offset,
		Nodes:   resv.nodes,
		Indices: resv.indices,
		Prims:   resv.prims,
		Depth:   res.depth,
		Leaves:  res.leaves,
		Bounds:  res.nodes[0].Bounds(),
		pools:   bld.Pools,
	}
	bld.Logger.Debugf("BLAS build: %d triangles, %d nodes, %d leaves, depth %d, %s",
		len(tris), len(res.nodes), res.leaves, res.depth, time.Since(start))
	return blas, nil
}

// rebase turns scratch-local child and index offsets into pool offsets. The
// padding node is left untouched.
func rebase(nodes []Node, nodeBase, indexBase uint32) {
	for i := range nodes {
		n := &nodes[i]
		if i == 1 {
			continue
		}
		if n.IsLeaf() {
			n.LeftFirst += indexBase
		} else {
			n.LeftFirst += nodeBase
		}
	}
}

// Trace intersects the ray with this BLAS alone, in model space. Hits carry
// core.NoInstance as their instance id.
func (b *BLAS) Trace(ray core.Ray, mode core.TraceMode) (core.Hit, bool) {
	v := b.pools.Snapshot()
	return traverse(&v, b.Root, nil, b, ray, mode, b.Depth+1)
}

// Release returns the BLAS ranges to the pools. The caller guarantees nothing
// traverses it anymore; a Scene does this through TLAS.Retire.
func (b *BLAS) Release() {
	if b.released.Swap(true) {
		return
	}
	resv := reservation{pools: b.pools, nodes: b.Nodes, indices: b.Indices, prims: b.Prims}
	resv.release()
}
