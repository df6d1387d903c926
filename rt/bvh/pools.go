package bvh

import (
	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/gekko3d/rtaccel/rt/pool"
)

// PoolConfig caps the three shared arenas. Zero limits mean unbounded.
type PoolConfig struct {
	MaxNodes      int
	MaxIndices    int
	MaxPrimitives int

	InitialNodes      int
	InitialIndices    int
	InitialPrimitives int
}

// Pools owns the node, primitive-index and primitive arenas shared by every
// BLAS and the TLAS of a scene. A BVH is a view into them: a root offset plus
// the ranges it reserved.
type Pools struct {
	Nodes      *pool.Arena[Node]
	Indices    *pool.Arena[uint32]
	Primitives *pool.Arena[core.Triangle]
}

func NewPools(cfg PoolConfig) *Pools {
	return &Pools{
		Nodes: pool.NewArena[Node]("node", pool.ArenaConfig{
			Limit:   cfg.MaxNodes,
			Initial: cfg.InitialNodes,
			Align:   pool.CacheLineSize,
			Pairs:   true,
		}),
		Indices: pool.NewArena[uint32]("index", pool.ArenaConfig{
			Limit:   cfg.MaxIndices,
			Initial: cfg.InitialIndices,
		}),
		Primitives: pool.NewArena[core.Triangle]("primitive", pool.ArenaConfig{
			Limit:   cfg.MaxPrimitives,
			Initial: cfg.InitialPrimitives,
		}),
	}
}

// View is a read-only snapshot of the arenas taken after a build completed.
// Traversal reads only through a View so that later growth of the arenas
// never races with it.
type View struct {
	Nodes      []Node
	Indices    []uint32
	Primitives []core.Triangle
}

func (p *Pools) Snapshot() View {
	return View{
		Nodes:      p.Nodes.Slice(),
		Indices:    p.Indices.Slice(),
		Primitives: p.Primitives.Slice(),
	}
}

// Reset drops every structure built from these pools.
func (p *Pools) Reset() {
	p.Nodes.Reset()
	p.Indices.Reset()
	p.Primitives.Reset()
}

type PoolStats struct {
	Nodes      pool.ArenaStats
	Indices    pool.ArenaStats
	Primitives pool.ArenaStats
}

func (p *Pools) Stats() PoolStats {
	return PoolStats{
		Nodes:      p.Nodes.Stats(),
		Indices:    p.Indices.Stats(),
		Primitives: p.Primitives.Stats(),
	}
}

// NodeBytes encodes the whole node arena in the GPU layout of Node.
func (p *Pools) NodeBytes() []byte {
	return EncodeNodes(p.Nodes.Slice())
}

// reservation tracks what a build claimed so a failure can hand it all back.
type reservation struct {
	pools   *Pools
	nodes   pool.Range
	indices pool.Range
	prims   pool.Range
}

func (r *reservation) release() {
	r.pools.Nodes.Release(r.nodes)
	r.pools.Indices.Release(r.indices)
	r.pools.Primitives.Release(r.prims)
	*r = reservation{pools: r.pools}
}
