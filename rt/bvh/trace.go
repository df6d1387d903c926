package bvh

import (
	"sync"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// topLevel tags stack entries that belong to the TLAS.
	topLevel int32 = -1
	// loneLevel tags entries of a BLAS traced without a TLAS.
	loneLevel int32 = -2
)

type stackEntry struct {
	node  uint32
	inst  int32
	tNear float32
}

var stackPool = sync.Pool{
	New: func() any {
		s := make([]stackEntry, 0, 128)
		return &s
	},
}

type tracer struct {
	view  *View
	insts []Instance
	lone  *BLAS
}

func traverse(v *View, root uint32, insts []Instance, lone *BLAS, ray core.Ray, mode core.TraceMode, depth int) (core.Hit, bool) {
	t := tracer{view: v, insts: insts, lone: lone}
	return t.run(root, ray, mode, depth)
}

// run walks nodes front to back with an explicit stack. Entries carry the entry
// distance computed when they were pushed, so subtrees beyond the closest hit
// found so far are dropped without another slab test. Local rays keep the
// world t parameterization, which makes distances from both levels comparable.
func (t *tracer) run(root uint32, world core.Ray, mode core.TraceMode, depth int) (core.Hit, bool) {
	nodes := t.view.Nodes
	indices := t.view.Indices
	prims := t.view.Primitives

	level := topLevel
	if t.lone != nil {
		level = loneLevel
	}

	tMax := world.TMax
	tn, ok := nodes[root].Bounds().Slab(&world, tMax)
	if !ok {
		return core.Hit{}, false
	}

	sp := stackPool.Get().(*[]stackEntry)
	stack := (*sp)[:0]
	if cap(stack) < 2*depth+2 {
		stack = make([]stackEntry, 0, 2*depth+2)
	}
	defer func() {
		*sp = stack[:0]
		stackPool.Put(sp)
	}()
	stack = append(stack, stackEntry{node: root, inst: level, tNear: tn})

	var (
		found   bool
		hitT    float32
		hitU    float32
		hitV    float32
		hitPrim uint32
		hitInst = level
	)

	ray := world
	cur := level

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tNear > tMax {
			continue
		}
		if e.inst != cur {
			if e.inst >= 0 {
				ray = world.Transform(t.insts[e.inst].Inverse)
			} else {
				ray = world
			}
			cur = e.inst
		}

		node := &nodes[e.node]
		if !node.IsLeaf() {
			l, r := node.LeftFirst, node.LeftFirst+1
			tl, okL := nodes[l].Bounds().Slab(&ray, tMax)
			tr, okR := nodes[r].Bounds().Slab(&ray, tMax)
			switch {
			case okL && okR:
				if tl <= tr {
					stack = append(stack, stackEntry{r, e.inst, tr}, stackEntry{l, e.inst, tl})
				} else {
					stack = append(stack, stackEntry{l, e.inst, tl}, stackEntry{r, e.inst, tr})
				}
			case okL:
				stack = append(stack, stackEntry{l, e.inst, tl})
			case okR:
				stack = append(stack, stackEntry{r, e.inst, tr})
			}
			continue
		}

		first, end := node.LeftFirst, node.LeftFirst+node.Count
		if e.inst == topLevel {
			for i := first; i < end; i++ {
				slot := indices[i]
				inst := &t.insts[slot]
				if inst.BLAS.Empty() {
					continue
				}
				local := world.Transform(inst.Inverse)
				tb, ok := nodes[inst.BLAS.Root].Bounds().Slab(&local, tMax)
				if !ok {
					continue
				}
				stack = append(stack, stackEntry{node: inst.BLAS.Root, inst: int32(slot), tNear: tb})
				ray, cur = local, int32(slot)
			}
			continue
		}

		for i := first; i < end; i++ {
			p := indices[i]
			d, u, v, ok := prims[p].Intersect(&ray, tMax)
			if !ok {
				continue
			}
			found, tMax = true, d
			hitT, hitU, hitV, hitPrim, hitInst = d, u, v, p, e.inst
			if mode == core.AnyHit {
				return t.finish(hitInst, hitPrim, hitT, hitU, hitV), true
			}
		}
	}

	if !found {
		return core.Hit{}, false
	}
	return t.finish(hitInst, hitPrim, hitT, hitU, hitV), true
}

// finish builds the hit record once traversal settled on a primitive. The
// normal is only computed here, never for intermediate candidates.
func (t *tracer) finish(inst int32, prim uint32, dist, u, v float32) core.Hit {
	tri := &t.view.Primitives[prim]
	h := core.Hit{
		T:           dist,
		Barycentric: mgl32.Vec3{1 - u - v, u, v},
	}
	if inst < 0 {
		h.InstanceID = core.NoInstance
		h.PrimitiveID = prim - t.lone.Prims.Offset
		h.Normal = tri.Normal()
		return h
	}
	in := &t.insts[inst]
	h.InstanceID = uint32(inst)
	h.PrimitiveID = prim - in.BLAS.Prims.Offset
	h.Normal = core.TransformNormal(in.Normal, tri.Normal())
	return h
}
