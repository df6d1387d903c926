package bvh

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const maxBins = 64

type BuildConfig struct {
	// LeafSize is the item count at or below which a node becomes a leaf.
	LeafSize int
	// MaxDepth forces leaves below this depth.
	MaxDepth int
	// Bins is the number of SAH buckets per axis.
	Bins int
	// Subtrees above ParallelDepth with at least ParallelThreshold items are
	// built on their own goroutine.
	ParallelDepth     int
	ParallelThreshold int
}

func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		LeafSize:          2,
		MaxDepth:          32,
		Bins:              12,
		ParallelDepth:     3,
		ParallelThreshold: 4096,
	}
}

func (c BuildConfig) withDefaults() BuildConfig {
	d := DefaultBuildConfig()
	if c.LeafSize <= 0 {
		c.LeafSize = d.LeafSize
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.Bins < 2 {
		c.Bins = d.Bins
	}
	if c.Bins > maxBins {
		c.Bins = maxBins
	}
	if c.ParallelThreshold <= 0 {
		c.ParallelThreshold = d.ParallelThreshold
	}
	return c
}

type buildItem struct {
	bounds   core.AABB
	centroid mgl32.Vec3
}

// partitioner builds a BVH over items into a local scratch array. Node 0 is
// the root and node 1 is padding, so every child pair starts on an even index.
// The scratch array is sized for the worst case up front and never grows,
// which lets subtrees be built concurrently: each claims its pairs from an
// atomic counter and partitions a disjoint slice of order.
type partitioner struct {
	cfg   BuildConfig
	items []buildItem
	order []uint32
	nodes []Node

	// singleLeaf requires exactly one item per leaf. Groups the SAH cannot
	// split fall back to a median split instead of becoming a leaf.
	singleLeaf bool

	nextPair atomic.Uint32
	maxDepth atomic.Int32
	leaves   atomic.Int32
}

type partitionResult struct {
	nodes  []Node
	order  []uint32
	depth  int
	leaves int
}

func partition(items []buildItem, cfg BuildConfig, singleLeaf bool) partitionResult {
	n := len(items)
	p := &partitioner{
		cfg:        cfg.withDefaults(),
		items:      items,
		order:      make([]uint32, n),
		nodes:      make([]Node, max(2, 2*n)),
		singleLeaf: singleLeaf,
	}
	for i := range p.order {
		p.order[i] = uint32(i)
	}
	p.nodes[1] = emptyNode()
	p.nextPair.Store(2)

	if n == 0 {
		p.nodes[0] = emptyNode()
		return partitionResult{nodes: p.nodes[:2], order: p.order}
	}

	p.subdivide(0, 0, n, 0)
	return partitionResult{
		nodes:  p.nodes[:p.nextPair.Load()],
		order:  p.order,
		depth:  int(p.maxDepth.Load()),
		leaves: int(p.leaves.Load()),
	}
}

func (p *partitioner) subdivide(nodeIdx uint32, first, count, depth int) {
	node := &p.nodes[nodeIdx]
	p.noteDepth(depth)

	bounds, cbounds := p.rangeBounds(first, count)
	node.setBounds(bounds)

	if count <= p.leafLimit() || (!p.singleLeaf && depth >= p.cfg.MaxDepth) {
		p.makeLeaf(node, first, count)
		return
	}

	leftCount := 0
	if depth < p.cfg.MaxDepth {
		if axis, split, ok := p.findSplit(first, count, cbounds); ok {
			leftCount = p.partitionByBin(first, count, axis, split, cbounds)
		}
	}
	if leftCount == 0 || leftCount == count {
		if !p.singleLeaf {
			// Degenerate split, e.g. coincident centroids.
			p.makeLeaf(node, first, count)
			return
		}
		leftCount = p.medianSplit(first, count, cbounds)
	}

	left := p.nextPair.Add(2) - 2
	node.LeftFirst = left
	node.Count = 0

	if depth < p.cfg.ParallelDepth && count >= p.cfg.ParallelThreshold {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.subdivide(left, first, leftCount, depth+1)
		}()
		p.subdivide(left+1, first+leftCount, count-leftCount, depth+1)
		wg.Wait()
	} else {
		p.subdivide(left, first, leftCount, depth+1)
		p.subdivide(left+1, first+leftCount, count-leftCount, depth+1)
	}

	node.setBounds(p.nodes[left].Bounds().Union(p.nodes[left+1].Bounds()))
}

func (p *partitioner) leafLimit() int {
	if p.singleLeaf {
		return 1
	}
	return p.cfg.LeafSize
}

func (p *partitioner) makeLeaf(node *Node, first, count int) {
	node.LeftFirst = uint32(first)
	node.Count = uint32(count)
	p.leaves.Add(1)
}

func (p *partitioner) noteDepth(depth int) {
	d := int32(depth)
	for {
		cur := p.maxDepth.Load()
		if d <= cur || p.maxDepth.CompareAndSwap(cur, d) {
			return
		}
	}
}

func (p *partitioner) rangeBounds(first, count int) (bounds, centroids core.AABB) {
	bounds, centroids = core.EmptyAABB(), core.EmptyAABB()
	for _, idx := range p.order[first : first+count] {
		it := &p.items[idx]
		bounds = bounds.Union(it.bounds)
		centroids = centroids.Grow(it.centroid)
	}
	return bounds, centroids
}

func binOf(c, lo, scale float32, bins int) int {
	b := int((c - lo) * scale)
	if b < 0 {
		return 0
	}
	if b >= bins {
		return bins - 1
	}
	return b
}

// findSplit runs the binned SAH on all three axes and returns the axis and the
// first bin of the right side minimizing area(L)*n(L) + area(R)*n(R).
func (p *partitioner) findSplit(first, count int, cb core.AABB) (axis, split int, ok bool) {
	bins := p.cfg.Bins
	best := float32(math.Inf(1))

	var (
		binBox   [maxBins]core.AABB
		binCount [maxBins]int
		rightA   [maxBins]float32
		rightN   [maxBins]int
	)

	for a := 0; a < 3; a++ {
		lo, hi := cb.Min[a], cb.Max[a]
		if !(hi > lo) {
			continue
		}
		scale := float32(bins) / (hi - lo)

		for i := 0; i < bins; i++ {
			binBox[i] = core.EmptyAABB()
			binCount[i] = 0
		}
		for _, idx := range p.order[first : first+count] {
			it := &p.items[idx]
			b := binOf(it.centroid[a], lo, scale, bins)
			binBox[b] = binBox[b].Union(it.bounds)
			binCount[b]++
		}

		// rightA[i], rightN[i] describe bins [i, bins).
		acc, n := core.EmptyAABB(), 0
		for i := bins - 1; i > 0; i-- {
			acc = acc.Union(binBox[i])
			n += binCount[i]
			rightA[i] = acc.HalfArea()
			rightN[i] = n
		}

		acc, n = core.EmptyAABB(), 0
		for i := 1; i < bins; i++ {
			acc = acc.Union(binBox[i-1])
			n += binCount[i-1]
			if n == 0 || rightN[i] == 0 {
				continue
			}
			cost := acc.HalfArea()*float32(n) + rightA[i]*float32(rightN[i])
			if cost < best {
				best, axis, split, ok = cost, a, i, true
			}
		}
	}
	return axis, split, ok
}

// partitionByBin reorders order[first:first+count] in place so items whose
// centroid falls in a bin below split come first, and returns how many did.
func (p *partitioner) partitionByBin(first, count, axis, split int, cb core.AABB) int {
	bins := p.cfg.Bins
	lo := cb.Min[axis]
	scale := float32(bins) / (cb.Max[axis] - lo)

	i, j := first, first+count-1
	for i <= j {
		if binOf(p.items[p.order[i]].centroid[axis], lo, scale, bins) < split {
			i++
			continue
		}
		p.order[i], p.order[j] = p.order[j], p.order[i]
		j--
	}
	return i - first
}

// medianSplit sorts the range along the widest centroid axis and cuts it in
// half. Used where every leaf must hold a single item.
func (p *partitioner) medianSplit(first, count int, cb core.AABB) int {
	axis := cb.LongestAxis()
	sub := p.order[first : first+count]
	sort.SliceStable(sub, func(i, j int) bool {
		return p.items[sub[i]].centroid[axis] < p.items[sub[j]].centroid[axis]
	})
	return count / 2
}
