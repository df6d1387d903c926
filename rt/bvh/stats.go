package bvh

import (
	"errors"
	"fmt"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/gekko3d/rtaccel/rt/pool"
)

var ErrInvalidTree = errors.New("bvh: invalid tree")

// Stats summarizes the shape of one hierarchy.
type Stats struct {
	Nodes       int
	Leaves      int
	Items       int
	MaxDepth    int
	AvgLeafSize float64
	// SAHCost is the expected cost of a random ray, with unit cost for both
	// node visits and primitive tests, relative to the root area.
	SAHCost float64
}

// walker visits a hierarchy through a View and checks the structural
// invariants along the way.
type walker struct {
	view     *View
	nodes    pool.Range
	indices  pool.Range
	itemBox  func(idx uint32) (core.AABB, bool)
	items    pool.Range
	maxLeaf  int
	stats    Stats
	seen     []bool
	rootArea float64
}

func (w *walker) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTree, fmt.Sprintf(format, args...))
}

func (w *walker) walk(root uint32) (Stats, error) {
	if !w.nodes.Contains(root) {
		return Stats{}, w.fail("root %d outside node range [%d,%d)", root, w.nodes.Offset, w.nodes.End())
	}
	rootBox := w.view.Nodes[root].Bounds()
	if rootBox.IsEmpty() && w.items.Count == 0 {
		return Stats{Nodes: 1}, nil
	}
	w.rootArea = float64(rootBox.HalfArea())
	w.seen = make([]bool, w.items.Count)

	if err := w.visit(root, 0); err != nil {
		return Stats{}, err
	}
	for i, ok := range w.seen {
		if !ok {
			return Stats{}, w.fail("item %d is not referenced by any leaf", uint32(i)+w.items.Offset)
		}
	}
	if w.stats.Leaves > 0 {
		w.stats.AvgLeafSize = float64(w.stats.Items) / float64(w.stats.Leaves)
	}
	return w.stats, nil
}

func (w *walker) area(b core.AABB) float64 {
	if w.rootArea == 0 {
		return 1
	}
	return float64(b.HalfArea()) / w.rootArea
}

func (w *walker) visit(idx uint32, depth int) error {
	n := &w.view.Nodes[idx]
	box := n.Bounds()
	w.stats.Nodes++
	w.stats.MaxDepth = max(w.stats.MaxDepth, depth)

	if !n.IsLeaf() {
		l := n.LeftFirst
		if l%2 != 0 {
			return w.fail("node %d: left child %d is not on an even index", idx, l)
		}
		if !w.nodes.Contains(l) || !w.nodes.Contains(l+1) {
			return w.fail("node %d: children %d,%d outside node range", idx, l, l+1)
		}
		union := w.view.Nodes[l].Bounds().Union(w.view.Nodes[l+1].Bounds())
		if union != box {
			return w.fail("node %d: box %v is not the union of its children %v", idx, box, union)
		}
		w.stats.SAHCost += w.area(box)
		if err := w.visit(l, depth+1); err != nil {
			return err
		}
		return w.visit(l+1, depth+1)
	}

	if w.maxLeaf > 0 && int(n.Count) > w.maxLeaf {
		return w.fail("node %d: leaf holds %d items, limit %d", idx, n.Count, w.maxLeaf)
	}
	if !w.indices.Contains(n.LeftFirst) || n.LeftFirst+n.Count > w.indices.End() {
		return w.fail("node %d: leaf [%d,%d) outside index range", idx, n.LeftFirst, n.LeftFirst+n.Count)
	}
	leafBox := core.EmptyAABB()
	for i := n.LeftFirst; i < n.LeftFirst+n.Count; i++ {
		item := w.view.Indices[i]
		if !w.items.Contains(item) {
			return w.fail("node %d: item %d outside [%d,%d)", idx, item, w.items.Offset, w.items.End())
		}
		if w.seen[item-w.items.Offset] {
			return w.fail("node %d: item %d referenced twice", idx, item)
		}
		w.seen[item-w.items.Offset] = true
		b, ok := w.itemBox(item)
		if !ok {
			return w.fail("node %d: item %d has no bounds", idx, item)
		}
		leafBox = leafBox.Union(b)
	}
	if leafBox != box {
		return w.fail("node %d: leaf box %v is not the union of its items %v", idx, box, leafBox)
	}
	w.stats.Leaves++
	w.stats.Items += int(n.Count)
	w.stats.SAHCost += w.area(box) * float64(n.Count)
	return nil
}

// Stats walks the BLAS. It returns ErrInvalidTree if any structural invariant
// is broken, so it doubles as a validator.
func (b *BLAS) Stats() (Stats, error) {
	v := b.pools.Snapshot()
	w := &walker{
		view:    &v,
		nodes:   b.Nodes,
		indices: b.Indices,
		items:   b.Prims,
		itemBox: func(idx uint32) (core.AABB, bool) {
			return v.Primitives[idx].Bounds(), true
		},
	}
	return w.walk(b.Root)
}

func (b *BLAS) Validate() error {
	_, err := b.Stats()
	return err
}

// Stats walks the published TLAS. Leaves must hold exactly one instance.
func (t *TLAS) Stats() (Stats, error) {
	s := t.acquire()
	if s == nil {
		return Stats{}, nil
	}
	defer s.readers.Add(-1)
	w := &walker{
		view:    &s.view,
		nodes:   s.nodes,
		indices: s.indices,
		items:   pool.Range{Count: uint32(len(s.instances))},
		maxLeaf: 1,
		itemBox: func(idx uint32) (core.AABB, bool) {
			if int(idx) >= len(s.instances) {
				return core.AABB{}, false
			}
			return s.instances[idx].Bounds, true
		},
	}
	return w.walk(s.root)
}

func (t *TLAS) Validate() error {
	_, err := t.Stats()
	return err
}
