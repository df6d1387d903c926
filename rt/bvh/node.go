package bvh

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/rtaccel/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// NodeSize is the encoded and in-memory size of a Node. Two siblings fill one
// cache line.
const NodeSize = 32

// Matches WGSL BVHNode
// struct BVHNode {
//    aabb_min   : vec3<f32>; (12)
//    left_first : u32;       (4)
//    aabb_max   : vec3<f32>; (12)
//    count      : u32;       (4)
// }; -> 32 bytes
//
// Count == 0 marks an interior node whose children are LeftFirst and
// LeftFirst+1. Count > 0 marks a leaf covering index pool entries
// [LeftFirst, LeftFirst+Count).
type Node struct {
	Min       mgl32.Vec3
	LeftFirst uint32
	Max       mgl32.Vec3
	Count     uint32
}

func (n *Node) IsLeaf() bool { return n.Count > 0 }

func (n *Node) Bounds() core.AABB {
	return core.AABB{Min: n.Min, Max: n.Max}
}

func (n *Node) setBounds(b core.AABB) {
	n.Min = b.Min
	n.Max = b.Max
}

func (n *Node) ToBytes() []byte {
	buf := make([]byte, NodeSize)
	n.put(buf)
	return buf
}

func (n *Node) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], n.LeftFirst)

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], n.Count)
}

// EncodeNodes serializes nodes back to back for upload to a storage buffer.
func EncodeNodes(nodes []Node) []byte {
	out := make([]byte, len(nodes)*NodeSize)
	for i := range nodes {
		nodes[i].put(out[i*NodeSize:])
	}
	return out
}

// emptyNode is the root of a BVH with nothing in it: an inverted box that the
// slab test rejects before the node kind is looked at.
func emptyNode() Node {
	e := core.EmptyAABB()
	return Node{Min: e.Min, Max: e.Max}
}
