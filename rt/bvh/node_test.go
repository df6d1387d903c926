package bvh

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/gekko3d/rtaccel/rt/meshio"
	"github.com/go-gl/mathgl/mgl32"
)

func TestNodeLayout(t *testing.T) {
	if s := unsafe.Sizeof(Node{}); s != NodeSize {
		t.Fatalf("Node is %d bytes, want %d", s, NodeSize)
	}

	n := Node{Min: mgl32.Vec3{-1, -2, -3}, LeftFirst: 42, Max: mgl32.Vec3{4, 5, 6}, Count: 3}
	data := n.ToBytes()
	if len(data) != NodeSize {
		t.Fatalf("Expected %d bytes, got %d", NodeSize, len(data))
	}

	// struct BVHNode {
	//     aabb_min:   vec3<f32>, // offset 0
	//     left_first: u32,       // offset 12
	//     aabb_max:   vec3<f32>, // offset 16
	//     count:      u32,       // offset 28
	// }
	for i := 0; i < 3; i++ {
		gotMin := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		gotMax := math.Float32frombits(binary.LittleEndian.Uint32(data[16+i*4:]))
		if gotMin != n.Min[i] || gotMax != n.Max[i] {
			t.Errorf("axis %d: got min=%f max=%f", i, gotMin, gotMax)
		}
	}
	if lf := binary.LittleEndian.Uint32(data[12:16]); lf != 42 {
		t.Errorf("left_first = %d, want 42", lf)
	}
	if c := binary.LittleEndian.Uint32(data[28:32]); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}

	enc := EncodeNodes([]Node{n, emptyNode()})
	if len(enc) != 2*NodeSize {
		t.Fatalf("Expected %d bytes for two nodes, got %d", 2*NodeSize, len(enc))
	}
	if string(enc[:NodeSize]) != string(data) {
		t.Error("EncodeNodes should match ToBytes for the first node")
	}
}

func TestNodeArenaAlignment(t *testing.T) {
	b := newTestBuilder(t, PoolConfig{InitialNodes: 8})
	if _, err := b.BuildBLAS(meshio.Box(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})); err != nil {
		t.Fatal(err)
	}
	nodes := b.Pools.Nodes.Slice()
	if addr := uintptr(unsafe.Pointer(&nodes[0])); addr%64 != 0 {
		t.Errorf("node arena base %#x is not cache line aligned", addr)
	}
}
