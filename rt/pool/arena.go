// Package pool implements the append-only arenas that back every BVH. Callers
// hold offsets into an arena, never addresses, so growing an arena copies the
// backing storage without invalidating anything a caller kept.
package pool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

// CacheLineSize is the alignment of arenas created with ArenaConfig.Align.
const CacheLineSize = 64

// ErrOutOfMemory is returned when a reservation would grow an arena past its cap.
var ErrOutOfMemory = errors.New("pool: out of memory")

// Range is a contiguous run of elements in an arena.
type Range struct {
	Offset uint32
	Count  uint32
}

func (r Range) End() uint32 { return r.Offset + r.Count }

func (r Range) Contains(i uint32) bool { return i >= r.Offset && i < r.End() }

type ArenaConfig struct {
	// Limit caps the arena length in elements. Zero means unbounded.
	Limit int
	// Initial is the capacity allocated up front.
	Initial int
	// Align, when non-zero, aligns the base address of the backing storage
	// to that many bytes (a power of two). Only valid for element types
	// without pointers.
	Align uintptr
	// Pairs rounds every reservation up to an even length, so every
	// reservation starts on an even offset.
	Pairs bool
}

type ArenaStats struct {
	Name     string
	Len      int
	Cap      int
	Free     int
	Reserved int
	Limit    int
}

// Arena is a growable, lock-protected array of T. Reservations hand out
// exclusively owned ranges; Store copies into them under the lock, so no
// writer ever holds a slice of storage that growth could replace.
type Arena[T any] struct {
	mu       sync.Mutex
	name     string
	cfg      ArenaConfig
	data     []T
	free     []Range
	reserved int
}

func NewArena[T any](name string, cfg ArenaConfig) *Arena[T] {
	a := &Arena[T]{name: name, cfg: cfg}
	a.data = a.alloc(cfg.Initial)[:0]
	return a
}

func (a *Arena[T]) alloc(n int) []T {
	if a.cfg.Align == 0 {
		return make([]T, n)
	}
	return alignedSlice[T](n, a.cfg.Align)
}

// alignedSlice carves an n element slice out of a byte buffer whose first
// element sits on an align byte boundary. The byte buffer is not scanned by the
// GC, hence the pointer-free restriction on T.
func alignedSlice[T any](n int, align uintptr) []T {
	var zero T
	size := unsafe.Sizeof(zero)
	if n == 0 || size == 0 {
		return make([]T, n)
	}
	buf := make([]byte, uintptr(n)*size+align)
	off := -uintptr(unsafe.Pointer(unsafe.SliceData(buf))) & (align - 1)
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[off])), n)
}

func (a *Arena[T]) Name() string { return a.name }

// Reserve claims n elements. The range is exclusively owned by the caller
// until it is released or the arena is reset.
func (a *Arena[T]) Reserve(n int) (Range, error) {
	if n < 0 {
		return Range{}, fmt.Errorf("pool: %s: negative reservation %d", a.name, n)
	}
	if a.cfg.Pairs && n%2 == 1 {
		n++
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if n == 0 {
		return Range{Offset: uint32(len(a.data))}, nil
	}

	// First fit from released ranges.
	for i, fr := range a.free {
		if int(fr.Count) < n {
			continue
		}
		r := Range{Offset: fr.Offset, Count: uint32(n)}
		if int(fr.Count) == n {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Range{Offset: fr.Offset + uint32(n), Count: fr.Count - uint32(n)}
		}
		a.reserved += n
		return r, nil
	}

	off := len(a.data)
	need := off + n
	if a.cfg.Limit > 0 && need > a.cfg.Limit {
		return Range{}, fmt.Errorf("%w: %s arena needs %d elements, cap is %d", ErrOutOfMemory, a.name, need, a.cfg.Limit)
	}
	if need > cap(a.data) {
		newCap := max(2*cap(a.data), need, 64)
		if a.cfg.Limit > 0 && newCap > a.cfg.Limit {
			newCap = a.cfg.Limit
		}
		grown := a.alloc(newCap)
		copy(grown, a.data)
		a.data = grown[:need]
	} else {
		a.data = a.data[:need]
	}
	a.reserved += n
	return Range{Offset: uint32(off), Count: uint32(n)}, nil
}

// Store copies src into the start of a reserved range.
func (a *Arena[T]) Store(r Range, src []T) error {
	if len(src) > int(r.Count) {
		return fmt.Errorf("pool: %s: storing %d elements into a range of %d", a.name, len(src), r.Count)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(r.End()) > len(a.data) {
		return fmt.Errorf("pool: %s: range [%d,%d) outside arena of length %d", a.name, r.Offset, r.End(), len(a.data))
	}
	copy(a.data[r.Offset:], src)
	return nil
}

// Release hands a range back for reuse. Adjacent free ranges are merged.
func (a *Arena[T]) Release(r Range) {
	if r.Count == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reserved -= int(r.Count)
	a.free = append(a.free, r)
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].Offset < a.free[j].Offset })

	merged := a.free[:1]
	for _, fr := range a.free[1:] {
		last := &merged[len(merged)-1]
		if last.End() == fr.Offset {
			last.Count += fr.Count
			continue
		}
		merged = append(merged, fr)
	}
	a.free = merged
}

// Slice returns the current backing slice header. Elements inside ranges that
// were fully stored before the call are safe to read concurrently; a later
// growth switches the arena to new storage and leaves this view intact.
func (a *Arena[T]) Slice() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// Read copies a range out of the arena.
func (a *Arena[T]) Read(r Range) []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]T, r.Count)
	copy(out, a.data[r.Offset:r.End()])
	return out
}

func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.data)
}

// Reset drops every reservation. Offsets handed out before are invalid after.
func (a *Arena[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = a.alloc(a.cfg.Initial)[:0]
	a.free = nil
	a.reserved = 0
}

func (a *Arena[T]) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	free := 0
	for _, fr := range a.free {
		free += int(fr.Count)
	}
	return ArenaStats{
		Name:     a.name,
		Len:      len(a.data),
		Cap:      cap(a.data),
		Free:     free,
		Reserved: a.reserved,
		Limit:    a.cfg.Limit,
	}
}
