package gc

import (
	"fmt"
	"unsafe"

	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/rootscan"
)

// SafePtr is a typed handle to a single managed T. The zero SafePtr is the
// nil handle.
//
// A SafePtr tracks its object across collections: the collector rewrites
// the handle's pointer word in place when the object moves, so Get always
// reaches the current copy. Keep handles where the conservative scanner
// can see them (stack locals of allocating goroutines, managed payloads,
// scanned data segments).
type SafePtr[T any] struct {
	ptr fatptr.FatPtr
}

// MakeSafe allocates a T-sized, T-aligned cell from the default collector
// and copies v into it. The caller's frame is recorded for root tracking
// before allocating, so the new handle is rooted the moment it exists.
func MakeSafe[T any](v T) (SafePtr[T], error) {
	rootscan.Default().UpdateStackRange(rootscan.CallerFP())
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		size = 1 // zero-sized types still need a distinct identity
	}
	p, err := Default().Alloc(size, unsafe.Alignof(zero))
	if err != nil {
		return SafePtr[T]{}, err
	}
	//nolint:gosec // Placement-construct into the managed cell.
	*(*T)(unsafe.Pointer(p.Addr())) = v
	return SafePtr[T]{ptr: p}, nil
}

// Get returns a pointer to the current location of the object. The pointer
// word is loaded atomically, so Get is safe against a concurrent
// collection moving the object. The returned *T addresses the copy that is
// current at the time of the call; the next collection moves the object,
// after which Get must be called again.
func (s *SafePtr[T]) Get() *T {
	if s.ptr.IsEmpty() {
		return nil
	}
	//nolint:gosec
	return (*T)(unsafe.Pointer(s.ptr.GCAddr()))
}

// Set overwrites the pointed-to object.
func (s *SafePtr[T]) Set(v T) {
	*s.Get() = v
}

// Load returns a copy of the pointed-to object.
func (s *SafePtr[T]) Load() T {
	return *s.Get()
}

// IsNil reports whether the handle is the nil handle.
func (s *SafePtr[T]) IsNil() bool {
	return s.ptr.IsEmpty()
}

// Equal reports whether two handles address the same object.
func (s *SafePtr[T]) Equal(o SafePtr[T]) bool {
	return s.ptr == o.ptr
}

// Compare orders handles by raw address: -1, 0 or +1. The order is only
// stable between collections.
func (s *SafePtr[T]) Compare(o SafePtr[T]) int {
	a, b := s.ptr.Addr(), o.ptr.Addr()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Clone allocates a new cell holding a copy of the current value.
func (s *SafePtr[T]) Clone() (SafePtr[T], error) {
	return MakeSafe(*s.Get())
}

// SafeSlice is a typed handle to a managed array of T with a recorded
// element count.
type SafeSlice[T any] struct {
	ptr fatptr.FatPtr
	n   int
}

// MakeSlice allocates a managed array of n elements of T, zero-valued.
func MakeSlice[T any](n int) (SafeSlice[T], error) {
	if n < 0 {
		return SafeSlice[T]{}, fmt.Errorf("gc: negative slice length %d", n)
	}
	rootscan.Default().UpdateStackRange(rootscan.CallerFP())
	var zero T
	elem := unsafe.Sizeof(zero)
	size := elem * uintptr(n)
	if size == 0 {
		size = 1
	}
	p, err := Default().Alloc(size, unsafe.Alignof(zero))
	if err != nil {
		return SafeSlice[T]{}, err
	}
	// The allocator hands out uninitialized bytes; a typed slice starts
	// zeroed like a Go slice would.
	//nolint:gosec
	b := unsafe.Slice((*byte)(unsafe.Pointer(p.Addr())), size)
	for i := range b {
		b[i] = 0
	}
	return SafeSlice[T]{ptr: p, n: n}, nil
}

// Len returns the element count.
func (s *SafeSlice[T]) Len() int {
	return s.n
}

// At returns a pointer to element i. Panics on a boundary violation, like
// indexing a Go slice.
func (s *SafeSlice[T]) At(i int) *T {
	if i < 0 || i >= s.n {
		panic(fmt.Sprintf("gc: index %d out of range [0:%d]", i, s.n))
	}
	var zero T
	//nolint:gosec
	return (*T)(unsafe.Pointer(s.ptr.GCAddr() + uintptr(i)*unsafe.Sizeof(zero)))
}

// Set stores v at element i with the same boundary behavior as At.
func (s *SafeSlice[T]) Set(i int, v T) {
	*s.At(i) = v
}

// Each calls fn for every element in index order. The element pointer is
// only valid during the call.
func (s *SafeSlice[T]) Each(fn func(i int, p *T)) {
	for i := 0; i < s.n; i++ {
		fn(i, s.At(i))
	}
}
