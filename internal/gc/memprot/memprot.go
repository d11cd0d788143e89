package memprot

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxHeaps bounds the known-heap table. Two entries per collector; 128
// leaves room for many collectors plus promotion arenas.
const maxHeaps = 128

type heapRange struct {
	start uintptr
	end   uintptr
}

// Known-heap table. Append-only: entries are published by incrementing
// heapCount after the range is written, so lock-free readers never observe
// a half-written entry.
var (
	heapsMu   sync.Mutex
	heaps     [maxHeaps]heapRange
	heapCount atomic.Int32
)

var (
	pageSizeOnce sync.Once
	pageSize     int
)

// PageSize returns the OS page size.
func PageSize() int {
	pageSizeOnce.Do(func() {
		pageSize = unix.Getpagesize()
	})
	return pageSize
}

// PageSizeCeil returns the smallest multiple of the page size that is >= n.
func PageSizeCeil(n uintptr) uintptr {
	ps := uintptr(PageSize())
	return (n + ps - 1) / ps * ps
}

// pageFloor aligns addr down to a page boundary.
func pageFloor(addr uintptr) uintptr {
	return addr &^ (uintptr(PageSize()) - 1)
}

// MapSpace maps a page-aligned, zero-filled, read/write buffer of
// PageSizeCeil(n) bytes. The mapping is anonymous and private; it is never
// resized over its lifetime.
func MapSpace(n uintptr) ([]byte, error) {
	size := int(PageSizeCeil(n))
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memprot: mmap %d bytes: %w", size, err)
	}
	return buf, nil
}

// UnmapSpace releases a buffer obtained from MapSpace.
func UnmapSpace(buf []byte) error {
	if buf == nil {
		return nil
	}
	if err := unix.Munmap(buf); err != nil {
		return fmt.Errorf("memprot: munmap: %w", err)
	}
	return nil
}

// RegisterHeap installs [start, start+len) in the known-heap table.
// Registering the same range twice is a no-op. The table is fixed capacity;
// overflowing it panics, since an unregistered heap would make fault
// classification lie.
func RegisterHeap(start uintptr, length uintptr) {
	end := start + length
	heapsMu.Lock()
	defer heapsMu.Unlock()
	n := heapCount.Load()
	for i := int32(0); i < n; i++ {
		if heaps[i].start == start && heaps[i].end == end {
			return
		}
	}
	if n == maxHeaps {
		panic("memprot: known-heap table full")
	}
	heaps[n] = heapRange{start: start, end: end}
	heapCount.Store(n + 1)
}

// InsideRegisteredHeap reports whether addr lies within any registered heap
// region. Safe to call without locks, including from fault-recovery paths:
// the table is append-only and entries are published after being written.
//
//go:nosplit
func InsideRegisteredHeap(addr uintptr) bool {
	n := heapCount.Load()
	for i := int32(0); i < n; i++ {
		if addr >= heaps[i].start && addr < heaps[i].end {
			return true
		}
	}
	return false
}

// SliceAddr returns the address of the first byte of buf.
//
//go:nosplit
func SliceAddr(buf []byte) uintptr {
	//nolint:gosec // Heap buffers are mmap'd and never move.
	return uintptr(unsafe.Pointer(&buf[0]))
}
