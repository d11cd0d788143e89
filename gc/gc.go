package gc

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/inhies/go-bytesize"

	"github.com/kolkov/copygc/internal/gc/collector"
	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/policy"
	"github.com/kolkov/copygc/internal/gc/rootscan"
)

// DefaultHeapSize is the per-half-space size used when neither Configure
// nor COPYGC_HEAP_SIZE overrides it.
const DefaultHeapSize = 512 << 10

// Allocation failures, re-exported so callers need not import internal
// packages.
var (
	ErrAllocTooLarge = collector.ErrAllocTooLarge
	ErrOutOfHeap     = collector.ErrOutOfHeap
)

// Ptr is an untyped handle to a managed object.
type Ptr = fatptr.FatPtr

var (
	defaultMu       sync.Mutex
	defaultInstance *collector.CopyingCollector
	configuredSize  uintptr
)

// Configure sets the default collector's heap size. It must be called
// before the first allocation; afterwards the heap is mapped and its size
// is fixed for the life of the process.
func Configure(heapSize uintptr) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstance != nil {
		return errors.New("gc: default collector already initialized")
	}
	configuredSize = heapSize
	return nil
}

// Default returns the process-wide collector, initializing it on first
// use. Initialization is race-free; the loser of a racing first call sees
// the winner's instance.
func Default() *collector.CopyingCollector {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstance == nil {
		size := configuredSize
		if size == 0 {
			size = heapSizeFromEnv()
		}
		c, err := collector.New(size, policy.NewSerial(), nil, rootscan.Default())
		if err != nil {
			panic(fmt.Sprintf("gc: cannot initialize default collector: %v", err))
		}
		defaultInstance = c
	}
	return defaultInstance
}

// heapSizeFromEnv reads COPYGC_HEAP_SIZE, accepting human-readable sizes
// ("1MB", "64KB") or plain byte counts. Malformed values fall back to the
// default with a warning rather than failing allocation forever.
func heapSizeFromEnv() uintptr {
	v := os.Getenv("COPYGC_HEAP_SIZE")
	if v == "" {
		return DefaultHeapSize
	}
	sz, err := bytesize.Parse(v)
	if err != nil || sz == 0 {
		fmt.Fprintf(os.Stderr, "gc: invalid COPYGC_HEAP_SIZE %q: %v; using default\n", v, err)
		return DefaultHeapSize
	}
	return uintptr(sz)
}

// Alloc reserves size bytes at the given alignment from the default
// collector. alignment must be a power of two; pass 1 for no constraint.
// The caller's stack range is recorded first so the returned handle is
// visible to the next conservative scan.
func Alloc(size, alignment uintptr) (Ptr, error) {
	rootscan.Default().UpdateStackRange(rootscan.CallerFP())
	return Default().Alloc(size, alignment)
}

// Collect runs a full collection: the caller's frame is recorded, roots
// are gathered conservatively, and every unreachable object is reclaimed.
// Returns when the collection has finished.
func Collect() {
	rootscan.Default().UpdateStackRange(rootscan.CallerFP())
	//nolint:errcheck // The default collector's policy is serial: the collection ran inline.
	Default().AsyncCollect(nil).Wait()
}

// FreeSpace returns how many bytes the default collector can still hand
// out before its cap.
func FreeSpace() uintptr {
	return Default().FreeSpace()
}

// Contains reports whether addr lies inside the default collector's
// managed heap.
func Contains(addr uintptr) bool {
	return Default().Contains(addr)
}
