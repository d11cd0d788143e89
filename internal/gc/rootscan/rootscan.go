package rootscan

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/memprot"
)

// threadRange is the stack range recorded for one thread: the earliest
// (numerically greatest) frame base ever observed and the most recent stack
// pointer. Fields are atomic so the owning thread can widen its own entry
// under the shared lock while an enumeration reads it.
type threadRange struct {
	high atomic.Uintptr
	low  atomic.Uintptr
}

// Scanner enumerates conservative roots. Use Default for the process-wide
// instance; tests construct their own to control the global-root vector.
type Scanner struct {
	// globals holds the immutable global-root vector. Replaced wholesale
	// by Rescan, hence the atomic pointer.
	globals atomic.Pointer[[]uintptr]

	// mu guards ranges. Exclusive ownership is needed to insert a new
	// thread entry; shared ownership for everything else, including
	// widening an existing entry (its fields are atomic).
	mu     sync.RWMutex
	ranges map[int64]*threadRange
}

var (
	defaultScanner *Scanner
	defaultOnce    sync.Once
)

// Default returns the process-wide scanner, constructing it (and running
// the one-shot global scan) on first use.
func Default() *Scanner {
	defaultOnce.Do(func() {
		defaultScanner = New(scanGlobals())
	})
	return defaultScanner
}

// New builds a scanner with the given global-root vector.
func New(globalRoots []uintptr) *Scanner {
	s := &Scanner{ranges: make(map[int64]*threadRange)}
	s.globals.Store(&globalRoots)
	return s
}

// scanGlobals reads the process map and window-scans the executable's data
// segments. Failure to open the map is survivable: the scanner starts with
// no global roots and objects referenced only from globals will be
// collected, so warn loudly.
func scanGlobals() []uintptr {
	exe, err := os.Executable()
	if err != nil {
		exe = ""
	}
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"copygc: cannot read process map (%v); global roots disabled\n", err)
		return nil
	}
	defer f.Close()

	var roots []uintptr
	for _, region := range dataSegments(f, exe) {
		begin, end := region.start, region.end
		memprot.CatchFaults(func() {
			fatptr.ScanMemory(begin, end, func(slot uintptr) {
				roots = append(roots, slot)
			})
		})
	}
	return roots
}

// Rescan re-runs the global data-segment scan and replaces the global-root
// vector. Call after loading code at runtime (plugin.Open or equivalent),
// which maps fresh data segments the startup scan never saw.
func (s *Scanner) Rescan() {
	roots := scanGlobals()
	s.globals.Store(&roots)
}

// GlobalRoots returns the current global-root vector. The slice is shared
// and must not be mutated.
func (s *Scanner) GlobalRoots() []uintptr {
	return *s.globals.Load()
}

// UpdateStackRange records the calling thread's stack extent. base is the
// frame-pointer value bounding the frames that may hold roots; the current
// stack pointer is captured here. The recorded high bound only ever grows
// (it is the maximum ever seen); the low bound is set to the latest stack
// pointer, so it can move up as well as down. Call on every allocation.
func (s *Scanner) UpdateStackRange(base uintptr) {
	sp := CurrentSP()
	gid := getGoroutineID()

	s.mu.RLock()
	tr, ok := s.ranges[gid]
	if ok {
		if base <= tr.high.Load() && sp == tr.low.Load() {
			s.mu.RUnlock()
			return
		}
		for {
			h := tr.high.Load()
			if base <= h || tr.high.CompareAndSwap(h, base) {
				break
			}
		}
		tr.low.Store(sp)
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	// Gap between the locks is safe: each thread inserts only its own
	// entry, so the re-check under the exclusive lock can only find an
	// entry this same thread created.
	s.mu.Lock()
	if _, ok := s.ranges[gid]; !ok {
		tr := &threadRange{}
		tr.high.Store(base)
		tr.low.Store(sp)
		s.ranges[gid] = tr
	}
	s.mu.Unlock()
}

// GetRoots enumerates every address that could hold a managed pointer:
// a fresh conservative scan of each known thread's stack range (plus the
// redzone below it), followed by the immutable global roots. base is the
// caller's frame pointer, recorded before scanning so the caller's own
// frame is covered.
//
// Panics if a recorded range is reversed; that means the bookkeeping
// invariant (high >= low) was broken and no scan result can be trusted.
func (s *Scanner) GetRoots(base uintptr) []uintptr {
	s.UpdateStackRange(base)

	var roots []uintptr
	s.mu.RLock()
	for gid, tr := range s.ranges {
		high := tr.high.Load()
		low := tr.low.Load()
		if high < low {
			s.mu.RUnlock()
			panic(fmt.Sprintf(
				"rootscan: reversed stack range for goroutine %d: high=%#x low=%#x",
				gid, high, low))
		}
		begin := low - fatptr.RedZoneSize
		end := high + 1
		// A stack belonging to a thread that exited may be unmapped by
		// now; a fault abandons that thread's scan and nothing else.
		memprot.CatchFaults(func() {
			fatptr.ScanMemory(begin, end, func(slot uintptr) {
				roots = append(roots, slot)
			})
		})
	}
	s.mu.RUnlock()

	return append(roots, s.GlobalRoots()...)
}

// ThreadCount returns how many threads have recorded stack ranges.
func (s *Scanner) ThreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ranges)
}
