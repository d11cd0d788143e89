package collector

import (
	"fmt"

	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/memprot"
	"github.com/kolkov/copygc/internal/gc/policy"
	"github.com/kolkov/copygc/internal/gc/rootscan"
	"github.com/kolkov/copygc/internal/gc/task"
)

// SpaceNum names one of the two half-spaces.
type SpaceNum uint8

// CopyingCollector is a two-space conservative copying collector. Construct
// with New; the zero value is not usable.
//
// The collector is generic over its locking policy: with policy.Serial all
// operations run on the calling thread and locks are no-ops, with
// policy.Concurrent internals are mutex-guarded and collections run on a
// dedicated worker.
type CopyingCollector struct {
	heapSize uintptr
	spaces   [2][]byte
	// bases[i] == address of spaces[i][0]; cached because it is read on
	// every reservation and space lookup.
	bases [2]uintptr
	// nexts are the per-space bump cursors.
	nexts [2]policy.Size
	// spaceIdx is the index of the space allocations currently target.
	spaceIdx policy.SpaceIdx
	// metadata maps every live object to its size and alignment.
	// Mutated only under the policy lock.
	metadata map[fatptr.FatPtr]Metadata
	// maxAllocSize caps live data at half the space, reserving room for
	// the next copy.
	maxAllocSize uintptr

	lock    policy.LockPolicy
	gen     Generation
	scanner *rootscan.Scanner

	// collectResult is the in-flight collection handle, nil before the
	// first collection. Guarded by the policy lock.
	collectResult *task.Future[policy.CollectionResult]
}

// New builds a collector with heap size `size` per half-space (rounded up
// to whole pages). Rejects sizes that collide with the pointer tag byte's
// address bits. The generation policy may be nil for NoPromotion.
func New(size uintptr, lock policy.LockPolicy, gen Generation, scanner *rootscan.Scanner) (*CopyingCollector, error) {
	if size == 0 {
		return nil, fmt.Errorf("collector: zero heap size")
	}
	if size >= fatptr.MaxAddr {
		return nil, fmt.Errorf("collector: heap size %#x collides with pointer tag space", size)
	}
	if gen == nil {
		gen = NoPromotion{}
	}
	c := &CopyingCollector{
		heapSize:     memprot.PageSizeCeil(size),
		metadata:     make(map[fatptr.FatPtr]Metadata),
		maxAllocSize: size / 2,
		lock:         lock,
		gen:          gen,
		scanner:      scanner,
	}
	for i := 0; i < 2; i++ {
		buf, err := memprot.MapSpace(c.heapSize)
		if err != nil {
			return nil, err
		}
		c.spaces[i] = buf
		c.bases[i] = memprot.SliceAddr(buf)
		memprot.RegisterHeap(c.bases[i], c.heapSize)
		c.nexts[i] = lock.NewSize()
	}
	pageMask := ^(uintptr(memprot.PageSize()) - 1)
	if c.bases[0]&pageMask == c.bases[1]&pageMask {
		panic("collector: half-spaces share a page-aligned base")
	}
	c.spaceIdx = lock.NewSpaceIdx()
	return c, nil
}

// Close waits for any in-flight collection, stops the policy's worker and
// unmaps both half-spaces. Every FatPtr into the heap is dangling after
// Close.
func (c *CopyingCollector) Close() error {
	c.lock.Lock()
	fut := c.collectResult
	c.lock.Unlock()
	if fut != nil {
		fut.Wait() //nolint:errcheck // Either outcome means the worker is done with the heap.
	}
	c.lock.Stop()
	for i := 0; i < 2; i++ {
		if err := memprot.UnmapSpace(c.spaces[i]); err != nil {
			return err
		}
		c.spaces[i] = nil
	}
	return nil
}

// Alloc reserves size bytes at the given alignment (a power of two; 1
// means no constraint) in the active half-space and returns a fat pointer
// to them. The memory contents are unspecified; callers initialize. If the
// space cap would be exceeded, one full collection is attempted before the
// allocation fails with ErrOutOfHeap.
func (c *CopyingCollector) Alloc(size, align uintptr) (fatptr.FatPtr, error) {
	c.scanner.UpdateStackRange(rootscan.CallersCallerFP())
	if size == 0 || size > c.maxAllocSize {
		return fatptr.FatPtr{}, ErrAllocTooLarge
	}
	if align == 0 {
		align = 1
	}
	return c.allocAttempt(size, align, 0)
}

func (c *CopyingCollector) allocAttempt(size, align uintptr, attempts int) (fatptr.FatPtr, error) {
	var (
		to  SpaceNum
		idx uintptr
		ok  bool
	)
	c.lock.DoWithLock(func() {
		to = SpaceNum(c.spaceIdx.Load())
		idx, ok = c.reserveSpace(size, to, align, c.maxAllocSize)
		if ok {
			c.checkOverlappingAlloc(idx, to, size)
		}
	})
	if !ok {
		if attempts < 1 {
			c.Collect(size)
			return c.allocAttempt(size, align, attempts+1)
		}
		return fatptr.FatPtr{}, ErrOutOfHeap
	}
	return c.allocNoConstraints(to, Metadata{Size: size, Align: align}, idx)
}

// reserveSpace advances the bump cursor of the target space past the
// alignment padding plus size, bounded by maxAlloc. Returns the
// post-padding offset. Lock-free: the cursor is advanced by CAS, and the
// padding is recomputed whenever the CAS loses.
func (c *CopyingCollector) reserveSpace(size uintptr, to SpaceNum, align, maxAlloc uintptr) (uintptr, bool) {
	cursor := c.nexts[to]
	next := cursor.Load()
	for {
		pad := alignPadding(c.bases[to]+next, align)
		if next+size+pad > maxAlloc {
			return 0, false
		}
		if cursor.CompareAndSwap(next, next+size+pad) {
			return next + pad, true
		}
		next = cursor.Load()
	}
}

// allocNoConstraints installs metadata for an object at the given offset
// without regard to maxAllocSize. Used both by Alloc and by the copy path,
// whose reservations may use the full space.
func (c *CopyingCollector) allocNoConstraints(to SpaceNum, md Metadata, idx uintptr) (fatptr.FatPtr, error) {
	if md.Size+idx > c.heapSize {
		return fatptr.FatPtr{}, ErrOutOfHeap
	}
	ptr := fatptr.New(c.bases[to] + idx)
	c.lock.DoWithLock(func() {
		c.metadata[ptr] = md
		c.gen.Init(ptr)
	})
	return ptr, nil
}

// checkOverlappingAlloc verifies a fresh reservation against every live
// object. An overlap means the cursor bookkeeping broke; continuing would
// hand out aliased memory, so it is fatal. Requires the lock.
func (c *CopyingCollector) checkOverlappingAlloc(idx uintptr, space SpaceNum, size uintptr) {
	addr := c.bases[space] + idx
	for p, md := range c.metadata {
		pa := p.Addr()
		if (pa <= addr && pa+md.Size > addr) || (addr <= pa && addr+size > pa) {
			panic(fmt.Sprintf(
				"collector: heap corruption: new allocation %#x+%d overlaps object %#x+%d",
				addr, size, pa, md.Size))
		}
	}
}

// spaceOf returns which half-space p's address lies in. Safe without the
// lock: the spaces never move.
func (c *CopyingCollector) spaceOf(p fatptr.FatPtr) (SpaceNum, error) {
	addr := p.Addr()
	for i := SpaceNum(0); i < 2; i++ {
		if addr >= c.bases[i] && addr < c.bases[i]+c.heapSize {
			return i, nil
		}
	}
	return 0, fmt.Errorf("collector: %#x is not a managed address", addr)
}

// Contains reports whether addr lies within either half-space.
func (c *CopyingCollector) Contains(addr uintptr) bool {
	return (addr >= c.bases[0] && addr < c.bases[0]+c.heapSize) ||
		(addr >= c.bases[1] && addr < c.bases[1]+c.heapSize)
}

// FreeSpace returns how many more bytes Alloc can hand out before the cap,
// ignoring alignment padding. Safe without the lock; the result is only
// advisory under concurrent allocation anyway.
func (c *CopyingCollector) FreeSpace() uintptr {
	active := SpaceNum(c.spaceIdx.Load())
	next := c.nexts[active].Load()
	if next >= c.maxAllocSize {
		return 0
	}
	return c.maxAllocSize - next
}

// MaxAllocSize returns the per-object allocation cap.
func (c *CopyingCollector) MaxAllocSize() uintptr {
	return c.maxAllocSize
}

// Collect dispatches a collection if free space is below neededSpace,
// first waiting out any collection already in flight. A sufficiently large
// neededSpace always triggers one.
func (c *CopyingCollector) Collect(neededSpace uintptr) {
	for {
		c.lock.Lock()
		fut := c.collectResult
		c.lock.Unlock()
		if fut == nil {
			break
		}
		if _, done := fut.TryWait(); done {
			break
		}
		if c.FreeSpace() >= neededSpace {
			return
		}
		fut.Wait() //nolint:errcheck // A discarded collection frees nothing; the re-check below handles it.
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	inFlight := false
	if c.collectResult != nil {
		_, done := c.collectResult.TryWait()
		inFlight = !done
	}
	if c.FreeSpace() < neededSpace && !inFlight {
		c.collectResult = c.AsyncCollect(nil)
	}
}

// AsyncCollect flips the active space and schedules a collection under the
// locking policy: gather roots (plus extraRoots, slot addresses the caller
// wants treated as roots), forward every root into the new active space,
// and reap what was left behind. Returns the handle carrying the promoted
// pointers.
//
// The from-space cursor is reset immediately after the flip, before the
// task is scheduled, so no allocation can observe stale from-space
// capacity even if the scheduled task is later discarded on teardown.
func (c *CopyingCollector) AsyncCollect(extraRoots []uintptr) *task.Future[policy.CollectionResult] {
	from := SpaceNum(c.spaceIdx.FetchXor1())
	to := from ^ 1
	c.nexts[from].Store(0)

	return c.lock.DoCollection(func() policy.CollectionResult {
		visited := make(map[fatptr.FatPtr]fatptr.FatPtr)
		var promoted []fatptr.FatPtr

		roots := c.scanner.GetRoots(rootscan.CallerFP())
		roots = append(roots, extraRoots...)
		for _, slot := range roots {
			if v, ok := fatptr.TestPtr(slot); ok && c.Contains(v.Addr()) {
				c.forwardPtr(to, slot, visited, &promoted)
			}
		}

		// Reap: anything still recorded in the from-space was not reached
		// by any root.
		c.lock.DoWithLock(func() {
			var dead []fatptr.FatPtr
			for p := range c.metadata {
				sp, err := c.spaceOf(p)
				if err != nil {
					continue // promoted out of the managed heap
				}
				if sp == to {
					continue
				}
				if _, seen := visited[p]; !seen {
					dead = append(dead, p)
				}
			}
			for _, p := range dead {
				delete(c.metadata, p)
				c.gen.Collected(p)
			}
		})
		return promoted
	})
}

// LiveObjects returns the number of metadata entries. Diagnostics only.
func (c *CopyingCollector) LiveObjects() int {
	n := 0
	c.lock.DoWithLock(func() { n = len(c.metadata) })
	return n
}
