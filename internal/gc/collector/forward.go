package collector

import (
	"github.com/kolkov/copygc/internal/gc/fatptr"
)

// forwardPtr forwards the pointer held in the slot at rootSlot, and
// transitively everything reachable from it, into the to space. Depth-first
// over an explicit stack of pending slot addresses, so pathological object
// graphs cannot overflow the goroutine stack. visited maps each from-space
// pointer to its forwarded address; cycles terminate at the second visit.
func (c *CopyingCollector) forwardPtr(to SpaceNum, rootSlot uintptr, visited map[fatptr.FatPtr]fatptr.FatPtr, promoted *[]fatptr.FatPtr) {
	stack := []uintptr{rootSlot}
	for len(stack) > 0 {
		slot := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// The slot may have stopped looking like a pointer since it was
		// scanned; mutators own their memory.
		v, ok := fatptr.TestPtr(slot)
		if !ok {
			continue
		}

		if forwarded, seen := visited[v]; seen {
			fatptr.FromSlot(slot).CompareExchange(v, forwarded)
			continue
		}

		skip := false
		var md Metadata
		c.lock.DoWithLock(func() {
			var exists bool
			md, exists = c.metadata[v]
			if !exists {
				skip = true
				return
			}
			if sp, err := c.spaceOf(v); err != nil || sp == to {
				skip = true
			}
		})
		if skip {
			continue
		}

		shouldPromote := false
		c.lock.DoWithLock(func() { shouldPromote = c.gen.ShouldPromote(v) })

		var newPtr fatptr.FatPtr
		if shouldPromote {
			if p, ok := c.promoteObject(slot, v, md); ok {
				newPtr = p
				*promoted = append(*promoted, p)
			} else {
				newPtr = c.copyObject(slot, to, v)
			}
		} else {
			newPtr = c.copyObject(slot, to, v)
		}
		visited[v] = newPtr

		// Scan the copy, not the original: the inner slots pushed here are
		// the ones the forwarded graph will actually read through, and
		// they must end up referencing live to-space objects. A slot in a
		// cycle finds its target in visited when popped.
		fatptr.ScanMemory(newPtr.Addr(), newPtr.Addr()+md.Size, func(inner uintptr) {
			stack = append(stack, inner)
		})
	}
}

// copyObject moves the object at v into the to space and redirects the
// slot that led to it. Returns the forwarded pointer.
//
// The payload copy runs without the collector lock; seqCstCopy keeps it
// sound against concurrent mutator writes. The slot is redirected with a
// strong compare-and-swap and left alone if the mutator already flipped it.
func (c *CopyingCollector) copyObject(slot uintptr, to SpaceNum, v fatptr.FatPtr) fatptr.FatPtr {
	inTo := false
	var md Metadata
	c.lock.DoWithLock(func() {
		if sp, err := c.spaceOf(v); err == nil && sp == to {
			inTo = true
			return
		}
		md = c.metadata[v]
	})
	if inTo {
		return v
	}

	// Copies may use the whole space, not just the allocation cap: the
	// cap guarantees all survivors fit.
	idx, ok := c.reserveSpace(md.Size, to, md.Align, c.heapSize)
	if !ok {
		panic(ErrOutOfHeap)
	}
	c.lock.DoWithLock(func() { c.checkOverlappingAlloc(idx, to, md.Size) })
	newObj, err := c.allocNoConstraints(to, md, idx)
	if err != nil {
		panic(err)
	}

	seqCstCopy(newObj.Addr(), v.Addr(), md.Size)
	fatptr.FromSlot(slot).CompareExchange(v, newObj)

	c.lock.DoWithLock(func() {
		delete(c.metadata, v)
		c.gen.Rekey(v, newObj)
	})
	return newObj
}

// promoteObject moves the object at v out of the managed heap into the
// generation policy's arena. Mirrors copyObject except the destination is
// arena memory and no metadata is kept for the new address: promoted
// objects are the caller's from here on.
func (c *CopyingCollector) promoteObject(slot uintptr, v fatptr.FatPtr, md Metadata) (fatptr.FatPtr, bool) {
	var dst uintptr
	ok := false
	c.lock.DoWithLock(func() { dst, ok = c.gen.PromoteAlloc(md) })
	if !ok {
		return fatptr.FatPtr{}, false
	}
	newObj := fatptr.New(dst)

	seqCstCopy(dst, v.Addr(), md.Size)
	fatptr.FromSlot(slot).CompareExchange(v, newObj)

	c.lock.DoWithLock(func() {
		delete(c.metadata, v)
		c.gen.Collected(v)
	})
	return newObj, true
}
