package fatptr

// ScanMemory slides an aligned 16-byte window across [begin, end) and calls
// fn with the address of every window that satisfies MaybePtr. begin is
// rounded up to the next Alignment boundary; a window is inspected whenever
// it fits entirely inside the region, including the one ending exactly at
// end — an object whose only pointer field occupies its trailing window
// (or a 16-byte object that is nothing but one field) must still be
// discovered.
//
// The region must be readable for the duration of the scan. fn receives the
// slot address, not the pointer value: callers that need the value must
// re-read it through TestPtr, because the slot can legitimately change
// between the scan and the use.
func ScanMemory(begin, end uintptr, fn func(slot uintptr)) {
	aligned := begin & alignMask
	if aligned != begin {
		begin = aligned + Alignment
	}
	for addr := begin; addr+Size <= end; addr += Alignment {
		if MaybePtr(addr) {
			fn(addr)
		}
	}
}
