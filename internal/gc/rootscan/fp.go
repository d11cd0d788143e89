package rootscan

// Frame and stack pointer capture.
//
// The scanner needs two values at each allocation site: an upper bound on
// the region holding the caller's live stack roots, and the current stack
// pointer as the lower bound. On amd64 the upper bound comes from the
// hardware frame-pointer chain (fp_amd64.s plus the chain walk in
// fp_amd64.go); elsewhere fp_fallback.go approximates from the address of
// a local. Both directions of error are handled: the bound may safely
// overshoot the true frame top, never undershoot it.

// CallerFP returns an upper bound on the region containing the calling
// function's live stack roots.
func CallerFP() uintptr {
	return callerFrameBound()
}

// CallersCallerFP returns an upper bound covering the caller's caller as
// well. Used by allocation helpers that run below the frame whose roots
// matter.
func CallersCallerFP() uintptr {
	return callersCallerFrameBound()
}

// CurrentSP returns the current stack pointer, or a close lower bound on it.
func CurrentSP() uintptr {
	return currentSP()
}
