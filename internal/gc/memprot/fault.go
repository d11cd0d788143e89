package memprot

import (
	"runtime/debug"
)

// faultAddr is implemented by the runtime's memory-fault panic values when
// panic-on-fault is armed.
type faultAddr interface {
	Addr() uintptr
}

// WithFaultTolerance runs fn with memory faults converted to recoverable
// panics. A fault whose address lies inside a registered heap (a page the
// collector itself protected, or a racing scan of a page being recycled) is
// swallowed and reported via the return value, so the caller can skip the
// region and resume. A fault anywhere else is a genuine wild access and is
// re-raised.
//
// fn must not itself recover memory-fault panics.
func WithFaultTolerance(fn func()) (faulted bool) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fa, ok := r.(faultAddr)
		if !ok || !InsideRegisteredHeap(fa.Addr()) {
			panic(r)
		}
		faulted = true
	}()
	fn()
	return false
}

// CatchFaults runs fn and swallows any memory fault, wherever it lands.
// Used when scanning memory whose lifetime the collector does not control,
// such as the stack of a thread that may have exited: a vanished stack
// means the thread is gone, and its roots with it. Non-fault panics
// propagate.
func CatchFaults(fn func()) (faulted bool) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(faultAddr); !ok {
			panic(r)
		}
		faulted = true
	}()
	fn()
	return false
}
