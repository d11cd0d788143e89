// Package gc provides the public API for the Pure-Go conservative copying
// garbage collector.
//
// The package wraps one process-wide collector instance. Application code
// allocates variable-sized, arbitrarily-aligned objects from its managed
// heap; unreferenced objects are reclaimed automatically when allocation
// pressure triggers a collection, or on an explicit Collect call. Liveness
// is decided conservatively by scanning the process data segments and the
// stacks of threads that have allocated.
//
// # Handles
//
// Managed memory is reached through fat-pointer handles. Raw access goes
// through Alloc and Ptr; typed access goes through SafePtr and SafeSlice:
//
//	n, err := gc.MakeSafe[int64](42)
//	if err != nil { ... }
//	*n.Get() += 1
//	gc.Collect()        // n's object may move; n.Get() follows it
//
// A handle is a root only while it is visible to the conservative scanner:
// on a scanned stack, in a scanned data segment, or inside another live
// managed object. Holding a handle in memory the scanner never sees (a Go
// heap allocation, for instance) does not keep its object alive.
//
// # Configuration
//
// The default heap size is 512 KiB per half-space. Override it before the
// first allocation either with Configure or with the COPYGC_HEAP_SIZE
// environment variable ("1MB", "64KB", plain byte counts).
package gc
