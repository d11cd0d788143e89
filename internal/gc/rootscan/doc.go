// Package rootscan enumerates the conservative roots of the process: every
// address that could hold a managed pointer, found in the executable's data
// segments and on the stacks of threads that have allocated.
//
// # Global roots
//
// At first use the scanner parses /proc/self/maps, keeps the regions mapped
// from the process executable that are readable and non-executable (the
// initialized and uninitialized data segments), and slides a 16-byte window
// across each, recording every address that passes the fat-pointer check.
// The result is immutable. Hosts that load code at runtime can call Rescan
// after the load to pick up fresh data segments.
//
// # Stack roots
//
// Stacks are scanned anew on every GetRoots call; no cache of local roots
// is kept, because a byte pattern at a stack address can legitimately
// reappear after unrelated mutation. The scanner tracks, per thread, a
// stack range: the highest frame base ever observed and the most recent
// stack pointer. UpdateStackRange raises the high bound monotonically, sets
// the low bound to the current stack pointer, and is called on every
// allocation.
//
// # Conservatism
//
// A non-pointer word that coincidentally matches the fat-pointer signature
// is treated as a root. That pins its target (copied, never freed) but
// cannot corrupt the heap: the forwarding traversal only follows candidates
// that point into a registered half-space and still carry metadata.
package rootscan
