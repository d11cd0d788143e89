// Package collector implements the two-space copying collector.
//
// # Heap shape
//
// The heap is two mmap'd half-spaces of equal size. Exactly one is active;
// allocation carves objects out of it with a bump cursor advanced by
// compare-and-swap. Per-object size and alignment live in a metadata map
// keyed by the object's fat pointer. At rest, the inactive half-space holds
// no objects.
//
// At most half of a space may be filled by allocation (maxAllocSize), so a
// collection can always copy every survivor into the other space.
//
// # Collection
//
// A collection flips the active-space index, resets the old space's cursor,
// and schedules a task under the locking policy: gather conservative roots,
// forward every root that points into the heap, then reap the metadata of
// everything left behind in the from-space. Forwarding is a depth-first
// traversal over an explicit stack; cycles terminate at the second visit
// via the visited map.
//
// Object payloads are copied without holding the collector mutex. The
// mutator may be writing into the source concurrently, so the copy moves
// sequentially consistent words: each destination word ends up holding
// either the pre-copy or the post-copy value of that word, never a blend.
// The pointer slot that led to the object is then flipped with a strong
// compare-and-swap, losing to any mutator that already redirected it.
//
// # Pauses
//
// Pause times are kept short by overlapping copying with mutation, not by
// incremental marking. The single mutex is held only for map accesses,
// cursor fallbacks, and the space flip.
package collector
