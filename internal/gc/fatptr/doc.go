// Package fatptr implements the two-word tagged pointer representation that
// makes conservative heap scanning tractable.
//
// # Overview
//
// A managed pointer is never stored as a bare machine word. It is stored as a
// FatPtr: a header word holding a fixed sentinel, immediately followed by a
// pointer word whose most significant byte holds a fixed tag and whose low 56
// bits hold the payload address. The pair acts as a 16-byte "magic cookie":
// a conservative scan over a stack or data segment can decide, with
// near-certainty, whether an aligned 16-byte window is a managed pointer
// without any precise stack maps.
//
// The header word is written once at construction and never mutated again, so
// the scanner may read it without synchronization. Only the pointer word is
// mutated after construction (when the collector forwards an object), and
// only through the atomic operations in this package.
//
// # False positives
//
// A random 16-byte window passes the header and tag checks with probability
// about 2^-72 (64 header bits plus 8 tag bits). A coincidental match pins its
// target: the object is copied but never freed. It cannot corrupt the heap,
// because the forwarding traversal only dereferences candidates that point
// into a registered half-space and still have a metadata entry.
//
// # Thread Safety
//
// MaybePtr, TestPtr and the FatPtr methods are safe against concurrent
// mutation of the pointer word by other threads. A torn header can never be
// observed because the header is immutable after construction.
package fatptr
