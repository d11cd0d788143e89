// Package memprot manages the raw memory backing the collector's
// half-spaces.
//
// It rounds heap sizes up to whole OS pages, maps page-aligned buffers with
// mmap, and keeps a process-wide table of every registered heap region. The
// table lets fault-classification code distinguish a stray access into a
// temporarily protected heap page (survivable, the region is known) from a
// genuine wild access (fatal).
//
// RegionProtection provides scoped page protection: acquiring one marks the
// pages overlapping a region read-only, releasing it restores read/write.
// Release runs on all exit paths via defer.
//
// All protection granularity is the OS page: protecting a region affects
// every page it overlaps, including bytes outside the requested range that
// happen to share a page.
package memprot
