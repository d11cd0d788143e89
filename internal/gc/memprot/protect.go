package memprot

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RegionProtection is a scoped protection change over the pages overlapping
// a region. Acquiring one applies the new protection; Release restores
// read/write. Callers pair the two with defer so the restore runs on all
// exit paths:
//
//	rp, err := memprot.ReadOnly(start, len)
//	if err != nil { ... }
//	defer rp.Release()
//
// Release is idempotent. The zero RegionProtection is a released no-op.
type RegionProtection struct {
	start  uintptr // page-aligned
	length uintptr
	prot   int
	locked bool
}

// ReadOnly marks every page overlapping [start, start+length) read-only.
func ReadOnly(start, length uintptr) (*RegionProtection, error) {
	return protect(start, length, unix.PROT_READ)
}

// WriteOnly marks every page overlapping [start, start+length) write-only.
// Some targets cannot express write-without-read; there the pages end up
// read/write, which is still a valid superset for the callers we have.
func WriteOnly(start, length uintptr) (*RegionProtection, error) {
	return protect(start, length, unix.PROT_WRITE)
}

func protect(start, length uintptr, prot int) (*RegionProtection, error) {
	base := pageFloor(start)
	size := PageSizeCeil(start + length - base)
	rp := &RegionProtection{start: base, length: size, prot: prot}
	if err := rp.apply(prot); err != nil {
		return nil, err
	}
	rp.locked = true
	return rp, nil
}

func (rp *RegionProtection) apply(prot int) error {
	if rp.start == 0 {
		return nil
	}
	//nolint:gosec // The region was page-aligned above; mprotect wants a slice view.
	region := unsafe.Slice((*byte)(unsafe.Pointer(rp.start)), rp.length)
	if err := unix.Mprotect(region, prot); err != nil {
		return fmt.Errorf("memprot: mprotect %#x+%d prot %#x: %w",
			rp.start, rp.length, prot, err)
	}
	return nil
}

// Release restores the region to read/write. Safe to call more than once.
func (rp *RegionProtection) Release() error {
	if rp == nil || !rp.locked {
		return nil
	}
	if err := rp.apply(unix.PROT_READ | unix.PROT_WRITE); err != nil {
		return err
	}
	rp.locked = false
	return nil
}
