//go:build ignore

// calc_layout verifies the memory-layout assumptions the collector bakes
// in: the fat-pointer size and alignment the conservative scanner depends
// on, and the page math used to size half-spaces.
//
// Run with: go run tools/calc_layout.go
package main

import (
	"fmt"
	"unsafe"

	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/memprot"
)

func main() {
	fmt.Println("=== fat pointer layout ===")
	fmt.Printf("word size:      %d bytes\n", fatptr.WordSize)
	fmt.Printf("FatPtr size:    %d bytes (want %d)\n", unsafe.Sizeof(fatptr.FatPtr{}), fatptr.Size)
	fmt.Printf("FatPtr align:   %d bytes (want %d)\n", unsafe.Alignof(fatptr.FatPtr{}), fatptr.Alignment)
	fmt.Printf("header:         %#x\n", fatptr.Header)
	fmt.Printf("tag byte:       %#x (mask %#x)\n", fatptr.TagByte, fatptr.TagMask)
	fmt.Printf("max address:    %#x\n", fatptr.MaxAddr)

	if unsafe.Sizeof(fatptr.FatPtr{}) != fatptr.Size {
		fmt.Println("MISMATCH: FatPtr size changed; the scanner window is wrong")
	}
	if unsafe.Alignof(fatptr.FatPtr{}) != fatptr.Alignment {
		fmt.Println("MISMATCH: FatPtr alignment changed; scans will miss slots")
	}

	fmt.Println("\n=== page math ===")
	fmt.Printf("page size:      %d\n", memprot.PageSize())
	for _, n := range []uintptr{1, 4095, 4096, 4097, 1 << 20} {
		fmt.Printf("ceil(%d) = %d\n", n, memprot.PageSizeCeil(n))
	}
}
