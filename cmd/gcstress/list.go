package main

import (
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/inhies/go-bytesize"

	"github.com/kolkov/copygc/internal/gc/collector"
	"github.com/kolkov/copygc/internal/gc/fatptr"
	"github.com/kolkov/copygc/internal/gc/policy"
	"github.com/kolkov/copygc/internal/gc/rootscan"
)

// listHead pins the list across collections: package globals registered as
// an explicit root stay visible however the compiler treats stack frames.
var listHead fatptr.FatPtr

func listCommand(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	heapFlag := fs.String("heap", "1MB", "heap size per half-space")
	nodes := fs.Int("nodes", 10000, "list length")
	collections := fs.Int("collections", 3, "collections to run after building")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	heapSize, err := parseHeapSize(*heapFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	//nolint:gosec
	scanner := rootscan.New([]uintptr{uintptr(unsafe.Pointer(&listHead))})
	c, err := collector.New(heapSize, policy.NewSerial(), nil, scanner)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close() //nolint:errcheck

	// node layout: next handle at offset 0, value at offset 16.
	const nodeSize = fatptr.Size + 8
	next := fatptr.Empty()
	for i := *nodes - 1; i >= 0; i-- {
		n, err := c.Alloc(nodeSize, 8)
		if err != nil {
			fmt.Fprintf(os.Stderr, "alloc node %d: %v\n", i, err)
			os.Exit(1)
		}
		//nolint:gosec
		*(*fatptr.FatPtr)(unsafe.Pointer(n.Addr())) = next
		//nolint:gosec
		*(*int64)(unsafe.Pointer(n.Addr() + fatptr.Size)) = int64(i)
		next = n
	}
	listHead = next

	fmt.Printf("list: %d nodes on a %s heap, %d live objects\n",
		*nodes, bytesize.New(float64(heapSize)), c.LiveObjects())

	for round := 1; round <= *collections; round++ {
		if _, err := c.AsyncCollect(nil).Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "collection %d: %v\n", round, err)
			os.Exit(1)
		}
		if !verifyList(c, *nodes) {
			fmt.Fprintf(os.Stderr, "collection %d: list corrupted\n", round)
			os.Exit(1)
		}
		fmt.Printf("collection %d: list intact, free space %d bytes\n",
			round, c.FreeSpace())
	}
	fmt.Println("ok")
}

func verifyList(c *collector.CopyingCollector, nodes int) bool {
	cur := listHead
	for i := 0; i < nodes; i++ {
		if cur.IsEmpty() || !c.Contains(cur.Addr()) {
			return false
		}
		//nolint:gosec
		if *(*int64)(unsafe.Pointer(cur.Addr() + fatptr.Size)) != int64(i) {
			return false
		}
		cur = *fatptr.FromSlot(cur.Addr())
	}
	return cur.IsEmpty()
}
