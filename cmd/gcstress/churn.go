package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/inhies/go-bytesize"

	"github.com/kolkov/copygc/gc"
	"github.com/kolkov/copygc/internal/gc/collector"
	"github.com/kolkov/copygc/internal/gc/policy"
	"github.com/kolkov/copygc/internal/gc/rootscan"
)

const versionString = gc.Version

// parseHeapSize accepts "64KB"-style values or plain byte counts.
func parseHeapSize(s string) (uintptr, error) {
	sz, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid heap size %q: %w", s, err)
	}
	if sz == 0 {
		return 0, fmt.Errorf("heap size must be nonzero")
	}
	return uintptr(sz), nil
}

func churnCommand(args []string) {
	fs := flag.NewFlagSet("churn", flag.ExitOnError)
	heapFlag := fs.String("heap", "64KB", "heap size per half-space")
	workers := fs.Int("workers", 4, "concurrent allocating goroutines")
	rounds := fs.Int("rounds", 10000, "allocations per worker")
	objSize := fs.Int("size", 100, "bytes per allocation")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	heapSize, err := parseHeapSize(*heapFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c, err := collector.New(heapSize, policy.NewConcurrent(), nil, rootscan.Default())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close() //nolint:errcheck

	fmt.Printf("churn: heap=%s workers=%d rounds=%d size=%d\n",
		bytesize.New(float64(heapSize)), *workers, *rounds, *objSize)

	start := time.Now()
	var wg sync.WaitGroup
	var failed sync.Map
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < *rounds; i++ {
				_, err := c.Alloc(uintptr(*objSize), 1)
				if errors.Is(err, collector.ErrOutOfHeap) {
					// Transient under heavy contention; count and go on.
					v, _ := failed.LoadOrStore(w, new(int))
					*(v.(*int))++
					continue
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "worker %d: %v\n", w, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	total := *workers * *rounds
	retries := 0
	failed.Range(func(_, v any) bool { retries += *(v.(*int)); return true })
	fmt.Printf("done: %d allocations in %v (%.0f allocs/s), %d transient failures\n",
		total, elapsed.Round(time.Millisecond),
		float64(total)/elapsed.Seconds(), retries)
	fmt.Printf("live objects: %d, free space: %d bytes\n", c.LiveObjects(), c.FreeSpace())
}

func infoCommand() {
	info := gc.GetInfo()
	fmt.Printf("copygc %s\n", info.Version)
	fmt.Printf("algorithm: %s\n", info.Algorithm)
	if info.HeapSize != 0 {
		fmt.Printf("heap size: %s\n", bytesize.New(float64(info.HeapSize)))
	} else {
		fmt.Printf("heap size: %s (default, not yet initialized)\n",
			bytesize.New(float64(gc.DefaultHeapSize)))
	}
}
