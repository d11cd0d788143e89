// Copyright 2025 The copygc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64

// Frame-pointer capture via assembly for amd64.
//
// Go maintains a hardware frame-pointer chain on amd64: each frame's base
// slot holds the frame base of its caller. callerFP and currentSP read BP
// and SP in fp_amd64.s; the exported bounds then walk the saved-BP chain
// toward the stack base. Stopping after one link would return a wrapper
// frame and leave the real caller's frame outside the scanned range, so
// the walk over-approximates upward instead: for a conservative scanner a
// bound that is too high only costs scan time, a bound that is too low
// loses roots.

package rootscan

import (
	"unsafe"

	"github.com/kolkov/copygc/internal/gc/memprot"
)

// callerFP returns BP as observed at entry to the assembly stub: the frame
// base of the function that called it.
//
//go:noescape
func callerFP() uintptr

// currentSP returns SP as observed at entry: a tight lower bound on the
// caller's stack pointer.
//
//go:noescape
func currentSP() uintptr

// maxChainLinks bounds the BP-chain walk. Deeper stacks than this only
// lose coverage of their outermost frames, which belong to the scheduler.
const maxChainLinks = 64

// maxFrameSpan is a plausibility cap on the distance between adjacent
// frames. A link jumping further than this is not a frame pointer.
const maxFrameSpan = 1 << 20

// chainTop follows the saved-BP chain upward from fp and returns the
// highest plausible frame base found. The walk is fault-tolerant: a
// garbage link that passes the plausibility checks but points at unmapped
// memory just ends the walk.
func chainTop(fp uintptr) uintptr {
	best := fp
	memprot.CatchFaults(func() {
		for i := 0; i < maxChainLinks; i++ {
			if fp == 0 || fp%8 != 0 {
				return
			}
			//nolint:gosec // Walking the saved-BP chain is the point.
			next := *(*uintptr)(unsafe.Pointer(fp))
			if next <= fp || next-fp > maxFrameSpan {
				return
			}
			fp = next
			best = fp
		}
	})
	return best
}

func callerFrameBound() uintptr {
	return chainTop(callerFP())
}

func callersCallerFrameBound() uintptr {
	return chainTop(callerFP())
}
