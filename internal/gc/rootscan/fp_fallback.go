// Copyright 2025 The copygc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

// Portable frame-bound approximation for architectures without an
// assembly implementation.
//
// The address of a local variable in a noinline function is a point inside
// that function's frame, one frame below the caller. The caller's frames
// lie in a span above it; frameSlack over-approximates that span. Scanning
// past the true frame top is harmless (the scanner validates every window
// and tolerates faults), scanning short of it would lose roots, so the
// slack errs high.

package rootscan

import "unsafe"

// frameSlack widens the approximated bound upward to cover the frames
// above the capture point. Callers at realistic depths fit well inside it.
const frameSlack = 4096

//go:noinline
func callerFrameBound() uintptr {
	var marker byte
	//nolint:gosec
	return uintptr(unsafe.Pointer(&marker)) + frameSlack
}

//go:noinline
func callersCallerFrameBound() uintptr {
	var marker byte
	//nolint:gosec
	return uintptr(unsafe.Pointer(&marker)) + 2*frameSlack
}

//go:noinline
func currentSP() uintptr {
	var marker byte
	//nolint:gosec
	return uintptr(unsafe.Pointer(&marker))
}
