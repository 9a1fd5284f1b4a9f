// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package utils

import (
	"context"
	"log"
	"runtime/debug"
)

// Ptr returns a pointer to v. Used for the optional (Some/None) parameters
// throughout the API, where nil means "absent".
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Go runs fn on a new goroutine and converts panics into a logged stack trace
// instead of crashing the process. The context is accepted so call sites read
// like structured spawns; fn is expected to honor it.
func Go(ctx context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in goroutine: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
