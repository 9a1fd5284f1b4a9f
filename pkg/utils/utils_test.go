// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPtr(t *testing.T) {
	p := Ptr("chunk-1")
	assert.NotNil(t, p)
	assert.Equal(t, "chunk-1", *p)

	n := Ptr(42)
	assert.Equal(t, 42, *n)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "x", Deref(Ptr("x")))
	assert.Equal(t, "", Deref[string](nil))
	assert.Equal(t, 0, Deref[int](nil))
}

func TestGoRunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	ran := make(chan struct{})
	Go(context.Background(), func() {
		defer close(ran)
		panic("boom")
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking goroutine never ran")
	}
	// Reaching here without the process dying is the assertion.
}
