// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_type

import "errors"

// Controller-level errors. Engine-originated conditions live in the engine
// package; these are the ones the state machine raises itself.
var (
	// ErrPermissionDenied: a required capability was not granted before an
	// operation that needs it. The library never requests permission silently.
	ErrPermissionDenied = errors.New("required permission not granted")

	// ErrSessionAlreadyActive: Start was called while a session is running.
	// At most one global-recording session exists per process.
	ErrSessionAlreadyActive = errors.New("a global recording session is already active")

	// ErrNoActiveSession: a session-scoped operation was called from Idle.
	// MarkChunkStart deliberately does NOT start a session implicitly — an
	// implicit start would have no permission or option context to work with.
	ErrNoActiveSession = errors.New("no active global recording session")

	// ErrNoOpenChunk: FinalizeChunk was called with no chunk open (e.g. twice
	// in a row on a platform that pauses after finalize).
	ErrNoOpenChunk = errors.New("no open chunk to finalize")

	// ErrChunkIdentifierMismatch: the identifier passed to FinalizeChunk does
	// not match the identifier the open chunk was marked with.
	ErrChunkIdentifierMismatch = errors.New("chunk identifier does not match the open chunk")
)
