// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	internal_type "github.com/capturekit/capture/internal/type"
)

// Named conditions the capture engine reports for outcomes that are normal
// absences of content, not failures. The session controller maps every one of
// these to an absent result; anything else propagates unchanged.
var (
	ErrNoActiveRecordingSession  = errors.New("NO_ACTIVE_RECORDING_SESSION")
	ErrNoRecordingFileAfterStop  = errors.New("NO_RECORDING_FILE_AFTER_STOP")
	ErrNoFinalizedChunkFile      = errors.New("NO_FINALIZED_CHUNK_FILE")
	ErrFinalizedChunkFileMissing = errors.New("FINALIZED_CHUNK_FILE_MISSING")
)

// ConditionError maps a wire-level condition code to its sentinel, or wraps
// unknown codes so callers can still read them.
func ConditionError(code, message string) error {
	switch code {
	case ErrNoActiveRecordingSession.Error():
		return ErrNoActiveRecordingSession
	case ErrNoRecordingFileAfterStop.Error():
		return ErrNoRecordingFileAfterStop
	case ErrNoFinalizedChunkFile.Error():
		return ErrNoFinalizedChunkFile
	case ErrFinalizedChunkFileMissing.Error():
		return ErrFinalizedChunkFileMissing
	default:
		return fmt.Errorf("capture engine error %s: %s", code, message)
	}
}

// IsAbsence reports whether err is one of the normal empty-outcome conditions.
func IsAbsence(err error) bool {
	return errors.Is(err, ErrNoActiveRecordingSession) ||
		errors.Is(err, ErrNoRecordingFileAfterStop) ||
		errors.Is(err, ErrNoFinalizedChunkFile) ||
		errors.Is(err, ErrFinalizedChunkFileMissing)
}

// ChunkCompletion is the engine's asynchronous report that a finalized chunk
// has been written to disk. It may arrive out of band with respect to the
// mark/finalize call sequence, and possibly after an arbitrary delay.
type ChunkCompletion struct {
	// Identifier echoes the chunk identifier the chunk was marked with, nil
	// when the chunk was unnamed.
	Identifier *string
	// Sequence is the controller-assigned sequence the chunk carried.
	Sequence   uint64
	File       internal_type.RecordingFile
	ReportedAt time.Time
}

// Engine is the contract with the out-of-process capture worker. The worker
// owns the actual screen/audio pipeline, encoding and file writing; this side
// only issues commands and consumes its asynchronous signals. Implementations
// must keep Completions and Events usable until Close.
type Engine interface {
	// StartSession starts the system-wide capture.
	StartSession(ctx context.Context, opts internal_type.StartOptions) error

	// StopSession issues the stop command. The resulting file must NOT be
	// queried immediately: the asset writer finalizes asynchronously, so the
	// controller interposes a settle delay before calling StopResult.
	StopSession(ctx context.Context) error

	// StopResult queries the file produced by the last stop. Returns
	// ErrNoActiveRecordingSession / ErrNoRecordingFileAfterStop for the normal
	// empty-session outcomes.
	StopResult(ctx context.Context) (*internal_type.RecordingFile, error)

	// MarkChunk cuts a chunk boundary: discards the open chunk's uncommitted
	// content and begins accumulating into a fresh one. Returns the time the
	// boundary took on the worker, so callers can detect abnormal latency.
	MarkChunk(ctx context.Context, identifier *string, sequence uint64) (time.Duration, error)

	// FinalizeChunk closes the chunk identified by (identifier, sequence).
	// Completion is reported asynchronously on Completions.
	FinalizeChunk(ctx context.Context, identifier *string, sequence uint64) error

	// QueryStatus reports the worker's live capture state.
	QueryStatus(ctx context.Context) (*internal_type.RecordingStatus, error)

	// QueryPermission reflects the live OS authorization state; no side effects.
	QueryPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error)

	// RequestPermission may block until the user answers the system dialog; it
	// resolves immediately when the state is already determined.
	RequestPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error)

	// Completions delivers asynchronous chunk-completion signals. Closed by Close.
	Completions() <-chan ChunkCompletion

	// Events delivers recording-lifecycle and extension-status notifications in
	// emission order. Closed by Close.
	Events() <-chan internal_type.Event

	// Logs returns the worker's ring-buffer log lines (bounded, most recent).
	Logs(ctx context.Context) ([]string, error)
	ClearLogs(ctx context.Context) error

	// AudioMetrics returns the worker's structured audio metrics payload.
	AudioMetrics(ctx context.Context) (json.RawMessage, error)
	ClearAudioMetrics(ctx context.Context) error

	Close() error
}
