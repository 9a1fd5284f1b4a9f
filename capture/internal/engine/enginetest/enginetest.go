// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.

// Package enginetest provides a scriptable in-memory Engine for tests: calls
// are recorded with timestamps, completions can be delayed, suppressed or
// injected by hand, and every command can be made to fail.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_type "github.com/capturekit/capture/internal/type"
)

// Call is one recorded command invocation.
type Call struct {
	Name string
	At   time.Time
}

// Engine is the scriptable test double. The zero value is not usable; create
// it with New.
type Engine struct {
	mu    sync.Mutex
	calls []Call

	// Scripting knobs. Set them before (or between) operations.
	Permissions   map[internal_type.Capability]internal_type.PermissionState
	StartErr      error
	StopErr       error
	StopResultErr error
	MarkErr       error
	FinalizeErr   error
	// StopFile is what StopResult returns when StopResultErr is nil.
	StopFile *internal_type.RecordingFile
	// MarkElapsed is the boundary duration MarkChunk reports.
	MarkElapsed time.Duration
	// CompletionDelay postpones the automatic completion emitted by
	// FinalizeChunk. SuppressCompletions disables it entirely (use Complete
	// to inject by hand).
	CompletionDelay     time.Duration
	SuppressCompletions bool

	LogLines []string
	Metrics  json.RawMessage

	active      bool
	closed      bool
	completions chan internal_engine.ChunkCompletion
	events      chan internal_type.Event
	closeOnce   sync.Once
}

var _ internal_engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		Permissions: map[internal_type.Capability]internal_type.PermissionState{
			internal_type.CapabilityCamera:     internal_type.PermissionGranted,
			internal_type.CapabilityMicrophone: internal_type.PermissionGranted,
		},
		Metrics:     json.RawMessage(`{"inputLevelDb":-12.5,"frames":42}`),
		completions: make(chan internal_engine.ChunkCompletion, 32),
		events:      make(chan internal_type.Event, 32),
	}
}

func (e *Engine) record(name string) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Name: name, At: time.Now()})
	e.mu.Unlock()
}

// Calls returns every recorded invocation of the named command.
func (e *Engine) Calls(name string) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Call
	for _, c := range e.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FileFor builds the deterministic file a finalize of (identifier, sequence)
// produces, so tests can assert exact resolution.
func FileFor(identifier *string, sequence uint64) internal_type.RecordingFile {
	name := fmt.Sprintf("seq-%d", sequence)
	if identifier != nil {
		name = fmt.Sprintf("%s-seq-%d", *identifier, sequence)
	}
	return internal_type.RecordingFile{
		Path:     "/var/recordings/" + name + ".mp4",
		Size:     int64(1000 + sequence),
		Duration: time.Duration(sequence) * time.Second,
	}
}

// Complete injects a completion signal by hand. Silently discarded after
// Close, so late injections fail a test's assertions instead of panicking.
func (e *Engine) Complete(identifier *string, sequence uint64) {
	e.pushCompletion(internal_engine.ChunkCompletion{
		Identifier: identifier,
		Sequence:   sequence,
		File:       FileFor(identifier, sequence),
		ReportedAt: time.Now(),
	})
}

// Emit injects an ambient event. Discarded after Close, like Complete.
func (e *Engine) Emit(event internal_type.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.events <- event
}

func (e *Engine) pushCompletion(c internal_engine.ChunkCompletion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.completions <- c
}

// ============================================================================
// Engine implementation
// ============================================================================

func (e *Engine) StartSession(ctx context.Context, opts internal_type.StartOptions) error {
	e.record("StartSession")
	if e.StartErr != nil {
		return e.StartErr
	}
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()
	return nil
}

func (e *Engine) StopSession(ctx context.Context) error {
	e.record("StopSession")
	if e.StopErr != nil {
		return e.StopErr
	}
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
	return nil
}

func (e *Engine) StopResult(ctx context.Context) (*internal_type.RecordingFile, error) {
	e.record("StopResult")
	if e.StopResultErr != nil {
		return nil, e.StopResultErr
	}
	if e.StopFile == nil {
		return nil, internal_engine.ErrNoRecordingFileAfterStop
	}
	file := *e.StopFile
	return &file, nil
}

func (e *Engine) MarkChunk(ctx context.Context, identifier *string, sequence uint64) (time.Duration, error) {
	e.record("MarkChunk")
	if e.MarkErr != nil {
		return 0, e.MarkErr
	}
	return e.MarkElapsed, nil
}

func (e *Engine) FinalizeChunk(ctx context.Context, identifier *string, sequence uint64) error {
	e.record("FinalizeChunk")
	if e.FinalizeErr != nil {
		return e.FinalizeErr
	}
	if e.SuppressCompletions {
		return nil
	}
	completion := internal_engine.ChunkCompletion{
		Identifier: identifier,
		Sequence:   sequence,
		File:       FileFor(identifier, sequence),
		ReportedAt: time.Now(),
	}
	if e.CompletionDelay > 0 {
		time.AfterFunc(e.CompletionDelay, func() { e.pushCompletion(completion) })
		return nil
	}
	e.pushCompletion(completion)
	return nil
}

func (e *Engine) QueryStatus(ctx context.Context) (*internal_type.RecordingStatus, error) {
	e.record("QueryStatus")
	e.mu.Lock()
	defer e.mu.Unlock()
	return &internal_type.RecordingStatus{IsCapturingChunk: e.active}, nil
}

func (e *Engine) QueryPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error) {
	e.record("QueryPermission")
	state, ok := e.Permissions[capability]
	if !ok {
		return internal_type.PermissionUndetermined, nil
	}
	return state, nil
}

func (e *Engine) RequestPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error) {
	e.record("RequestPermission")
	state, ok := e.Permissions[capability]
	if !ok || state == internal_type.PermissionUndetermined {
		// A request resolves the dialog: the double always grants.
		e.Permissions[capability] = internal_type.PermissionGranted
		return internal_type.PermissionGranted, nil
	}
	return state, nil
}

func (e *Engine) Completions() <-chan internal_engine.ChunkCompletion {
	return e.completions
}

func (e *Engine) Events() <-chan internal_type.Event {
	return e.events
}

func (e *Engine) Logs(ctx context.Context) ([]string, error) {
	e.record("Logs")
	return append([]string(nil), e.LogLines...), nil
}

func (e *Engine) ClearLogs(ctx context.Context) error {
	e.record("ClearLogs")
	e.LogLines = nil
	return nil
}

func (e *Engine) AudioMetrics(ctx context.Context) (json.RawMessage, error) {
	e.record("AudioMetrics")
	return e.Metrics, nil
}

func (e *Engine) ClearAudioMetrics(ctx context.Context) error {
	e.record("ClearAudioMetrics")
	e.Metrics = json.RawMessage(`{}`)
	return nil
}

func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.completions)
		close(e.events)
		e.mu.Unlock()
	})
	return nil
}
