// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.

// Package capture orchestrates chunked, system-wide screen-recording sessions
// against an out-of-process capture worker. It owns the session state machine,
// the completion registry that matches asynchronous chunk completions to the
// finalize calls that requested them, permission checks, ambient recording
// events and worker diagnostics. The actual audio/video pipeline, encoding and
// file writing live in the worker.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	internal_diagnostics "github.com/capturekit/capture/internal/diagnostics"
	internal_websocket "github.com/capturekit/capture/internal/engine/websocket"
	internal_permission "github.com/capturekit/capture/internal/permission"
	internal_relay "github.com/capturekit/capture/internal/relay"
	internal_session "github.com/capturekit/capture/internal/session"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
	"github.com/capturekit/pkg/configs"
)

// Recorder is the public entry point: one Recorder manages at most one active
// global-recording session per process.
type Recorder struct {
	logger commons.Logger
	engine Engine

	controller  *internal_session.Controller
	relay       *internal_relay.Relay
	diagnostics *internal_diagnostics.Accessor
	gateway     PermissionGateway
	platform    Platform

	cancel    context.CancelFunc
	pumps     *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

type recorderOptions struct {
	platform      Platform
	gateway       PermissionGateway
	defaultSettle time.Duration
}

type RecorderOption func(*recorderOptions)

// WithPlatform selects the capability profile. Defaults to PlatformIOS.
func WithPlatform(p Platform) RecorderOption {
	return func(o *recorderOptions) { o.platform = p }
}

// WithPermissionGateway overrides the engine-backed permission gateway.
func WithPermissionGateway(g PermissionGateway) RecorderOption {
	return func(o *recorderOptions) { o.gateway = g }
}

// WithDefaultSettleDelay changes the recorder-wide default settle delay.
func WithDefaultSettleDelay(d time.Duration) RecorderOption {
	return func(o *recorderOptions) { o.defaultSettle = d }
}

// NewRecorder wires a Recorder onto an already-connected engine and starts
// the completion and event pumps.
func NewRecorder(logger commons.Logger, eng Engine, opts ...RecorderOption) (*Recorder, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if eng == nil {
		return nil, errors.New("capture engine is required")
	}

	options := &recorderOptions{
		platform: PlatformIOS,
	}
	for _, opt := range opts {
		opt(options)
	}

	caps := options.platform.Caps()

	gateway := options.gateway
	if gateway == nil {
		gateway = internal_permission.NewEngineGateway(logger, eng)
	}

	controller := internal_session.NewController(logger, eng, gateway, caps, options.defaultSettle)
	relay := internal_relay.New(logger, caps)

	ctx, cancel := context.WithCancel(context.Background())
	pumps, pumpCtx := errgroup.WithContext(ctx)
	pumps.Go(func() error {
		return controller.RunCompletionPump(pumpCtx)
	})
	pumps.Go(func() error {
		return relay.Run(pumpCtx, eng.Events())
	})

	return &Recorder{
		logger:      logger,
		engine:      eng,
		controller:  controller,
		relay:       relay,
		diagnostics: internal_diagnostics.NewAccessor(logger, eng, caps),
		gateway:     gateway,
		platform:    options.platform,
		cancel:      cancel,
		pumps:       pumps,
	}, nil
}

// NewRecorderFromConfig builds the full production stack: application logger,
// websocket engine connection, then the recorder itself.
func NewRecorderFromConfig(ctx context.Context, cfg *configs.RecorderConfig) (*Recorder, error) {
	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	platform, err := internal_type.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, err
	}

	eng, err := internal_websocket.Dial(ctx, internal_websocket.Config{
		URL:         cfg.EngineURL,
		Token:       cfg.EngineToken,
		DialTimeout: time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
		ChannelSize: cfg.EventChannelSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	return NewRecorder(logger, eng,
		WithPlatform(platform),
		WithDefaultSettleDelay(time.Duration(cfg.SettleDelayMs)*time.Millisecond),
	)
}

// ============================================================================
// Session operations
// ============================================================================

// StartGlobalRecording begins a system-wide recording session. On platforms
// with a pre-flight microphone policy the permission must already be granted
// when MicEnabled is set; use QueryPermission/RequestPermission first.
func (r *Recorder) StartGlobalRecording(ctx context.Context, opts StartOptions) error {
	return r.controller.Start(ctx, opts)
}

// StopGlobalRecording ends the session and returns the recorded file, or
// absent (nil, nil) for the normal empty-session outcomes.
func (r *Recorder) StopGlobalRecording(ctx context.Context, opts ...CallOption) (*RecordingFile, error) {
	return r.controller.Stop(ctx, opts...)
}

// MarkChunkStart discards the open chunk's uncommitted content and begins a
// fresh chunk under the given identifier (nil for unnamed). Returns the
// wall-clock time the boundary took.
func (r *Recorder) MarkChunkStart(ctx context.Context, identifier *string) (time.Duration, error) {
	return r.controller.MarkChunkStart(ctx, identifier)
}

// FlushChunk is a pure alias of MarkChunkStart, named for the discard intent.
func (r *Recorder) FlushChunk(ctx context.Context, identifier *string) (time.Duration, error) {
	return r.controller.FlushChunk(ctx, identifier)
}

// FinalizeChunk closes the open chunk and returns its file once the worker's
// completion lands within the settle window, or absent (nil, nil). A chunk
// whose completion arrives later remains retrievable via
// RetrieveGlobalRecording.
func (r *Recorder) FinalizeChunk(ctx context.Context, identifier *string, opts ...CallOption) (*RecordingFile, error) {
	return r.controller.FinalizeChunk(ctx, identifier, opts...)
}

// RetrieveGlobalRecording looks up a completed chunk: exact identifier match,
// or the most recently completed chunk when identifier is nil.
func (r *Recorder) RetrieveGlobalRecording(identifier *string) *RecordingFile {
	return r.controller.RetrieveGlobalRecording(identifier)
}

// RetrieveLastGlobalRecording is RetrieveGlobalRecording(nil); retained for
// backward compatibility.
func (r *Recorder) RetrieveLastGlobalRecording() *RecordingFile {
	return r.controller.RetrieveLastGlobalRecording()
}

// GetRecordingStatus reports the worker's live capture state.
func (r *Recorder) GetRecordingStatus(ctx context.Context) (*RecordingStatus, error) {
	return r.controller.Status(ctx)
}

// Session returns a snapshot of the active session, or nil when idle.
func (r *Recorder) Session() *RecordingSession {
	return r.controller.Session()
}

// ============================================================================
// Permissions
// ============================================================================

// QueryPermission reflects the live OS authorization state for a capability.
func (r *Recorder) QueryPermission(ctx context.Context, capability Capability) (PermissionState, error) {
	return r.gateway.QueryStatus(ctx, capability)
}

// RequestPermission shows the system dialog when the state is undetermined
// and resolves once the user responds.
func (r *Recorder) RequestPermission(ctx context.Context, capability Capability) (PermissionState, error) {
	return r.gateway.RequestPermission(ctx, capability)
}

// ============================================================================
// Listeners
// ============================================================================

// AddScreenRecordingListener subscribes to recording-lifecycle events. The
// returned disposer is idempotent.
func (r *Recorder) AddScreenRecordingListener(options ListenerOptions, handler Handler) Disposer {
	return r.relay.Subscribe(EventRecordingLifecycle, options, handler)
}

// AddExtensionStatusListener subscribes to broadcast-extension status events.
// On platforms without that category it returns a functioning no-op disposer.
func (r *Recorder) AddExtensionStatusListener(handler Handler) Disposer {
	return r.relay.Subscribe(EventExtensionStatus, ListenerOptions{}, handler)
}

// ============================================================================
// Diagnostics
// ============================================================================

// GetExtensionLogs returns the worker's bounded, most-recent log lines.
func (r *Recorder) GetExtensionLogs(ctx context.Context) ([]string, error) {
	return r.diagnostics.Logs(ctx)
}

// ClearExtensionLogs empties the worker's log ring buffer.
func (r *Recorder) ClearExtensionLogs(ctx context.Context) error {
	return r.diagnostics.ClearLogs(ctx)
}

// GetAudioMetrics returns the worker's structured audio-metrics payload.
func (r *Recorder) GetAudioMetrics(ctx context.Context) (json.RawMessage, error) {
	return r.diagnostics.AudioMetrics(ctx)
}

// ClearAudioMetrics resets the worker's audio metrics.
func (r *Recorder) ClearAudioMetrics(ctx context.Context) error {
	return r.diagnostics.ClearAudioMetrics(ctx)
}

// Close shuts down the pumps and the engine connection. Idempotent.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		engineErr := r.engine.Close()
		r.cancel()
		pumpErr := r.pumps.Wait()
		if pumpErr != nil && !errors.Is(pumpErr, context.Canceled) {
			r.closeErr = pumpErr
			return
		}
		r.closeErr = engineErr
	})
	return r.closeErr
}
