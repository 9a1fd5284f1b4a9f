// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package capture

import (
	"time"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_permission "github.com/capturekit/capture/internal/permission"
	internal_relay "github.com/capturekit/capture/internal/relay"
	internal_session "github.com/capturekit/capture/internal/session"
	internal_type "github.com/capturekit/capture/internal/type"
)

// Re-exports of the library's value types, so callers never import internal
// packages.
type (
	RecordingFile    = internal_type.RecordingFile
	RecordingStatus  = internal_type.RecordingStatus
	RecordingSession = internal_session.RecordingSession
	StartOptions     = internal_type.StartOptions

	Capability      = internal_type.Capability
	PermissionState = internal_type.PermissionState

	Platform     = internal_type.Platform
	Capabilities = internal_type.Capabilities

	Event                = internal_type.Event
	EventKind            = internal_type.EventKind
	LifecycleEvent       = internal_type.LifecycleEvent
	LifecyclePhase       = internal_type.LifecyclePhase
	ExtensionStatusEvent = internal_type.ExtensionStatusEvent

	// Engine is the capture-worker contract; custom transports and test
	// doubles implement it.
	Engine          = internal_engine.Engine
	ChunkCompletion = internal_engine.ChunkCompletion

	PermissionGateway = internal_permission.Gateway

	ListenerOptions = internal_relay.Options
	Handler         = internal_relay.Handler
	Disposer        = internal_relay.Disposer

	CallOption = internal_session.CallOption
)

const (
	CapabilityCamera     = internal_type.CapabilityCamera
	CapabilityMicrophone = internal_type.CapabilityMicrophone

	PermissionUndetermined = internal_type.PermissionUndetermined
	PermissionDenied       = internal_type.PermissionDenied
	PermissionRestricted   = internal_type.PermissionRestricted
	PermissionGranted      = internal_type.PermissionGranted

	PlatformIOS     = internal_type.PlatformIOS
	PlatformAndroid = internal_type.PlatformAndroid

	EventRecordingLifecycle = internal_type.EventRecordingLifecycle
	EventExtensionStatus    = internal_type.EventExtensionStatus

	LifecycleBegan = internal_type.LifecycleBegan
	LifecycleEnded = internal_type.LifecycleEnded
	LifecycleError = internal_type.LifecycleError

	// DefaultSettleDelay applies to Stop/FinalizeChunk when no override is
	// given.
	DefaultSettleDelay = internal_session.DefaultSettleDelay
)

// Controller-level errors.
var (
	ErrPermissionDenied        = internal_type.ErrPermissionDenied
	ErrSessionAlreadyActive    = internal_type.ErrSessionAlreadyActive
	ErrNoActiveSession         = internal_type.ErrNoActiveSession
	ErrNoOpenChunk             = internal_type.ErrNoOpenChunk
	ErrChunkIdentifierMismatch = internal_type.ErrChunkIdentifierMismatch
)

// WithSettleDelay overrides the settle delay for a single Stop/FinalizeChunk
// call. Invalid (non-positive) values are ignored with a warning and the
// default applies.
func WithSettleDelay(d time.Duration) CallOption {
	return internal_session.WithSettleDelay(d)
}
