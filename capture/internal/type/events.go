// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_type

import "time"

// EventKind partitions the engine's ambient notifications.
type EventKind string

const (
	EventRecordingLifecycle EventKind = "recordingLifecycle"
	EventExtensionStatus    EventKind = "extensionStatus"
)

// LifecyclePhase is the coarse state an observed recording moved into.
type LifecyclePhase string

const (
	LifecycleBegan LifecyclePhase = "began"
	LifecycleEnded LifecyclePhase = "ended"
	LifecycleError LifecyclePhase = "error"
)

// LifecycleEvent reports that a system recording began, ended or failed.
// ExternalOrigin is true for sessions not started by this process, on
// platforms that can tell the difference.
type LifecycleEvent struct {
	Phase          LifecyclePhase `json:"phase"`
	Reason         string         `json:"reason,omitempty"`
	ExternalOrigin bool           `json:"externalOrigin,omitempty"`
}

// ExtensionStatusEvent reports broadcast-extension presentation changes
// (picker shown, extension connected, extension gone, …).
type ExtensionStatusEvent struct {
	Status string `json:"status"`
}

// Event is the relay's unit of delivery: exactly one of the payload fields is
// set, matching Kind.
type Event struct {
	Kind      EventKind             `json:"kind"`
	EmittedAt time.Time             `json:"emittedAt"`
	Lifecycle *LifecycleEvent       `json:"lifecycle,omitempty"`
	Extension *ExtensionStatusEvent `json:"extension,omitempty"`
}
