// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_type

import "fmt"

// Platform identifies the host OS the capture engine runs on. The two
// platforms diverge in how chunk boundaries and permissions behave; the
// controller consults a capability profile instead of branching on the
// platform inline, so the state machine is written once.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Capabilities describes the platform behaviors the controller parameterizes
// on.
type Capabilities struct {
	// SeamlessWriterHandoff: the asset writer cannot pause/resume without
	// gaps, so a chunk boundary is a live writer swap and recording continues
	// uninterrupted into an implicit next chunk after finalize. When false,
	// finalize pauses recording until an explicit mark.
	SeamlessWriterHandoff bool
	// PreflightMicPermission: microphone consent must be granted before the
	// session starts. When false the OS capture UI collects consent itself and
	// no pre-check is made.
	PreflightMicPermission bool
	// FiltersExternalSessions: lifecycle events carry enough origin
	// information to drop sessions not started by this app.
	FiltersExternalSessions bool
	// ExtensionStatusEvents: the platform emits broadcast-extension status
	// events at all.
	ExtensionStatusEvents bool
	// Diagnostics: the engine exposes ring-buffer logs and audio metrics.
	Diagnostics bool
	// EvictOnRetrieve: a chunk entry leaves the retrieval registry once it has
	// been handed out; otherwise it stays until superseded.
	EvictOnRetrieve bool
}

// Caps returns the capability profile for the platform.
func (p Platform) Caps() Capabilities {
	switch p {
	case PlatformIOS:
		// ReplayKit broadcast extension: writer swaps are seamless, mic consent
		// is part of the broadcast picker UI, extension diagnostics exist.
		return Capabilities{
			SeamlessWriterHandoff:   true,
			PreflightMicPermission:  false,
			FiltersExternalSessions: false,
			ExtensionStatusEvents:   true,
			Diagnostics:             true,
			EvictOnRetrieve:         false,
		}
	case PlatformAndroid:
		// MediaProjection: recording pauses across finalize, mic permission is
		// a runtime pre-check, session origin is distinguishable.
		return Capabilities{
			SeamlessWriterHandoff:   false,
			PreflightMicPermission:  true,
			FiltersExternalSessions: true,
			ExtensionStatusEvents:   false,
			Diagnostics:             false,
			EvictOnRetrieve:         true,
		}
	default:
		return Capabilities{}
	}
}

// ParsePlatform converts a config string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformIOS:
		return PlatformIOS, nil
	case PlatformAndroid:
		return PlatformAndroid, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}
