// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_type

// Capability names an OS-mediated hardware permission.
type Capability string

const (
	CapabilityCamera     Capability = "camera"
	CapabilityMicrophone Capability = "microphone"
)

// PermissionState mirrors the host OS authorization state. It is authoritative
// only at the moment of the query; the library never caches it.
type PermissionState string

const (
	PermissionUndetermined PermissionState = "undetermined"
	PermissionDenied       PermissionState = "denied"
	PermissionRestricted   PermissionState = "restricted"
	PermissionGranted      PermissionState = "granted"
)

// Determined reports whether the OS has already resolved the permission one
// way or the other (i.e. a request dialog would be a no-op).
func (s PermissionState) Determined() bool {
	return s != PermissionUndetermined && s != ""
}
