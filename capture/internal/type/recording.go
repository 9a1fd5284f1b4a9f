// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_type

import "time"

// RecordingFile references a completed, retrievable video artifact. The file
// itself is owned by the capture engine's storage layer; this is only the
// reference the session controller hands back to callers.
type RecordingFile struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
}

// RecordingStatus is the engine's answer to a status query.
type RecordingStatus struct {
	MicEnabled       bool      `json:"micEnabled"`
	IsCapturingChunk bool      `json:"isCapturingChunk"`
	ChunkStartedAt   time.Time `json:"chunkStartedAt"`
}

// StartOptions configure a global-recording session.
type StartOptions struct {
	MicEnabled         bool `json:"micEnabled"`
	SeparateAudioTrack bool `json:"separateAudioTrack"`
}
