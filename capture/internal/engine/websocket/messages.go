// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_websocket

import (
	"encoding/json"
	"time"

	internal_type "github.com/capturekit/capture/internal/type"
)

// ============================================================================
// Wire protocol — typed envelopes between the library and the capture worker
// ============================================================================

// WSMessageType defines the message type and which data structure to expect.
type WSMessageType string

const (
	// Command types (library -> worker)
	WSTypeStartSession      WSMessageType = "start_session"       // Data: WSStartSessionData
	WSTypeStopSession       WSMessageType = "stop_session"        // Data: nil
	WSTypeQueryStopResult   WSMessageType = "query_stop_result"   // Data: nil
	WSTypeMarkChunk         WSMessageType = "mark_chunk"          // Data: WSChunkRef
	WSTypeFinalizeChunk     WSMessageType = "finalize_chunk"      // Data: WSChunkRef
	WSTypeQueryStatus       WSMessageType = "query_status"        // Data: nil
	WSTypeQueryPermission   WSMessageType = "query_permission"    // Data: WSPermissionData
	WSTypeRequestPermission WSMessageType = "request_permission"  // Data: WSPermissionData
	WSTypeGetLogs           WSMessageType = "get_logs"            // Data: nil
	WSTypeClearLogs         WSMessageType = "clear_logs"          // Data: nil
	WSTypeGetAudioMetrics   WSMessageType = "get_audio_metrics"   // Data: nil
	WSTypeClearAudioMetrics WSMessageType = "clear_audio_metrics" // Data: nil
	WSTypePing              WSMessageType = "ping"                // Data: nil

	// Push types (worker -> library)
	WSTypeResult         WSMessageType = "result"          // correlated to a command id
	WSTypeChunkCompleted WSMessageType = "chunk_completed" // Data: WSChunkCompletedData
	WSTypeRecordingEvent WSMessageType = "recording_event" // Data: internal_type.Event
	WSTypePong           WSMessageType = "pong"            // Data: nil
)

// WSRequest is an outgoing command with typed data.
type WSRequest struct {
	Type      WSMessageType `json:"type"`
	ID        string        `json:"id"`
	Timestamp int64         `json:"timestamp"`
	Data      interface{}   `json:"data,omitempty"`
}

// WSResponse is an incoming message. For WSTypeResult, ID correlates back to
// the WSRequest that caused it.
type WSResponse struct {
	Type    WSMessageType   `json:"type"`
	ID      string          `json:"id,omitempty"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *WSErrorData    `json:"error,omitempty"`
}

// WSErrorData carries the worker's named condition codes (e.g.
// NO_ACTIVE_RECORDING_SESSION) alongside a human-readable message.
type WSErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WSStartSessionData starts a global-recording session.
type WSStartSessionData struct {
	MicEnabled         bool `json:"mic_enabled"`
	SeparateAudioTrack bool `json:"separate_audio_track"`
}

// WSChunkRef addresses a chunk by identifier (optional) and sequence.
type WSChunkRef struct {
	Identifier *string `json:"identifier,omitempty"`
	Sequence   uint64  `json:"sequence"`
}

// WSPermissionData names the capability a permission command refers to.
type WSPermissionData struct {
	Capability string `json:"capability"`
}

// WSPermissionResult is the worker's answer to a permission command.
type WSPermissionResult struct {
	State string `json:"state"`
}

// WSMarkResult reports how long the chunk boundary took on the worker.
type WSMarkResult struct {
	ElapsedMs int64 `json:"elapsed_ms"`
}

// WSFile is the wire shape of a recording file reference.
type WSFile struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	DurationMs int64  `json:"duration_ms"`
}

// WSStatusResult is the worker's answer to a status query.
type WSStatusResult struct {
	MicEnabled       bool  `json:"mic_enabled"`
	IsCapturingChunk bool  `json:"is_capturing_chunk"`
	ChunkStartedAtMs int64 `json:"chunk_started_at_ms"`
}

// WSLogsResult carries the worker's ring-buffer log lines, oldest first.
type WSLogsResult struct {
	Lines []string `json:"lines"`
}

// WSChunkCompletedData is the asynchronous completion signal for a finalized
// chunk.
type WSChunkCompletedData struct {
	Identifier *string `json:"identifier,omitempty"`
	Sequence   uint64  `json:"sequence"`
	File       WSFile  `json:"file"`
}

// ToRecordingFile converts the wire file into the library's reference type.
func (f WSFile) ToRecordingFile() internal_type.RecordingFile {
	return internal_type.RecordingFile{
		Path:     f.Path,
		Size:     f.Size,
		Duration: time.Duration(f.DurationMs) * time.Millisecond,
	}
}
