// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_diagnostics

import (
	"context"
	"encoding/json"
	"fmt"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
)

// emptyMetrics is the explicit placeholder payload for platforms without
// diagnostics: best-effort data returns empty, never an error.
var emptyMetrics = json.RawMessage(`{}`)

// Accessor provides read/clear access to the capture worker's ring-buffer
// logs and structured audio metrics. Pure pass-throughs with no session-state
// coupling, gated on the platform's diagnostics capability.
type Accessor struct {
	logger commons.Logger
	engine internal_engine.Engine
	caps   internal_type.Capabilities
}

func NewAccessor(logger commons.Logger, eng internal_engine.Engine, caps internal_type.Capabilities) *Accessor {
	return &Accessor{logger: logger, engine: eng, caps: caps}
}

// Logs returns the worker's most recent log lines (the worker keeps a bounded
// ring buffer, ~200 entries). On unsupported platforms it returns an empty
// slice with a warning.
func (a *Accessor) Logs(ctx context.Context) ([]string, error) {
	if !a.caps.Diagnostics {
		a.logger.Warnf("extension logs are not available on this platform")
		return []string{}, nil
	}
	lines, err := a.engine.Logs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch extension logs: %w", err)
	}
	return lines, nil
}

// ClearLogs empties the worker's log ring buffer. No-op on unsupported
// platforms.
func (a *Accessor) ClearLogs(ctx context.Context) error {
	if !a.caps.Diagnostics {
		a.logger.Warnf("extension logs are not available on this platform")
		return nil
	}
	if err := a.engine.ClearLogs(ctx); err != nil {
		return fmt.Errorf("failed to clear extension logs: %w", err)
	}
	return nil
}

// AudioMetrics returns the worker's structured audio-metrics payload, or an
// explicit empty object on unsupported platforms.
func (a *Accessor) AudioMetrics(ctx context.Context) (json.RawMessage, error) {
	if !a.caps.Diagnostics {
		a.logger.Warnf("audio metrics are not available on this platform")
		return emptyMetrics, nil
	}
	metrics, err := a.engine.AudioMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio metrics: %w", err)
	}
	if len(metrics) == 0 {
		return emptyMetrics, nil
	}
	return metrics, nil
}

// ClearAudioMetrics resets the worker's audio metrics. No-op on unsupported
// platforms.
func (a *Accessor) ClearAudioMetrics(ctx context.Context) error {
	if !a.caps.Diagnostics {
		a.logger.Warnf("audio metrics are not available on this platform")
		return nil
	}
	if err := a.engine.ClearAudioMetrics(ctx); err != nil {
		return fmt.Errorf("failed to clear audio metrics: %w", err)
	}
	return nil
}
