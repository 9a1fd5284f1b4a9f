// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_permission

import (
	"context"
	"fmt"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
)

// Gateway exposes the host OS authorization state for camera and microphone.
// The state is authoritative only via the OS; implementations must not cache
// it beyond a single query.
type Gateway interface {
	// QueryStatus reflects the live OS state. No side effects: it never shows
	// a dialog.
	QueryStatus(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error)

	// RequestPermission may suspend while the user interacts with the system
	// dialog, and resolves immediately when the state is already determined.
	// Never retried automatically.
	RequestPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error)
}

// engineGateway delegates permission calls to the capture worker process,
// which performs the actual OS queries on its side of the boundary.
type engineGateway struct {
	logger commons.Logger
	engine internal_engine.Engine
}

// NewEngineGateway builds the default Gateway backed by the capture engine.
func NewEngineGateway(logger commons.Logger, eng internal_engine.Engine) Gateway {
	return &engineGateway{logger: logger, engine: eng}
}

func (g *engineGateway) QueryStatus(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error) {
	state, err := g.engine.QueryPermission(ctx, capability)
	if err != nil {
		return "", fmt.Errorf("failed to query %s permission: %w", capability, err)
	}
	g.logger.Debugf("permission %s: %s", capability, state)
	return state, nil
}

func (g *engineGateway) RequestPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error) {
	state, err := g.engine.RequestPermission(ctx, capability)
	if err != nil {
		return "", fmt.Errorf("failed to request %s permission: %w", capability, err)
	}
	g.logger.Infof("permission %s resolved: %s", capability, state)
	return state, nil
}
