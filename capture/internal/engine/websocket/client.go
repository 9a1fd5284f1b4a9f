// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
	"github.com/capturekit/pkg/utils"
)

const (
	// defaultRequestTimeout bounds a single command round trip. Permission
	// requests are exempt: they block on a user-facing dialog.
	defaultRequestTimeout = 10 * time.Second

	// pingInterval keeps the worker connection alive between commands.
	pingInterval = 30 * time.Second
)

// Config configures the websocket connection to the capture worker.
type Config struct {
	URL         string
	Token       string
	DialTimeout time.Duration
	// ChannelSize buffers the completion/event channels so a slow consumer
	// does not stall the reader.
	ChannelSize int
}

// Client is the production Engine implementation: it speaks the typed JSON
// envelope protocol over a websocket to the out-of-process capture worker.
//
// Commands are correlated by uuid; a single reader goroutine routes result
// envelopes back to their waiting callers and forwards push messages
// (chunk completions, lifecycle events) onto their channels.
type Client struct {
	logger     commons.Logger
	connection *websocket.Conn

	// writeMu serializes writes; gorilla permits one concurrent writer only.
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *WSResponse

	completions chan internal_engine.ChunkCompletion
	events      chan internal_type.Event

	done      chan struct{}
	closeOnce sync.Once
}

var _ internal_engine.Engine = (*Client)(nil)

// Dial connects to the capture worker and starts the response listener.
func Dial(ctx context.Context, cfg Config, logger commons.Logger) (*Client, error) {
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = 64
	}

	client := &Client{
		logger:      logger,
		pending:     make(map[string]chan *WSResponse),
		completions: make(chan internal_engine.ChunkCompletion, cfg.ChannelSize),
		events:      make(chan internal_type.Event, cfg.ChannelSize),
		done:        make(chan struct{}),
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Establish the websocket connection.
	g.Go(func() error {
		return client.establishConnection(gCtx, cfg)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("failed to connect to capture worker at %s: %v", cfg.URL, err)
		return nil, err
	}

	// Reader goroutine: routes results to waiters, pushes to channels.
	utils.Go(ctx, client.readLoop)
	// Keepalive goroutine.
	utils.Go(ctx, client.pingLoop)

	logger.Infof("connected to capture worker: %s", cfg.URL)
	return client, nil
}

func (c *Client) establishConnection(ctx context.Context, cfg Config) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	c.connection = conn
	return nil
}

// ============================================================================
// Request/response plumbing
// ============================================================================

// request sends a command and blocks until its correlated result arrives, the
// context ends, or the connection dies.
func (c *Client) request(ctx context.Context, msgType WSMessageType, data interface{}) (*WSResponse, error) {
	id := uuid.New().String()

	respCh := make(chan *WSResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := WSRequest{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	if err := c.write(req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	select {
	case resp := <-respCh:
		if !resp.Success {
			if resp.Error != nil {
				return nil, internal_engine.ConditionError(resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("capture worker rejected %s without an error payload", msgType)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("capture worker connection closed while waiting for %s", msgType)
	}
}

// requestWithTimeout wraps request with the default command deadline.
func (c *Client) requestWithTimeout(ctx context.Context, msgType WSMessageType, data interface{}) (*WSResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()
	return c.request(ctx, msgType, data)
}

func (c *Client) write(req WSRequest) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.connection.WriteJSON(req)
}

// readLoop is the single reader: result envelopes go to their waiting command,
// push messages go to the completion/event channels in arrival order.
func (c *Client) readLoop() {
	defer func() {
		close(c.completions)
		close(c.events)
	}()

	for {
		var resp WSResponse
		if err := c.connection.ReadJSON(&resp); err != nil {
			select {
			case <-c.done:
				// Expected: Close tore down the connection.
			default:
				c.logger.Errorf("capture worker read error: %v", err)
				_ = c.Close()
			}
			return
		}

		switch resp.Type {
		case WSTypeResult:
			c.pendingMu.Lock()
			waiter, ok := c.pending[resp.ID]
			c.pendingMu.Unlock()
			if !ok {
				c.logger.Warnf("dropping result for unknown request id %s", resp.ID)
				continue
			}
			waiter <- &resp

		case WSTypeChunkCompleted:
			var data WSChunkCompletedData
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				c.logger.Errorf("malformed chunk completion: %v", err)
				continue
			}
			completion := internal_engine.ChunkCompletion{
				Identifier: data.Identifier,
				Sequence:   data.Sequence,
				File:       data.File.ToRecordingFile(),
				ReportedAt: time.Now(),
			}
			select {
			case c.completions <- completion:
			case <-c.done:
				return
			}

		case WSTypeRecordingEvent:
			var event internal_type.Event
			if err := json.Unmarshal(resp.Data, &event); err != nil {
				c.logger.Errorf("malformed recording event: %v", err)
				continue
			}
			select {
			case c.events <- event:
			case <-c.done:
				return
			}

		case WSTypePong:
			// Keepalive answer; nothing to route.

		default:
			c.logger.Warnf("unknown message type from capture worker: %s", resp.Type)
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.write(WSRequest{
				Type:      WSTypePing,
				ID:        uuid.New().String(),
				Timestamp: time.Now().UnixMilli(),
			}); err != nil {
				c.logger.Warnf("keepalive ping failed: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// ============================================================================
// Engine implementation
// ============================================================================

func (c *Client) StartSession(ctx context.Context, opts internal_type.StartOptions) error {
	_, err := c.requestWithTimeout(ctx, WSTypeStartSession, WSStartSessionData{
		MicEnabled:         opts.MicEnabled,
		SeparateAudioTrack: opts.SeparateAudioTrack,
	})
	return err
}

func (c *Client) StopSession(ctx context.Context) error {
	_, err := c.requestWithTimeout(ctx, WSTypeStopSession, nil)
	return err
}

func (c *Client) StopResult(ctx context.Context) (*internal_type.RecordingFile, error) {
	resp, err := c.requestWithTimeout(ctx, WSTypeQueryStopResult, nil)
	if err != nil {
		return nil, err
	}
	var wire WSFile
	if err := json.Unmarshal(resp.Data, &wire); err != nil {
		return nil, fmt.Errorf("malformed stop result: %w", err)
	}
	file := wire.ToRecordingFile()
	return &file, nil
}

func (c *Client) MarkChunk(ctx context.Context, identifier *string, sequence uint64) (time.Duration, error) {
	resp, err := c.requestWithTimeout(ctx, WSTypeMarkChunk, WSChunkRef{
		Identifier: identifier,
		Sequence:   sequence,
	})
	if err != nil {
		return 0, err
	}
	var result WSMarkResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return 0, fmt.Errorf("malformed mark result: %w", err)
	}
	return time.Duration(result.ElapsedMs) * time.Millisecond, nil
}

func (c *Client) FinalizeChunk(ctx context.Context, identifier *string, sequence uint64) error {
	_, err := c.requestWithTimeout(ctx, WSTypeFinalizeChunk, WSChunkRef{
		Identifier: identifier,
		Sequence:   sequence,
	})
	return err
}

func (c *Client) QueryStatus(ctx context.Context) (*internal_type.RecordingStatus, error) {
	resp, err := c.requestWithTimeout(ctx, WSTypeQueryStatus, nil)
	if err != nil {
		return nil, err
	}
	var wire WSStatusResult
	if err := json.Unmarshal(resp.Data, &wire); err != nil {
		return nil, fmt.Errorf("malformed status result: %w", err)
	}
	return &internal_type.RecordingStatus{
		MicEnabled:       wire.MicEnabled,
		IsCapturingChunk: wire.IsCapturingChunk,
		ChunkStartedAt:   time.UnixMilli(wire.ChunkStartedAtMs),
	}, nil
}

func (c *Client) QueryPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error) {
	resp, err := c.requestWithTimeout(ctx, WSTypeQueryPermission, WSPermissionData{Capability: string(capability)})
	if err != nil {
		return "", err
	}
	var result WSPermissionResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return "", fmt.Errorf("malformed permission result: %w", err)
	}
	return internal_type.PermissionState(result.State), nil
}

// RequestPermission deliberately has no command timeout: it suspends until the
// user answers the system dialog.
func (c *Client) RequestPermission(ctx context.Context, capability internal_type.Capability) (internal_type.PermissionState, error) {
	resp, err := c.request(ctx, WSTypeRequestPermission, WSPermissionData{Capability: string(capability)})
	if err != nil {
		return "", err
	}
	var result WSPermissionResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return "", fmt.Errorf("malformed permission result: %w", err)
	}
	return internal_type.PermissionState(result.State), nil
}

func (c *Client) Completions() <-chan internal_engine.ChunkCompletion {
	return c.completions
}

func (c *Client) Events() <-chan internal_type.Event {
	return c.events
}

func (c *Client) Logs(ctx context.Context) ([]string, error) {
	resp, err := c.requestWithTimeout(ctx, WSTypeGetLogs, nil)
	if err != nil {
		return nil, err
	}
	var result WSLogsResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("malformed logs result: %w", err)
	}
	return result.Lines, nil
}

func (c *Client) ClearLogs(ctx context.Context) error {
	_, err := c.requestWithTimeout(ctx, WSTypeClearLogs, nil)
	return err
}

func (c *Client) AudioMetrics(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.requestWithTimeout(ctx, WSTypeGetAudioMetrics, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) ClearAudioMetrics(ctx context.Context) error {
	_, err := c.requestWithTimeout(ctx, WSTypeClearAudioMetrics, nil)
	return err
}

// Close tears down the connection. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.connection.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()
		err = c.connection.Close()
	})
	return err
}
