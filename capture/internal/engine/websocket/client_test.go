// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
	"github.com/capturekit/pkg/utils"
)

// fakeWorker is an in-process capture worker speaking the wire protocol. Each
// command type gets a canned reply; finalize_chunk additionally pushes the
// asynchronous chunk_completed signal.
type fakeWorker struct {
	t *testing.T

	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conn      *websocket.Conn
	authToken string
	// failWith maps a command type to a condition code returned instead of
	// success.
	failWith map[WSMessageType]string
}

func newFakeWorker(t *testing.T) *fakeWorker {
	t.Helper()
	w := &fakeWorker{
		t:        t,
		failWith: make(map[WSMessageType]string),
	}
	w.server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.server.Close)
	return w
}

func (w *fakeWorker) url() string {
	return "ws" + strings.TrimPrefix(w.server.URL, "http")
}

func (w *fakeWorker) handle(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	w.authToken = r.Header.Get("Authorization")
	w.mu.Unlock()

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	for {
		var req struct {
			Type WSMessageType   `json:"type"`
			ID   string          `json:"id"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		w.reply(conn, req.Type, req.ID, req.Data)
	}
}

func (w *fakeWorker) reply(conn *websocket.Conn, msgType WSMessageType, id string, data json.RawMessage) {
	w.mu.Lock()
	code, shouldFail := w.failWith[msgType]
	w.mu.Unlock()
	if shouldFail {
		w.send(conn, WSResponse{
			Type: WSTypeResult, ID: id, Success: false,
			Error: &WSErrorData{Code: code, Message: "scripted condition"},
		})
		return
	}

	switch msgType {
	case WSTypePing:
		w.send(conn, WSResponse{Type: WSTypePong})

	case WSTypeMarkChunk:
		w.send(conn, WSResponse{
			Type: WSTypeResult, ID: id, Success: true,
			Data: mustMarshal(w.t, WSMarkResult{ElapsedMs: 12}),
		})

	case WSTypeQueryStopResult:
		w.send(conn, WSResponse{
			Type: WSTypeResult, ID: id, Success: true,
			Data: mustMarshal(w.t, WSFile{Path: "/var/full.mp4", Size: 2048, DurationMs: 90000}),
		})

	case WSTypeQueryStatus:
		w.send(conn, WSResponse{
			Type: WSTypeResult, ID: id, Success: true,
			Data: mustMarshal(w.t, WSStatusResult{MicEnabled: true, IsCapturingChunk: true, ChunkStartedAtMs: 1700000000000}),
		})

	case WSTypeQueryPermission, WSTypeRequestPermission:
		w.send(conn, WSResponse{
			Type: WSTypeResult, ID: id, Success: true,
			Data: mustMarshal(w.t, WSPermissionResult{State: "granted"}),
		})

	case WSTypeGetLogs:
		w.send(conn, WSResponse{
			Type: WSTypeResult, ID: id, Success: true,
			Data: mustMarshal(w.t, WSLogsResult{Lines: []string{"extension launched"}}),
		})

	case WSTypeFinalizeChunk:
		w.send(conn, WSResponse{Type: WSTypeResult, ID: id, Success: true})

		var ref WSChunkRef
		if err := json.Unmarshal(data, &ref); err == nil {
			w.send(conn, WSResponse{
				Type: WSTypeChunkCompleted, Success: true,
				Data: mustMarshal(w.t, WSChunkCompletedData{
					Identifier: ref.Identifier,
					Sequence:   ref.Sequence,
					File:       WSFile{Path: "/var/chunk.mp4", Size: 512, DurationMs: 8000},
				}),
			})
		}

	default:
		w.send(conn, WSResponse{Type: WSTypeResult, ID: id, Success: true})
	}
}

func (w *fakeWorker) send(conn *websocket.Conn, resp WSResponse) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := conn.WriteJSON(resp); err != nil {
		w.t.Logf("fake worker write failed: %v", err)
	}
}

// pushEvent sends an unsolicited recording event to the connected client.
func (w *fakeWorker) pushEvent(event internal_type.Event) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	require.NotNil(w.t, conn, "no client connected")
	payload, err := json.Marshal(event)
	require.NoError(w.t, err)
	w.send(conn, WSResponse{Type: WSTypeRecordingEvent, Success: true, Data: payload})
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func dialTestClient(t *testing.T, worker *fakeWorker, token string) *Client {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-ws"),
		commons.Level("debug"),
	)
	require.NoError(t, err)

	client, err := Dial(context.Background(), Config{
		URL:         worker.url(),
		Token:       token,
		DialTimeout: 2 * time.Second,
	}, logger)
	require.NoError(t, err, "dial must succeed")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDialSendsBearerToken(t *testing.T) {
	worker := newFakeWorker(t)
	dialTestClient(t, worker, "secret-token")

	worker.mu.Lock()
	defer worker.mu.Unlock()
	assert.Equal(t, "Bearer secret-token", worker.authToken)
}

func TestDialFailsWhenWorkerUnreachable(t *testing.T) {
	logger, err := commons.NewApplicationLogger(commons.Name("test-ws"))
	require.NoError(t, err)

	_, err = Dial(context.Background(), Config{
		URL:         "ws://127.0.0.1:1/ws",
		DialTimeout: 200 * time.Millisecond,
	}, logger)
	assert.Error(t, err)
}

func TestCommandRoundTrips(t *testing.T) {
	worker := newFakeWorker(t)
	client := dialTestClient(t, worker, "")
	ctx := context.Background()

	require.NoError(t, client.StartSession(ctx, internal_type.StartOptions{MicEnabled: true}))

	elapsed, err := client.MarkChunk(ctx, utils.Ptr("q1"), 1)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Millisecond, elapsed)

	status, err := client.QueryStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsCapturingChunk)
	assert.True(t, status.MicEnabled)
	assert.Equal(t, time.UnixMilli(1700000000000), status.ChunkStartedAt)

	state, err := client.QueryPermission(ctx, internal_type.CapabilityMicrophone)
	require.NoError(t, err)
	assert.Equal(t, internal_type.PermissionGranted, state)

	lines, err := client.Logs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"extension launched"}, lines)

	require.NoError(t, client.StopSession(ctx))
	file, err := client.StopResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/var/full.mp4", file.Path)
	assert.Equal(t, int64(2048), file.Size)
	assert.Equal(t, 90*time.Second, file.Duration)
}

func TestConditionCodesMapToSentinels(t *testing.T) {
	worker := newFakeWorker(t)
	client := dialTestClient(t, worker, "")
	ctx := context.Background()

	worker.mu.Lock()
	worker.failWith[WSTypeStopSession] = "NO_ACTIVE_RECORDING_SESSION"
	worker.failWith[WSTypeFinalizeChunk] = "NO_FINALIZED_CHUNK_FILE"
	worker.mu.Unlock()

	err := client.StopSession(ctx)
	assert.ErrorIs(t, err, internal_engine.ErrNoActiveRecordingSession)
	assert.True(t, internal_engine.IsAbsence(err))

	err = client.FinalizeChunk(ctx, nil, 1)
	assert.ErrorIs(t, err, internal_engine.ErrNoFinalizedChunkFile)
}

func TestUnknownConditionCodeIsReadable(t *testing.T) {
	worker := newFakeWorker(t)
	client := dialTestClient(t, worker, "")

	worker.mu.Lock()
	worker.failWith[WSTypeStartSession] = "WRITER_CRASHED"
	worker.mu.Unlock()

	err := client.StartSession(context.Background(), internal_type.StartOptions{})
	require.Error(t, err)
	assert.False(t, internal_engine.IsAbsence(err))
	assert.Contains(t, err.Error(), "WRITER_CRASHED")
}

func TestFinalizePushesChunkCompletion(t *testing.T) {
	worker := newFakeWorker(t)
	client := dialTestClient(t, worker, "")

	require.NoError(t, client.FinalizeChunk(context.Background(), utils.Ptr("q7"), 7))

	select {
	case completion := <-client.Completions():
		require.NotNil(t, completion.Identifier)
		assert.Equal(t, "q7", *completion.Identifier)
		assert.Equal(t, uint64(7), completion.Sequence)
		assert.Equal(t, "/var/chunk.mp4", completion.File.Path)
		assert.Equal(t, 8*time.Second, completion.File.Duration)
		assert.False(t, completion.ReportedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk completion")
	}
}

func TestRecordingEventsAreForwarded(t *testing.T) {
	worker := newFakeWorker(t)
	client := dialTestClient(t, worker, "")

	worker.pushEvent(internal_type.Event{
		Kind:      internal_type.EventRecordingLifecycle,
		EmittedAt: time.Now(),
		Lifecycle: &internal_type.LifecycleEvent{Phase: internal_type.LifecycleBegan},
	})

	select {
	case event := <-client.Events():
		assert.Equal(t, internal_type.EventRecordingLifecycle, event.Kind)
		require.NotNil(t, event.Lifecycle)
		assert.Equal(t, internal_type.LifecycleBegan, event.Lifecycle.Phase)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestCloseIsIdempotentAndClosesChannels(t *testing.T) {
	worker := newFakeWorker(t)
	client := dialTestClient(t, worker, "")

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	waitClosed := func(name string, closed func() bool) {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if closed() {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("%s channel not closed after Close", name)
	}
	waitClosed("completions", func() bool {
		select {
		case _, ok := <-client.Completions():
			return !ok
		default:
			return false
		}
	})
	waitClosed("events", func() bool {
		select {
		case _, ok := <-client.Events():
			return !ok
		default:
			return false
		}
	})
}
