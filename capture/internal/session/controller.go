// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.

package internal_session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	internal_engine "github.com/capturekit/capture/internal/engine"
	internal_permission "github.com/capturekit/capture/internal/permission"
	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
)

// DefaultSettleDelay is the wait between issuing a stop/finalize command and
// querying its result. The asset writer on the worker finalizes
// asynchronously; an immediate query can race the write completion.
const DefaultSettleDelay = 500 * time.Millisecond

// controllerState is the top-level state of the session machine:
// Idle → Recording → Stopping → Idle. The Recording sub-state (open chunk or
// not) is carried by the open field.
type controllerState int

const (
	stateIdle controllerState = iota
	stateRecording
	stateStopping
)

func (s controllerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRecording:
		return "recording"
	case stateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// RecordingSession is one continuous global-recording run. At most one exists
// per process.
type RecordingSession struct {
	Handle             string
	StartedAt          time.Time
	MicEnabled         bool
	SeparateAudioTrack bool
	// Sequence is the sequence number of the most recently opened chunk.
	Sequence uint64
}

// openChunk tracks the single chunk that is marked but not yet finalized.
type openChunk struct {
	identifier *string
	sequence   uint64
	markedAt   time.Time
	// implicit is true for the unnamed continuation chunk a seamless-handoff
	// platform opens after finalize.
	implicit bool
}

// callOptions collects the per-call options of Stop/FinalizeChunk.
type callOptions struct {
	settle    time.Duration
	settleSet bool
}

type CallOption func(*callOptions)

// WithSettleDelay overrides the default settle delay for one call. Invalid
// (non-positive) values are ignored with a warning and the default is used.
func WithSettleDelay(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.settle = d
		o.settleSet = true
	}
}

// Controller is the chunked global-recording state machine. All mutating
// operations are serialized on a single mutex, which is held across the
// settle waits — the controller is deliberately not re-entrant while a stop
// or finalize is settling. Completion signals are merged into the registry by
// the pump under the registry's own lock, so admission is never blocked by an
// in-flight operation.
type Controller struct {
	logger   commons.Logger
	engine   internal_engine.Engine
	gateway  internal_permission.Gateway
	caps     internal_type.Capabilities
	registry *Registry

	defaultSettle time.Duration

	mu      sync.Mutex
	state   controllerState
	session *RecordingSession
	open    *openChunk
	// seq increases monotonically across sessions so registry sequence keys
	// never collide between runs.
	seq uint64

	// clock and sleep are injectable for tests.
	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewController wires the state machine to its collaborators. The capability
// profile decides the platform-divergent behaviors (pre-flight permission,
// seamless handoff, retention policy); the transition logic itself is written
// once.
func NewController(
	logger commons.Logger,
	eng internal_engine.Engine,
	gateway internal_permission.Gateway,
	caps internal_type.Capabilities,
	defaultSettle time.Duration,
) *Controller {
	if defaultSettle <= 0 {
		defaultSettle = DefaultSettleDelay
	}
	return &Controller{
		logger:        logger,
		engine:        eng,
		gateway:       gateway,
		caps:          caps,
		registry:      NewRegistry(logger, caps.EvictOnRetrieve),
		defaultSettle: defaultSettle,
		state:         stateIdle,
		clock:         time.Now,
		sleep:         sleepWithContext,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RunCompletionPump consumes the engine's asynchronous completion channel and
// merges each signal into the registry. Returns when the channel closes or
// the context ends. Exactly one pump must run per controller.
func (c *Controller) RunCompletionPump(ctx context.Context) error {
	for {
		select {
		case completion, ok := <-c.engine.Completions():
			if !ok {
				return nil
			}
			c.registry.Admit(completion)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Session returns a snapshot of the active session, or nil when idle.
func (c *Controller) Session() *RecordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	snapshot := *c.session
	return &snapshot
}

// ============================================================================
// Operations
// ============================================================================

// Start begins a global-recording session. Valid only from Idle. When the
// platform requires a pre-flight microphone check and the mic is requested,
// the permission must already be granted — Start queries, it never requests.
// Platforms whose capture UI collects consent itself skip the pre-check.
func (c *Controller) Start(ctx context.Context, opts internal_type.StartOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateIdle {
		return fmt.Errorf("cannot start from %s state: %w", c.state, internal_type.ErrSessionAlreadyActive)
	}

	if opts.MicEnabled && c.caps.PreflightMicPermission {
		state, err := c.gateway.QueryStatus(ctx, internal_type.CapabilityMicrophone)
		if err != nil {
			return fmt.Errorf("microphone pre-flight check failed: %w", err)
		}
		if state != internal_type.PermissionGranted {
			return fmt.Errorf("microphone permission is %s: %w", state, internal_type.ErrPermissionDenied)
		}
	}

	if err := c.engine.StartSession(ctx, opts); err != nil {
		return fmt.Errorf("capture engine failed to start session: %w", err)
	}

	c.session = &RecordingSession{
		Handle:             uuid.New().String(),
		StartedAt:          c.clock(),
		MicEnabled:         opts.MicEnabled,
		SeparateAudioTrack: opts.SeparateAudioTrack,
		Sequence:           c.seq,
	}
	c.state = stateRecording
	c.open = nil

	c.logger.Infof("global recording started: session=%s mic=%t separateAudio=%t",
		c.session.Handle, opts.MicEnabled, opts.SeparateAudioTrack)
	return nil
}

// Stop ends the session. It issues the stop command, waits at least the
// settle delay, then queries the engine for the resulting file. An engine
// report of "no active session" or "no file produced" is a normal empty
// outcome and resolves to absent (nil, nil). The controller transitions to
// Idle regardless of outcome.
func (c *Controller) Stop(ctx context.Context, opts ...CallOption) (*internal_type.RecordingFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateIdle {
		c.logger.Debug("stop called with no active session; resolving to absent")
		return nil, nil
	}

	handle := c.session.Handle
	c.state = stateStopping
	defer func() {
		c.state = stateIdle
		c.session = nil
		c.open = nil
	}()

	if err := c.engine.StopSession(ctx); err != nil {
		if internal_engine.IsAbsence(err) {
			c.logger.Infof("stop: engine reports %v; resolving to absent", err)
			return nil, nil
		}
		return nil, fmt.Errorf("capture engine failed to stop session: %w", err)
	}

	c.sleep(ctx, c.settleFor(opts))

	file, err := c.engine.StopResult(ctx)
	if err != nil {
		if internal_engine.IsAbsence(err) {
			c.logger.Infof("stop: engine reports %v; resolving to absent", err)
			return nil, nil
		}
		return nil, fmt.Errorf("capture engine failed to produce stop result: %w", err)
	}

	c.logger.Infof("global recording stopped: session=%s file=%s (%d bytes, %s)",
		handle, file.Path, file.Size, file.Duration)
	return file, nil
}

// MarkChunkStart cuts a chunk boundary: the currently open chunk's
// accumulated-but-uncommitted content is DISCARDED and a fresh chunk opens
// with the next sequence and the given (or absent) identifier. Returns the
// wall-clock duration the boundary took, so callers can detect abnormal
// latency. Calling it from Idle is rejected — it never starts a session
// implicitly.
func (c *Controller) MarkChunkStart(ctx context.Context, identifier *string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRecording {
		return 0, fmt.Errorf("cannot mark a chunk from %s state: %w", c.state, internal_type.ErrNoActiveSession)
	}

	if c.open != nil && !c.open.implicit {
		c.logger.Infof("discarding unfinalized chunk seq=%d (identifier=%s)",
			c.open.sequence, identifierForLog(c.open.identifier))
	}

	c.seq++
	sequence := c.seq

	started := c.clock()
	engineElapsed, err := c.engine.MarkChunk(ctx, identifier, sequence)
	if err != nil {
		return 0, fmt.Errorf("capture engine failed to mark chunk: %w", err)
	}
	elapsed := c.clock().Sub(started)
	c.logger.Debugf("chunk boundary seq=%d: engine=%s roundtrip=%s", sequence, engineElapsed, elapsed)

	c.open = &openChunk{
		identifier: identifier,
		sequence:   sequence,
		markedAt:   started,
	}
	c.session.Sequence = sequence

	return elapsed, nil
}

// FlushChunk is a pure alias of MarkChunkStart; the name reflects the
// "discard what has accumulated" intent at call sites.
func (c *Controller) FlushChunk(ctx context.Context, identifier *string) (time.Duration, error) {
	return c.MarkChunkStart(ctx, identifier)
}

// FinalizeChunk closes the open chunk and resolves its file. The pending
// ticket is registered before the engine command goes out, so a completion
// signal can never be missed or claimed by an overlapping cycle for another
// identifier. After the settle wait the ticket is resolved non-blockingly:
// absent is a normal outcome, and a completion arriving later still makes the
// chunk retrievable.
//
// Post-state is platform-divergent and preserved exactly: a seamless-handoff
// platform keeps recording into an implicit unnamed chunk; the other platform
// pauses until an explicit MarkChunkStart.
func (c *Controller) FinalizeChunk(ctx context.Context, identifier *string, opts ...CallOption) (*internal_type.RecordingFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRecording {
		return nil, fmt.Errorf("cannot finalize a chunk from %s state: %w", c.state, internal_type.ErrNoActiveSession)
	}
	if c.open == nil {
		return nil, internal_type.ErrNoOpenChunk
	}
	if identifier != nil && c.open.identifier != nil && *identifier != *c.open.identifier {
		return nil, fmt.Errorf("finalize %q but open chunk is %q: %w",
			*identifier, *c.open.identifier, internal_type.ErrChunkIdentifierMismatch)
	}
	if identifier != nil && c.open.identifier == nil {
		// Naming an unnamed (typically implicit) chunk at finalize time is
		// allowed; retrieval then goes by this identifier.
		c.open.identifier = identifier
	}

	chunk := c.open
	ticket := c.registry.Expect(chunk.identifier, chunk.sequence)

	if err := c.engine.FinalizeChunk(ctx, chunk.identifier, chunk.sequence); err != nil {
		if !internal_engine.IsAbsence(err) {
			// Command failed outright: the chunk is still open on our side.
			return nil, fmt.Errorf("capture engine failed to finalize chunk: %w", err)
		}
		c.logger.Infof("finalize seq=%d: engine reports %v; resolving to absent", chunk.sequence, err)
	}

	c.sleep(ctx, c.settleFor(opts))

	file := c.registry.Resolve(ticket)
	if file == nil {
		c.logger.Infof("finalize seq=%d (identifier=%s): no file within settle window",
			chunk.sequence, identifierForLog(chunk.identifier))
	}

	if c.caps.SeamlessWriterHandoff {
		// The writer never stopped; recording continues into an implicit
		// unnamed chunk.
		c.seq++
		c.open = &openChunk{
			sequence: c.seq,
			markedAt: c.clock(),
			implicit: true,
		}
		c.session.Sequence = c.seq
	} else {
		// Recording is paused until an explicit MarkChunkStart.
		c.open = nil
	}

	return file, nil
}

// RetrieveGlobalRecording is a non-blocking completion-registry lookup. With
// an identifier it returns that exact chunk's file or absent; without one it
// returns the most recently completed chunk (LIFO fallback for callers that
// did not track identifiers).
func (c *Controller) RetrieveGlobalRecording(identifier *string) *internal_type.RecordingFile {
	return c.registry.Lookup(identifier)
}

// RetrieveLastGlobalRecording is equivalent to RetrieveGlobalRecording with
// no identifier; retained for backward compatibility.
func (c *Controller) RetrieveLastGlobalRecording() *internal_type.RecordingFile {
	return c.registry.Lookup(nil)
}

// Status queries the engine's live capture state.
func (c *Controller) Status(ctx context.Context) (*internal_type.RecordingStatus, error) {
	return c.engine.QueryStatus(ctx)
}

// settleFor validates the per-call settle override against the default.
func (c *Controller) settleFor(opts []CallOption) time.Duration {
	options := &callOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if !options.settleSet {
		return c.defaultSettle
	}
	if options.settle <= 0 {
		c.logger.Warnf("ignoring invalid settle delay %s; using default %s", options.settle, c.defaultSettle)
		return c.defaultSettle
	}
	return options.settle
}

func identifierForLog(identifier *string) string {
	if identifier == nil {
		return "<none>"
	}
	return *identifier
}
