// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_relay

import (
	"context"
	"sort"
	"sync"

	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
)

// Handler receives relayed events. Handlers run synchronously on the pump
// goroutine, so delivery order always matches emission order.
type Handler func(internal_type.Event)

// Disposer unsubscribes its handler. Calling it more than once is a no-op.
type Disposer func()

// Options tune a subscription.
type Options struct {
	// IgnoreRecordingsInitiatedElsewhere drops lifecycle events for sessions
	// this process did not start, on platforms that can tell the origin.
	// Platforms that cannot simply do not filter.
	IgnoreRecordingsInitiatedElsewhere bool
}

type subscription struct {
	id      uint64
	kind    internal_type.EventKind
	options Options
	handler Handler
}

// Relay subscribes to the engine's ambient notifications and republishes them
// to registered handlers. There is no buffering or replay: a handler
// registered after an event missed it.
type Relay struct {
	logger commons.Logger
	caps   internal_type.Capabilities

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

func New(logger commons.Logger, caps internal_type.Capabilities) *Relay {
	return &Relay{
		logger: logger,
		caps:   caps,
		subs:   make(map[uint64]*subscription),
	}
}

// Run pumps the engine event channel until it closes or the context ends.
// Exactly one pump must run per relay.
func (r *Relay) Run(ctx context.Context, events <-chan internal_type.Event) error {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			r.dispatch(event)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe registers a handler for the given event kind and returns its
// disposer. When the platform lacks the listener category entirely, Subscribe
// warns and returns a functioning no-op disposer rather than failing, so
// caller cleanup code is unconditionally safe.
func (r *Relay) Subscribe(kind internal_type.EventKind, options Options, handler Handler) Disposer {
	if kind == internal_type.EventExtensionStatus && !r.caps.ExtensionStatusEvents {
		r.logger.Warnf("extension status listeners are not supported on this platform; returning no-op disposer")
		return func() {}
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = &subscription{
		id:      id,
		kind:    kind,
		options: options,
		handler: handler,
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// dispatch fans an event out to matching handlers in registration order.
func (r *Relay) dispatch(event internal_type.Event) {
	r.mu.Lock()
	matching := make([]*subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.kind != event.Kind {
			continue
		}
		if r.filtered(sub, event) {
			continue
		}
		matching = append(matching, sub)
	}
	r.mu.Unlock()

	sort.Slice(matching, func(i, j int) bool { return matching[i].id < matching[j].id })
	for _, sub := range matching {
		sub.handler(event)
	}
}

func (r *Relay) filtered(sub *subscription, event internal_type.Event) bool {
	if event.Kind != internal_type.EventRecordingLifecycle || event.Lifecycle == nil {
		return false
	}
	return sub.options.IgnoreRecordingsInitiatedElsewhere &&
		r.caps.FiltersExternalSessions &&
		event.Lifecycle.ExternalOrigin
}
