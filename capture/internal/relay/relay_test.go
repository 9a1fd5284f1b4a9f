// Copyright (c) 2024-2026 CaptureKit
// Author: CaptureKit Engineering <engineering@capturekit.dev>
//
// Licensed under GPL-2.0 with CaptureKit Additional Terms.
// See LICENSE.md or contact sales@capturekit.dev for commercial usage.
package internal_relay

import (
	"context"
	"testing"
	"time"

	internal_type "github.com/capturekit/capture/internal/type"
	"github.com/capturekit/pkg/commons"
)

func newTestRelay(t *testing.T, platform internal_type.Platform) *Relay {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-relay"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return New(logger, platform.Caps())
}

func lifecycleEvent(phase internal_type.LifecyclePhase, external bool) internal_type.Event {
	return internal_type.Event{
		Kind:      internal_type.EventRecordingLifecycle,
		EmittedAt: time.Now(),
		Lifecycle: &internal_type.LifecycleEvent{
			Phase:          phase,
			ExternalOrigin: external,
		},
	}
}

func extensionEvent(status string) internal_type.Event {
	return internal_type.Event{
		Kind:      internal_type.EventExtensionStatus,
		EmittedAt: time.Now(),
		Extension: &internal_type.ExtensionStatusEvent{Status: status},
	}
}

func TestRelayDeliversToMatchingKind(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformIOS)

	var lifecycle, extension int
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) { lifecycle++ })
	r.Subscribe(internal_type.EventExtensionStatus, Options{}, func(internal_type.Event) { extension++ })

	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, false))
	r.dispatch(extensionEvent("connected"))

	if lifecycle != 1 || extension != 1 {
		t.Fatalf("delivery counts = %d/%d, want 1/1", lifecycle, extension)
	}
}

func TestRelayDeliversInRegistrationOrder(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformIOS)

	var order []string
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) {
		order = append(order, "first")
	})
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) {
		order = append(order, "second")
	})

	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, false))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("delivery order = %v, want [first second]", order)
	}
}

func TestRelayDisposerIsIdempotent(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformIOS)

	var calls int
	dispose := r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) { calls++ })

	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, false))
	dispose()
	dispose()
	r.dispatch(lifecycleEvent(internal_type.LifecycleEnded, false))

	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestRelayDisposerRemovesOnlyItsSubscription(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformIOS)

	var a, b int
	disposeA := r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) { a++ })
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) { b++ })

	disposeA()
	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, false))

	if a != 0 || b != 1 {
		t.Fatalf("counts after disposing a = %d/%d, want 0/1", a, b)
	}
}

func TestRelayExtensionListenerNoOpWhereUnsupported(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformAndroid)

	var calls int
	dispose := r.Subscribe(internal_type.EventExtensionStatus, Options{}, func(internal_type.Event) { calls++ })

	r.dispatch(extensionEvent("connected"))
	if calls != 0 {
		t.Fatalf("unsupported listener ran %d times, want 0", calls)
	}

	// The disposer must still be safe to call, repeatedly.
	dispose()
	dispose()
}

func TestRelayFiltersExternalSessionsWhenRequested(t *testing.T) {
	// Android can tell the origin, so the opt-in filter applies.
	r := newTestRelay(t, internal_type.PlatformAndroid)

	var filtered, unfiltered int
	r.Subscribe(internal_type.EventRecordingLifecycle,
		Options{IgnoreRecordingsInitiatedElsewhere: true},
		func(internal_type.Event) { filtered++ })
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{},
		func(internal_type.Event) { unfiltered++ })

	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, true))
	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, false))

	if filtered != 1 {
		t.Fatalf("filtered subscriber saw %d events, want 1", filtered)
	}
	if unfiltered != 2 {
		t.Fatalf("unfiltered subscriber saw %d events, want 2", unfiltered)
	}
}

func TestRelayFilterInertWhereOriginUnknown(t *testing.T) {
	// iOS cannot tell the origin: the opt-in must not drop anything.
	r := newTestRelay(t, internal_type.PlatformIOS)

	var calls int
	r.Subscribe(internal_type.EventRecordingLifecycle,
		Options{IgnoreRecordingsInitiatedElsewhere: true},
		func(internal_type.Event) { calls++ })

	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, true))

	if calls != 1 {
		t.Fatalf("filter must be inert on this platform, handler ran %d times", calls)
	}
}

func TestRelayNoReplayForLateSubscribers(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformIOS)

	r.dispatch(lifecycleEvent(internal_type.LifecycleBegan, false))

	var calls int
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(internal_type.Event) { calls++ })
	if calls != 0 {
		t.Fatalf("late subscriber replayed %d events, want 0", calls)
	}
}

func TestRelayRunPumpsUntilChannelCloses(t *testing.T) {
	r := newTestRelay(t, internal_type.PlatformIOS)

	received := make(chan internal_type.Event, 4)
	r.Subscribe(internal_type.EventRecordingLifecycle, Options{}, func(e internal_type.Event) {
		received <- e
	})

	events := make(chan internal_type.Event, 4)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), events) }()

	events <- lifecycleEvent(internal_type.LifecycleBegan, false)
	events <- lifecycleEvent(internal_type.LifecycleEnded, false)

	for _, want := range []internal_type.LifecyclePhase{internal_type.LifecycleBegan, internal_type.LifecycleEnded} {
		select {
		case e := <-received:
			if e.Lifecycle.Phase != want {
				t.Fatalf("got phase %s, want %s", e.Lifecycle.Phase, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for relayed event")
		}
	}

	close(events)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v after channel close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
}
