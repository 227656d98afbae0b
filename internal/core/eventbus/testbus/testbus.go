// Package testbus provides test utilities for the event bus.
// It wraps a real EventBus with event recording and assertion helpers.
package testbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/huddle/internal/core/eventbus"
)

// Bus wraps a real EventBus with event recording for tests.
type Bus struct {
	*eventbus.EventBus
	cancel context.CancelFunc

	mu     sync.Mutex
	events []eventbus.Event
}

// New creates a test bus, starts it in a background goroutine, and records
// every event delivered. The bus is stopped when the test completes.
func New(t *testing.T) *Bus {
	t.Helper()

	bus := eventbus.New(64)
	ctx, cancel := context.WithCancel(context.Background())

	tb := &Bus{
		EventBus: bus,
		cancel:   cancel,
	}

	bus.Subscribe(tb.record)

	go bus.Start(ctx)

	t.Cleanup(func() {
		cancel()
	})

	return tb
}

func (tb *Bus) record(ev eventbus.Event) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.events = append(tb.events, ev)
}

// Events returns a copy of all recorded events.
func (tb *Bus) Events() []eventbus.Event {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]eventbus.Event, len(tb.events))
	copy(out, tb.events)
	return out
}

// OfKind returns the recorded events of one kind, in delivery order.
func (tb *Bus) OfKind(kind eventbus.Kind) []eventbus.Event {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	var out []eventbus.Event
	for _, e := range tb.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears all recorded events.
func (tb *Bus) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.events = nil
}

// WaitFor blocks until an event of the given kind is recorded or the timeout expires.
// Returns true if the event was found.
func (tb *Bus) WaitFor(kind eventbus.Kind, timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if tb.has(kind) {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}

func (tb *Bus) has(kind eventbus.Kind) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for _, e := range tb.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// AssertPublished asserts that an event of the given kind was recorded and
// returns the most recent one.
func (tb *Bus) AssertPublished(t *testing.T, kind eventbus.Kind) eventbus.Event {
	t.Helper()
	if !tb.WaitFor(kind, 500*time.Millisecond) {
		t.Errorf("expected event %q to be published, but it was not", kind)
		return eventbus.Event{}
	}
	events := tb.OfKind(kind)
	return events[len(events)-1]
}

// AssertNotPublished asserts that an event of the given kind was NOT recorded
// within the given wait period.
func (tb *Bus) AssertNotPublished(t *testing.T, kind eventbus.Kind, wait time.Duration) {
	t.Helper()
	time.Sleep(wait)
	if tb.has(kind) {
		t.Errorf("expected event %q to NOT be published, but it was", kind)
	}
}
