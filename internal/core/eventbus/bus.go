package eventbus

import (
	"context"
	"sync"
)

// Handler receives published events.
type Handler func(Event)

// EventBus delivers events to subscribers in publish order on a single
// goroutine. Publishing blocks while the buffer is full, so no event is lost
// while the bus runs; events published after the bus stops are dropped.
// Subscribers must not publish.
type EventBus struct {
	ch chan Event

	closeMu sync.RWMutex
	closed  bool

	mu          sync.RWMutex
	subscribers []Handler

	hooks hooks
}

// New creates a bus with the given buffer size. Call Start to begin delivery.
func New(buffer int) *EventBus {
	if buffer < 0 {
		buffer = 0
	}
	return &EventBus{ch: make(chan Event, buffer)}
}

// Subscribe registers a handler for every event.
func (bus *EventBus) Subscribe(fn Handler) {
	bus.mu.Lock()
	bus.subscribers = append(bus.subscribers, fn)
	bus.mu.Unlock()
}

// Publish enqueues an event for delivery.
func (bus *EventBus) Publish(ev Event) {
	bus.send(ev)
}

// Start delivers events until ctx is cancelled. Every event accepted before
// the bus stops is delivered before Start returns; later ones go to OnDrop.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case ev := <-bus.ch:
			bus.dispatch(ev)
		case <-ctx.Done():
			bus.stop()
			return
		}
	}
}

// stop closes the bus and drains it. Publishers blocked on a full buffer
// hold the read lock, so delivery continues while waiting for the write lock.
func (bus *EventBus) stop() {
	closed := make(chan struct{})
	go func() {
		bus.closeMu.Lock()
		bus.closed = true
		bus.closeMu.Unlock()
		close(closed)
	}()

	for {
		select {
		case ev := <-bus.ch:
			bus.dispatch(ev)
		case <-closed:
			for {
				select {
				case ev := <-bus.ch:
					bus.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (bus *EventBus) dispatch(ev Event) {
	bus.mu.RLock()
	subs := make([]Handler, len(bus.subscribers))
	copy(subs, bus.subscribers)
	bus.mu.RUnlock()

	for _, fn := range subs {
		bus.call(fn, ev)
	}
}

func (bus *EventBus) call(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.runOnPanic(ev, r)
		}
	}()
	fn(ev)
}
