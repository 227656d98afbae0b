package eventbus

import "sync"

// hooks holds the lifecycle hook state for the EventBus.
type hooks struct {
	mu        sync.RWMutex
	onPublish []func(Event)
	onDrop    []func(Event)
	onPanic   []func(Event, any)
}

// OnPublish registers a hook that fires after an event is enqueued.
func (bus *EventBus) OnPublish(fn func(Event)) {
	bus.hooks.mu.Lock()
	bus.hooks.onPublish = append(bus.hooks.onPublish, fn)
	bus.hooks.mu.Unlock()
}

// OnDrop registers a hook that fires when an event is published after the
// bus has stopped.
func (bus *EventBus) OnDrop(fn func(Event)) {
	bus.hooks.mu.Lock()
	bus.hooks.onDrop = append(bus.hooks.onDrop, fn)
	bus.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when a subscriber panics.
func (bus *EventBus) OnPanic(fn func(Event, any)) {
	bus.hooks.mu.Lock()
	bus.hooks.onPanic = append(bus.hooks.onPanic, fn)
	bus.hooks.mu.Unlock()
}

// send enqueues an event and fires hooks. Senders hold the read side of
// closeMu while enqueueing, so stop cannot mark the bus closed with a send
// still in flight.
func (bus *EventBus) send(ev Event) {
	bus.closeMu.RLock()
	if bus.closed {
		bus.closeMu.RUnlock()
		bus.runOnDrop(ev)
		return
	}
	bus.ch <- ev
	bus.closeMu.RUnlock()

	bus.runOnPublish(ev)
}

func (bus *EventBus) runOnPublish(ev Event) {
	bus.hooks.mu.RLock()
	hooks := make([]func(Event), len(bus.hooks.onPublish))
	copy(hooks, bus.hooks.onPublish)
	bus.hooks.mu.RUnlock()
	for _, fn := range hooks {
		fn(ev)
	}
}

func (bus *EventBus) runOnDrop(ev Event) {
	bus.hooks.mu.RLock()
	hooks := make([]func(Event), len(bus.hooks.onDrop))
	copy(hooks, bus.hooks.onDrop)
	bus.hooks.mu.RUnlock()
	for _, fn := range hooks {
		fn(ev)
	}
}

func (bus *EventBus) runOnPanic(ev Event, recovered any) {
	bus.hooks.mu.RLock()
	hooks := make([]func(Event, any), len(bus.hooks.onPanic))
	copy(hooks, bus.hooks.onPanic)
	bus.hooks.mu.RUnlock()
	for _, fn := range hooks {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(ev, recovered)
		}()
	}
}
