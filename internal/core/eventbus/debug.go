package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger registers bus hooks that log all event activity at debug level.
// Uses OnPublish for event firing, OnDrop for events published after shutdown, and
// OnPanic for subscriber panic reporting.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(ev Event) {
		logger.Debug().
			Str("event", string(ev.Kind)).
			Str("session_id", ev.SessionID).
			Str("sender", ev.Sender).
			Int("room", len(ev.Room)).
			Msg("event fired")
	})

	bus.OnDrop(func(ev Event) {
		logger.Warn().Str("event", string(ev.Kind)).Msg("event dropped: bus stopped")
	})

	bus.OnPanic(func(ev Event, recovered any) {
		logger.Error().
			Str("event", string(ev.Kind)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}
