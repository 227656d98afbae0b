package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts session_id, connection_id and user_id from context
// and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if sessionID := GetSessionID(ctx); sessionID != "" {
		e.Str(string(sessionIDKey), sessionID)
	}
	if connID := GetConnectionID(ctx); connID != "" {
		e.Str(string(connectionIDKey), connID)
	}
	if userID := GetUserID(ctx); userID != "" {
		e.Str(string(userIDKey), userID)
	}
}
