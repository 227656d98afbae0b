package logging

import "context"

type contextKey string

const (
	sessionIDKey    contextKey = "session_id"
	connectionIDKey contextKey = "connection_id"
	userIDKey       contextKey = "user_id"
)

// WithSessionID adds a collaboration session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithConnectionID adds a gateway connection ID to the context.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, connectionIDKey, connectionID)
}

// WithUserID adds the authenticated user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetSessionID retrieves the session ID from the context.
// Returns empty string if not present.
func GetSessionID(ctx context.Context) string {
	return value(ctx, sessionIDKey)
}

// GetConnectionID retrieves the connection ID from the context.
// Returns empty string if not present.
func GetConnectionID(ctx context.Context) string {
	return value(ctx, connectionIDKey)
}

// GetUserID retrieves the user ID from the context.
// Returns empty string if not present.
func GetUserID(ctx context.Context) string {
	return value(ctx, userIDKey)
}

func value(ctx context.Context, key contextKey) string {
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}
