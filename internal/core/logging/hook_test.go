package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantKeys  []string
		wantEmpty []string
	}{
		{
			name: "all fields",
			setupCtx: func() context.Context {
				ctx := context.Background()
				ctx = WithSessionID(ctx, "session_doc1")
				ctx = WithConnectionID(ctx, "conn-1")
				ctx = WithUserID(ctx, "user-1")
				return ctx
			},
			wantKeys: []string{"session_id", "connection_id", "user_id"},
		},
		{
			name: "only connection_id",
			setupCtx: func() context.Context {
				return WithConnectionID(context.Background(), "conn-1")
			},
			wantKeys:  []string{"connection_id"},
			wantEmpty: []string{"session_id", "user_id"},
		},
		{
			name: "session and user",
			setupCtx: func() context.Context {
				return WithUserID(WithSessionID(context.Background(), "session_doc1"), "user-1")
			},
			wantKeys:  []string{"session_id", "user_id"},
			wantEmpty: []string{"connection_id"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"session_id", "connection_id", "user_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := tt.setupCtx()

			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(ctx).Msg("test")

			var logEntry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Fatalf("failed to parse log: %v", err)
			}

			for _, key := range tt.wantKeys {
				if _, ok := logEntry[key]; !ok {
					t.Errorf("expected %s to be present in log", key)
				}
			}

			for _, key := range tt.wantEmpty {
				if _, ok := logEntry[key]; ok {
					t.Errorf("expected %s to be absent from log", key)
				}
			}
		})
	}
}
