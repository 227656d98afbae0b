package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/colonyops/huddle/internal/collab"
	"github.com/colonyops/huddle/internal/core/logging"
	"github.com/colonyops/huddle/internal/core/payload"
	"github.com/colonyops/huddle/internal/core/session"
)

// Client event names that are not collaboration operations.
const (
	EventHeartbeat  = "heartbeat"
	EventDisconnect = "disconnect"
	EventError      = "error"
)

type handler func(ctx context.Context, g *Gateway, c *conn, in Inbound, m collab.Meta) error

// operation adapts a Service method to a handler, decoding the frame's data
// into the method's request type.
func operation[T any](op func(*collab.Service, context.Context, collab.Meta, T) error) handler {
	return func(ctx context.Context, g *Gateway, _ *conn, in Inbound, m collab.Meta) error {
		var req T
		if err := in.Bind(&req); err != nil {
			return collab.BadRequest("malformed data: %v", err)
		}
		return op(g.svc, ctx, m, req)
	}
}

var handlers = map[string]handler{
	EventHeartbeat:      heartbeat,
	EventDisconnect:     disconnect,
	"session:start":     operation((*collab.Service).StartSession),
	"session:end":       operation((*collab.Service).EndSession),
	"presence:update":   presence,
	"content:change":    operation((*collab.Service).RelayContent),
	"comment:add":       operation((*collab.Service).AddComment),
	"comment:resolve":   operation((*collab.Service).ResolveComment),
	"comment:unresolve": operation((*collab.Service).UnresolveComment),
	"comment:list":      operation((*collab.Service).ListComments),
	"suggestion:add":    operation((*collab.Service).AddSuggestion),
	"suggestion:status": operation((*collab.Service).UpdateSuggestionStatus),
	"suggestion:list":   operation((*collab.Service).ListSuggestions),
	"version:create":    operation((*collab.Service).CreateVersion),
	"version:restore":   operation((*collab.Service).RestoreVersion),
	"version:history":   operation((*collab.Service).GetHistory),
}

type errorPayload struct {
	Code    collab.Code `json:"code"`
	Message string      `json:"message"`
	Event   string      `json:"event,omitempty"`
}

type pongPayload struct {
	Pong      bool      `json:"pong"`
	Timestamp time.Time `json:"timestamp"`
}

// dispatch handles one inbound frame. Failures are answered with an error
// frame to the sender only.
func (g *Gateway) dispatch(c *conn, data []byte) {
	in, err := c.codec.DecodeFrame(data)
	if err != nil {
		g.fail(c, in, collab.BadRequest("malformed frame"))
		return
	}

	h, ok := handlers[in.Event]
	if !ok {
		g.fail(c, in, collab.BadRequest("unknown event %q", in.Event))
		return
	}

	ctx := logging.WithConnectionID(context.Background(), c.id)
	m := collab.Meta{ConnectionID: c.id, RequestID: in.RequestID, User: c.user}
	if c.user != nil {
		ctx = logging.WithUserID(ctx, c.user.ID)
	}

	if err := h(ctx, g, c, in, m); err != nil {
		g.fail(c, in, err)
	}
}

func (g *Gateway) fail(c *conn, in Inbound, err error) {
	code := collab.CodeOf(err)
	ev := g.log.Debug()
	switch code {
	case collab.CodeInternal:
		ev = g.log.Error()
	case collab.CodeUnavailable:
		ev = g.log.Warn()
	}
	ev.Err(err).
		Str("connection_id", c.id).
		Str("event", in.Event).
		Str("code", string(code)).
		Msg("request failed")

	g.Send(c.id, collab.Message{
		Event:     EventError,
		RequestID: in.RequestID,
		Data:      errorPayload{Code: code, Message: collab.MessageOf(err), Event: in.Event},
	})
}

// heartbeat answers directly and never touches session state.
func heartbeat(_ context.Context, g *Gateway, c *conn, in Inbound, _ collab.Meta) error {
	g.Send(c.id, collab.Message{
		Event:     EventHeartbeat,
		RequestID: in.RequestID,
		Data:      pongPayload{Pong: true, Timestamp: g.now()},
	})
	return nil
}

func disconnect(_ context.Context, _ *Gateway, c *conn, _ Inbound, _ collab.Meta) error {
	c.close(websocket.CloseNormalClosure, "")
	return nil
}

// presence decodes presence:update by hand: a field that is present with a
// null value clears it, while an absent field is left alone.
func presence(ctx context.Context, g *Gateway, _ *conn, in Inbound, m collab.Meta) error {
	var raw map[string]payload.Raw
	if err := in.Bind(&raw); err != nil {
		return collab.BadRequest("malformed data: %v", err)
	}

	req := collab.PresenceRequest{}
	if err := field(raw, "sessionId", &req.SessionID); err != nil {
		return err
	}
	if err := field(raw, "userId", &req.UserID); err != nil {
		return err
	}

	upd := session.PresenceUpdate{}
	upd.Cursor, upd.CursorSet = raw["cursor"]
	upd.Selection, upd.SelectionSet = raw["selection"]
	if v, ok := raw["isActive"]; ok && !v.IsNull() {
		if err := field(raw, "isActive", &upd.IsActive); err != nil {
			return err
		}
		upd.IsActiveSet = true
	}
	if v, ok := raw["timestamp"]; ok && !v.IsNull() {
		ts, err := parseTimestamp(v)
		if err != nil {
			return collab.BadRequest("timestamp: %v", err)
		}
		upd.Timestamp = ts
	}
	req.Update = upd

	return g.svc.UpdatePresence(ctx, m, req)
}

// field decodes raw[key] into dst. Absent and null fields leave dst alone.
func field[T string | bool](raw map[string]payload.Raw, key string, dst *T) error {
	v, ok := raw[key]
	if !ok || v.IsNull() {
		return nil
	}
	if err := v.Decode(dst); err != nil {
		var zero T
		return collab.BadRequest("%s: must be a %T", key, zero)
	}
	return nil
}

// maxTimestampMillis bounds client timestamps to the year 9999.
var maxTimestampMillis = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).UnixMilli()

// parseTimestamp accepts milliseconds since the epoch or an RFC 3339 string.
// CBOR time tags arrive as RFC 3339 strings.
func parseTimestamp(r payload.Raw) (time.Time, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return time.Time{}, err
	}

	switch t := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, err
		}
		return ts.UTC(), nil
	case json.Number:
		ms, err := t.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("out of range")
		}
		if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 || ms > float64(maxTimestampMillis) {
			return time.Time{}, fmt.Errorf("out of range")
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
}
