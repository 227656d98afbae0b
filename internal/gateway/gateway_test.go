package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/huddle/internal/auth"
	"github.com/colonyops/huddle/internal/collab"
	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/payload"
	"github.com/colonyops/huddle/internal/core/session"
	"github.com/colonyops/huddle/internal/data/memstore"
)

type frame struct {
	Event     string         `json:"event"`
	RequestID string         `json:"requestId"`
	Data      map[string]any `json:"data"`
}

type testServer struct {
	url string
	gw  *Gateway
	svc *collab.Service
}

func newTestServer(t *testing.T, mutate func(*config.ServerConfig), provider auth.Provider) *testServer {
	t.Helper()

	bus := eventbus.New(256)
	svc := collab.NewService(
		collab.NewRegistry(time.Now),
		memstore.NewCommentStore(),
		memstore.NewSuggestionStore(),
		memstore.NewVersionStore(),
		bus,
		collab.Options{},
	)

	cfg := config.DefaultConfig().Server
	if mutate != nil {
		mutate(&cfg)
	}

	gw, err := New(cfg, svc, provider)
	require.NoError(t, err)
	collab.NewRouter(gw).Register(bus)

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)

	srv := httptest.NewServer(gw)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = gw.Shutdown(shutdownCtx)
		srv.Close()
		cancel()
	})

	return &testServer{
		url: "ws" + strings.TrimPrefix(srv.URL, "http"),
		gw:  gw,
		svc: svc,
	}
}

type client struct {
	t     *testing.T
	ws    *websocket.Conn
	codec Codec
	id    string
}

func (s *testServer) dial(t *testing.T, protocol string, header http.Header) *client {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	if protocol != "" {
		dialer.Subprotocols = []string{protocol}
	}

	ws, resp, err := dialer.Dial(s.url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })

	var codec Codec = JSONCodec{}
	if protocol == SubprotocolCBOR {
		c, err := NewCBORCodec()
		require.NoError(t, err)
		codec = c
	}

	c := &client{t: t, ws: ws, codec: codec}
	hello := c.next()
	require.Equal(t, "connect", hello.Event)
	c.id, _ = hello.Data["connectionId"].(string)
	require.NotEmpty(t, c.id)
	return c
}

func (c *client) send(event, requestID string, data any) {
	c.t.Helper()
	payload, err := c.codec.Marshal(collab.Message{Event: event, RequestID: requestID, Data: data})
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(c.codec.MessageType(), payload))
}

func (c *client) next() frame {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	require.Equal(c.t, c.codec.MessageType(), mt)

	var f frame
	require.NoError(c.t, c.codec.Unmarshal(data, &f))
	return f
}

// await reads until event arrives and returns it with every frame skipped
// on the way.
func (c *client) await(event string) (frame, []frame) {
	c.t.Helper()
	var skipped []frame
	for {
		f := c.next()
		if f.Event == event {
			return f, skipped
		}
		skipped = append(skipped, f)
	}
}

func (c *client) join(documentID, userID string) frame {
	c.t.Helper()
	c.send("session:start", "join-"+userID, map[string]any{
		"documentId": documentID,
		"user":       map[string]any{"id": userID, "name": strings.ToUpper(userID)},
	})
	f, _ := c.await("session:start")
	require.Equal(c.t, "join-"+userID, f.RequestID)
	return f
}

// awaitRaw reads JSON frames until event arrives and returns its data
// members undecoded.
func (c *client) awaitRaw(event string) map[string]json.RawMessage {
	c.t.Helper()
	for {
		require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := c.ws.ReadMessage()
		require.NoError(c.t, err)

		var f struct {
			Event string                     `json:"event"`
			Data  map[string]json.RawMessage `json:"data"`
		}
		require.NoError(c.t, json.Unmarshal(data, &f))
		if f.Event == event {
			return f.Data
		}
	}
}

// drain answers pings in the background, the way a browser tab does while
// its page sends nothing.
func (c *client) drain() {
	go func() {
		for {
			if _, _, err := c.ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func eventsOf(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func TestGateway_ConnectAndHeartbeat(t *testing.T) {
	s := newTestServer(t, nil, nil)
	c := s.dial(t, "", nil)

	c.send(EventHeartbeat, "h1", nil)
	f := c.next()

	assert.Equal(t, EventHeartbeat, f.Event)
	assert.Equal(t, "h1", f.RequestID)
	assert.Equal(t, true, f.Data["pong"])
	assert.NotEmpty(t, f.Data["timestamp"])
}

func TestGateway_TwoClientScenario(t *testing.T) {
	s := newTestServer(t, nil, nil)
	a := s.dial(t, "", nil)
	b := s.dial(t, "", nil)

	started := a.join("doc1", "alice")
	assert.Equal(t, session.IDFor("doc1"), started.Data["sessionId"])
	assert.Empty(t, started.Data["activeMembers"])

	started = b.join("doc1", "bob")
	members, ok := started.Data["activeMembers"].([]any)
	require.True(t, ok)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].(map[string]any)["userId"])

	joined, _ := a.await("participant:joined")
	participant := joined.Data["participant"].(map[string]any)
	assert.Equal(t, "bob", participant["userId"])
	assert.Equal(t, session.ColorFor(1), participant["presence"].(map[string]any)["color"])

	a.send("presence:update", "", map[string]any{
		"sessionId": session.IDFor("doc1"),
		"userId":    "alice",
		"cursor":    map[string]any{"blockId": "b1", "offset": 3},
		"isActive":  true,
	})
	moved, _ := b.await("presence:updated")
	assert.Equal(t, "alice", moved.Data["userId"])
	assert.Equal(t, "b1", moved.Data["cursor"].(map[string]any)["blockId"])

	// The sender never sees its own presence; comment:added is published
	// after it, so anything addressed to a would arrive first.
	a.send("comment:add", "c1", map[string]any{
		"sessionId": session.IDFor("doc1"),
		"blockId":   "b1",
		"content":   "hello",
		"author":    "alice",
	})
	_, skipped := a.await("comment:added")
	assert.NotContains(t, eventsOf(skipped), "presence:updated")
	ack, _ := a.await("comment:add")
	assert.Equal(t, "c1", ack.RequestID)
	_, _ = b.await("comment:added")

	require.NoError(t, b.ws.Close())

	left, _ := a.await("participant:left")
	assert.Equal(t, "bob", left.Data["participant"].(map[string]any)["userId"])

	require.Eventually(t, func() bool {
		sessions := s.svc.Sessions()
		return len(sessions) == 1 && sessions[0].Members == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_ErrorFrames(t *testing.T) {
	s := newTestServer(t, nil, nil)
	c := s.dial(t, "", nil)

	c.send("nope", "r1", nil)
	f := c.next()
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, "r1", f.RequestID)
	assert.Equal(t, string(collab.CodeValidation), f.Data["code"])
	assert.Equal(t, "nope", f.Data["event"])

	c.send("session:start", "r2", map[string]any{"user": map[string]any{"id": "u1"}})
	f = c.next()
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, "r2", f.RequestID)
	assert.Equal(t, string(collab.CodeValidation), f.Data["code"])
	assert.NotEmpty(t, f.Data["message"])

	c.send("comment:resolve", "r3", map[string]any{
		"sessionId":  session.IDFor("doc1"),
		"commentId":  "missing",
		"resolvedBy": "u1",
	})
	f = c.next()
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, string(collab.CodeNotFound), f.Data["code"])

	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = c.next()
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, string(collab.CodeValidation), f.Data["code"])

	c.send("presence:update", "r4", map[string]any{"sessionId": "s", "userId": "u", "isActive": "yes"})
	f = c.next()
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, "r4", f.RequestID)
}

func TestGateway_CBOR(t *testing.T) {
	s := newTestServer(t, nil, nil)
	c := s.dial(t, SubprotocolCBOR, nil)
	assert.Equal(t, SubprotocolCBOR, c.ws.Subprotocol())

	c.send(EventHeartbeat, "h1", nil)
	f := c.next()
	assert.Equal(t, EventHeartbeat, f.Event)
	assert.Equal(t, true, f.Data["pong"])

	started := c.join("doc-cbor", "carol")
	self := started.Data["self"].(map[string]any)
	assert.Equal(t, "carol", self["userId"])

	// A JSON client in the same room sees the CBOR client's changes.
	j := s.dial(t, "", nil)
	j.join("doc-cbor", "jay")
	c.send("content:change", "", map[string]any{
		"sessionId": session.IDFor("doc-cbor"),
		"change":    map[string]any{"op": "insert", "text": "hi"},
		"author":    "carol",
	})
	changed, _ := j.await("content:changed")
	assert.Equal(t, "insert", changed.Data["change"].(map[string]any)["op"])
}

func TestGateway_OpaquePayloadsRoundTrip(t *testing.T) {
	s := newTestServer(t, nil, nil)
	a := s.dial(t, "", nil)
	b := s.dial(t, "", nil)
	a.join("doc1", "alice")
	b.join("doc1", "bob")

	snapshot := `{"rev":9007199254740993,"price":1.10,"html":"<p>&amp;</p>"}`
	a.send("version:create", "v1", map[string]any{
		"documentId":     "doc1",
		"sessionId":      session.IDFor("doc1"),
		"description":    "draft",
		"blocksSnapshot": json.RawMessage(snapshot),
		"author":         "alice",
	})
	created := a.awaitRaw("version:create")
	var v struct {
		ID             string          `json:"id"`
		BlocksSnapshot json.RawMessage `json:"blocksSnapshot"`
	}
	require.NoError(t, json.Unmarshal(created["version"], &v))
	assert.Equal(t, snapshot, string(v.BlocksSnapshot))

	b.send("version:restore", "r1", map[string]any{"sessionId": session.IDFor("doc1"), "versionId": v.ID})
	restored := b.awaitRaw("version:restore")
	assert.Equal(t, snapshot, string(restored["blocksSnapshot"]))

	change := `{"op":"set","value":18446744073709551615}`
	a.send("content:change", "", map[string]any{
		"sessionId": session.IDFor("doc1"),
		"change":    json.RawMessage(change),
		"author":    "alice",
	})
	relayed := b.awaitRaw("content:changed")
	assert.Equal(t, change, string(relayed["change"]))
}

func TestGateway_OpaquePayloadsAcrossCodecs(t *testing.T) {
	s := newTestServer(t, nil, nil)
	c := s.dial(t, SubprotocolCBOR, nil)
	j := s.dial(t, "", nil)
	c.join("doc1", "carol")
	j.join("doc1", "jay")

	c.send("content:change", "", map[string]any{
		"sessionId": session.IDFor("doc1"),
		"change":    map[string]any{"op": "insert", "rev": uint64(9007199254740993)},
		"author":    "carol",
	})
	relayed := j.awaitRaw("content:changed")
	assert.Equal(t, `{"op":"insert","rev":9007199254740993}`, string(relayed["change"]))

	j.send("content:change", "", map[string]any{
		"sessionId": session.IDFor("doc1"),
		"change":    json.RawMessage(`{"rev":9007199254740995,"big":123456789012345678901234567890}`),
		"author":    "jay",
	})
	got, _ := c.await("content:changed")
	change := got.Data["change"].(map[string]any)
	assert.Equal(t, uint64(9007199254740995), change["rev"])
	n, ok := change["big"].(big.Int)
	require.True(t, ok, "got %T", change["big"])
	assert.Equal(t, "123456789012345678901234567890", n.String())
}

func TestGateway_SilentClientGoesStale(t *testing.T) {
	s := newTestServer(t, func(cfg *config.ServerConfig) {
		cfg.PingInterval = 20 * time.Millisecond
		cfg.PongWait = 2 * time.Second
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go collab.NewSweeper(s.svc, s.gw, 150*time.Millisecond, 20*time.Millisecond).Start(ctx)

	a := s.dial(t, "", nil)
	b := s.dial(t, "", nil)
	a.join("doc1", "alice")
	b.join("doc1", "bob")

	// a keeps answering pings but sends no frames of its own.
	a.drain()

	for {
		f, _ := b.await("presence:updated")
		if f.Data["userId"] == "alice" {
			assert.Equal(t, false, f.Data["isActive"])
			break
		}
	}
	assert.Equal(t, 2, s.gw.Connections(), "pongs keep the socket open")

	// Any application frame counts as activity again.
	a.send("presence:update", "", map[string]any{
		"sessionId": session.IDFor("doc1"),
		"userId":    "alice",
		"isActive":  true,
	})
	for {
		f, _ := b.await("presence:updated")
		if f.Data["userId"] == "alice" && f.Data["isActive"] == true {
			break
		}
	}
	seen, ok := s.gw.LastSeen(a.id)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), seen, time.Second)
}

func TestGateway_AuthRequired(t *testing.T) {
	provider := auth.NewJWT(strings.Repeat("k", 32), "", true)
	s := newTestServer(t, nil, provider)

	_, resp, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := provider.Sign(session.User{ID: "real", DisplayName: "Real"}, time.Hour)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	c := s.dial(t, "", header)

	started := c.join("doc1", "spoofed")
	self := started.Data["self"].(map[string]any)
	assert.Equal(t, "real", self["userId"])
	assert.Equal(t, "Real", self["displayName"])
}

func TestGateway_OriginRejected(t *testing.T) {
	s := newTestServer(t, func(cfg *config.ServerConfig) {
		cfg.AllowedOrigins = []string{"https://app.example.com"}
	}, nil)

	header := http.Header{}
	header.Set("Origin", "https://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(s.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	s.dial(t, "", header)
}

func TestGateway_ClientDisconnectCleansUp(t *testing.T) {
	s := newTestServer(t, nil, nil)
	c := s.dial(t, "", nil)
	c.join("doc1", "alice")

	seen, ok := s.gw.LastSeen(c.id)
	require.True(t, ok)
	assert.False(t, seen.IsZero())

	c.send(EventDisconnect, "", nil)

	require.Eventually(t, func() bool {
		return s.gw.Connections() == 0 && len(s.svc.Sessions()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, ok = s.gw.LastSeen(c.id)
	assert.False(t, ok)
}

func TestGateway_ShutdownClosesConnections(t *testing.T) {
	s := newTestServer(t, nil, nil)
	c := s.dial(t, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.gw.Shutdown(ctx))

	require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := c.ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestGateway_SlowConsumerIsClosed(t *testing.T) {
	gw, err := New(config.DefaultConfig().Server, nil, nil)
	require.NoError(t, err)

	c := newConn("c1", nil, JSONCodec{}, nil, 1, time.Now())
	gw.conns.Set(c.id, c)

	assert.True(t, gw.Send("c1", collab.Message{Event: "a"}))
	assert.False(t, gw.Send("c1", collab.Message{Event: "b"}))
	assert.True(t, c.closed())
	assert.Equal(t, websocket.ClosePolicyViolation, c.closeCode)

	assert.False(t, gw.Send("c1", collab.Message{Event: "c"}), "closed connections accept nothing")
	assert.False(t, gw.Send("unknown", collab.Message{Event: "a"}))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

	tagged, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano, TimeTag: cbor.EncTagRequired}.EncMode()
	require.NoError(t, err)
	fromCBOR := func(v any) payload.Raw {
		data, err := tagged.Marshal(v)
		require.NoError(t, err)
		var r payload.Raw
		require.NoError(t, cbor.Unmarshal(data, &r))
		return r
	}

	tests := []struct {
		name    string
		in      payload.Raw
		wantErr bool
	}{
		{"millis", payload.Raw(fmt.Sprint(want.UnixMilli())), false},
		{"fractional millis", payload.Raw(fmt.Sprintf("%d.4", want.UnixMilli())), false},
		{"cbor uint", fromCBOR(uint64(want.UnixMilli())), false},
		{"cbor time tag", fromCBOR(want), false},
		{"rfc3339", payload.Raw(`"` + want.Format(time.RFC3339Nano) + `"`), false},
		{"negative", payload.Raw(`-1`), true},
		{"past year 9999", payload.Raw(`1e300`), true},
		{"beyond float64", payload.Raw(`1e400`), true},
		{"bad string", payload.Raw(`"yesterday"`), true},
		{"bool", payload.Raw(`true`), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}
