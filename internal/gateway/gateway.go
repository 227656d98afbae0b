// Package gateway terminates client websocket connections and translates
// frames into collaboration operations.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/huddle/internal/auth"
	"github.com/colonyops/huddle/internal/collab"
	"github.com/colonyops/huddle/internal/core/config"
	"github.com/colonyops/huddle/internal/core/logging"
	"github.com/colonyops/huddle/pkg/kv"
)

// Gateway accepts websocket upgrades and owns every live connection. It is
// the collab.Outbox the router delivers through and the activity source the
// sweeper consults.
type Gateway struct {
	cfg      config.ServerConfig
	svc      *collab.Service
	auth     auth.Provider
	upgrader websocket.Upgrader
	cbor     *CBORCodec
	conns    *kv.Store[string, *conn]
	wg       sync.WaitGroup
	now      func() time.Time
	log      zerolog.Logger
}

var (
	_ collab.Outbox          = (*Gateway)(nil)
	_ collab.ActivityTracker = (*Gateway)(nil)
)

// New creates a gateway serving svc.
func New(cfg config.ServerConfig, svc *collab.Service, provider auth.Provider) (*Gateway, error) {
	cborCodec, err := NewCBORCodec()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		provider = auth.Anonymous{}
	}

	origins := originChecker{patterns: cfg.AllowedOrigins}
	return &Gateway{
		cfg:  cfg,
		svc:  svc,
		auth: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			Subprotocols:    []string{SubprotocolJSON, SubprotocolCBOR},
			CheckOrigin:     origins.check,
		},
		cbor:  cborCodec,
		conns: kv.New[string, *conn](),
		now:   time.Now,
		log:   logging.Component("gateway"),
	}, nil
}

type connectPayload struct {
	ConnectionID string    `json:"connectionId"`
	Timestamp    time.Time `json:"timestamp"`
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := g.auth.Authenticate(r)
	if err != nil {
		g.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade rejected")
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrUnauthorized) {
			status = http.StatusInternalServerError
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		g.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	var codec Codec = JSONCodec{}
	if ws.Subprotocol() == SubprotocolCBOR {
		codec = g.cbor
	}

	c := newConn(uuid.NewString(), ws, codec, user, g.cfg.SendBuffer, g.now())
	g.conns.Set(c.id, c)

	ev := g.log.Info().Str("connection_id", c.id).Str("protocol", ws.Subprotocol())
	if user != nil {
		ev = ev.Str("user_id", user.ID)
	}
	ev.Msg("client connected")

	g.Send(c.id, collab.Message{
		Event: "connect",
		Data:  connectPayload{ConnectionID: c.id, Timestamp: g.now()},
	})

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		g.writeLoop(c)
	}()
	go func() {
		defer g.wg.Done()
		g.readLoop(c)
		g.cleanup(c)
	}()
}

// cleanup runs once the read loop has stopped.
func (g *Gateway) cleanup(c *conn) {
	c.close(websocket.CloseNormalClosure, "")
	g.conns.Delete(c.id)

	ctx := logging.WithConnectionID(context.Background(), c.id)
	left := g.svc.Disconnect(ctx, c.id)
	g.log.Info().
		Str("connection_id", c.id).
		Int("sessions_left", left).
		Msg("client disconnected")
}

// Send encodes msg with the connection's codec and queues it. A connection
// whose buffer is full is closed as a slow consumer.
func (g *Gateway) Send(connectionID string, msg collab.Message) bool {
	c, ok := g.conns.Get(connectionID)
	if !ok {
		return false
	}

	frame, err := c.codec.Marshal(msg)
	if err != nil {
		g.log.Error().Err(err).Str("event", msg.Event).Msg("encode frame")
		return false
	}

	sent, full := c.enqueue(frame)
	if full {
		g.log.Warn().Str("connection_id", c.id).Msg("closing slow consumer")
		c.close(websocket.ClosePolicyViolation, "slow consumer")
	}
	return sent
}

// LastSeen reports when a connection last sent an application frame.
// Protocol pongs do not count.
func (g *Gateway) LastSeen(connectionID string) (time.Time, bool) {
	c, ok := g.conns.Get(connectionID)
	if !ok {
		return time.Time{}, false
	}
	return c.seen(), true
}

// Connections returns the number of open connections.
func (g *Gateway) Connections() int {
	return g.conns.Len()
}

// Shutdown closes every connection and waits for their loops to finish.
func (g *Gateway) Shutdown(ctx context.Context) error {
	for _, c := range g.conns.Filter(nil) {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway shutdown: %w", ctx.Err())
	}
}
