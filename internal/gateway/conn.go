package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/colonyops/huddle/internal/core/session"
)

// conn is one client connection. The read loop owns inbound frames; the
// write loop is the only writer to ws.
type conn struct {
	id    string
	ws    *websocket.Conn
	codec Codec
	user  *session.User

	send     chan []byte
	done     chan struct{}
	once     sync.Once
	lastSeen atomic.Int64 // unix nanos of the last application frame

	closeCode   int
	closeReason string
}

func newConn(id string, ws *websocket.Conn, codec Codec, user *session.User, buffer int, now time.Time) *conn {
	c := &conn{
		id:    id,
		ws:    ws,
		codec: codec,
		user:  user,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
	c.touch(now)
	return c
}

func (c *conn) touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

func (c *conn) seen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// enqueue queues a frame without blocking. It returns false when the
// connection is closed or its buffer is full.
func (c *conn) enqueue(frame []byte) (ok, full bool) {
	select {
	case <-c.done:
		return false, false
	default:
	}

	select {
	case c.send <- frame:
		return true, false
	case <-c.done:
		return false, false
	default:
		return false, true
	}
}

// close asks the write loop to send a close frame and tear down the socket.
// The read loop then fails and runs disconnect cleanup.
func (c *conn) close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writeLoop pumps queued frames and pings to the socket.
func (g *Gateway) writeLoop(c *conn) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := g.write(c, c.codec.MessageType(), frame); err != nil {
				g.log.Debug().Err(err).Str("connection_id", c.id).Msg("write failed")
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := g.write(c, websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			g.flush(c)
			deadline := time.Now().Add(g.cfg.WriteWait)
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}
	}
}

// flush writes whatever is still queued once the connection is closing.
func (g *Gateway) flush(c *conn) {
	for {
		select {
		case frame := <-c.send:
			if err := g.write(c, c.codec.MessageType(), frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (g *Gateway) write(c *conn, messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

// readLoop decodes and dispatches inbound frames until the socket fails.
func (g *Gateway) readLoop(c *conn) {
	c.ws.SetReadLimit(g.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	// Pongs keep the socket open but are not activity: browsers answer pings
	// even when the page has stopped sending heartbeats.
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !c.closed() {
				g.log.Debug().Err(err).Str("connection_id", c.id).Msg("connection lost")
			}
			return
		}

		c.touch(g.now())
		_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))

		g.dispatch(c, data)
		if c.closed() {
			return
		}
	}
}
