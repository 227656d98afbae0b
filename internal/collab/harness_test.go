package collab

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/colonyops/huddle/internal/core/eventbus"
	"github.com/colonyops/huddle/internal/core/eventbus/testbus"
	"github.com/colonyops/huddle/internal/data/memstore"
)

var t0 = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)

// recorder is an Outbox that keeps every message per connection.
type recorder struct {
	mu   sync.Mutex
	msgs map[string][]Message
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[string][]Message)}
}

func (r *recorder) Send(conn string, msg Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[conn] = append(r.msgs[conn], msg)
	return true
}

func (r *recorder) of(conn string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.msgs[conn]))
	copy(out, r.msgs[conn])
	return out
}

func (r *recorder) events(conn string) []string {
	var out []string
	for _, m := range r.of(conn) {
		out = append(out, m.Event)
	}
	return out
}

func (r *recorder) last(conn, event string) (Message, bool) {
	msgs := r.of(conn)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == event {
			return msgs[i], true
		}
	}
	return Message{}, false
}

type harness struct {
	svc     *Service
	bus     *testbus.Bus
	out     *recorder
	flushes atomic.Int64
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return t0 }
	}

	tb := testbus.New(t)
	out := newRecorder()
	NewRouter(out).Register(tb.EventBus)

	svc := NewService(
		NewRegistry(opts.Now),
		memstore.NewCommentStore(),
		memstore.NewSuggestionStore(),
		memstore.NewVersionStore(),
		tb.EventBus,
		opts,
	)
	return &harness{svc: svc, bus: tb, out: out}
}

// flush waits until every event published so far has been delivered. The
// bus is FIFO, so a marker reaching the recorder proves everything before it
// arrived too.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	id := fmt.Sprintf("flush-%d", h.flushes.Add(1))
	h.bus.Publish(eventbus.Event{Kind: eventbus.KindVersionHistory, Sender: "__flush__", RequestID: id})
	require.Eventually(t, func() bool {
		m, ok := h.out.last("__flush__", string(eventbus.KindVersionHistory))
		return ok && m.RequestID == id
	}, time.Second, 2*time.Millisecond)
}

// expect flushes and returns the most recent message of an event for conn.
func (h *harness) expect(t *testing.T, conn, event string) Message {
	t.Helper()
	h.flush(t)
	m, ok := h.out.last(conn, event)
	require.True(t, ok, "connection %s did not receive %s; got %v", conn, event, h.out.events(conn))
	return m
}

func meta(conn, requestID string) Meta {
	return Meta{ConnectionID: conn, RequestID: requestID}
}
