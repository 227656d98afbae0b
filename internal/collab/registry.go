package collab

import (
	"sort"
	"sync"
	"time"

	"github.com/colonyops/huddle/internal/core/session"
)

// entry guards one session. closed is set, under mu, when the session is
// destroyed; callers that raced the destroy retry against a fresh entry.
type entry struct {
	mu     sync.Mutex
	sess   *session.Session
	closed bool
}

// Registry owns every live session. Each session has its own lock; the
// registry lock only protects the maps. Lock order is always entry.mu before
// Registry.mu.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	byConn   map[string]map[string]struct{} // connection id -> session ids
	now      func() time.Time
}

// Summary is a point-in-time description of a live session.
type Summary struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Members    int       `json:"members"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewRegistry creates an empty registry.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*entry),
		byConn:   make(map[string]map[string]struct{}),
		now:      now,
	}
}

// Join runs fn against the document's session, creating it when absent.
// fn runs under the session lock. Membership changes made by fn are
// reflected in the connection index, and a session left empty is destroyed.
func (r *Registry) Join(documentID string, fn func(*session.Session) error) error {
	id := session.IDFor(documentID)
	for {
		r.mu.Lock()
		e, ok := r.sessions[id]
		if !ok {
			e = &entry{sess: session.New(documentID, r.now())}
			r.sessions[id] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			continue
		}
		err := r.apply(e, fn)
		e.mu.Unlock()
		return err
	}
}

// Do runs fn against an existing session under its lock. It returns
// session.ErrNotFound when the session does not exist.
func (r *Registry) Do(sessionID string, fn func(*session.Session) error) error {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return session.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return session.ErrNotFound
	}
	return r.apply(e, fn)
}

// apply runs fn and reconciles the connection index. Callers hold e.mu.
func (r *Registry) apply(e *entry, fn func(*session.Session) error) error {
	before := e.sess.ConnectionIDs()
	err := fn(e.sess)
	after := e.sess.ConnectionIDs()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, conn := range before {
		if !contains(after, conn) {
			r.unindex(conn, e.sess.ID)
		}
	}
	for _, conn := range after {
		if !contains(before, conn) {
			r.index(conn, e.sess.ID)
		}
	}

	if e.sess.Empty() {
		r.destroy(e)
	}
	return err
}

// destroy removes a session. Callers hold e.mu and r.mu.
func (r *Registry) destroy(e *entry) {
	e.closed = true
	if cur, ok := r.sessions[e.sess.ID]; ok && cur == e {
		delete(r.sessions, e.sess.ID)
	}
	for _, conn := range e.sess.ConnectionIDs() {
		r.unindex(conn, e.sess.ID)
	}
}

func (r *Registry) index(conn, sessionID string) {
	set, ok := r.byConn[conn]
	if !ok {
		set = make(map[string]struct{})
		r.byConn[conn] = set
	}
	set[sessionID] = struct{}{}
}

func (r *Registry) unindex(conn, sessionID string) {
	set, ok := r.byConn[conn]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.byConn, conn)
	}
}

// SessionsFor returns the ids of every session the connection belongs to,
// sorted for deterministic cleanup order.
func (r *Registry) SessionsFor(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byConn[connectionID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Each runs fn against every live session, one session lock at a time.
// Sessions emptied by fn are destroyed.
func (r *Registry) Each(fn func(*session.Session)) {
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.closed {
			_ = r.apply(e, func(s *session.Session) error {
				fn(s)
				return nil
			})
		}
		e.mu.Unlock()
	}
}

// Reap destroys sessions that have no members and returns how many were
// removed. Sessions are normally destroyed as their last member leaves;
// Reap catches any that were not.
func (r *Registry) Reap() int {
	reaped := 0
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.closed && e.sess.Empty() {
			r.mu.Lock()
			r.destroy(e)
			r.mu.Unlock()
			reaped++
		}
		e.mu.Unlock()
	}
	return reaped
}

// Get returns a copy of a session's membership.
func (r *Registry) Get(sessionID string) (Summary, []session.Participant, error) {
	var (
		sum     Summary
		members []session.Participant
	)
	err := r.Do(sessionID, func(s *session.Session) error {
		sum = summarize(s)
		members = s.Members()
		return nil
	})
	return sum, members, err
}

// List summarizes every live session ordered by id.
func (r *Registry) List() []Summary {
	out := make([]Summary, 0)
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.closed {
			out = append(out, summarize(e.sess))
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Clear destroys every session without notifying members. It is used at
// shutdown, after connections have been closed.
func (r *Registry) Clear() {
	for _, e := range r.entries() {
		e.mu.Lock()
		r.mu.Lock()
		r.destroy(e)
		r.mu.Unlock()
		e.mu.Unlock()
	}
}

func (r *Registry) entries() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	return out
}

func summarize(s *session.Session) Summary {
	return Summary{
		ID:         s.ID,
		DocumentID: s.DocumentID,
		Members:    s.Len(),
		CreatedAt:  s.CreatedAt,
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
