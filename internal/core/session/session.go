// Package session defines collaboration session domain types and the pure
// state transitions applied to them.
//
// Terminology:
//   - Session: the coordination context for one document
//   - Participant: one connection's membership record within a session
//   - Room: the set of connections currently in a session, the fan-out unit
//
// Session values are not safe for concurrent use; the registry in
// internal/collab serializes every call per session.
package session

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for session operations.
var (
	ErrNotFound  = errors.New("session not found")
	ErrNotMember = errors.New("connection is not a member of the session")
)

// idPrefix is prepended to the document id to derive the session id.
const idPrefix = "session_"

// IDFor returns the session id for a document. There is exactly one session
// per document, so the id is derived rather than generated.
func IDFor(documentID string) string {
	return idPrefix + documentID
}

// DocumentIDFrom reverses IDFor. It reports false for ids that were not
// derived from a document id.
func DocumentIDFrom(sessionID string) (string, bool) {
	documentID, ok := strings.CutPrefix(sessionID, idPrefix)
	if !ok || documentID == "" {
		return "", false
	}
	return documentID, true
}

// User describes who is joining, as supplied by the identity provider.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// Participant is a connected user's membership record within a session.
type Participant struct {
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	ConnectionID string    `json:"connectionId"`
	JoinedAt     time.Time `json:"joinedAt"`
	Presence     Presence  `json:"presence"`
}

// Session is the membership and presence state for one document.
type Session struct {
	ID         string
	DocumentID string
	CreatedAt  time.Time

	members   []*Participant // join order
	joinCount int            // monotonic, drives color assignment
}

// New creates an empty session for a document.
func New(documentID string, now time.Time) *Session {
	return &Session{
		ID:         IDFor(documentID),
		DocumentID: documentID,
		CreatedAt:  now,
	}
}

// Join appends a participant for the connection and returns it together with
// the members that were already present. Colors are assigned from the palette
// by the session's join counter, so they cycle through all palette entries in
// join order even when earlier members have left.
func (s *Session) Join(user User, connectionID string, now time.Time) (joined Participant, others []Participant) {
	others = s.Members()

	p := &Participant{
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
		ConnectionID: connectionID,
		JoinedAt:     now,
		Presence: Presence{
			IsActive:  true,
			Color:     ColorFor(s.joinCount),
			UpdatedAt: now,
		},
	}
	s.joinCount++
	s.members = append(s.members, p)

	return *p, others
}

// Leave removes the participant for a connection.
func (s *Session) Leave(connectionID string) (Participant, bool) {
	for i, p := range s.members {
		if p.ConnectionID == connectionID {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return *p, true
		}
	}
	return Participant{}, false
}

// Member returns the participant for a connection.
func (s *Session) Member(connectionID string) (Participant, bool) {
	if p := s.byConnection(connectionID); p != nil {
		return *p, true
	}
	return Participant{}, false
}

// MembersForUser returns every participant entry belonging to a user, in join
// order. More than one entry exists when a user joins from several connections.
func (s *Session) MembersForUser(userID string) []Participant {
	var out []Participant
	for _, p := range s.members {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out
}

// Members returns a copy of the membership in join order.
func (s *Session) Members() []Participant {
	out := make([]Participant, 0, len(s.members))
	for _, p := range s.members {
		out = append(out, *p)
	}
	return out
}

// ConnectionIDs returns the room: every member's connection id in join order.
func (s *Session) ConnectionIDs() []string {
	out := make([]string, 0, len(s.members))
	for _, p := range s.members {
		out = append(out, p.ConnectionID)
	}
	return out
}

// Len returns the number of members.
func (s *Session) Len() int {
	return len(s.members)
}

// Empty reports whether the session has no members and must be destroyed.
func (s *Session) Empty() bool {
	return len(s.members) == 0
}

// UpdatePresence applies a field-by-field overwrite to one participant's
// presence. The participant is located by user id; when the user has several
// entries the one on preferConnection wins, otherwise the earliest joined.
// Last write wins: no ordering is applied beyond call order.
func (s *Session) UpdatePresence(userID, preferConnection string, upd PresenceUpdate, now time.Time) (Participant, bool) {
	p := s.byConnection(preferConnection)
	if p == nil || p.UserID != userID {
		p = nil
		for _, m := range s.members {
			if m.UserID == userID {
				p = m
				break
			}
		}
	}
	if p == nil {
		return Participant{}, false
	}

	p.Presence = p.Presence.Apply(upd, now)
	return *p, true
}

// MarkInactive clears the active flag for a connection's participant. It
// reports false when the participant is missing or already inactive.
func (s *Session) MarkInactive(connectionID string, now time.Time) (Participant, bool) {
	p := s.byConnection(connectionID)
	if p == nil || !p.Presence.IsActive {
		return Participant{}, false
	}
	p.Presence.IsActive = false
	p.Presence.UpdatedAt = now
	return *p, true
}

func (s *Session) byConnection(connectionID string) *Participant {
	if connectionID == "" {
		return nil
	}
	for _, p := range s.members {
		if p.ConnectionID == connectionID {
			return p
		}
	}
	return nil
}
