// Package eventbus carries committed domain changes from the stores that
// produced them to the component that fans them out to connections.
package eventbus

import (
	"time"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/payload"
	"github.com/colonyops/huddle/internal/core/session"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/version"
)

// Kind names an event. Kind values are also the wire event names: broadcasts
// use past tense, direct replies reuse the request's name.
type Kind string

// Broadcast kinds. Keep list sorted A-Z.
const (
	KindCommentAdded            Kind = "comment:added"
	KindCommentResolved         Kind = "comment:resolved"
	KindCommentUnresolved       Kind = "comment:unresolved"
	KindContentChanged          Kind = "content:changed"
	KindParticipantJoined       Kind = "participant:joined"
	KindParticipantLeft         Kind = "participant:left"
	KindPresenceUpdated         Kind = "presence:updated"
	KindSuggestionAdded         Kind = "suggestion:added"
	KindSuggestionStatusChanged Kind = "suggestion:status-changed"
	KindVersionCreated          Kind = "version:created"
)

// Direct reply kinds, delivered to the requester only.
const (
	KindCommentList    Kind = "comment:list"
	KindSessionStarted Kind = "session:start"
	KindSuggestionList Kind = "suggestion:list"
	KindVersionHistory Kind = "version:history"
	KindVersionRestore Kind = "version:restore"
)

// Event is a committed domain change awaiting fan-out.
type Event struct {
	Kind      Kind
	SessionID string
	// Sender is the connection whose request produced the event, or for
	// server-raised events the connection the event is about. Sender never
	// receives fan-out to the room-except-sender.
	Sender string
	// RequestID is the caller's correlation id, echoed in direct replies.
	RequestID string
	// Room is the session's connection ids captured when the change committed.
	Room []string
	// Payload is the broadcast body.
	Payload any
	// AckPayload is the body of the acknowledgement sent to Sender. When nil
	// the acknowledgement carries Payload.
	AckPayload any
}

// ParticipantPayload announces a participant joining or leaving.
type ParticipantPayload struct {
	SessionID   string              `json:"sessionId"`
	Participant session.Participant `json:"participant"`
}

// SessionStartedPayload answers session:start.
type SessionStartedPayload struct {
	SessionID     string                `json:"sessionId"`
	DocumentID    string                `json:"documentId"`
	Self          session.Participant   `json:"self"`
	ActiveMembers []session.Participant `json:"activeMembers"`
}

// PresencePayload relays a participant's presence fields.
type PresencePayload struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	Cursor       payload.Raw `json:"cursor,omitempty"`
	Selection    payload.Raw `json:"selection,omitempty"`
	IsActive     bool        `json:"isActive"`
	Color        string      `json:"color"`
	Timestamp    time.Time   `json:"timestamp"`
}

// CommentPayload carries a full comment.
type CommentPayload struct {
	SessionID string          `json:"sessionId"`
	Comment   comment.Comment `json:"comment"`
}

// CommentListPayload answers comment:list.
type CommentListPayload struct {
	SessionID string            `json:"sessionId"`
	Comments  []comment.Comment `json:"comments"`
}

// SuggestionPayload carries a full suggestion.
type SuggestionPayload struct {
	SessionID  string                `json:"sessionId"`
	Suggestion suggestion.Suggestion `json:"suggestion"`
}

// SuggestionListPayload answers suggestion:list.
type SuggestionListPayload struct {
	SessionID   string                  `json:"sessionId"`
	Suggestions []suggestion.Suggestion `json:"suggestions"`
}

// VersionPayload carries a created version.
type VersionPayload struct {
	SessionID string          `json:"sessionId"`
	Version   version.Version `json:"version"`
}

// SnapshotPayload answers version:restore with the snapshot only.
type SnapshotPayload struct {
	VersionID      string      `json:"versionId"`
	BlocksSnapshot payload.Raw `json:"blocksSnapshot"`
}

// HistoryPayload answers version:history.
type HistoryPayload struct {
	DocumentID string            `json:"documentId"`
	Versions   []version.Version `json:"versions"`
}

// ContentPayload relays an opaque content change.
type ContentPayload struct {
	SessionID string      `json:"sessionId"`
	Change    payload.Raw `json:"change"`
	Author    string      `json:"author"`
}

// SuccessPayload acknowledges a state change without repeating the entity.
type SuccessPayload struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}
