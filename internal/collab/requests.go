package collab

import (
	"github.com/colonyops/huddle/internal/core/payload"
	"github.com/colonyops/huddle/internal/core/session"
)

// Meta identifies the connection and request an operation runs for.
type Meta struct {
	ConnectionID string
	RequestID    string
	// User is the identity established at connect time. Nil when the
	// connection is anonymous, in which case request payloads name the user.
	User *session.User
}

type StartSessionRequest struct {
	DocumentID string       `json:"documentId"`
	User       session.User `json:"user"`
}

type EndSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// PresenceRequest is built by the gateway, which inspects which fields the
// client actually sent.
type PresenceRequest struct {
	SessionID string
	UserID    string
	Update    session.PresenceUpdate
}

type AddCommentRequest struct {
	SessionID string  `json:"sessionId"`
	BlockID   string  `json:"blockId"`
	Content   string  `json:"content"`
	Author    string  `json:"author"`
	ParentID  *string `json:"parentId"`
}

type ResolveCommentRequest struct {
	SessionID  string `json:"sessionId"`
	CommentID  string `json:"commentId"`
	ResolvedBy string `json:"resolvedBy"`
}

type UnresolveCommentRequest struct {
	SessionID string `json:"sessionId"`
	CommentID string `json:"commentId"`
	UpdatedBy string `json:"updatedBy"`
}

// ListRequest selects comments or suggestions for the session's document,
// optionally narrowed to one block.
type ListRequest struct {
	SessionID string `json:"sessionId"`
	BlockID   string `json:"blockId"`
}

type AddSuggestionRequest struct {
	SessionID        string      `json:"sessionId"`
	BlockID          string      `json:"blockId"`
	Type             string      `json:"type"`
	OriginalContent  payload.Raw `json:"originalContent"`
	SuggestedContent payload.Raw `json:"suggestedContent"`
	Author           string      `json:"author"`
}

type SuggestionStatusRequest struct {
	SessionID    string `json:"sessionId"`
	SuggestionID string `json:"suggestionId"`
	Status       string `json:"status"`
	UpdatedBy    string `json:"updatedBy"`
}

type CreateVersionRequest struct {
	SessionID      string      `json:"sessionId"`
	DocumentID     string      `json:"documentId"`
	Description    string      `json:"description"`
	BlocksSnapshot payload.Raw `json:"blocksSnapshot"`
	Author         string      `json:"author"`
}

type RestoreVersionRequest struct {
	SessionID string `json:"sessionId"`
	VersionID string `json:"versionId"`
}

type HistoryRequest struct {
	DocumentID string `json:"documentId"`
}

type ContentChangeRequest struct {
	SessionID string      `json:"sessionId"`
	Change    payload.Raw `json:"change"`
	Author    string      `json:"author"`
}
