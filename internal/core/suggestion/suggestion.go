// Package suggestion defines proposed content edits and their store contract.
package suggestion

import (
	"time"

	"github.com/colonyops/huddle/internal/core/payload"
)

// Well-known statuses. Status is caller-driven: any string is accepted and
// no transition rules are enforced.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Suggestion is a proposed edit to a content block.
type Suggestion struct {
	ID               string      `json:"id"`
	DocumentID       string      `json:"documentId"`
	BlockID          string      `json:"blockId"`
	Type             string      `json:"type"`
	OriginalContent  payload.Raw `json:"originalContent"`
	SuggestedContent payload.Raw `json:"suggestedContent"`
	Author           string      `json:"author"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedBy        string      `json:"updatedBy,omitempty"`
	UpdatedAt        *time.Time  `json:"updatedAt,omitempty"`
}

// WithStatus returns the suggestion with a new status and update record.
func (s Suggestion) WithStatus(status, by string, at time.Time) Suggestion {
	s.Status = status
	s.UpdatedBy = by
	s.UpdatedAt = &at
	return s
}

// IsPending reports whether the suggestion still awaits a decision.
func (s Suggestion) IsPending() bool {
	return s.Status == StatusPending
}
