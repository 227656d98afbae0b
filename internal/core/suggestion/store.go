package suggestion

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a suggestion id is unknown.
var ErrNotFound = errors.New("suggestion not found")

// Store defines persistence operations for suggestions.
type Store interface {
	// Create stores a new suggestion.
	Create(ctx context.Context, s Suggestion) error

	// Get returns a suggestion by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Suggestion, error)

	// UpdateStatus sets the status and update record.
	// Returns ErrNotFound if not found.
	UpdateStatus(ctx context.Context, id, status, updatedBy string, at time.Time) (Suggestion, error)

	// List returns suggestions for a document in creation order, optionally
	// restricted to one block (empty blockID returns all).
	List(ctx context.Context, documentID, blockID string) ([]Suggestion, error)
}
