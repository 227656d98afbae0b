package comment

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a comment id is unknown.
var ErrNotFound = errors.New("comment not found")

// Store defines persistence operations for comments. Comments are keyed
// globally by id and outlive any session.
type Store interface {
	// Create stores a new comment.
	Create(ctx context.Context, c Comment) error

	// Get returns a comment by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Comment, error)

	// SetResolved flips the resolved state. resolvedBy and at are recorded when
	// resolving and cleared when reopening. Returns ErrNotFound if not found.
	SetResolved(ctx context.Context, id string, resolved bool, resolvedBy string, at time.Time) (Comment, error)

	// List returns comments for a document in creation order, optionally
	// restricted to one block (empty blockID returns all).
	List(ctx context.Context, documentID, blockID string) ([]Comment, error)
}
