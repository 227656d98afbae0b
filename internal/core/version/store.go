package version

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a version id is unknown.
var ErrNotFound = errors.New("version not found")

// Store defines persistence operations for versions. Versions of a document
// form an append-only sequence ordered by creation.
type Store interface {
	// Append adds a version to the end of its document's history.
	Append(ctx context.Context, v Version) error

	// Get returns a version by id across all documents.
	// Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Version, error)

	// History returns a document's versions in creation order. Unknown
	// documents yield an empty slice, not an error.
	History(ctx context.Context, documentID string) ([]Version, error)
}
