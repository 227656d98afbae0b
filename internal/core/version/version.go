// Package version defines document snapshots and their store contract.
package version

import (
	"time"

	"github.com/colonyops/huddle/internal/core/payload"
)

// Version is an immutable snapshot of a document's block content.
type Version struct {
	ID             string      `json:"id"`
	DocumentID     string      `json:"documentId"`
	Description    string      `json:"description"`
	BlocksSnapshot payload.Raw `json:"blocksSnapshot"`
	Author         string      `json:"author"`
	CreatedAt      time.Time   `json:"createdAt"`
}
