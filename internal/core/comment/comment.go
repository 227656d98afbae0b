// Package comment defines threaded block comments and their store contract.
package comment

import "time"

// Comment is feedback attached to a content block. Comments form a tree via
// ParentID; Replies is carried for integrators that materialize threads and is
// never maintained by the store.
type Comment struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	BlockID    string     `json:"blockId"`
	Content    string     `json:"content"`
	Author     string     `json:"author"`
	ParentID   *string    `json:"parentId"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	Replies    []Comment  `json:"replies"`
}

// Resolve marks the comment resolved.
func (c Comment) Resolve(by string, at time.Time) Comment {
	c.Resolved = true
	c.ResolvedBy = by
	c.ResolvedAt = &at
	return c
}

// Unresolve reopens the comment and clears the resolution record.
func (c Comment) Unresolve() Comment {
	c.Resolved = false
	c.ResolvedBy = ""
	c.ResolvedAt = nil
	return c
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}
