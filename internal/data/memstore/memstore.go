// Package memstore holds comments, suggestions and versions in process
// memory. It is the default storage driver: records outlive sessions but not
// the server process.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/version"
	"github.com/colonyops/huddle/pkg/kv"
)

// CommentStore implements comment.Store in memory.
type CommentStore struct {
	table *kv.Store[string, comment.Comment]
}

var _ comment.Store = (*CommentStore)(nil)

func NewCommentStore() *CommentStore {
	return &CommentStore{table: kv.New[string, comment.Comment]()}
}

func (s *CommentStore) Create(_ context.Context, c comment.Comment) error {
	s.table.Set(c.ID, c)
	return nil
}

func (s *CommentStore) Get(_ context.Context, id string) (comment.Comment, error) {
	c, ok := s.table.Get(id)
	if !ok {
		return comment.Comment{}, comment.ErrNotFound
	}
	return c, nil
}

func (s *CommentStore) SetResolved(_ context.Context, id string, resolved bool, resolvedBy string, at time.Time) (comment.Comment, error) {
	c, err := s.table.Update(id, func(c comment.Comment) (comment.Comment, error) {
		if resolved {
			return c.Resolve(resolvedBy, at), nil
		}
		return c.Unresolve(), nil
	})
	if errors.Is(err, kv.ErrMissing) {
		return comment.Comment{}, comment.ErrNotFound
	}
	return c, err
}

func (s *CommentStore) List(_ context.Context, documentID, blockID string) ([]comment.Comment, error) {
	return s.table.Filter(func(c comment.Comment) bool {
		return c.DocumentID == documentID && (blockID == "" || c.BlockID == blockID)
	}), nil
}

// SuggestionStore implements suggestion.Store in memory.
type SuggestionStore struct {
	table *kv.Store[string, suggestion.Suggestion]
}

var _ suggestion.Store = (*SuggestionStore)(nil)

func NewSuggestionStore() *SuggestionStore {
	return &SuggestionStore{table: kv.New[string, suggestion.Suggestion]()}
}

func (s *SuggestionStore) Create(_ context.Context, sg suggestion.Suggestion) error {
	s.table.Set(sg.ID, sg)
	return nil
}

func (s *SuggestionStore) Get(_ context.Context, id string) (suggestion.Suggestion, error) {
	sg, ok := s.table.Get(id)
	if !ok {
		return suggestion.Suggestion{}, suggestion.ErrNotFound
	}
	return sg, nil
}

func (s *SuggestionStore) UpdateStatus(_ context.Context, id, status, updatedBy string, at time.Time) (suggestion.Suggestion, error) {
	sg, err := s.table.Update(id, func(sg suggestion.Suggestion) (suggestion.Suggestion, error) {
		return sg.WithStatus(status, updatedBy, at), nil
	})
	if errors.Is(err, kv.ErrMissing) {
		return suggestion.Suggestion{}, suggestion.ErrNotFound
	}
	return sg, err
}

func (s *SuggestionStore) List(_ context.Context, documentID, blockID string) ([]suggestion.Suggestion, error) {
	return s.table.Filter(func(sg suggestion.Suggestion) bool {
		return sg.DocumentID == documentID && (blockID == "" || sg.BlockID == blockID)
	}), nil
}

// VersionStore implements version.Store in memory. Each document's history
// is an append-only slice; byID indexes version ids to their document so Get
// does not scan every history.
type VersionStore struct {
	mu      sync.RWMutex
	history map[string][]version.Version
	byID    map[string]string
}

var _ version.Store = (*VersionStore)(nil)

func NewVersionStore() *VersionStore {
	return &VersionStore{
		history: make(map[string][]version.Version),
		byID:    make(map[string]string),
	}
}

func (s *VersionStore) Append(_ context.Context, v version.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[v.DocumentID] = append(s.history[v.DocumentID], v)
	s.byID[v.ID] = v.DocumentID
	return nil
}

func (s *VersionStore) Get(_ context.Context, id string) (version.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	documentID, ok := s.byID[id]
	if !ok {
		return version.Version{}, version.ErrNotFound
	}
	for _, v := range s.history[documentID] {
		if v.ID == id {
			return v, nil
		}
	}
	return version.Version{}, version.ErrNotFound
}

func (s *VersionStore) History(_ context.Context, documentID string) ([]version.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.history[documentID]
	out := make([]version.Version, len(src))
	copy(out, src)
	return out, nil
}
