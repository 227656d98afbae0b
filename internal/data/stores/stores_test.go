package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/payload"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/version"
	"github.com/colonyops/huddle/internal/data/db"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "huddle.db"), db.DefaultOpenOptions())
	require.NoError(t, err, "Open")
	t.Cleanup(func() { _ = database.Close() })
	return database
}

var t0 = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestCommentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := NewCommentStore(openDB(t))
		parent := "c0"
		c := comment.Comment{
			ID: "c1", DocumentID: "doc1", BlockID: "b1", Content: "tighten this",
			Author: "ann", ParentID: &parent, CreatedAt: t0,
		}
		require.NoError(t, store.Create(ctx, c))

		got, err := store.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "tighten this", got.Content)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, "c0", *got.ParentID)
		assert.False(t, got.Resolved)
		assert.Nil(t, got.ResolvedAt)
		assert.True(t, t0.Equal(got.CreatedAt))
		assert.NotNil(t, got.Replies)
	})

	t.Run("get not found", func(t *testing.T) {
		store := NewCommentStore(openDB(t))
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, comment.ErrNotFound)
	})

	t.Run("resolve and reopen", func(t *testing.T) {
		store := NewCommentStore(openDB(t))
		require.NoError(t, store.Create(ctx, comment.Comment{ID: "c1", DocumentID: "doc1", BlockID: "b1", Author: "ann", CreatedAt: t0}))

		resolvedAt := t0.Add(time.Minute)
		got, err := store.SetResolved(ctx, "c1", true, "bob", resolvedAt)
		require.NoError(t, err)
		assert.True(t, got.Resolved)
		assert.Equal(t, "bob", got.ResolvedBy)
		require.NotNil(t, got.ResolvedAt)
		assert.True(t, resolvedAt.Equal(*got.ResolvedAt))

		got, err = store.SetResolved(ctx, "c1", false, "bob", resolvedAt)
		require.NoError(t, err)
		assert.False(t, got.Resolved)
		assert.Empty(t, got.ResolvedBy)
		assert.Nil(t, got.ResolvedAt)

		_, err = store.SetResolved(ctx, "missing", true, "bob", resolvedAt)
		assert.ErrorIs(t, err, comment.ErrNotFound)
	})

	t.Run("list filters by document and block", func(t *testing.T) {
		store := NewCommentStore(openDB(t))
		for _, c := range []comment.Comment{
			{ID: "c1", DocumentID: "doc1", BlockID: "b1", CreatedAt: t0},
			{ID: "c2", DocumentID: "doc2", BlockID: "b1", CreatedAt: t0},
			{ID: "c3", DocumentID: "doc1", BlockID: "b2", CreatedAt: t0},
			{ID: "c4", DocumentID: "doc1", BlockID: "b1", CreatedAt: t0},
		} {
			require.NoError(t, store.Create(ctx, c))
		}

		all, err := store.List(ctx, "doc1", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c3", "c4"}, commentIDs(all))

		block, err := store.List(ctx, "doc1", "b1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c4"}, commentIDs(block))

		none, err := store.List(ctx, "unknown", "")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestSuggestionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSuggestionStore(openDB(t))

	sg := suggestion.Suggestion{
		ID: "s1", DocumentID: "doc1", BlockID: "b1", Type: "replace",
		OriginalContent:  payload.Raw(`"teh cat"`),
		SuggestedContent: payload.Raw(`{"text":"the cat","marks":["bold"]}`),
		Author:           "ann", Status: suggestion.StatusPending, CreatedAt: t0,
	}
	require.NoError(t, store.Create(ctx, sg))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, payload.Raw(`"teh cat"`), got.OriginalContent)
	assert.Equal(t, sg.SuggestedContent, got.SuggestedContent)
	assert.Nil(t, got.UpdatedAt)

	updatedAt := t0.Add(time.Hour)
	got, err = store.UpdateStatus(ctx, "s1", suggestion.StatusAccepted, "bob", updatedAt)
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusAccepted, got.Status)
	assert.Equal(t, "bob", got.UpdatedBy)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, updatedAt.Equal(*got.UpdatedAt))

	_, err = store.UpdateStatus(ctx, "missing", suggestion.StatusRejected, "bob", updatedAt)
	assert.ErrorIs(t, err, suggestion.ErrNotFound)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, suggestion.ErrNotFound)

	list, err := store.List(ctx, "doc1", "b1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}

func TestVersionStore(t *testing.T) {
	ctx := context.Background()
	store := NewVersionStore(openDB(t))

	// large integers and trailing zeros must come back untouched
	snapshot := payload.Raw(`[{"id":"b1","type":"paragraph","text":"Hello"},{"id":"b2","rev":9007199254740993,"price":1.10}]`)

	for i, id := range []string{"v1", "v2", "v3"} {
		require.NoError(t, store.Append(ctx, version.Version{
			ID: id, DocumentID: "doc1", Description: id, BlocksSnapshot: snapshot,
			Author: "ann", CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.Append(ctx, version.Version{ID: "other", DocumentID: "doc2", CreatedAt: t0}))

	other, err := store.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.BlocksSnapshot.IsNull())

	history, err := store.History(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "v1", history[0].ID)
	assert.Equal(t, "v3", history[2].ID)

	got, err := store.Get(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, snapshot, got.BlocksSnapshot)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, version.ErrNotFound)

	empty, err := store.History(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func commentIDs(cs []comment.Comment) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
