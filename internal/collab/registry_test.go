package collab

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/huddle/internal/core/session"
)

func fixedNow() time.Time { return t0 }

func join(t *testing.T, r *Registry, doc, conn string) {
	t.Helper()
	require.NoError(t, r.Join(doc, func(s *session.Session) error {
		s.Join(session.User{ID: conn}, conn, t0)
		return nil
	}))
}

func TestRegistry_JoinIndexesConnections(t *testing.T) {
	r := NewRegistry(fixedNow)
	join(t, r, "doc1", "a")
	join(t, r, "doc2", "a")
	join(t, r, "doc1", "b")

	assert.Equal(t, []string{"session_doc1", "session_doc2"}, r.SessionsFor("a"))
	assert.Equal(t, []string{"session_doc1"}, r.SessionsFor("b"))
	assert.Equal(t, 2, r.Len())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, Summary{ID: "session_doc1", DocumentID: "doc1", Members: 2, CreatedAt: t0}, list[0])
}

func TestRegistry_FailedJoinLeavesNothingBehind(t *testing.T) {
	r := NewRegistry(fixedNow)
	boom := errors.New("boom")

	err := r.Join("doc1", func(*session.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DoMissing(t *testing.T) {
	r := NewRegistry(fixedNow)
	err := r.Do("session_nope", func(*session.Session) error { return nil })
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, _, err = r.Get("session_nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistry_EmptiedSessionIsDestroyedAndUnindexed(t *testing.T) {
	r := NewRegistry(fixedNow)
	join(t, r, "doc1", "a")

	require.NoError(t, r.Do("session_doc1", func(s *session.Session) error {
		_, ok := s.Leave("a")
		assert.True(t, ok)
		return nil
	}))

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.SessionsFor("a"))
	assert.ErrorIs(t, r.Do("session_doc1", func(*session.Session) error { return nil }), session.ErrNotFound)
}

func TestRegistry_ReapAndClear(t *testing.T) {
	r := NewRegistry(fixedNow)
	join(t, r, "doc1", "a")
	join(t, r, "doc2", "b")

	assert.Equal(t, 0, r.Reap(), "sessions with members are kept")

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.SessionsFor("a"))
	assert.Empty(t, r.List())
}

func TestRegistry_ConcurrentJoinAndDestroy(t *testing.T) {
	r := NewRegistry(fixedNow)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", n)
			_ = r.Join("doc1", func(s *session.Session) error {
				s.Join(session.User{ID: conn}, conn, t0)
				return nil
			})
			_ = r.Do("session_doc1", func(s *session.Session) error {
				s.Leave(conn)
				return nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
