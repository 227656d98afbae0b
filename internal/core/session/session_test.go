package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/huddle/internal/core/payload"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestIDFor_Deterministic(t *testing.T) {
	assert.Equal(t, "session_doc1", IDFor("doc1"))
	assert.Equal(t, IDFor("doc1"), New("doc1", t0).ID)
	assert.NotEqual(t, IDFor("doc1"), IDFor("doc2"))
}

func TestDocumentIDFrom(t *testing.T) {
	tests := []struct {
		sessionID string
		want      string
		ok        bool
	}{
		{"session_doc1", "doc1", true},
		{IDFor("a_b"), "a_b", true},
		{"session_", "", false},
		{"doc1", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.sessionID, func(t *testing.T) {
			got, ok := DocumentIDFrom(tt.sessionID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_JoinOrderAndColors(t *testing.T) {
	s := New("doc1", t0)

	for i := range 14 {
		joined, others := s.Join(User{ID: fmt.Sprintf("u%d", i)}, fmt.Sprintf("c%d", i), t0)
		assert.Len(t, others, i, "joiner sees everyone already present")
		assert.Equal(t, Palette[i%PaletteSize], joined.Presence.Color)
		assert.True(t, joined.Presence.IsActive)
	}

	members := s.Members()
	require.Len(t, members, 14)
	for i, m := range members {
		assert.Equal(t, fmt.Sprintf("c%d", i), m.ConnectionID, "members keep join order")
	}
	assert.Equal(t, members[0].Presence.Color, members[12].Presence.Color, "colors cycle after 12 joins")
}

func TestSession_ColorsFollowJoinCounterAfterLeave(t *testing.T) {
	s := New("doc1", t0)
	s.Join(User{ID: "a"}, "ca", t0)
	s.Join(User{ID: "b"}, "cb", t0)

	_, ok := s.Leave("ca")
	require.True(t, ok)

	c, _ := s.Join(User{ID: "c"}, "cc", t0)
	assert.Equal(t, Palette[2], c.Presence.Color)
}

func TestSession_Leave(t *testing.T) {
	s := New("doc1", t0)
	s.Join(User{ID: "a", DisplayName: "Ann"}, "ca", t0)

	_, ok := s.Leave("unknown")
	assert.False(t, ok)

	left, ok := s.Leave("ca")
	require.True(t, ok)
	assert.Equal(t, "Ann", left.DisplayName)
	assert.True(t, s.Empty())
}

func TestSession_UpdatePresence(t *testing.T) {
	s := New("doc1", t0)
	s.Join(User{ID: "a"}, "ca", t0)
	s.Join(User{ID: "b"}, "cb", t0)

	later := t0.Add(time.Minute)
	p, ok := s.UpdatePresence("b", "cb", PresenceUpdate{Cursor: payload.Raw(`5`), CursorSet: true}, later)
	require.True(t, ok)
	assert.JSONEq(t, `5`, string(p.Presence.Cursor))
	assert.Nil(t, p.Presence.Selection)
	assert.Equal(t, later, p.Presence.UpdatedAt)

	// only set fields are overwritten
	p, ok = s.UpdatePresence("b", "cb", PresenceUpdate{IsActive: false, IsActiveSet: true}, later)
	require.True(t, ok)
	assert.JSONEq(t, `5`, string(p.Presence.Cursor))
	assert.False(t, p.Presence.IsActive)

	// explicit null clears
	p, _ = s.UpdatePresence("b", "cb", PresenceUpdate{Cursor: payload.Raw(`null`), CursorSet: true}, later)
	assert.Nil(t, p.Presence.Cursor)

	_, ok = s.UpdatePresence("ghost", "", PresenceUpdate{}, later)
	assert.False(t, ok)
}

func TestSession_UpdatePresence_ClientTimestamp(t *testing.T) {
	s := New("doc1", t0)
	s.Join(User{ID: "a"}, "ca", t0)

	ts := t0.Add(-time.Hour)
	p, ok := s.UpdatePresence("a", "ca", PresenceUpdate{Timestamp: ts}, t0)
	require.True(t, ok)
	assert.Equal(t, ts, p.Presence.UpdatedAt)
}

func TestSession_UpdatePresence_PrefersSendersEntry(t *testing.T) {
	s := New("doc1", t0)
	s.Join(User{ID: "a"}, "tab1", t0)
	s.Join(User{ID: "a"}, "tab2", t0)

	p, ok := s.UpdatePresence("a", "tab2", PresenceUpdate{Cursor: payload.Raw(`"x"`), CursorSet: true}, t0)
	require.True(t, ok)
	assert.Equal(t, "tab2", p.ConnectionID)

	// another connection updating on behalf of the user hits the earliest entry
	p, ok = s.UpdatePresence("a", "other", PresenceUpdate{Cursor: payload.Raw(`"y"`), CursorSet: true}, t0)
	require.True(t, ok)
	assert.Equal(t, "tab1", p.ConnectionID)

	assert.Len(t, s.MembersForUser("a"), 2)
}

func TestSession_MarkInactive(t *testing.T) {
	s := New("doc1", t0)
	s.Join(User{ID: "a"}, "ca", t0)

	p, ok := s.MarkInactive("ca", t0)
	require.True(t, ok)
	assert.False(t, p.Presence.IsActive)

	_, ok = s.MarkInactive("ca", t0)
	assert.False(t, ok, "already inactive")
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, Palette[0], ColorFor(0))
	assert.Equal(t, Palette[11], ColorFor(11))
	assert.Equal(t, Palette[0], ColorFor(12))
	assert.Equal(t, Palette[1], ColorFor(-1))
}
