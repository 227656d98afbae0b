package comment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComment_ResolveUnresolve(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Comment{ID: "c1", Content: "typo"}

	resolved := c.Resolve("ann", at)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "ann", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, at, *resolved.ResolvedAt)
	assert.False(t, c.Resolved, "value receiver leaves the original untouched")

	reopened := resolved.Unresolve()
	assert.False(t, reopened.Resolved)
	assert.Empty(t, reopened.ResolvedBy)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestComment_IsReply(t *testing.T) {
	parent := "c1"
	empty := ""

	assert.False(t, Comment{}.IsReply())
	assert.False(t, Comment{ParentID: &empty}.IsReply())
	assert.True(t, Comment{ParentID: &parent}.IsReply())
}
