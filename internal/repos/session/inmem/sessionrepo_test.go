package inmem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/repos"
)

func TestSessionLifecycle(t *testing.T) {
	repo := New()
	defer repo.Close()

	sess, err := repo.CreateFor("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)

	loaded, err := repo.GetByID(sess.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	assert.False(t, loaded.ExpiresAt.Before(sess.ExpiresAt))

	require.NoError(t, repo.Delete(sess.ID))
	_, err = repo.GetByID(sess.ID, false)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestSessionExpires(t *testing.T) {
	repo := NewWithExpiry(time.Millisecond)
	defer repo.Close()

	sess, err := repo.CreateFor("user-1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.GetByID(sess.ID, true)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestSessionIDsAreUnique(t *testing.T) {
	repo := New()
	defer repo.Close()

	a, err := repo.CreateFor("user-1")
	require.NoError(t, err)
	b, err := repo.CreateFor("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
