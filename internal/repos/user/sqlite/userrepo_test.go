package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
	"github.com/derWhity/eventdesk/internal/repos/repotest"
)

func TestUserRepo(t *testing.T) {
	repo := New(repotest.OpenDB(t), repotest.Logger())
	u := &models.User{Name: "jdoe", Email: "jdoe@example.org", FullName: "Jane Doe"}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, repo.Create(u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, models.RoleMember, u.Role)

	dup := &models.User{Name: "jdoe"}
	assert.Equal(t, repos.ErrDuplicate, repo.Create(dup))

	found, err := repo.GetByCredentials("jdoe", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.Equal(t, "Jane Doe", found.FullName)

	_, err = repo.GetByCredentials("jdoe", "wrong")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	_, err = repo.GetByCredentials("nobody", "secret123")
	assert.Equal(t, repos.ErrEntityNotExisting, err)

	byName, err := repo.GetByName("jdoe")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	assert.False(t, byName.IsAdmin())

	_, err = repo.GetByID("missing")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}
