package sqlite

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
	"github.com/derWhity/eventdesk/internal/repos/repotest"
)

func TestRegisterIsIdempotent(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 5)
	repo := New(db, repotest.Logger())

	first, created, err := repo.Register("u1", "ev1", false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.StatusRegistered, first.Status)

	second, created, err := repo.Register("u1", "ev1", false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	seats, err := repo.CountSeats("ev1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), seats)
}

func TestRegisterAfterCancellationReusesRow(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 5)
	repo := New(db, repotest.Logger())

	reg, _, err := repo.Register("u1", "ev1", false)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(reg.ID, models.StatusRegistered, models.StatusCancelled)
	require.NoError(t, err)

	again, created, err := repo.Register("u1", "ev1", false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, reg.ID, again.ID)
	assert.Equal(t, models.StatusRegistered, again.Status)
}

func TestRegisterUnknownEvent(t *testing.T) {
	repo := New(repotest.OpenDB(t), repotest.Logger())
	_, _, err := repo.Register("u1", "missing", false)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestRegisterFullEvent(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 1)
	repo := New(db, repotest.Logger())

	_, _, err := repo.Register("u1", "ev1", false)
	require.NoError(t, err)
	_, _, err = repo.Register("u2", "ev1", false)
	assert.Equal(t, repos.ErrEventFull, err)

	reg, created, err := repo.Register("u2", "ev1", true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.StatusWaitlisted, reg.Status)
}

func TestLastSeatIsTakenOnce(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 1)
	repo := New(db, repotest.Logger())

	const racers = 10
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := repo.Register(fmt.Sprintf("u%d", i), "ev1", false)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, full int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case repos.ErrEventFull:
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, racers-1, full)
	seats, err := repo.CountSeats("ev1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), seats)
}

func TestUpdateStatus(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 1)
	repo := New(db, repotest.Logger())

	reg, _, err := repo.Register("u1", "ev1", true)
	require.NoError(t, err)
	waiting, _, err := repo.Register("u2", "ev1", true)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, waiting.Status)

	updated, err := repo.UpdateStatus(reg.ID, models.StatusRegistered, models.StatusAttended)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttended, updated.Status)

	// Based on an outdated status
	_, err = repo.UpdateStatus(reg.ID, models.StatusRegistered, models.StatusCancelled)
	assert.Equal(t, repos.ErrStaleStatus, err)

	// The only seat is taken
	_, err = repo.UpdateStatus(waiting.ID, models.StatusWaitlisted, models.StatusAttended)
	assert.Equal(t, repos.ErrEventFull, err)

	_, err = repo.UpdateStatus("missing", models.StatusRegistered, models.StatusCancelled)
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestPromoteWaitlisted(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 1)
	repo := New(db, repotest.Logger())

	holder, _, err := repo.Register("u1", "ev1", true)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	first, _, err := repo.Register("u2", "ev1", true)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, _, err = repo.Register("u3", "ev1", true)
	require.NoError(t, err)

	// No free seat
	promoted, err := repo.PromoteWaitlisted("ev1")
	require.NoError(t, err)
	assert.Nil(t, promoted)

	_, err = repo.UpdateStatus(holder.ID, models.StatusRegistered, models.StatusCancelled)
	require.NoError(t, err)
	promoted, err = repo.PromoteWaitlisted("ev1")
	require.NoError(t, err)
	if assert.NotNil(t, promoted) {
		assert.Equal(t, first.ID, promoted.ID)
		assert.Equal(t, models.StatusRegistered, promoted.Status)
	}

	// Full again
	promoted, err = repo.PromoteWaitlisted("ev1")
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestListByEventIncludesRegistrants(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 50)
	repotest.InsertEvent(t, db, "ev2", 50)
	repo := New(db, repotest.Logger())
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("u%02d", i)
		repotest.InsertUser(t, db, id, "user"+id)
		_, _, err := repo.Register(id, "ev1", false)
		require.NoError(t, err)
	}
	_, _, err := repo.Register("u00", "ev2", false)
	require.NoError(t, err)

	page, total, err := repo.ListByEvent("ev1", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(12), total)
	require.Len(t, page, 2)
	for _, reg := range page {
		require.NotNil(t, reg.User)
		assert.Equal(t, "user"+reg.UserID, reg.User.Name)
		assert.Equal(t, "user"+reg.UserID+"@example.org", reg.User.Email)
	}

	page, total, err = repo.ListByEvent("ev1", 20, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(12), total)
	assert.Empty(t, page)
}

func TestGetByUserAndEvent(t *testing.T) {
	db := repotest.OpenDB(t)
	repotest.InsertEvent(t, db, "ev1", 5)
	repo := New(db, repotest.Logger())

	_, err := repo.GetByUserAndEvent("u1", "ev1")
	assert.Equal(t, repos.ErrEntityNotExisting, err)

	reg, _, err := repo.Register("u1", "ev1", false)
	require.NoError(t, err)
	found, err := repo.GetByUserAndEvent("u1", "ev1")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, found.ID)
	byID, err := repo.GetByID(reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", byID.UserID)
}
