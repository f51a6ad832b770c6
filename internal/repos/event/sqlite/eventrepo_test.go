package sqlite

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
	"github.com/derWhity/eventdesk/internal/repos/repotest"
)

func newEvent(title string, start time.Time) *models.Event {
	return &models.Event{
		Title:                title,
		Description:          "Hands-on introduction for beginners",
		Location:             "Lab 3",
		Category:             "Workshop",
		StartTime:            start,
		EndTime:              start.Add(2 * time.Hour),
		RegistrationDeadline: start.Add(-24 * time.Hour),
		Capacity:             30,
		CreatedBy:            "admin-1",
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := New(repotest.OpenDB(t), repotest.Logger())
	start := time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC)
	ev := newEvent("Intro to Go", start)
	require.NoError(t, repo.Create(ev))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, uint(1), ev.Version)

	loaded, err := repo.GetByID(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go", loaded.Title)
	assert.Equal(t, uint(30), loaded.Capacity)
	assert.Equal(t, "admin-1", loaded.CreatedBy)
	assert.True(t, start.Equal(loaded.StartTime))
	assert.True(t, start.Add(2*time.Hour).Equal(loaded.EndTime))

	_, err = repo.GetByID("missing")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
}

func TestUpdateChecksVersion(t *testing.T) {
	repo := New(repotest.OpenDB(t), repotest.Logger())
	ev := newEvent("Intro to Go", time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ev))

	ev.Title = "Intro to Go, part 2"
	require.NoError(t, repo.Update(ev, 1))
	assert.Equal(t, uint(2), ev.Version)

	// Someone else still works with version 1
	ev.Title = "Outdated change"
	assert.Equal(t, repos.ErrVersionMismatch, repo.Update(ev, 1))

	loaded, err := repo.GetByID(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go, part 2", loaded.Title)
	assert.Equal(t, uint(2), loaded.Version)

	ev.ID = "missing"
	assert.Equal(t, repos.ErrEntityNotExisting, repo.Update(ev, 2))
}

func TestUpdateRejectsCapacityBelowSeats(t *testing.T) {
	db := repotest.OpenDB(t)
	repo := New(db, repotest.Logger())
	ev := newEvent("Intro to Go", time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ev))
	statuses := []models.RegistrationStatus{
		models.StatusRegistered, models.StatusAttended, models.StatusCancelled, models.StatusRegistered,
	}
	for i, st := range statuses {
		_, err := db.Exec(`INSERT INTO Registrations(id, userId, eventId, status) VALUES(?, ?, ?, ?)`,
			fmt.Sprintf("r%d", i), fmt.Sprintf("u%d", i), ev.ID, st)
		require.NoError(t, err)
	}

	ev.Capacity = 2
	assert.Equal(t, repos.ErrCapacityTooLow, repo.Update(ev, 1))
	ev.Capacity = 3
	assert.NoError(t, repo.Update(ev, 1))
}

func TestDeleteRemovesRegistrations(t *testing.T) {
	db := repotest.OpenDB(t)
	repo := New(db, repotest.Logger())
	ev := newEvent("Intro to Go", time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ev))
	_, err := db.Exec(`INSERT INTO Registrations(id, userId, eventId, status) VALUES('r1', 'u1', ?, 'registered')`,
		ev.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ev.ID))
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM Registrations`))
	assert.Equal(t, 0, n)

	assert.Equal(t, repos.ErrEntityNotExisting, repo.Delete(ev.ID))
}

func TestListPages(t *testing.T) {
	repo := New(repotest.OpenDB(t), repotest.Logger())
	base := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	// Inserted in reverse order to check the sorting
	for i := 11; i >= 0; i-- {
		require.NoError(t, repo.Create(newEvent(fmt.Sprintf("Event %02d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	page, total, err := repo.List(0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(12), total)
	require.Len(t, page, 10)
	assert.Equal(t, "Event 00", page[0].Title)
	assert.Equal(t, "Event 09", page[9].Title)

	page, total, err = repo.List(10, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(12), total)
	require.Len(t, page, 2)
	assert.Equal(t, "Event 11", page[1].Title)

	page, _, err = repo.List(20, 10)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}
