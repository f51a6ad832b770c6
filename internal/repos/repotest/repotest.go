// Package repotest provides helpers for tests working on a real (in-memory) database
package repotest

import (
	"io"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	// Database driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/eventdesk/internal/migrate"
	"github.com/derWhity/eventdesk/internal/models"
)

// Logger returns a logger that throws everything away
func Logger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

// OpenDB opens a migrated in-memory database that is closed when the test ends
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to ":memory:" gets its own database
	db.SetMaxOpenConns(1)
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, Logger()))
	t.Cleanup(func() { db.Close() })
	return db
}

// InsertEvent stores an event starting a week from now with the given capacity
func InsertEvent(t *testing.T, db *sqlx.DB, id string, capacity uint) *models.Event {
	t.Helper()
	start := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second)
	ev := &models.Event{
		ID:                   id,
		Title:                "Go meetup " + id,
		Description:          "An evening full of gophers and talks",
		Location:             "Room 101",
		Category:             "Technical",
		StartTime:            start,
		EndTime:              start.Add(2 * time.Hour),
		RegistrationDeadline: start.Add(-24 * time.Hour),
		Capacity:             capacity,
		Version:              1,
	}
	_, err := db.Exec(`INSERT INTO Events(id, title, description, location, category, startTime, endTime,
        registrationDeadline, capacity, version) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.Category, ev.StartTime, ev.EndTime, ev.RegistrationDeadline,
		ev.Capacity, ev.Version)
	require.NoError(t, err)
	return ev
}

// InsertUser stores a member with the given ID and name
func InsertUser(t *testing.T, db *sqlx.DB, id, name string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO Users(id, name, email, role) VALUES(?, ?, ?, ?)`,
		id, name, name+"@example.org", models.RoleMember)
	require.NoError(t, err)
}
