// Package sqlite provides an event repository that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

const (
	eventFields = `title, description, location, category, posterUrl, startTime, endTime, registrationDeadline,
        capacity, createdBy, version, createdAt, updatedAt`
)

// EventRepo is an repository that stores its data inside a SQLite database
type EventRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new event repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *EventRepo {
	return &EventRepo{
		db:     db,
		logger: logger,
	}
}

// Create creates a new event
func (r *EventRepo) Create(ev *models.Event) error {
	ev.ID = uuid.NewString()
	ev.Version = 1
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	r.logger.WithFields(logrus.Fields{log.FldID: ev.ID, "title": ev.Title}).Debug("Adding new event")
	query := fmt.Sprintf(`INSERT INTO Events(id, %s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, eventFields)
	_, err := r.db.Exec(query, ev.ID, ev.Title, ev.Description, ev.Location, ev.Category, ev.PosterURL,
		ev.StartTime.UTC(), ev.EndTime.UTC(), ev.RegistrationDeadline.UTC(), ev.Capacity, ev.CreatedBy, ev.Version,
		ev.CreatedAt, ev.UpdatedAt)
	return errors.Wrap(err, "inserting event")
}

// Update updates the given event. The update only happens when the stored event is still at the expected version
// and the new capacity is not lower than the number of seats taken. On success, the event's version is incremented
func (r *EventRepo) Update(ev *models.Event, expectedVersion uint) error {
	r.logger.WithFields(logrus.Fields{log.FldID: ev.ID, log.FldVersion: expectedVersion}).Debug("Updating event")
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	var current uint
	if err = tx.Get(&current, `SELECT version FROM Events WHERE id = ?`, ev.ID); err != nil {
		if err == sql.ErrNoRows {
			err = repos.ErrEntityNotExisting
		}
		return repos.DoRollback(tx, err)
	}
	if current != expectedVersion {
		return repos.DoRollback(tx, repos.ErrVersionMismatch)
	}
	seats, err := repos.CountSeatsTx(tx, ev.ID)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	if ev.Capacity < seats {
		return repos.DoRollback(tx, repos.ErrCapacityTooLow)
	}
	updatedAt := time.Now().UTC()
	query := `UPDATE Events SET title = ?, description = ?, location = ?, category = ?, posterUrl = ?, startTime = ?,
        endTime = ?, registrationDeadline = ?, capacity = ?, version = version + 1, updatedAt = ?
        WHERE id = ? AND version = ?`
	res, err := tx.Exec(query, ev.Title, ev.Description, ev.Location, ev.Category, ev.PosterURL, ev.StartTime.UTC(),
		ev.EndTime.UTC(), ev.RegistrationDeadline.UTC(), ev.Capacity, updatedAt, ev.ID, expectedVersion)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	if num, err := res.RowsAffected(); err != nil {
		return repos.DoRollback(tx, err)
	} else if num == 0 {
		return repos.DoRollback(tx, repos.ErrVersionMismatch)
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	ev.Version = expectedVersion + 1
	ev.UpdatedAt = updatedAt
	return nil
}

// Delete removes the given event and all registrations made for it
func (r *EventRepo) Delete(id string) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting event")
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	if _, err = tx.Exec(`DELETE FROM Registrations WHERE eventId = ?`, id); err != nil {
		return repos.DoRollback(tx, err)
	}
	res, err := tx.Exec(`DELETE FROM Events WHERE id = ?`, id)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	var num int64
	if num, err = res.RowsAffected(); err != nil {
		return repos.DoRollback(tx, err)
	}
	if num == 0 {
		return repos.DoRollback(tx, repos.ErrEntityNotExisting)
	}
	return tx.Commit()
}

// GetByID returns the Event with the given ID
func (r *EventRepo) GetByID(id string) (*models.Event, error) {
	r.logger.WithField(log.FldID, id).Debug("Loading event")
	query := fmt.Sprintf("SELECT id, %s FROM Events WHERE id = ?", eventFields)
	var ev models.Event
	err := r.db.Get(&ev, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &ev, nil
}

// List returns the events ordered by their start time - supports pagination
func (r *EventRepo) List(offset uint, limit uint) ([]models.Event, uint, error) {
	if limit == 0 {
		limit = 10
	}
	r.logger.WithFields(logrus.Fields{
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Listing events")
	query := fmt.Sprintf(`SELECT id, %s FROM Events ORDER BY startTime ASC, id ASC LIMIT ? OFFSET ?`, eventFields)
	ret := []models.Event{}
	if err := r.db.Select(&ret, query, limit, offset); err != nil {
		return nil, 0, err
	}
	// Query the full count
	var numRows uint
	if err := r.db.Get(&numRows, `SELECT COUNT(*) FROM Events`); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}
