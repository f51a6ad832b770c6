// Package sqlite provides a registration repository that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

const (
	registrationFields = `id, userId, eventId, status, createdAt, updatedAt`
)

// registrantRow is a registration joined with the data of the registered user
type registrantRow struct {
	models.Registration
	UserName  sql.NullString `db:"userName"`
	UserEmail sql.NullString `db:"userEmail"`
}

// RegistrationRepo is a repository that stores registrations inside a SQLite database
type RegistrationRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new registration repository instance with the given database and logger
func New(db *sqlx.DB, logger *logrus.Entry) *RegistrationRepo {
	return &RegistrationRepo{
		db:     db,
		logger: logger,
	}
}

// eventCapacity loads the capacity of the event inside the transaction
func eventCapacity(tx *sqlx.Tx, eventID string) (uint, error) {
	var capacity uint
	if err := tx.Get(&capacity, `SELECT capacity FROM Events WHERE id = ?`, eventID); err != nil {
		if err == sql.ErrNoRows {
			return 0, repos.ErrEntityNotExisting
		}
		return 0, err
	}
	return capacity, nil
}

// Register registers the user for the event. Seats are counted inside the same transaction the registration is
// written in, so the last seat can only be taken once
func (r *RegistrationRepo) Register(
	userID, eventID string,
	allowWaitlist bool,
) (*models.Registration, bool, error) {
	logger := r.logger.WithFields(logrus.Fields{log.FldUser: userID, log.FldEvent: eventID})
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, false, err
	}
	capacity, err := eventCapacity(tx, eventID)
	if err != nil {
		return nil, false, repos.DoRollback(tx, err)
	}
	var reg models.Registration
	err = tx.Get(&reg, `SELECT `+registrationFields+` FROM Registrations WHERE userId = ? AND eventId = ?`,
		userID, eventID)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return nil, false, repos.DoRollback(tx, err)
	}
	if exists && reg.Status != models.StatusCancelled {
		logger.WithField(log.FldStatus, reg.Status).Debug("User is already registered")
		return &reg, false, repos.DoRollback(tx, nil)
	}
	seats, err := repos.CountSeatsTx(tx, eventID)
	if err != nil {
		return nil, false, repos.DoRollback(tx, err)
	}
	status := models.StatusRegistered
	if seats >= capacity {
		if !allowWaitlist {
			return nil, false, repos.DoRollback(tx, repos.ErrEventFull)
		}
		status = models.StatusWaitlisted
	}
	now := time.Now().UTC()
	if exists {
		logger.WithField(log.FldStatus, status).Debug("Re-activating cancelled registration")
		_, err = tx.Exec(`UPDATE Registrations SET status = ?, updatedAt = ? WHERE id = ?`, status, now, reg.ID)
	} else {
		logger.WithField(log.FldStatus, status).Debug("Adding new registration")
		reg = models.Registration{
			ID:        uuid.NewString(),
			UserID:    userID,
			EventID:   eventID,
			CreatedAt: now,
		}
		_, err = tx.Exec(`INSERT INTO Registrations(`+registrationFields+`) VALUES(?, ?, ?, ?, ?, ?)`,
			reg.ID, userID, eventID, status, now, now)
	}
	if err != nil {
		return nil, false, repos.DoRollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, false, err
	}
	reg.Status = status
	reg.UpdatedAt = now
	return &reg, true, nil
}

// UpdateStatus moves the registration from one status to another one. It fails with ErrStaleStatus if the
// registration is no longer in the "from" status and with ErrEventFull if the new status needs a seat that is not
// available
func (r *RegistrationRepo) UpdateStatus(id string, from, to models.RegistrationStatus) (*models.Registration, error) {
	r.logger.WithFields(logrus.Fields{
		log.FldRegistration: id,
		log.FldStatus:       to,
	}).Debug("Updating registration status")
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	var reg models.Registration
	if err = tx.Get(&reg, `SELECT `+registrationFields+` FROM Registrations WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			err = repos.ErrEntityNotExisting
		}
		return nil, repos.DoRollback(tx, err)
	}
	if reg.Status != from {
		return nil, repos.DoRollback(tx, repos.ErrStaleStatus)
	}
	if to.HoldsSeat() && !from.HoldsSeat() {
		capacity, err := eventCapacity(tx, reg.EventID)
		if err != nil {
			return nil, repos.DoRollback(tx, err)
		}
		seats, err := repos.CountSeatsTx(tx, reg.EventID)
		if err != nil {
			return nil, repos.DoRollback(tx, err)
		}
		if seats >= capacity {
			return nil, repos.DoRollback(tx, repos.ErrEventFull)
		}
	}
	now := time.Now().UTC()
	if _, err = tx.Exec(`UPDATE Registrations SET status = ?, updatedAt = ? WHERE id = ?`, to, now, id); err != nil {
		return nil, repos.DoRollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	reg.Status = to
	reg.UpdatedAt = now
	return &reg, nil
}

// PromoteWaitlisted moves the registration that waits the longest to "registered" if the event has a free seat
func (r *RegistrationRepo) PromoteWaitlisted(eventID string) (*models.Registration, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	capacity, err := eventCapacity(tx, eventID)
	if err != nil {
		return nil, repos.DoRollback(tx, err)
	}
	seats, err := repos.CountSeatsTx(tx, eventID)
	if err != nil {
		return nil, repos.DoRollback(tx, err)
	}
	if seats >= capacity {
		return nil, repos.DoRollback(tx, nil)
	}
	var reg models.Registration
	query := `SELECT ` + registrationFields + ` FROM Registrations WHERE eventId = ? AND status = ?
        ORDER BY updatedAt ASC, id ASC LIMIT 1`
	if err = tx.Get(&reg, query, eventID, models.StatusWaitlisted); err != nil {
		if err == sql.ErrNoRows {
			// Nobody is waiting
			err = nil
		}
		return nil, repos.DoRollback(tx, err)
	}
	now := time.Now().UTC()
	if _, err = tx.Exec(`UPDATE Registrations SET status = ?, updatedAt = ? WHERE id = ?`,
		models.StatusRegistered, now, reg.ID); err != nil {
		return nil, repos.DoRollback(tx, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		log.FldRegistration: reg.ID,
		log.FldEvent:        eventID,
	}).Info("Promoted waitlisted registration")
	reg.Status = models.StatusRegistered
	reg.UpdatedAt = now
	return &reg, nil
}

// GetByID returns the registration with the given ID
func (r *RegistrationRepo) GetByID(id string) (*models.Registration, error) {
	return r.getOne(`SELECT `+registrationFields+` FROM Registrations WHERE id = ?`, id)
}

// GetByUserAndEvent returns the registration of the given user for the given event
func (r *RegistrationRepo) GetByUserAndEvent(userID, eventID string) (*models.Registration, error) {
	return r.getOne(`SELECT `+registrationFields+` FROM Registrations WHERE userId = ? AND eventId = ?`,
		userID, eventID)
}

func (r *RegistrationRepo) getOne(query string, args ...interface{}) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.Get(&reg, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &reg, nil
}

// ListByEvent returns the registrations of an event in the order they have been made - supports pagination
func (r *RegistrationRepo) ListByEvent(eventID string, offset uint, limit uint) ([]models.Registration, uint, error) {
	if limit == 0 {
		limit = 10
	}
	r.logger.WithFields(logrus.Fields{
		log.FldEvent:  eventID,
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Listing registrations")
	query := `SELECT r.id, r.userId, r.eventId, r.status, r.createdAt, r.updatedAt,
            u.name AS userName, u.email AS userEmail
        FROM Registrations r LEFT JOIN Users u ON u.id = r.userId
        WHERE r.eventId = ?
        ORDER BY r.createdAt ASC, r.id ASC LIMIT ? OFFSET ?`
	var rows []registrantRow
	if err := r.db.Select(&rows, query, eventID, limit, offset); err != nil {
		return nil, 0, err
	}
	ret := make([]models.Registration, 0, len(rows))
	for _, row := range rows {
		reg := row.Registration
		reg.User = &models.RegistrantInfo{Name: row.UserName.String, Email: row.UserEmail.String}
		ret = append(ret, reg)
	}
	var numRows uint
	if err := r.db.Get(&numRows, `SELECT COUNT(*) FROM Registrations WHERE eventId = ?`, eventID); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}

// CountSeats returns the number of seats taken for the given event
func (r *RegistrationRepo) CountSeats(eventID string) (uint, error) {
	var n uint
	err := r.db.Get(&n, `SELECT COUNT(*) FROM Registrations WHERE eventId = ? AND status IN (?, ?)`,
		eventID, models.StatusRegistered, models.StatusAttended)
	return n, err
}
