// Package repos contains the repository interfaces needed in Eventdesk
// It exists to prevent circular dependencies between the services and the repo implementations
package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/derWhity/eventdesk/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("cannot update: Entity does not exist")
	// ErrVersionMismatch is returned when an entity has been changed since the version the update is based on
	ErrVersionMismatch = fmt.Errorf("cannot update: Entity has been modified in the meantime")
	// ErrCapacityTooLow is returned when an event's capacity would drop below the number of seats already taken
	ErrCapacityTooLow = fmt.Errorf("cannot update: Capacity is lower than the number of seats taken")
	// ErrEventFull is returned when a registration needs a seat, but there is none left
	ErrEventFull = fmt.Errorf("no seat left")
	// ErrStaleStatus is returned when the status of a registration is not the one the change is based on
	ErrStaleStatus = fmt.Errorf("cannot update: Registration status has changed in the meantime")
	// ErrDuplicate is returned when an entity violates a uniqueness constraint
	ErrDuplicate = fmt.Errorf("cannot create: Entity already exists")
)

// EventRepo defines a repository that handles storing and querying events
type EventRepo interface {
	// Create creates a new event
	Create(ev *models.Event) error
	// Update updates the given event if it is still at the expected version and its capacity covers the seats taken
	Update(ev *models.Event, expectedVersion uint) error
	// Delete removes the given event together with its registrations
	Delete(id string) error
	// GetByID returns the Event with the given ID
	GetByID(id string) (*models.Event, error)
	// List returns the events ordered by their start time - supports pagination
	List(offset uint, limit uint) ([]models.Event, uint, error)
}

// RegistrationRepo defines a repository that stores the registrations of users for events
type RegistrationRepo interface {
	// Register registers the user for the event. If the user already holds an active registration, it is returned
	// unchanged and created is false. A cancelled registration is re-activated
	Register(userID, eventID string, allowWaitlist bool) (reg *models.Registration, created bool, err error)
	// UpdateStatus moves the registration from one status to another one
	UpdateStatus(id string, from, to models.RegistrationStatus) (*models.Registration, error)
	// PromoteWaitlisted moves the oldest waitlisted registration of the event to "registered" if there is a free seat.
	// Returns nil if nothing has been promoted
	PromoteWaitlisted(eventID string) (*models.Registration, error)
	// GetByID returns the registration with the given ID
	GetByID(id string) (*models.Registration, error)
	// GetByUserAndEvent returns the registration of the given user for the given event
	GetByUserAndEvent(userID, eventID string) (*models.Registration, error)
	// ListByEvent returns the registrations of an event including the registrants' info - supports pagination
	ListByEvent(eventID string, offset uint, limit uint) ([]models.Registration, uint, error)
	// CountSeats returns the number of seats taken for the given event
	CountSeats(eventID string) (uint, error)
}

// UserRepo defines a repository that is able to store, query and authenticate users
type UserRepo interface {
	// Create creates a new user
	Create(u *models.User) error
	// GetByID returns the user with the given ID
	GetByID(id string) (*models.User, error)
	// GetByName returns the user with the given login name
	GetByName(name string) (*models.User, error)
	// GetByCredentials returns the user which has the given username and password - this is used for login
	GetByCredentials(username string, password string) (*models.User, error)
}

// SessionRepo stores information about active API sessions
type SessionRepo interface {
	// CreateFor creates a new session for the given user ID
	CreateFor(userID string) (*models.Session, error)
	// GetByID returns the session associated with the given session ID and extends it's expiry if requested
	GetByID(sessionID string, extend bool) (*models.Session, error)
	// Delete removes a session from the session storage
	Delete(sessionID string) error
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}

// CountSeatsTx counts the seats taken for an event inside the given transaction
func CountSeatsTx(tx *sqlx.Tx, eventID string) (uint, error) {
	var n uint
	err := tx.Get(&n, `SELECT COUNT(*) FROM Registrations WHERE eventId = ? AND status IN (?, ?)`,
		eventID, models.StatusRegistered, models.StatusAttended)
	return n, err
}
