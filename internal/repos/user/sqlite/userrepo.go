// Package sqlite provides a user repository that stores the user accounts inside a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

const (
	// The field names in the user table
	fieldNames = `id, name, email, passwordHash, fullName, role, createdAt, updatedAt`
)

// UserRepo implements repos.UserRepo and stores the users inside a SQLite database
type UserRepo struct {
	logger *logrus.Entry
	db     *sqlx.DB
}

// New creates a new UserRepo
func New(db *sqlx.DB, logger *logrus.Entry) *UserRepo {
	return &UserRepo{logger, db}
}

// Create creates a new user. Names are unique - creating a second user with the same name fails with
// repos.ErrDuplicate
func (r *UserRepo) Create(u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.logger.WithFields(logrus.Fields{log.FldID: u.ID, "name": u.Name}).Debug("Creating user")
	query := fmt.Sprintf(`INSERT INTO Users(%s) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`, fieldNames)
	_, err := r.db.Exec(query, u.ID, u.Name, u.Email, u.PasswordHash, u.FullName, u.Role, u.CreatedAt, u.UpdatedAt)
	if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return repos.ErrDuplicate
	}
	return err
}

// GetByID returns the user with the given ID
func (r *UserRepo) GetByID(id string) (*models.User, error) {
	return r.getOne(`id = ?`, id)
}

// GetByName returns the user with the given login name
func (r *UserRepo) GetByName(name string) (*models.User, error) {
	return r.getOne(`name = ?`, name)
}

func (r *UserRepo) getOne(where string, arg interface{}) (*models.User, error) {
	var u models.User
	if err := r.db.Get(&u, fmt.Sprintf(`SELECT %s FROM Users WHERE %s`, fieldNames, where), arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &u, nil
}

// GetByCredentials returns the user which has the given username and password - this is used for login
func (r *UserRepo) GetByCredentials(username string, password string) (*models.User, error) {
	u, err := r.GetByName(username)
	if err != nil {
		return nil, err
	}
	if u.CheckPassword(password) != nil {
		return nil, repos.ErrEntityNotExisting
	}
	return u, nil
}
