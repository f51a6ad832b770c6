// Package migrate handles SQL database migration for the internal Eventdesk database
package migrate

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/repos"
)

var migrations []dbMigration

type dbMigration struct {
	Version uint
	Queries []string
}

// applied checks if the migration has already run successfully
func (mig *dbMigration) applied(db *sqlx.DB) (bool, error) {
	var success bool
	err := db.Get(&success, `SELECT success FROM Migrations WHERE version = ?`, mig.Version)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return success, err
}

// Execute runs the current DB migration on the given database. All queries of a migration run inside one
// transaction - a failed migration leaves the schema untouched
func (mig *dbMigration) Execute(db *sqlx.DB, logger *logrus.Entry) error {
	done, err := mig.applied(db)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch version information")
		return err
	}
	if done {
		return nil
	}
	logger.Infof("Executing DB migration #%d", mig.Version)
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	for i, query := range mig.Queries {
		logger.Debugf("Query %d of %d...", i+1, len(mig.Queries))
		if _, err := tx.Exec(query); err != nil {
			logger.WithError(err).Errorf("Query #%d failed", i+1)
			return repos.DoRollback(tx, errors.Wrapf(err, "migration #%d, query #%d", mig.Version, i+1))
		}
	}
	if _, err := tx.Exec(`REPLACE INTO Migrations(version, success) VALUES(?, 1)`, mig.Version); err != nil {
		return repos.DoRollback(tx, err)
	}
	return tx.Commit()
}

// ExecuteMigrationsOnDb executes the database migrations on the given database instance
func ExecuteMigrationsOnDb(db *sqlx.DB, logger *logrus.Entry) error {
	// Create the migrations table if it does not exist, yet
	query := `CREATE TABLE IF NOT EXISTS Migrations (
                version   INTEGER NOT NULL,
                success   INTEGER NOT NULL DEFAULT 0,
                PRIMARY KEY(version)
            )`
	if _, err := db.Exec(query); err != nil {
		logger.WithError(err).Error("Failed to create migrations table")
		return err
	}
	for _, mig := range migrations {
		if err := mig.Execute(db, logger); err != nil {
			logger.WithError(err).Errorf("Failed to execute migration #%d", mig.Version)
			return err
		}
	}
	return nil
}

// For now, the migrations are part of the package...
func init() {
	migrations = []dbMigration{
		{
			Version: 1,
			Queries: []string{
				`CREATE TABLE "Users" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    name VARCHAR(64) NOT NULL UNIQUE,
                    email VARCHAR(255) NOT NULL DEFAULT '',
                    passwordHash VARCHAR(128) NOT NULL DEFAULT '',
                    fullName VARCHAR(128) NOT NULL DEFAULT '',
                    role VARCHAR(16) NOT NULL DEFAULT 'member',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Events" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    title VARCHAR(100) NOT NULL DEFAULT '',
                    description TEXT NOT NULL DEFAULT '',
                    location VARCHAR(100) NOT NULL DEFAULT '',
                    category VARCHAR(64) NOT NULL DEFAULT '',
                    posterUrl VARCHAR(1024) NOT NULL DEFAULT '',
                    startTime DATETIME NOT NULL,
                    endTime DATETIME NOT NULL,
                    registrationDeadline DATETIME NOT NULL,
                    capacity INTEGER NOT NULL DEFAULT 1,
                    createdBy VARCHAR(36) NOT NULL DEFAULT '',
                    version INTEGER NOT NULL DEFAULT 1,
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
                );`,
				`CREATE TABLE "Registrations" (
                    id VARCHAR(36) NOT NULL PRIMARY KEY,
                    userId VARCHAR(36) NOT NULL,
                    eventId VARCHAR(36) NOT NULL,
                    status VARCHAR(16) NOT NULL DEFAULT 'registered',
                    createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    UNIQUE(userId, eventId)
                );`,
				`CREATE INDEX idx_event_start ON Events (startTime ASC);`,
				`CREATE INDEX idx_registration_event ON Registrations (eventId ASC, status ASC);`,
			},
		},
	}
}
