package models

import (
	"fmt"
	"time"

	"github.com/elithrar/simple-scrypt"
)

const (
	// RoleAdmin is the role of users that may manage events and registrations
	RoleAdmin = "admin"
	// RoleMember is the role of regular users that can only register for events
	RoleMember = "member"
)

// User defines a user of the application - either an admin or a member registering for events
type User struct {
	// Internal user ID
	ID string `db:"id" json:"id"`
	// The user name used to log-in
	Name string `db:"name" json:"name"`
	// E-Mail address shown to admins in registration lists
	Email string `db:"email" json:"email"`
	// The hashed password for authentication
	PasswordHash string `db:"passwordHash" json:"-"`
	// The full user name for display reasons
	FullName string `db:"fullName" json:"fullName"`
	// Either RoleAdmin or RoleMember
	Role string `db:"role" json:"role"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// IsAdmin checks if the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SetPassword sets a new password creating a password hash from the incoming password and storing it in the user's
// PasswordHash property
func (u *User) SetPassword(pass string) error {
	hash, err := scrypt.GenerateFromPassword([]byte(pass), scrypt.DefaultParams)
	if err != nil {
		return fmt.Errorf("SetPassword: Error during password hashing: %v", err)
	}
	// The library already uses a string encoding here - so there is no need to encode further
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword checks if the given password corresponds to the hash stored in the user struct.
// It returns an error if the password does not match or an error occurs when loading the password hash from the user
func (u *User) CheckPassword(pass string) error {
	return scrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pass))
}
