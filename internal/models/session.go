package models

import (
	"time"
)

// Session contains data about an active API session
type Session struct {
	// The session ID (the API key that identifies this session)
	ID string
	// The ID of the user that has logged-in for this session
	UserID string
	// When will the session expire?
	ExpiresAt time.Time
}

// Expired checks if the session has already expired
func (s *Session) Expired() bool {
	return s.ExpiresAt.Before(time.Now())
}
