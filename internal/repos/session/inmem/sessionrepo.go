// Package inmem provides a session repository that holds the session data in-memory
package inmem

import (
	"time"

	"github.com/google/uuid"

	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

const (
	// DefaultExpiry is how long a session lasts after the last update
	DefaultExpiry = 60 * time.Minute
)

// sessionRequest is a generic session request that can be sent over one of the repo's channels to execute functions
// inside the control goroutine
type sessionRequest struct {
	sessionID string
	userID    string
	extend    bool
	answer    chan<- sessionResponse
}

// sessionResponse is a generic response to a session request that contains the answer to the request made
type sessionResponse struct {
	session *models.Session
	err     error
}

// SessionRepo is a session repository that stores the session data in-memory
type SessionRepo struct {
	expiry time.Duration
	// make is a channel to trigger session creation
	make chan<- sessionRequest
	// get is a channel to request a session by ID (and to extend it optionally)
	get chan<- sessionRequest
	// del is a channel to request a session to be deleted
	del chan<- sessionRequest
	// done stops the control goroutine
	done chan struct{}
}

// New creates a new session repository instance using the default session expiry
func New() *SessionRepo {
	return NewWithExpiry(DefaultExpiry)
}

// NewWithExpiry creates a new session repository instance whose sessions expire after the given idle time
func NewWithExpiry(expiry time.Duration) *SessionRepo {
	repo := &SessionRepo{expiry: expiry, done: make(chan struct{})}
	// Spin up the control goroutine
	m := make(chan sessionRequest)
	g := make(chan sessionRequest)
	d := make(chan sessionRequest)
	go repo.control(m, g, d)
	repo.make = m
	repo.get = g
	repo.del = d
	return repo
}

// Close stops the control goroutine. The repository must not be used afterwards
func (r *SessionRepo) Close() {
	close(r.done)
}

// control is the control goroutine that runs until the repo is closed, waiting for requests for managing sessions
func (r *SessionRepo) control(make <-chan sessionRequest, get <-chan sessionRequest, del <-chan sessionRequest) {
	sessions := map[string]*models.Session{}
	// Purge all expired sessions all ~1 minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	purge := ticker.C
	for {
		select {
		case <-r.done:
			return
		case req := <-make:
			sess := models.Session{
				ID:        uuid.NewString(),
				UserID:    req.userID,
				ExpiresAt: time.Now().Add(r.expiry),
			}
			sessions[sess.ID] = &sess
			copy := sess
			req.answer <- sessionResponse{session: &copy}
		case req := <-get:
			sess, ok := sessions[req.sessionID]
			switch {
			case !ok:
				req.answer <- sessionResponse{err: repos.ErrEntityNotExisting}
			case sess.Expired():
				delete(sessions, req.sessionID)
				req.answer <- sessionResponse{err: repos.ErrEntityNotExisting}
			default:
				if req.extend {
					sess.ExpiresAt = time.Now().Add(r.expiry)
				}
				copy := *sess
				req.answer <- sessionResponse{session: &copy}
			}
		case req := <-del:
			delete(sessions, req.sessionID)
			req.answer <- sessionResponse{}
		case <-purge:
			for key, sess := range sessions {
				if sess.Expired() {
					delete(sessions, key)
				}
			}
		}
	}
}

func send(sessionID string, userID string, extend bool, channel chan<- sessionRequest) sessionResponse {
	answer := make(chan sessionResponse)
	channel <- sessionRequest{
		sessionID: sessionID,
		userID:    userID,
		extend:    extend,
		answer:    answer,
	}
	return <-answer
}

// CreateFor creates a new session for the given user ID
func (r *SessionRepo) CreateFor(userID string) (*models.Session, error) {
	resp := send("", userID, false, r.make)
	return resp.session, resp.err
}

// GetByID returns the session associated with the given session ID and extends it's expiry if requested
func (r *SessionRepo) GetByID(sessionID string, extend bool) (*models.Session, error) {
	resp := send(sessionID, "", extend, r.get)
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.session, nil
}

// Delete removes a session from the session storage
func (r *SessionRepo) Delete(sessionID string) error {
	return send(sessionID, "", false, r.del).err
}
