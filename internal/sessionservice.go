package internal

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

// SessionService provides functions for interacting with a user's session
type SessionService interface {
	// SignUp creates a new member account
	SignUp(ctx context.Context, req SignUpRequest) (*models.User, error)
	// Login tries to log-in the user with the given credentials and returns the info about the created session if login
	// was successful
	Login(ctx context.Context, user string, password string) (*SessionInfo, error)
	// Logout logs out a currently active session
	Logout(ctx context.Context, sessionID string) error
	// WhoAmI returns information about the current session
	WhoAmI(ctx context.Context, sessionID string) (*SessionInfo, error)
	// GetContents returns the session and user data associated with the given session ID
	// This service function will be used internally and does not have an endpoint
	GetContents(ctx context.Context, sessionID string, extendExpiry bool) (*models.Session, *models.User, error)
	// EnsureDefaultAdmin creates the configured admin account if there is no user with its name, yet
	EnsureDefaultAdmin(ctx context.Context, conf models.DefaultAdminConfig) error
}

// SignUpRequest is sent by users creating an account
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"max=128"`
}

// -- Session service implementation -----------------------------------------------------------------------------------

// SessionInfo is a session information object that is returned upon login. It contains both, the session ID and
// information about the user that is logged in
type SessionInfo struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserFullName string `json:"userFullName"`
	Role         string `json:"role"`
}

type sessionService struct {
	logger   *logrus.Entry
	sessions repos.SessionRepo
	users    repos.UserRepo
	validate *validator.Validate
}

// NewSessionService creates a new session service instance with the provided repositories
func NewSessionService(sr repos.SessionRepo, ur repos.UserRepo, logger *logrus.Entry) SessionService {
	return &sessionService{
		logger:   logger,
		sessions: sr,
		users:    ur,
		validate: newValidator(),
	}
}

// makeSessionInfo creates a session info object from the given session and user data
func makeSessionInfo(sess *models.Session, user *models.User) *SessionInfo {
	return &SessionInfo{
		SessionID:    sess.ID,
		UserID:       user.ID,
		UserName:     user.Name,
		UserFullName: user.FullName,
		Role:         user.Role,
	}
}

func normalizeUserName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SignUp creates a new member account
func (s *sessionService) SignUp(ctx context.Context, req SignUpRequest) (*models.User, error) {
	req.Name = normalizeUserName(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = normalizeText(req.FullName)
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}
	u := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		FullName: req.FullName,
		Role:     models.RoleMember,
	}
	if err := u.SetPassword(req.Password); err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeUnknown, "Failed to set password", err)
	}
	switch err := s.users.Create(u); err {
	case nil:
	case repos.ErrDuplicate:
		return nil, conflict(ErrCodeUserExists, "A user with this name does already exist")
	default:
		s.logger.WithError(err).Error("Failed to create user")
		return nil, repoError("Failed to create user", err)
	}
	s.logger.WithField(log.FldUser, u.ID).Info("New user signed up")
	return u, nil
}

// Login tries to log-in the user with the given credentials and returns the info about the created session if login
// was successful
func (s *sessionService) Login(ctx context.Context, user string, password string) (*SessionInfo, error) {
	u, err := s.users.GetByCredentials(normalizeUserName(user), password)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusForbidden, ErrCodeLoginFailed, "Login failed")
		}
		s.logger.WithError(err).Error("Failed to load user data for auth")
		return nil, MakeError(http.StatusInternalServerError, ErrCodeRepoError, "Failed to authenticate user")
	}
	sess, err := s.sessions.CreateFor(u.ID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create session")
		return nil, MakeError(http.StatusInternalServerError, ErrCodeRepoError, "Failed to create session")
	}
	return makeSessionInfo(sess, u), nil
}

// Logout logs out a currently active session
func (s *sessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		s.logger.WithError(err).Error("Failed to delete session")
		return MakeError(http.StatusInternalServerError, ErrCodeRepoError, "Failed to logout. Error in the data store")
	}
	return nil
}

// WhoAmI returns information about the current session
func (s *sessionService) WhoAmI(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, u, err := s.GetContents(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	if sess == nil || u == nil {
		return nil, ErrNotLoggedIn
	}
	return makeSessionInfo(sess, u), nil
}

// GetContents returns the session and user data associated with the given session ID. Unknown sessions return
// no error, but nil values
func (s *sessionService) GetContents(
	ctx context.Context,
	sessionID string,
	extendExpiry bool,
) (*models.Session, *models.User, error) {
	sess, err := s.sessions.GetByID(sessionID, extendExpiry)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, nil, nil
		}
		s.logger.WithError(err).Error("Failed to retrieve session from repo")
		return nil, nil, MakeError(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Failed to retrieve session information from storage",
		)
	}
	u, err := s.users.GetByID(sess.UserID)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, nil, nil
		}
		s.logger.WithError(err).Error("Failed to retrieve user data from repo")
		return nil, nil, MakeError(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Failed to retrieve user information from storage",
		)
	}
	return sess, u, nil
}

// EnsureDefaultAdmin creates the configured admin account if there is no user with its name, yet. An existing
// account is left untouched
func (s *sessionService) EnsureDefaultAdmin(ctx context.Context, conf models.DefaultAdminConfig) error {
	name := normalizeUserName(conf.Name)
	_, err := s.users.GetByName(name)
	if err == nil {
		return nil
	}
	if err != repos.ErrEntityNotExisting {
		return err
	}
	u := &models.User{
		Name:     name,
		Email:    conf.Email,
		FullName: conf.Name,
		Role:     models.RoleAdmin,
	}
	if err = u.SetPassword(conf.Password); err != nil {
		return err
	}
	if err = s.users.Create(u); err != nil {
		return err
	}
	s.logger.WithField(log.FldUser, u.ID).Infof("Created admin user '%s'", u.Name)
	return nil
}
