package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/ctxhelper"
	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

// How often a self-cancellation is retried when the registration changes while it is cancelled
const cancelAttempts = 3

// RegistrationService provides the functions for registering for events and for managing the registrations
type RegistrationService interface {
	// Register registers the current user for the given event. If the user already holds an active registration, it
	// is returned and created is false
	Register(ctx context.Context, eventID string) (reg *models.Registration, created bool, err error)
	// CancelOwn cancels the current user's registration for the given event
	CancelOwn(ctx context.Context, eventID string) (*models.Registration, error)
	// List returns a page of the registrations made for the given event
	List(ctx context.Context, eventID string, page Pagination) (*models.RegistrationPage, error)
	// UpdateStatus changes the status of a registration on behalf of an admin
	UpdateStatus(
		ctx context.Context,
		eventID, registrationID string,
		status models.RegistrationStatus,
	) (*models.Registration, error)
}

// -- RegistrationService implementation -------------------------------------------------------------------------------

type registrationService struct {
	repo   repos.RegistrationRepo
	events EventService
	config ConfigService
	logger *logrus.Entry
	now    func() time.Time
}

// NewRegistrationService creates a new registration service instance
func NewRegistrationService(
	repo repos.RegistrationRepo,
	events EventService,
	config ConfigService,
	logger *logrus.Entry,
) RegistrationService {
	return &registrationService{
		repo:   repo,
		events: events,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

var (
	// ErrNotLoggedIn is returned when a function needs a user, but nobody is logged in
	ErrNotLoggedIn = MakeError(http.StatusForbidden, ErrCodeNotLoggedIn, "This function needs a logged-in user")
	// ErrRegistrationNotFound is returned when the registration to work on does not exist
	ErrRegistrationNotFound = MakeError(http.StatusNotFound, ErrCodeRegistrationNotFound, "Registration does not exist")
	errEventFull            = conflict(ErrCodeEventFull, "The event is fully booked")
)

func repoError(msg string, err error) error {
	return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError, msg, err)
}

// Register registers the current user for the given event
func (s *registrationService) Register(ctx context.Context, eventID string) (*models.Registration, bool, error) {
	user := ctxhelper.User(ctx)
	if user == nil {
		return nil, false, ErrNotLoggedIn
	}
	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	existing, err := s.repo.GetByUserAndEvent(user.ID, eventID)
	switch {
	case err == nil && existing.Status != models.StatusCancelled:
		return existing, false, nil
	case err != nil && err != repos.ErrEntityNotExisting:
		return nil, false, repoError("Error while loading registration", err)
	}
	if !ev.RegistrationOpen(s.now()) {
		return nil, false, conflict(ErrCodeRegistrationClosed, "The registration deadline has passed")
	}
	policy := s.config.GetConfig(ctx).Registration
	reg, created, err := s.repo.Register(user.ID, eventID, policy.AllowWaitlist)
	switch err {
	case nil:
	case repos.ErrEntityNotExisting:
		return nil, false, eventNotFound(eventID)
	case repos.ErrEventFull:
		return nil, false, errEventFull
	default:
		return nil, false, repoError("Error while registering", err)
	}
	if created {
		ctxhelper.Logger(ctx).WithFields(logrus.Fields{
			log.FldEvent:        eventID,
			log.FldRegistration: reg.ID,
			log.FldStatus:       reg.Status,
		}).Info("User registered for event")
	}
	return reg, created, nil
}

// CancelOwn cancels the current user's registration for the given event. Cancelling twice returns the cancelled
// registration
func (s *registrationService) CancelOwn(ctx context.Context, eventID string) (*models.Registration, error) {
	user := ctxhelper.User(ctx)
	if user == nil {
		return nil, ErrNotLoggedIn
	}
	for attempt := 1; ; attempt++ {
		reg, err := s.repo.GetByUserAndEvent(user.ID, eventID)
		if err != nil {
			if err == repos.ErrEntityNotExisting {
				return nil, ErrRegistrationNotFound
			}
			return nil, repoError("Error while loading registration", err)
		}
		if reg.Status == models.StatusCancelled {
			return reg, nil
		}
		if !models.CanTransition(reg.Status, models.StatusCancelled, models.ActorRegistrant) {
			return nil, invalidTransition(reg.Status, models.StatusCancelled)
		}
		updated, err := s.repo.UpdateStatus(reg.ID, reg.Status, models.StatusCancelled)
		if err == repos.ErrStaleStatus && attempt < cancelAttempts {
			ctxhelper.Logger(ctx).WithField(log.FldAttempt, attempt).Debug("Registration changed - retrying")
			continue
		}
		if err != nil {
			return nil, s.mapUpdateError(err)
		}
		ctxhelper.Logger(ctx).WithFields(logrus.Fields{
			log.FldEvent:        eventID,
			log.FldRegistration: reg.ID,
		}).Info("User cancelled registration")
		s.afterSeatChange(ctx, eventID, reg.Status, updated.Status)
		return updated, nil
	}
}

// List returns a page of the registrations made for the given event
func (s *registrationService) List(
	ctx context.Context,
	eventID string,
	page Pagination,
) (*models.RegistrationPage, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	paging := s.config.GetConfig(ctx).Pagination
	page = page.Normalize(paging.DefaultLimit, paging.MaxLimit)
	regs, total, err := s.repo.ListByEvent(eventID, page.Offset(), page.Limit)
	if err != nil {
		return nil, repoError("Error while listing registrations", err)
	}
	return &models.RegistrationPage{
		PageInfo: models.NewPageInfo(total, page.Page, page.Limit),
		Data:     regs,
	}, nil
}

// UpdateStatus changes the status of a registration on behalf of an admin
func (s *registrationService) UpdateStatus(
	ctx context.Context,
	eventID, registrationID string,
	status models.RegistrationStatus,
) (*models.Registration, error) {
	if !status.Valid() {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue,
			fmt.Sprintf("'%s' is no registration status", status), map[string]string{"field": "status"},
		)
	}
	reg, err := s.repo.GetByID(registrationID)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, ErrRegistrationNotFound
		}
		return nil, repoError("Error while loading registration", err)
	}
	if reg.EventID != eventID {
		return nil, ErrRegistrationNotFound
	}
	if !models.CanTransition(reg.Status, status, models.ActorAdmin) {
		return nil, invalidTransition(reg.Status, status)
	}
	updated, err := s.repo.UpdateStatus(reg.ID, reg.Status, status)
	if err != nil {
		return nil, s.mapUpdateError(err)
	}
	ctxhelper.Logger(ctx).WithFields(logrus.Fields{
		log.FldRegistration: reg.ID,
		log.FldStatus:       status,
	}).Info("Registration status changed")
	s.afterSeatChange(ctx, eventID, reg.Status, updated.Status)
	return updated, nil
}

func invalidTransition(from, to models.RegistrationStatus) error {
	return conflict(ErrCodeInvalidTransition, fmt.Sprintf("A registration cannot change from '%s' to '%s'", from, to))
}

func (s *registrationService) mapUpdateError(err error) error {
	switch err {
	case repos.ErrEntityNotExisting:
		return ErrRegistrationNotFound
	case repos.ErrStaleStatus:
		return conflict(ErrCodeInvalidTransition, "The registration has been changed in the meantime")
	case repos.ErrEventFull:
		return errEventFull
	}
	return repoError("Error while updating registration", err)
}

// afterSeatChange promotes a waitlisted registration when a seat has been freed and the waitlist is enabled.
// Failing to promote does not fail the change that freed the seat
func (s *registrationService) afterSeatChange(ctx context.Context, eventID string, from, to models.RegistrationStatus) {
	if !from.HoldsSeat() || to.HoldsSeat() || !s.config.GetConfig(ctx).Registration.AllowWaitlist {
		return
	}
	if _, err := s.repo.PromoteWaitlisted(eventID); err != nil {
		ctxhelper.Logger(ctx).WithError(err).WithField(log.FldEvent, eventID).Error("Failed to promote waitlist")
	}
}
