package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/ctxhelper"
	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
	"github.com/derWhity/eventdesk/internal/repos"
)

// EventService provides service functions for working with events
type EventService interface {
	// List returns a page of events ordered by their start time
	List(ctx context.Context, page Pagination) (*models.EventPage, error)
	// Get returns the event with the given ID
	Get(ctx context.Context, id string) (*models.Event, error)
	// Create validates the payload and stores it as new event
	Create(ctx context.Context, payload models.EventPayload) (*models.Event, error)
	// Update applies the patch to an existing event. The resulting event must still be valid
	Update(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error)
	// Delete removes the event and all registrations made for it
	Delete(ctx context.Context, id string) error
}

// -- EventService implementation --------------------------------------------------------------------------------------

type eventService struct {
	repo     repos.EventRepo
	config   ConfigService
	validate *validator.Validate
	logger   *logrus.Entry
	now      func() time.Time
}

// NewEventService creates a new event service instance
func NewEventService(repo repos.EventRepo, config ConfigService, logger *logrus.Entry) EventService {
	return &eventService{
		repo:     repo,
		config:   config,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

func eventNotFound(id string) error {
	return MakeError(http.StatusNotFound, ErrCodeEventNotFound, fmt.Sprintf("Event '%s' does not exist", id))
}

// withStatus derives the event's status from the current time
func (s *eventService) withStatus(ev *models.Event) *models.Event {
	ev.Status = ev.StatusAt(s.now())
	return ev
}

// List returns a page of events ordered by their start time
func (s *eventService) List(ctx context.Context, page Pagination) (*models.EventPage, error) {
	paging := s.config.GetConfig(ctx).Pagination
	page = page.Normalize(paging.DefaultLimit, paging.MaxLimit)
	events, total, err := s.repo.List(page.Offset(), page.Limit)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError, "Error while listing events", err)
	}
	for i := range events {
		s.withStatus(&events[i])
	}
	return &models.EventPage{
		PageInfo: models.NewPageInfo(total, page.Page, page.Limit),
		Data:     events,
	}, nil
}

// Get returns the event with the given ID
func (s *eventService) Get(ctx context.Context, id string) (*models.Event, error) {
	ev, err := s.repo.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, eventNotFound(id)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event '%s'", id), err,
		)
	}
	return s.withStatus(ev), nil
}

func normalizePayload(p *models.EventPayload) {
	p.Title = normalizeText(p.Title)
	p.Description = normalizeText(p.Description)
	p.Location = normalizeText(p.Location)
	p.Category = normalizeText(p.Category)
	p.PosterURL = normalizeText(p.PosterURL)
	p.StartTime = p.StartTime.UTC()
	p.EndTime = p.EndTime.UTC()
	p.RegistrationDeadline = p.RegistrationDeadline.UTC()
}

// Create validates the payload and stores it as new event
func (s *eventService) Create(ctx context.Context, payload models.EventPayload) (*models.Event, error) {
	normalizePayload(&payload)
	if err := validateStruct(s.validate, payload); err != nil {
		return nil, err
	}
	ev := &models.Event{}
	patch := payload.Patch()
	patch.ApplyTo(ev)
	if u := ctxhelper.User(ctx); u != nil {
		ev.CreatedBy = u.ID
	}
	if err := s.repo.Create(ev); err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError, "Error while creating event", err)
	}
	ctxhelper.Logger(ctx).WithField(log.FldEvent, ev.ID).Info("Event created")
	return s.withStatus(ev), nil
}

// Update applies the patch to an existing event. If the patch carries a version, the update is rejected when the
// event has been changed since
func (s *eventService) Update(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := ev.Version
	if patch.Version != nil && *patch.Version != expected {
		return nil, conflict(ErrCodeEventModified, "The event has been modified in the meantime")
	}
	patch.ApplyTo(ev)
	payload := models.PayloadOf(ev)
	normalizePayload(&payload)
	if err := validateStruct(s.validate, payload); err != nil {
		return nil, err
	}
	normalized := payload.Patch()
	normalized.ApplyTo(ev)
	switch err := s.repo.Update(ev, expected); err {
	case nil:
	case repos.ErrEntityNotExisting:
		return nil, eventNotFound(id)
	case repos.ErrVersionMismatch:
		return nil, conflict(ErrCodeEventModified, "The event has been modified in the meantime")
	case repos.ErrCapacityTooLow:
		return nil, conflict(ErrCodeCapacityTooLow, "Capacity must not be lower than the number of seats taken")
	default:
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while updating event '%s'", id), err,
		)
	}
	ctxhelper.Logger(ctx).WithFields(logrus.Fields{
		log.FldEvent:   ev.ID,
		log.FldVersion: ev.Version,
	}).Info("Event updated")
	return s.withStatus(ev), nil
}

// Delete removes an existing event from the repository
func (s *eventService) Delete(ctx context.Context, id string) error {
	switch err := s.repo.Delete(id); err {
	case nil:
	case repos.ErrEntityNotExisting:
		return eventNotFound(id)
	default:
		return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while deleting event '%s'", id), err,
		)
	}
	ctxhelper.Logger(ctx).WithField(log.FldEvent, id).Info("Event deleted")
	return nil
}
