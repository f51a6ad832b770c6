// Package admin contains the admin event panel: the UI state behind listing, editing and deleting events and
// working on their registrations
package admin

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/eventdesk/internal/client"
	"github.com/derWhity/eventdesk/internal/form"
	"github.com/derWhity/eventdesk/internal/log"
	"github.com/derWhity/eventdesk/internal/models"
)

// Mode is the view the panel currently shows
type Mode int

const (
	// ModeClosed shows the event list only
	ModeClosed Mode = iota
	// ModeCreating shows the form for a new event
	ModeCreating
	// ModeEditing shows the form for an existing event
	ModeEditing
	// ModeViewingRegistrations shows the registrations of an event
	ModeViewingRegistrations
)

func (m Mode) String() string {
	switch m {
	case ModeCreating:
		return "creating"
	case ModeEditing:
		return "editing"
	case ModeViewingRegistrations:
		return "viewingRegistrations"
	}
	return "closed"
}

// DefaultPageSize is the number of events and registrations shown per page
const DefaultPageSize = 10

var (
	// ErrNotEditing is returned when form operations are used while no form is open
	ErrNotEditing = errors.New("no event form is open")
	// ErrInvalidForm is returned by Save when the form has failed validation
	ErrInvalidForm = errors.New("the form contains invalid values")
	// ErrNothingToDelete is returned when a deletion is confirmed that has never been requested
	ErrNothingToDelete = errors.New("no deletion has been requested")
	// ErrNotViewingRegistrations is returned when registration actions are used outside the registration view
	ErrNotViewingRegistrations = errors.New("no registration list is open")
	// ErrUnknownRegistration is returned for registrations not shown in the current list
	ErrUnknownRegistration = errors.New("the registration is not part of the current list")
	// ErrActionUnavailable is returned for status actions not offered for the registration's status
	ErrActionUnavailable = errors.New("the action is not available for this registration")
	// ErrViewChanged is returned when the view has been left while a request was running. Its result is dropped
	ErrViewChanged = errors.New("the view has changed while loading")
)

// QueryLayer is the access to events and registrations the panel needs
type QueryLayer interface {
	ListEvents(ctx context.Context, page, limit uint) (*models.EventPage, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, payload models.EventPayload) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListRegistrations(ctx context.Context, eventID string, page, limit uint) (*models.RegistrationPage, error)
	UpdateRegistrationStatus(
		ctx context.Context,
		eventID, registrationID string,
		status models.RegistrationStatus,
	) (*models.Registration, error)
}

// NoticeKind classifies the message shown to the admin
type NoticeKind int

const (
	// NoticeSuccess confirms a finished operation
	NoticeSuccess NoticeKind = iota
	// NoticeError reports a failed operation
	NoticeError
	// NoticeNotFound reports that the event worked on does not exist anymore
	NoticeNotFound
)

// Notice is a message shown to the admin after an operation
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Form field names of the event form keyed by the field names the server reports errors for
var serverFields = map[string]string{
	"title":                 form.FieldTitle,
	"description":           form.FieldDescription,
	"location":              form.FieldLocation,
	"category":              form.FieldCategory,
	"capacity":              form.FieldCapacity,
	"poster_url":            form.FieldPosterURL,
	"start_time":            form.FieldStartTime,
	"end_time":              form.FieldEndTime,
	"registration_deadline": form.FieldRegistrationDeadline,
}

// Panel is the admin event panel. All methods may be called from different goroutines - requests run without
// holding the panel's lock and their results are dropped when the view has changed in the meantime
type Panel struct {
	queries   QueryLayer
	converter *form.Converter
	logger    *logrus.Entry
	pageSize  uint

	mtx sync.Mutex
	// Incremented whenever the view is left
	generation    uint64
	mode          Mode
	events        []models.Event
	eventPage     models.PageInfo
	current       *models.Event
	values        form.Values
	fieldErrors   map[string]string
	notice        *Notice
	pendingDelete string
	registrations []models.Registration
	regPage       models.PageInfo
}

// New creates a panel working on the given query layer. Date/time values are edited in the converter's time zone
func New(queries QueryLayer, converter *form.Converter, logger *logrus.Entry) *Panel {
	if converter == nil {
		converter = form.NewConverter(nil)
	}
	return &Panel{
		queries:     queries,
		converter:   converter,
		logger:      logger,
		pageSize:    DefaultPageSize,
		eventPage:   models.PageInfo{Page: 1},
		fieldErrors: map[string]string{},
	}
}

// -- State ------------------------------------------------------------------------------------------------------------

// Mode returns the view currently shown
func (p *Panel) Mode() Mode {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.mode
}

// Events returns the events of the current list page
func (p *Panel) Events() []models.Event {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return append([]models.Event(nil), p.events...)
}

// EventPage returns the paging information of the event list
func (p *Panel) EventPage() models.PageInfo {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.eventPage
}

// Current returns the event edited or viewed. It is nil while creating or when the panel is closed
func (p *Panel) Current() *models.Event {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.current == nil {
		return nil
	}
	ev := *p.current
	return &ev
}

// Values returns the current values of the event form
func (p *Panel) Values() form.Values {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.values
}

// FieldErrors returns the messages of the form fields that failed validation
func (p *Panel) FieldErrors() map[string]string {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	ret := make(map[string]string, len(p.fieldErrors))
	for k, v := range p.fieldErrors {
		ret[k] = v
	}
	return ret
}

// Notice returns the message of the last operation - or nil
func (p *Panel) Notice() *Notice {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.notice
}

// PendingDelete returns the ID of the event waiting for the deletion to be confirmed
func (p *Panel) PendingDelete() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.pendingDelete
}

// Registrations returns the registrations shown in the registration view
func (p *Panel) Registrations() []models.Registration {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return append([]models.Registration(nil), p.registrations...)
}

// RegistrationPage returns the paging information of the registration list
func (p *Panel) RegistrationPage() models.PageInfo {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.regPage
}

// -- Helpers ----------------------------------------------------------------------------------------------------------

// stale checks if a request result must be dropped. Must be called with the lock held
func (p *Panel) stale(ctx context.Context, generation uint64) bool {
	return ctx.Err() != nil || p.generation != generation
}

// failure converts an error of the query layer into the notice shown. Must be called with the lock held
func (p *Panel) failure(err error) {
	switch {
	case client.ErrorCode(err) == client.CodeEventNotFound:
		p.notice = &Notice{NoticeNotFound, "The event does not exist anymore"}
	case client.ErrorCode(err) == client.CodeRegistrationNotFound:
		p.notice = &Notice{NoticeNotFound, "The registration does not exist anymore"}
	case client.ErrorCode(err) != "":
		p.notice = &Notice{NoticeError, messageOf(err)}
	default:
		p.notice = &Notice{NoticeError, "The server could not be reached. Please try again"}
	}
}

func messageOf(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// leave resets everything belonging to the form and the registration view. Must be called with the lock held
func (p *Panel) leave() {
	p.generation++
	p.mode = ModeClosed
	p.current = nil
	p.values = form.Values{}
	p.fieldErrors = map[string]string{}
	p.registrations = nil
	p.regPage = models.PageInfo{}
}

// -- Event list -------------------------------------------------------------------------------------------------------

// Refresh reloads the current page of the event list
func (p *Panel) Refresh(ctx context.Context) error {
	p.mtx.Lock()
	page := p.eventPage.Page
	p.mtx.Unlock()
	return p.loadPage(ctx, page)
}

// NextPage shows the next page of the event list
func (p *Panel) NextPage(ctx context.Context) error {
	p.mtx.Lock()
	page := p.eventPage.Page
	last := p.eventPage.TotalPages
	p.mtx.Unlock()
	if page >= last {
		return nil
	}
	return p.loadPage(ctx, page+1)
}

// PrevPage shows the previous page of the event list
func (p *Panel) PrevPage(ctx context.Context) error {
	p.mtx.Lock()
	page := p.eventPage.Page
	p.mtx.Unlock()
	if page <= 1 {
		return nil
	}
	return p.loadPage(ctx, page-1)
}

func (p *Panel) loadPage(ctx context.Context, page uint) error {
	if page == 0 {
		page = 1
	}
	res, err := p.queries.ListEvents(ctx, page, p.pageSize)
	if err == nil && len(res.Data) == 0 && page > 1 && res.TotalPages > 0 && page > res.TotalPages {
		// The page has vanished - e.g. after deleting the last event on it
		res, err = p.queries.ListEvents(ctx, res.TotalPages, p.pageSize)
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		p.failure(err)
		return err
	}
	p.events = res.Data
	p.eventPage = res.PageInfo
	return nil
}

// -- Event form -------------------------------------------------------------------------------------------------------

// OpenCreate opens an empty form for a new event
func (p *Panel) OpenCreate() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.leave()
	p.mode = ModeCreating
	p.values = p.converter.ToFormValues(nil)
	p.notice = nil
}

// OpenEdit loads the event and opens the form for it
func (p *Panel) OpenEdit(ctx context.Context, id string) error {
	p.mtx.Lock()
	p.leave()
	generation := p.generation
	p.mtx.Unlock()

	ev, err := p.queries.GetEvent(ctx, id)

	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.stale(ctx, generation) {
		return ErrViewChanged
	}
	if err != nil {
		p.failure(err)
		return err
	}
	p.mode = ModeEditing
	p.current = ev
	p.values = p.converter.ToFormValues(ev)
	p.notice = nil
	return nil
}

// SetField changes a single value of the open form and validates it
func (p *Panel) SetField(name, value string) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.mode != ModeCreating && p.mode != ModeEditing {
		return ErrNotEditing
	}
	if err := p.values.Set(name, value); err != nil {
		return err
	}
	if msg := p.converter.ValidateField(name, p.values); msg != "" {
		p.fieldErrors[name] = msg
	} else {
		delete(p.fieldErrors, name)
	}
	return nil
}

// Save validates the form and sends it to the server. On success the form is closed and the list reloaded. On
// failure the form stays open with all values kept
func (p *Panel) Save(ctx context.Context) error {
	p.mtx.Lock()
	mode := p.mode
	values := p.values
	var existing *models.Event
	if p.current != nil {
		ev := *p.current
		existing = &ev
	}
	generation := p.generation
	if mode != ModeCreating && mode != ModeEditing {
		p.mtx.Unlock()
		return ErrNotEditing
	}
	if errs := p.converter.ValidateAll(values); len(errs) > 0 {
		p.fieldErrors = errs
		p.notice = &Notice{NoticeError, "Please correct the marked fields"}
		p.mtx.Unlock()
		return ErrInvalidForm
	}
	p.fieldErrors = map[string]string{}
	p.mtx.Unlock()

	var payload models.EventPayload
	var err error
	if mode == ModeCreating {
		payload, err = p.converter.FromFormValues(values, nil)
	} else {
		payload, err = p.converter.ForUpdate(values, existing)
	}
	if err != nil {
		p.mtx.Lock()
		p.notice = &Notice{NoticeError, err.Error()}
		p.mtx.Unlock()
		return err
	}

	var saved *models.Event
	if mode == ModeCreating {
		saved, err = p.queries.CreateEvent(ctx, payload)
	} else {
		saved, err = p.queries.UpdateEvent(ctx, payload.ID, payload.Patch())
	}

	p.mtx.Lock()
	if p.stale(ctx, generation) {
		p.mtx.Unlock()
		return ErrViewChanged
	}
	if err != nil {
		p.failure(err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			for field, msg := range apiErr.FieldErrors() {
				if name, ok := serverFields[field]; ok {
					p.fieldErrors[name] = msg
				}
			}
		}
		p.mtx.Unlock()
		p.logger.WithError(err).Debug("Saving the event has failed")
		if client.IsConflict(err) {
			p.reloadAfterConflict(ctx, existing, generation)
		}
		return err
	}
	p.leave()
	p.notice = &Notice{NoticeSuccess, "The event has been saved"}
	p.mtx.Unlock()
	p.logger.WithField(log.FldEvent, saved.ID).Debug("Event saved")
	return p.Refresh(ctx)
}

// reloadAfterConflict fetches the edited event and the list again after the server has rejected a save. The form
// values stay untouched so the next save is based on the current version
func (p *Panel) reloadAfterConflict(ctx context.Context, existing *models.Event, generation uint64) {
	if existing != nil {
		ev, err := p.queries.GetEvent(ctx, existing.ID)
		p.mtx.Lock()
		if !p.stale(ctx, generation) && err == nil {
			p.current = ev
		}
		p.mtx.Unlock()
		if err != nil {
			p.logger.WithError(err).WithField(log.FldEvent, existing.ID).Debug("Reloading the event has failed")
		}
	}
	if err := p.loadPage(ctx, p.EventPage().Page); err != nil {
		p.logger.WithError(err).Debug("Reloading the event list has failed")
	}
}

// Close closes the form or the registration view. Results of requests still running are dropped
func (p *Panel) Close() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.leave()
}

// -- Deletion ---------------------------------------------------------------------------------------------------------

// RequestDelete marks the event for deletion. Nothing is deleted before ConfirmDelete is called
func (p *Panel) RequestDelete(id string) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.pendingDelete = id
}

// CancelDelete drops a requested deletion
func (p *Panel) CancelDelete() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.pendingDelete = ""
}

// ConfirmDelete deletes the event requested by RequestDelete. An event that is already gone counts as deleted
func (p *Panel) ConfirmDelete(ctx context.Context) error {
	p.mtx.Lock()
	id := p.pendingDelete
	p.pendingDelete = ""
	p.mtx.Unlock()
	if id == "" {
		return ErrNothingToDelete
	}

	err := p.queries.DeleteEvent(ctx, id)
	if err != nil && !client.IsNotFound(err) {
		p.mtx.Lock()
		p.failure(err)
		p.mtx.Unlock()
		return err
	}

	p.mtx.Lock()
	if p.current != nil && p.current.ID == id {
		p.leave()
	}
	p.notice = &Notice{NoticeSuccess, "The event has been deleted"}
	p.mtx.Unlock()
	p.logger.WithField(log.FldEvent, id).Debug("Event deleted")
	return p.Refresh(ctx)
}

// -- Registrations ----------------------------------------------------------------------------------------------------

// ViewRegistrations opens the registration list of the event
func (p *Panel) ViewRegistrations(ctx context.Context, id string) error {
	p.mtx.Lock()
	p.leave()
	generation := p.generation
	p.mtx.Unlock()

	ev, err := p.queries.GetEvent(ctx, id)
	var regs *models.RegistrationPage
	if err == nil {
		regs, err = p.queries.ListRegistrations(ctx, id, 1, p.pageSize)
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.stale(ctx, generation) {
		return ErrViewChanged
	}
	if err != nil {
		p.failure(err)
		return err
	}
	p.mode = ModeViewingRegistrations
	p.current = ev
	p.registrations = regs.Data
	p.regPage = regs.PageInfo
	p.notice = nil
	return nil
}

// reloadRegistrations fetches the current page of the registration list again
func (p *Panel) reloadRegistrations(ctx context.Context, eventID string, page uint, generation uint64) error {
	regs, err := p.queries.ListRegistrations(ctx, eventID, page, p.pageSize)
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.stale(ctx, generation) {
		return ErrViewChanged
	}
	if err != nil {
		return err
	}
	p.registrations = regs.Data
	p.regPage = regs.PageInfo
	return nil
}

// RegistrationActions returns the status actions offered for the registration
func (p *Panel) RegistrationActions(reg models.Registration) []models.Action {
	return models.AvailableActions(reg.Status)
}

// MarkAttended marks the registrant as present
func (p *Panel) MarkAttended(ctx context.Context, registrationID string) error {
	return p.applyAction(ctx, registrationID, models.ActionMarkAttended)
}

// CancelRegistration cancels the registration
func (p *Panel) CancelRegistration(ctx context.Context, registrationID string) error {
	return p.applyAction(ctx, registrationID, models.ActionCancel)
}

// applyAction checks the action against the registration's current status before sending it. Afterwards the list
// is reloaded - also when the server has rejected the change
func (p *Panel) applyAction(ctx context.Context, registrationID string, action models.Action) error {
	p.mtx.Lock()
	if p.mode != ModeViewingRegistrations || p.current == nil {
		p.mtx.Unlock()
		return ErrNotViewingRegistrations
	}
	eventID := p.current.ID
	page := p.regPage.Page
	generation := p.generation
	var reg *models.Registration
	for i := range p.registrations {
		if p.registrations[i].ID == registrationID {
			reg = &p.registrations[i]
			break
		}
	}
	if reg == nil {
		p.mtx.Unlock()
		return ErrUnknownRegistration
	}
	available := false
	for _, a := range models.AvailableActions(reg.Status) {
		if a == action {
			available = true
		}
	}
	p.mtx.Unlock()
	if !available {
		return ErrActionUnavailable
	}

	_, err := p.queries.UpdateRegistrationStatus(ctx, eventID, registrationID, action.Target())
	if err != nil {
		p.mtx.Lock()
		if !p.stale(ctx, generation) {
			p.failure(err)
		}
		p.mtx.Unlock()
		p.logger.WithError(err).WithField(log.FldRegistration, registrationID).Debug("Status change failed")
		if reloadErr := p.reloadRegistrations(ctx, eventID, page, generation); reloadErr != nil {
			p.logger.WithError(reloadErr).Debug("Reloading the registrations has failed")
		}
		return err
	}
	p.mtx.Lock()
	if !p.stale(ctx, generation) {
		p.notice = &Notice{NoticeSuccess, "The registration has been updated"}
	}
	p.mtx.Unlock()
	return p.reloadRegistrations(ctx, eventID, page, generation)
}
