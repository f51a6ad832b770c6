package models

import "time"

// EventStatus is the state of an event relative to the current point in time. It is never stored but derived
// whenever an event is read
type EventStatus string

const (
	// EventUpcoming is the status of an event that has not started yet
	EventUpcoming EventStatus = "Upcoming"
	// EventOngoing is the status of an event that is currently running
	EventOngoing EventStatus = "Ongoing"
	// EventCompleted is the status of an event that has already ended
	EventCompleted EventStatus = "Completed"
)

// Event describes a scheduled activity of the organization users can register for
type Event struct {
	// Internal ID - assigned by the server on creation
	ID string `db:"id" json:"id,omitempty"`
	// Title of the event
	Title string `db:"title" json:"title"`
	// A description of what happens at the event
	Description string `db:"description" json:"description"`
	// Where the event takes place
	Location string `db:"location" json:"location"`
	// Category the event is filed under ("Technical", "Social", ...)
	Category string `db:"category" json:"category"`
	// Optional URL of the event's poster image
	PosterURL string `db:"posterUrl" json:"poster_url,omitempty"`
	// When does/did the event start?
	StartTime time.Time `db:"startTime" json:"start_time"`
	// When does/did the event end?
	EndTime time.Time `db:"endTime" json:"end_time"`
	// Registrations are accepted until this point in time
	RegistrationDeadline time.Time `db:"registrationDeadline" json:"registration_deadline"`
	// Maximum number of seats
	Capacity uint `db:"capacity" json:"capacity"`
	// ID of the user that created the event
	CreatedBy string `db:"createdBy" json:"created_by"`
	// Optimistic locking counter - incremented on every update
	Version uint `db:"version" json:"version"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"created_at"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updated_at"`
	// Derived from the event's times when it is read
	Status EventStatus `db:"-" json:"status,omitempty"`
}

// StatusAt returns the status of the event at the given point in time
func (e *Event) StatusAt(now time.Time) EventStatus {
	switch {
	case now.Before(e.StartTime):
		return EventUpcoming
	case !now.After(e.EndTime):
		return EventOngoing
	default:
		return EventCompleted
	}
}

// RegistrationOpen checks if registrations are still accepted at the given point in time
func (e *Event) RegistrationOpen(now time.Time) bool {
	return now.Before(e.RegistrationDeadline)
}

// EventPayload is the full set of editable event fields sent when creating an event. The ID and version are only
// carried along for the client to decide between creating and updating - they are never sent in the body
type EventPayload struct {
	ID                   string    `json:"-"`
	Version              uint      `json:"-"`
	Title                string    `json:"title" validate:"required,min=5,max=100"`
	Description          string    `json:"description" validate:"required,min=20,max=2000"`
	Location             string    `json:"location" validate:"required,min=3,max=100"`
	Category             string    `json:"category" validate:"required"`
	PosterURL            string    `json:"poster_url,omitempty" validate:"omitempty,poster"`
	StartTime            time.Time `json:"start_time" validate:"required"`
	EndTime              time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	RegistrationDeadline time.Time `json:"registration_deadline" validate:"required,ltfield=StartTime"`
	Capacity             uint      `json:"capacity" validate:"min=1,max=10000"`
}

// Patch converts the payload into a patch touching every editable field
func (p EventPayload) Patch() EventPatch {
	patch := EventPatch{
		Title:                &p.Title,
		Description:          &p.Description,
		Location:             &p.Location,
		Category:             &p.Category,
		PosterURL:            &p.PosterURL,
		StartTime:            &p.StartTime,
		EndTime:              &p.EndTime,
		RegistrationDeadline: &p.RegistrationDeadline,
		Capacity:             &p.Capacity,
	}
	if p.Version > 0 {
		v := p.Version
		patch.Version = &v
	}
	return patch
}

// EventPatch is a partial update of an event. Only non-nil fields are applied
type EventPatch struct {
	Title                *string    `json:"title,omitempty"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty"`
	Category             *string    `json:"category,omitempty"`
	PosterURL            *string    `json:"poster_url,omitempty"`
	StartTime            *time.Time `json:"start_time,omitempty"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Capacity             *uint      `json:"capacity,omitempty"`
	// The version the client has read. If set, the update is rejected when the event has changed since
	Version *uint `json:"version,omitempty"`
}

// ApplyTo copies all fields set in the patch onto the given event
func (p *EventPatch) ApplyTo(ev *Event) {
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Location != nil {
		ev.Location = *p.Location
	}
	if p.Category != nil {
		ev.Category = *p.Category
	}
	if p.PosterURL != nil {
		ev.PosterURL = *p.PosterURL
	}
	if p.StartTime != nil {
		ev.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		ev.EndTime = *p.EndTime
	}
	if p.RegistrationDeadline != nil {
		ev.RegistrationDeadline = *p.RegistrationDeadline
	}
	if p.Capacity != nil {
		ev.Capacity = *p.Capacity
	}
}

// PayloadOf returns the editable fields of the event as payload
func PayloadOf(ev *Event) EventPayload {
	return EventPayload{
		ID:                   ev.ID,
		Version:              ev.Version,
		Title:                ev.Title,
		Description:          ev.Description,
		Location:             ev.Location,
		Category:             ev.Category,
		PosterURL:            ev.PosterURL,
		StartTime:            ev.StartTime,
		EndTime:              ev.EndTime,
		RegistrationDeadline: ev.RegistrationDeadline,
		Capacity:             ev.Capacity,
	}
}

// EventPage is a single page of an event listing
type EventPage struct {
	PageInfo
	Data []Event `json:"data"`
}
