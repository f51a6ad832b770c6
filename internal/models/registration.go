package models

import "time"

// RegistrationStatus is the state a registration is in
type RegistrationStatus string

const (
	// StatusRegistered is a registration holding a seat
	StatusRegistered RegistrationStatus = "registered"
	// StatusWaitlisted is a registration accepted while the event was full - it waits for a freed seat
	StatusWaitlisted RegistrationStatus = "waitlisted"
	// StatusCancelled is a registration that has been cancelled by the user or an admin
	StatusCancelled RegistrationStatus = "cancelled"
	// StatusAttended is a registration of a user that has shown up at the event
	StatusAttended RegistrationStatus = "attended"
)

// Valid checks if the status is one of the known registration states
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusRegistered, StatusWaitlisted, StatusCancelled, StatusAttended:
		return true
	}
	return false
}

// HoldsSeat checks if a registration in this status counts against the event's capacity
func (s RegistrationStatus) HoldsSeat() bool {
	return s == StatusRegistered || s == StatusAttended
}

// Actor names who requests a status change. The same transition may be legal for one actor and illegal for
// another one
type Actor int

const (
	// ActorAdmin is an administrator working on the registrations of an event
	ActorAdmin Actor = iota
	// ActorRegistrant is the user owning the registration
	ActorRegistrant
	// ActorSystem is the server itself, e.g. when promoting a waitlisted registration
	ActorSystem
)

// Action is a status change an admin can trigger on a registration
type Action string

const (
	// ActionMarkAttended marks the registrant as present at the event
	ActionMarkAttended Action = "markAttended"
	// ActionCancel cancels the registration
	ActionCancel Action = "cancel"
)

// Target returns the status a registration ends up in after the action
func (a Action) Target() RegistrationStatus {
	if a == ActionMarkAttended {
		return StatusAttended
	}
	return StatusCancelled
}

// transitions holds the legal status changes per actor
var transitions = map[Actor]map[RegistrationStatus][]RegistrationStatus{
	ActorAdmin: {
		StatusRegistered: {StatusAttended, StatusCancelled},
		StatusWaitlisted: {StatusAttended, StatusCancelled},
		StatusAttended:   {StatusCancelled},
	},
	ActorRegistrant: {
		StatusRegistered: {StatusCancelled},
		StatusWaitlisted: {StatusCancelled},
		StatusAttended:   {StatusCancelled},
		// Registering again after a cancellation
		StatusCancelled: {StatusRegistered, StatusWaitlisted},
	},
	ActorSystem: {
		StatusWaitlisted: {StatusRegistered},
	},
}

// CanTransition checks if the given actor may move a registration from the current to the requested status
func CanTransition(current, requested RegistrationStatus, actor Actor) bool {
	for _, st := range transitions[actor][current] {
		if st == requested {
			return true
		}
	}
	return false
}

// AvailableActions returns the admin actions that can be applied to a registration in the given status
func AvailableActions(status RegistrationStatus) []Action {
	var ret []Action
	for _, a := range []Action{ActionMarkAttended, ActionCancel} {
		if CanTransition(status, a.Target(), ActorAdmin) {
			ret = append(ret, a)
		}
	}
	return ret
}

// RegistrantInfo is the snapshot of the registered user shown in admin listings
type RegistrantInfo struct {
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// Registration is a user's claim on a seat of an event
type Registration struct {
	// Internal ID
	ID string `db:"id" json:"id"`
	// The user that has registered
	UserID string `db:"userId" json:"user_id"`
	// The event registered for
	EventID string `db:"eventId" json:"event_id"`
	// Current state of the registration
	Status RegistrationStatus `db:"status" json:"status"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"created_at"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updated_at"`
	// Only filled when listing registrations
	User *RegistrantInfo `db:"-" json:"user,omitempty"`
}

// RegistrationPage is a single page of a registration listing
type RegistrationPage struct {
	PageInfo
	Data []Registration `json:"data"`
}
