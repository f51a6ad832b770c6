package internal

import "github.com/derWhity/eventdesk/internal/models"

// -- Request data -----------------------------------------------------------------------------------------------------

// Pagination describes a request that uses paging data to retrieve only a subset of the full result
type Pagination struct {
	// The (1-based) page to return
	Page uint
	// Number of items per page
	Limit uint
}

// Normalize fills in defaults and clamps the limit to the allowed maximum
func (p Pagination) Normalize(defaultLimit, maxLimit uint) Pagination {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = defaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Limit == 0 {
		p.Limit = 1
	}
	return p
}

// Offset returns the position of the page's first row inside the full result set
func (p Pagination) Offset() uint {
	if p.Page == 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// registrationListRequest is a request for listing the registrations of an event
type registrationListRequest struct {
	Pagination
	EventID string
}

// eventUpdateRequest carries the ID of the event to update together with the changes
type eventUpdateRequest struct {
	ID    string
	Patch models.EventPatch
}

// statusUpdateRequest requests a status change of a single registration
type statusUpdateRequest struct {
	EventID        string
	RegistrationID string
	Status         string `json:"status"`
}

// A request made when logging in
type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"password"`
}
