package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/derWhity/eventdesk/internal/models"
)

const (
	// DefaultDuration is assumed as the length of an event that has no end time, yet
	DefaultDuration = 2 * time.Hour
	// DefaultRegistrationLead is the time between the registration deadline and the start of an event assumed for
	// events that have no deadline, yet
	DefaultRegistrationLead = 24 * time.Hour
)

// ErrMissingEventID is returned when an update payload is requested for an event that has never been stored
var ErrMissingEventID = errors.New("cannot build update payload: event has no ID")

// Converter maps events to form values and back
type Converter struct {
	// The time zone the form's date/time values are shown in
	Location *time.Location
	// Used to fill in a missing end time
	DefaultDuration time.Duration
	// Used to fill in a missing registration deadline
	DefaultRegistrationLead time.Duration
}

// NewConverter creates a converter using the given time zone and the default offsets
func NewConverter(loc *time.Location) *Converter {
	if loc == nil {
		loc = time.Local
	}
	return &Converter{
		Location:                loc,
		DefaultDuration:         DefaultDuration,
		DefaultRegistrationLead: DefaultRegistrationLead,
	}
}

var defaultConverter = NewConverter(time.Local)

// ToFormValues converts the event into form values using the local time zone
func ToFormValues(ev *models.Event) Values {
	return defaultConverter.ToFormValues(ev)
}

// FromFormValues converts form values into an event payload using the local time zone
func FromFormValues(v Values, existing *models.Event) (models.EventPayload, error) {
	return defaultConverter.FromFormValues(v, existing)
}

func (c *Converter) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(c.Location).Format(LocalDateTimeLayout)
}

// ToFormValues converts the event into form values. Without an event, the values of an empty form are returned.
// Missing end times and registration deadlines are derived from the start time
func (c *Converter) ToFormValues(ev *models.Event) Values {
	if ev == nil {
		return EmptyValues()
	}
	end := ev.EndTime
	deadline := ev.RegistrationDeadline
	if !ev.StartTime.IsZero() {
		if end.IsZero() {
			end = ev.StartTime.Add(c.DefaultDuration)
		}
		if deadline.IsZero() {
			deadline = ev.StartTime.Add(-c.DefaultRegistrationLead)
		}
	}
	return Values{
		Title:                ev.Title,
		Description:          ev.Description,
		Location:             ev.Location,
		Category:             ev.Category,
		Capacity:             strconv.FormatUint(uint64(ev.Capacity), 10),
		StartTime:            c.format(ev.StartTime),
		EndTime:              c.format(end),
		RegistrationDeadline: c.format(deadline),
		PosterURL:            ev.PosterURL,
	}
}

// FromFormValues converts form values into an event payload. The ID and version of an existing event are carried
// over - a payload without ID is meant for creating a new event
func (c *Converter) FromFormValues(v Values, existing *models.Event) (models.EventPayload, error) {
	var p models.EventPayload
	capacity, err := parseCapacity(v.Capacity)
	if err != nil {
		return p, fmt.Errorf("capacity: %v", err)
	}
	times := map[string]*time.Time{
		FieldStartTime:            &p.StartTime,
		FieldEndTime:              &p.EndTime,
		FieldRegistrationDeadline: &p.RegistrationDeadline,
	}
	for field, target := range times {
		t, err := ParseDateTime(v.Get(field), c.Location)
		if err != nil {
			return p, fmt.Errorf("%s: %v", field, err)
		}
		*target = t.UTC()
	}
	p.Title = strings.TrimSpace(v.Title)
	p.Description = strings.TrimSpace(v.Description)
	p.Location = strings.TrimSpace(v.Location)
	p.Category = strings.TrimSpace(v.Category)
	p.PosterURL = strings.TrimSpace(v.PosterURL)
	p.Capacity = uint(capacity)
	if existing != nil {
		p.ID = existing.ID
		p.Version = existing.Version
	}
	return p, nil
}

// ValidateField checks a single form field reading date/time values in the converter's time zone
func (c *Converter) ValidateField(field string, values Values) string {
	return ValidateFieldIn(field, values, c.Location)
}

// ValidateAll validates the form the same way FromFormValues reads it. A form without errors converts into a payload
// keeping end > start > registration deadline
func (c *Converter) ValidateAll(values Values) map[string]string {
	return ValidateAllIn(values, c.Location)
}

// ForUpdate converts form values into the payload updating the given event. It fails with ErrMissingEventID if
// there is no stored event to update
func (c *Converter) ForUpdate(v Values, existing *models.Event) (models.EventPayload, error) {
	if existing == nil || existing.ID == "" {
		return models.EventPayload{}, ErrMissingEventID
	}
	return c.FromFormValues(v, existing)
}
