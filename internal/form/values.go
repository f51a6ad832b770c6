// Package form contains the editable representation of an event together with the rules validating it and the
// conversion from and to the event model
package form

import "fmt"

// Names of the form fields
const (
	FieldTitle                = "title"
	FieldDescription          = "description"
	FieldLocation             = "location"
	FieldCategory             = "category"
	FieldCapacity             = "capacity"
	FieldStartTime            = "startTime"
	FieldEndTime              = "endTime"
	FieldRegistrationDeadline = "registrationDeadline"
	FieldPosterURL            = "posterUrl"
)

// DefaultCategory is the category preselected in an empty form
const DefaultCategory = "Technical"

// Fields lists all validated form fields in the order they are shown
var Fields = []string{
	FieldTitle,
	FieldDescription,
	FieldLocation,
	FieldCategory,
	FieldCapacity,
	FieldStartTime,
	FieldEndTime,
	FieldRegistrationDeadline,
}

// Values is the string-typed mirror of an event's editable fields used while a human is editing it
type Values struct {
	Title                string
	Description          string
	Location             string
	Category             string
	Capacity             string
	StartTime            string
	EndTime              string
	RegistrationDeadline string
	PosterURL            string
}

// EmptyValues returns the values of a form for a new event
func EmptyValues() Values {
	return Values{Category: DefaultCategory}
}

func (v *Values) ref(field string) (*string, error) {
	switch field {
	case FieldTitle:
		return &v.Title, nil
	case FieldDescription:
		return &v.Description, nil
	case FieldLocation:
		return &v.Location, nil
	case FieldCategory:
		return &v.Category, nil
	case FieldCapacity:
		return &v.Capacity, nil
	case FieldStartTime:
		return &v.StartTime, nil
	case FieldEndTime:
		return &v.EndTime, nil
	case FieldRegistrationDeadline:
		return &v.RegistrationDeadline, nil
	case FieldPosterURL:
		return &v.PosterURL, nil
	}
	return nil, fmt.Errorf("unknown form field '%s'", field)
}

// Get returns the value of the named field
func (v Values) Get(field string) string {
	if p, err := v.ref(field); err == nil {
		return *p
	}
	return ""
}

// Set changes the value of the named field
func (v *Values) Set(field, value string) error {
	p, err := v.ref(field)
	if err != nil {
		return err
	}
	*p = value
	return nil
}
