package form

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Limits of the event fields
const (
	TitleMinLen       = 5
	TitleMaxLen       = 100
	DescriptionMinLen = 20
	DescriptionMaxLen = 2000
	LocationMinLen    = 3
	LocationMaxLen    = 100
	CapacityMin       = 1
	CapacityMax       = 10000
)

// LocalDateTimeLayout is the layout of date/time values inside the form - minute precision, no zone
const LocalDateTimeLayout = "2006-01-02T15:04"

// Additional layouts accepted when parsing date/time values
var dateTimeLayouts = []string{
	LocalDateTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDateTime parses a form date/time value. Values without zone information are interpreted in the given location
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("'%s' is no valid date/time", value)
}

// charCount returns the number of characters of the trimmed value. Composed and decomposed forms of the same text
// count the same
func charCount(value string) int {
	return utf8.RuneCountInString(norm.NFC.String(strings.TrimSpace(value)))
}

func checkLength(label, value string, min, max int) string {
	n := charCount(value)
	switch {
	case n == 0:
		return fmt.Sprintf("%s is required", label)
	case n < min:
		return fmt.Sprintf("%s is too short (minimum %d characters)", label, min)
	case n > max:
		return fmt.Sprintf("%s is too long (maximum %d characters)", label, max)
	}
	return ""
}

// parseCapacity reads a capacity value. Only plain digits are accepted - no sign, no fraction
func parseCapacity(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("capacity is empty")
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("'%s' is no whole number", value)
		}
	}
	return strconv.Atoi(value)
}

func checkCapacity(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Capacity is required"
	}
	n, err := parseCapacity(value)
	if err != nil {
		return "Capacity must be a whole number"
	}
	if n < CapacityMin {
		return fmt.Sprintf("Capacity must be at least %d", CapacityMin)
	}
	if n > CapacityMax {
		return fmt.Sprintf("Capacity must not exceed %d", CapacityMax)
	}
	return ""
}

// checkDateTime validates a single date/time field and its relation to the start time
func checkDateTime(field string, values Values, loc *time.Location) string {
	value := values.Get(field)
	if strings.TrimSpace(value) == "" {
		return "Date and time are required"
	}
	t, err := ParseDateTime(value, loc)
	if err != nil {
		return "Invalid date/time"
	}
	if field == FieldStartTime {
		return ""
	}
	start, err := ParseDateTime(values.StartTime, loc)
	if err != nil {
		// Without a valid start there is nothing to compare with
		return ""
	}
	switch field {
	case FieldEndTime:
		if !t.After(start) {
			return "End time must be after start time"
		}
	case FieldRegistrationDeadline:
		if !t.Before(start) {
			return "Registration deadline must be before start time"
		}
	}
	return ""
}

// ValidateField checks a single field of the form with date/time values read in the local time zone. Cross-field
// rules use the sibling values. An empty string means the field is valid
func ValidateField(field string, values Values) string {
	return ValidateFieldIn(field, values, time.Local)
}

// ValidateFieldIn checks a single field of the form. Date/time values are read in the given time zone
func ValidateFieldIn(field string, values Values, loc *time.Location) string {
	switch field {
	case FieldTitle:
		return checkLength("Title", values.Title, TitleMinLen, TitleMaxLen)
	case FieldDescription:
		return checkLength("Description", values.Description, DescriptionMinLen, DescriptionMaxLen)
	case FieldLocation:
		return checkLength("Location", values.Location, LocationMinLen, LocationMaxLen)
	case FieldCategory:
		if strings.TrimSpace(values.Category) == "" {
			return "Category is required"
		}
	case FieldCapacity:
		return checkCapacity(values.Capacity)
	case FieldStartTime, FieldEndTime, FieldRegistrationDeadline:
		return checkDateTime(field, values, loc)
	case FieldPosterURL:
		// The poster is optional inside the event form
		if strings.TrimSpace(values.PosterURL) != "" {
			return ValidatePoster(strings.TrimSpace(values.PosterURL))
		}
	}
	return ""
}

// ValidateAll applies every rule to the form and returns the error messages of all fields that failed. An empty map
// means the form can be saved. Date/time values are read in the local time zone
func ValidateAll(values Values) map[string]string {
	return ValidateAllIn(values, time.Local)
}

// ValidateAllIn works like ValidateAll with date/time values read in the given time zone
func ValidateAllIn(values Values, loc *time.Location) map[string]string {
	errs := make(map[string]string)
	for _, field := range append(Fields, FieldPosterURL) {
		if msg := ValidateFieldIn(field, values, loc); msg != "" {
			errs[field] = msg
		}
	}
	return errs
}
