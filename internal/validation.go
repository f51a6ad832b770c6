package internal

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/derWhity/eventdesk/internal/form"
)

// Human-readable names of the payload fields, keyed by their JSON name
var fieldLabels = map[string]string{
	"title":                 "Title",
	"description":           "Description",
	"location":              "Location",
	"category":              "Category",
	"poster_url":            "Poster URL",
	"start_time":            "Start time",
	"end_time":              "End time",
	"registration_deadline": "Registration deadline",
	"capacity":              "Capacity",
	"name":                  "Name",
	"password":              "Password",
	"email":                 "E-mail address",
}

// newValidator creates the validator used for all incoming payloads. Field errors are reported using the fields'
// JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("poster", func(fl validator.FieldLevel) bool {
		return form.IsPosterURL(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// normalizeText trims the value and brings it into composed form, so lengths are counted the same way the form
// counts them
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s is too short (minimum %s characters)", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s is too long (maximum %s characters)", label, fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", label, fe.Param())
	case "gtfield":
		return "End time must be after start time"
	case "ltfield":
		return "Registration deadline must be before start time"
	case "poster":
		return "Poster URL must point to a JPEG, PNG, WebP or GIF image"
	case "email":
		return fmt.Sprintf("%s is not valid", label)
	}
	return fmt.Sprintf("%s is invalid", label)
}

// validateStruct runs the validator on the given value. Failed fields are returned as VALIDATION_FAILED error
// carrying a map from field name to message
func validateStruct(v *validator.Validate, value interface{}) error {
	err := v.Struct(value)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return MakeErrorWithData(http.StatusInternalServerError, ErrCodeUnknown, "Validation could not be run", err)
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return MakeErrorWithData(http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", details)
}
