package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error codes of the server the client reacts to
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeEventNotFound        = "EVENT_NOT_FOUND"
	CodeRegistrationNotFound = "REGISTRATION_NOT_FOUND"
	CodeUnknown              = "UNKNOWN_ERROR"
)

// APIError is an error answer of the Eventdesk server
type APIError struct {
	// HTTP status code of the answer
	Status int
	// Machine-readable error code
	Code string
	// Human-readable error message
	Message string
	// Additional information - for validation errors a map from field name to message
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// FieldErrors returns the failed fields of a validation error. Other errors return nil
func (e *APIError) FieldErrors() map[string]string {
	if e.Code != CodeValidationFailed || len(e.Details) == 0 {
		return nil
	}
	var ret map[string]string
	if err := json.Unmarshal(e.Details, &ret); err != nil {
		return nil
	}
	return ret
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func hasStatus(err error, status int) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Status == status
}

// IsNotFound checks if the server answered that the requested entity does not exist
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict checks if the server rejected a write because of the current state of the entity
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsValidation checks if the server rejected the payload
func IsValidation(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

// ErrorCode returns the server's error code or an empty string if the error did not come from the server
func ErrorCode(err error) string {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Code
	}
	return ""
}

// retryable checks if a failed read may be repeated
func retryable(err error) bool {
	apiErr, ok := asAPIError(err)
	if !ok {
		return true
	}
	return apiErr.Status >= http.StatusInternalServerError
}
