package internal

import "net/http"

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeIllegalValue is returned when any field in the transferred data does not validate for some reason
	ErrCodeIllegalValue = "ILLEGAL_VALUE"
	// ErrCodeValidationFailed is returned when an event payload violates the event's invariants. The error data maps
	// the failed fields to their messages
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	// ErrCodeEventNotFound is returned when an operation works on an event that does not exist
	ErrCodeEventNotFound = "EVENT_NOT_FOUND"
	// ErrCodeEventModified is returned when an update is based on an outdated version of the event
	ErrCodeEventModified = "EVENT_MODIFIED"
	// ErrCodeEventFull is returned when there is no seat left and the waitlist is disabled
	ErrCodeEventFull = "EVENT_FULL"
	// ErrCodeCapacityTooLow is returned when the capacity of an event is reduced below the number of seats taken
	ErrCodeCapacityTooLow = "CAPACITY_BELOW_REGISTRATIONS"
	// ErrCodeRegistrationClosed is returned when a user registers after the registration deadline
	ErrCodeRegistrationClosed = "REGISTRATION_CLOSED"
	// ErrCodeRegistrationNotFound is returned when an operation works on a registration that does not exist
	ErrCodeRegistrationNotFound = "REGISTRATION_NOT_FOUND"
	// ErrCodeInvalidTransition is returned when a registration status change is not allowed
	ErrCodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	// ErrCodeUserExists is returned when signing up with a name that is already taken
	ErrCodeUserExists = "USER_EXISTS"
	// ErrCodeLoginFailed is returned when the user fails to login for some reason
	ErrCodeLoginFailed = "LOGIN_FAILED"
	// ErrCodeNotLoggedIn is returned when the user tried to access an API that needs a logged-in user, but the user
	// has no authenticated session
	ErrCodeNotLoggedIn = "NOT_LOGGED_IN"
	// ErrCodeNotAnAdmin is returned when a member tries to use a function reserved to admins
	ErrCodeNotAnAdmin = "NOT_AN_ADMIN"
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}

// conflict creates an error for a request that contradicts the current state on the server
func conflict(code, message string) *HTTPError {
	return MakeError(http.StatusConflict, code, message)
}
