// Package apperror defines the error taxonomy shared by services and HTTP handlers.
package apperror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error codes reported to clients.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeForbidden  = "FORBIDDEN"
	CodeRemote     = "REMOTE_SERVICE_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is a classified error carrying the HTTP status it maps to.
type Error struct {
	Code    string
	Status  int
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Cause returns the wrapped error, if any.
func (e *Error) Cause() error { return e.cause }

// Stack renders the cause with its recorded stack trace.
func (e *Error) Stack() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

// Validation reports malformed or missing input.
func Validation(message string, fields ...FieldError) *Error {
	e := &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: message}
	if len(fields) > 0 {
		e.Details = fields
	}
	return e
}

// NotFound reports an unknown resource.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: message}
}

// Forbidden reports an ownership mismatch.
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: message}
}

// Remote reports a failed downstream call. The status lets each handler
// decide whether the failure is the caller's (400) or ours (500).
func Remote(status int, message string, cause error) *Error {
	return &Error{Code: CodeRemote, Status: status, Message: message, cause: errors.WithStack(cause)}
}

// Internal reports an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: message, cause: errors.WithStack(cause)}
}

// WithDetails attaches client-visible details.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
