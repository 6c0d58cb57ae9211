// Package apperr defines the structured error taxonomy shared by the service.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR" // 400
	CodeNotFound        Code = "NOT_FOUND"        // 404
	CodeUpstreamFailure Code = "UPSTREAM_FAILURE" // 502
	CodeUnavailable     Code = "UNAVAILABLE"      // 503
	CodeInternal        Code = "INTERNAL"         // 500
)

// Error is a classified error carrying an HTTP status and optional details.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation creates a 400 error for bad or missing input.
func NewValidation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// NewValidationAt creates a 400 error that points at a position in a batch.
func NewValidationAt(index int, msg string) *Error {
	return &Error{
		Code:    CodeValidation,
		Status:  http.StatusBadRequest,
		Message: msg,
		Details: map[string]any{"index": index},
	}
}

// NewNotFound creates a 404 error.
func NewNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

// NewUnavailable creates a 503 error for an unreachable or unconfigured backing store.
func NewUnavailable(msg string, err error) *Error {
	return &Error{Code: CodeUnavailable, Status: http.StatusServiceUnavailable, Message: msg, Err: err}
}

// NewUpstream creates a 502 error for a failed call to an external service.
func NewUpstream(msg string, err error) *Error {
	return &Error{Code: CodeUpstreamFailure, Status: http.StatusBadGateway, Message: msg, Err: err}
}

// NewInternal creates a 500 error for unexpected faults.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg, Err: err}
}

// Is reports whether err is, or wraps, an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal if err is not classified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// StatusOf returns the HTTP status associated with err.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
