// Package griderr defines the distributor's error taxonomy. Every public
// operation translates failures into one of these codes before returning
// them to a caller, per the error handling design.
package griderr

import (
	"errors"
	"fmt"
)

// Code identifies which bucket of the taxonomy an Error belongs to.
type Code string

const (
	// SessionNotCreated covers missing capacity, an empty capability
	// payload, or a remote node creation failure.
	SessionNotCreated Code = "SESSION_NOT_CREATED"
	// NoSuchSession covers a session map lookup miss or a stored URI that
	// failed to decode.
	NoSuchSession Code = "NO_SUCH_SESSION"
	// Storage covers a session map backend I/O failure.
	Storage Code = "STORAGE"
	// Config covers a startup-time failure to initialize a backend.
	Config Code = "CONFIG"
	// Internal covers anything unexpected that doesn't fit the above.
	Internal Code = "INTERNAL"
)

// Error is the concrete error type returned by every public distributor and
// session map operation.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Is reports whether err is (or wraps) a griderr.Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
