package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the typed error that crosses the service/handler boundary.
// Code is a stable machine-readable identifier clients can branch on,
// Status the HTTP status the handler layer responds with. Err carries
// the underlying cause for logs and is never serialized.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a sentinel-style error value.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap keeps cause attached while presenting the given code and message.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Clone copies a sentinel so a call site can override the message
// without mutating the shared value.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// FromError normalises any error into an *Error. Errors that are not
// already typed collapse to the internal-error shape so no driver or
// library detail leaks to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Authentication and generic request errors.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Registrar domain errors.
var (
	ErrCapacityExceeded  = New("CAPACITY_EXCEEDED", http.StatusConflict, "offering has no available slots")
	ErrTerminalState     = New("TERMINAL_STATE", http.StatusConflict, "record is in a terminal state")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "status transition not permitted")
	ErrPrerequisiteCycle = New("PREREQUISITE_CYCLE", http.StatusBadRequest, "prerequisite would introduce a cycle")
	ErrEnrollmentClosed  = New("ENROLLMENT_CLOSED", http.StatusConflict, "enrollment window is closed")

	// ErrCacheMiss signals a cache lookup found nothing; never sent to clients.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)
