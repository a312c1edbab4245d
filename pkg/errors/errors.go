package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so the predefined errors below keep working
// with errors.Is after Clone or the field-carrying constructors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrRateLimited        = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrFeatureDisabled    = New("FEATURE_NOT_AVAILABLE", http.StatusForbidden, "feature not available on current plan")
	ErrPlanLimitReached   = New("PLAN_LIMIT_REACHED", http.StatusForbidden, "plan limit reached")
)

// Scheduling and booking failures. The zero-argument vars are the match
// targets; the constructors bake the concrete cause into the message.
var (
	ErrLeadTimeViolation    = New("LEAD_TIME_VIOLATION", http.StatusUnprocessableEntity, "not enough notice for this time")
	ErrOutsideHours         = New("OUTSIDE_CONFIGURED_HOURS", http.StatusUnprocessableEntity, "time is outside configured hours")
	ErrWeekendNotAvailable  = New("WEEKEND_NOT_AVAILABLE", http.StatusUnprocessableEntity, "weekend shift is not enabled")
	ErrCapacityExceeded     = New("CAPACITY_EXCEEDED", http.StatusConflict, "slot is full")
	ErrInvalidTransition    = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")
	ErrNoStudentAssigned    = New("NO_STUDENT_ASSIGNED", http.StatusUnprocessableEntity, "slot has no student assigned")
	ErrTooEarlyToMark       = New("TOO_EARLY_TO_MARK_ATTENDANCE", http.StatusUnprocessableEntity, "class has not started yet")
	ErrSerializationFailure = New("SERIALIZATION_FAILURE", http.StatusConflict, "concurrent update, please retry")
)

// LeadTimeViolation reports how much notice the operation requires.
func LeadTimeViolation(hours int) *Error {
	e := *ErrLeadTimeViolation
	e.Message = fmt.Sprintf("bookings and changes require at least %d hours notice", hours)
	return &e
}

// CapacityExceeded reports the remaining free seats for the slot.
func CapacityExceeded(remaining int) *Error {
	e := *ErrCapacityExceeded
	if remaining <= 0 {
		e.Message = "slot is full, no seats remaining"
	} else {
		e.Message = fmt.Sprintf("not enough room in slot, only %d seat(s) remaining", remaining)
	}
	return &e
}

// InvalidTransition reports the rejected from/to pair.
func InvalidTransition(from, to string) *Error {
	e := *ErrInvalidTransition
	e.Message = fmt.Sprintf("cannot move class from %s to %s", from, to)
	return &e
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
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
