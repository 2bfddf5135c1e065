package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on the error code, so callers can compare
// against a bare constructor result without caring about the wrapped cause.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrInternal
	ErrInvalidSchedule
	ErrIllegalTransition
	ErrStoreUnavailable
	ErrNotificationDispatch
)

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// InvalidSchedule reports a malformed schedule, rejected before any
// occurrence generation is attempted.
func InvalidSchedule(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidSchedule,
		Message: fmt.Sprintf("invalid schedule: %s", message),
	}
}

// IllegalTransition reports a dose-event status change that the state
// machine does not allow, e.g. snoozing an already-taken dose.
func IllegalTransition(message string) *AppError {
	return &AppError{
		Code:    ErrIllegalTransition,
		Message: message,
	}
}

// StoreUnavailable reports a transient storage failure. Sweeps log it and
// defer to the next scheduled run.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrStoreUnavailable,
		Message: "store unavailable",
		Err:     err,
	}
}

// NotificationDispatch reports a per-event transport failure. It never
// aborts the sweep that produced it.
func NotificationDispatch(err error) *AppError {
	return &AppError{
		Code:    ErrNotificationDispatch,
		Message: "notification dispatch failed",
		Err:     err,
	}
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
