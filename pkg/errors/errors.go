// Package errors provides the error taxonomy shared by every layer, plus
// reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Callers switch on the code, never on
// the message.
type Code string

const (
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeInvalidAmount     Code = "invalid_amount"
	CodeInvalidWorkState  Code = "invalid_work_state"
	CodeInvalidTransition Code = "invalid_transition"
	CodeConflict          Code = "conflict"
	CodeUnknownCurrency   Code = "unknown_currency"
	CodeMissingRate       Code = "missing_rate"
	CodeValidation        Code = "validation"
	CodeInternal          Code = "internal"
)

// Error is a failure carrying a taxonomy code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the sentinels below can be
// used with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a coded error.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause creates a coded error wrapping cause.
func WithCause(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Common errors
var (
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "authentication required"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "operation not permitted"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrWorkNotFound       = &Error{Code: CodeNotFound, Message: "work not found"}
	ErrWithdrawalNotFound = &Error{Code: CodeNotFound, Message: "withdrawal not found"}
	ErrInvalidAmount      = &Error{Code: CodeInvalidAmount, Message: "amount must be greater than zero"}
	ErrInvalidWorkState   = &Error{Code: CodeInvalidWorkState, Message: "work is not active"}
	ErrInvalidTransition  = &Error{Code: CodeInvalidTransition, Message: "status transition not permitted"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "resource was modified concurrently"}
	ErrUnknownCurrency    = &Error{Code: CodeUnknownCurrency, Message: "currency not in rate table"}
	ErrMissingRate        = &Error{Code: CodeMissingRate, Message: "exchange rate not available"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation failed"}
)

// CodeOf extracts the taxonomy code from err, or CodeInternal if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a taxonomy code onto an HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidAmount, CodeInvalidWorkState, CodeInvalidTransition, CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
