// Package errors classifies storage and input failures so callers can react to the
// category (missing record, bad input, unreachable backend) instead of driver details.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the category of an AppError.
type ErrorCode string

const (
	ErrCodeNotFound    ErrorCode = "not_found"
	ErrCodeConflict    ErrorCode = "conflict"
	ErrCodeValidation  ErrorCode = "validation"
	ErrCodeUnavailable ErrorCode = "unavailable"
	ErrCodeTimeout     ErrorCode = "timeout"
	ErrCodeCanceled    ErrorCode = "canceled"
	ErrCodeInternal    ErrorCode = "internal"
)

// AppError is a categorized failure. Field names the offending input for validation errors.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// NotFoundf reports a missing record.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// ValidationField reports invalid input for field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Wrap categorizes err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func IsNotFound(err error) bool    { return CodeOf(err) == ErrCodeNotFound }
func IsConflict(err error) bool    { return CodeOf(err) == ErrCodeConflict }
func IsValidation(err error) bool  { return CodeOf(err) == ErrCodeValidation }
func IsUnavailable(err error) bool { return CodeOf(err) == ErrCodeUnavailable }

// Retryable reports whether repeating the operation may succeed without operator action.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeConflict, ErrCodeUnavailable, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// Exit codes returned by the command line tools.
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnavailable = 69 // EX_UNAVAILABLE
	ExitTempFail    = 75 // EX_TEMPFAIL
)

// ExitCode maps err to a process exit status. Retryable failures use EX_TEMPFAIL so
// wrappers such as cron can tell them apart from permanent ones.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsValidation(err):
		return ExitUsage
	case IsUnavailable(err):
		return ExitUnavailable
	case Retryable(err):
		return ExitTempFail
	default:
		return ExitFailure
	}
}
