// Package apperror provides the structured errors surfaced by the costing and payroll engines.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnknownEmployee = "UNKNOWN_EMPLOYEE"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
)

// Sentinels for errors.Is matching.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownEmployee = errors.New("unknown employee")
	ErrNotFound        = errors.New("not found")
)

// Error identifies the failing field or entry of a request.
type Error struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is the sentinel for e's code.
// An unknown employee is also an invalid input.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Code == CodeInvalidInput || e.Code == CodeUnknownEmployee
	case ErrUnknownEmployee:
		return e.Code == CodeUnknownEmployee
	case ErrNotFound:
		return e.Code == CodeNotFound
	}
	return false
}

// InvalidInput creates an error for a bad, missing or out-of-range field.
func InvalidInput(field, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidInput,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// UnknownEmployee creates an error for an entry whose employee has no hourly rate.
func UnknownEmployee(field string, employeeID int64) *Error {
	return &Error{
		Code:    CodeUnknownEmployee,
		Field:   field,
		Message: fmt.Sprintf("no hourly rate for employee %d", employeeID),
	}
}

// NotFound creates an error for a missing persisted record.
func NotFound(kind string, id int64) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %d not found", kind, id),
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
