// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for the application.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeTerminated        = "TERMINATED"
	CodeIndexOutOfBounds  = "INDEX_OUT_OF_BOUNDS"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
	CodeInvalidInput      = "INVALID_INPUT"
	CodePanic             = "PANIC"
	CodeConfigError       = "CONFIG_ERROR"
	CodeParseError        = "PARSE_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeStorageError      = "STORAGE_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Common error instances.
var (
	ErrTerminated        = New(CodeTerminated, "computation terminated")
	ErrResourceExhausted = New(CodeResourceExhausted, "resource exhausted")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
	ErrPanic             = New(CodePanic, "worker panicked")
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrParseError        = New(CodeParseError, "parse error")
	ErrDatabaseError     = New(CodeDatabaseError, "database error")
	ErrStorageError      = New(CodeStorageError, "storage error")
	ErrNotFound          = New(CodeNotFound, "resource not found")
)

// IsTerminated checks if the error reports a cancelled computation.
func IsTerminated(err error) bool {
	return errors.Is(err, ErrTerminated)
}

// IsInvalidInput checks if the error is an invalid input error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IndexOutOfBoundsError is the panic value raised by substrate containers
// when an index falls outside [0, Size).
type IndexOutOfBoundsError struct {
	Index int64
	Size  int64
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("[%s] index %d out of bounds for size %d", CodeIndexOutOfBounds, e.Index, e.Size)
}

// CheckIndex panics with an IndexOutOfBoundsError if index is not in [0, size).
func CheckIndex(index, size int64) {
	if index < 0 || index >= size {
		panic(&IndexOutOfBoundsError{Index: index, Size: size})
	}
}

// FromPanic converts a recovered panic value into an AppError.
// Allocation failures surface as RESOURCE_EXHAUSTED, everything else as PANIC.
func FromPanic(r interface{}) *AppError {
	switch v := r.(type) {
	case *AppError:
		return v
	case *IndexOutOfBoundsError:
		return Wrap(CodePanic, "index out of bounds", v)
	case error:
		if isAllocationFailure(v.Error()) {
			return Wrap(CodeResourceExhausted, "allocation failed", v)
		}
		return Wrap(CodePanic, "worker panicked", v)
	default:
		msg := fmt.Sprint(v)
		if isAllocationFailure(msg) {
			return New(CodeResourceExhausted, msg)
		}
		return New(CodePanic, msg)
	}
}

func isAllocationFailure(msg string) bool {
	// runtime messages for make() with an absurd length
	return strings.Contains(msg, "makeslice: len out of range") ||
		strings.Contains(msg, "makeslice: cap out of range")
}
