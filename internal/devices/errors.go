package devices

import (
	"errors"
	"fmt"
)

// Error is the domain error returned by registry, configuration and
// session operations.
type Error struct {
	Code    string
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

// Error codes
const (
	ErrCodeInvalidHandle        = "INVALID_HANDLE"
	ErrCodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeAlreadyRunning       = "ALREADY_RUNNING"
	ErrCodeNotRunning           = "NOT_RUNNING"
	ErrCodePermissionDenied     = "PERMISSION_DENIED"
)

// NewError creates a new domain error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the first *Error in err's chain, or "".
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

func errInvalidHandle(h Handle) error {
	return NewError(ErrCodeInvalidHandle, fmt.Sprintf("handle %s is stale or already released", h), nil)
}

func errUnsupported(format string, args ...any) error {
	return NewError(ErrCodeUnsupportedOperation, fmt.Sprintf(format, args...), nil)
}

func errInvalidArgument(format string, args ...any) error {
	return NewError(ErrCodeInvalidArgument, fmt.Sprintf(format, args...), nil)
}
