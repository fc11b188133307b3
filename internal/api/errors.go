package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediadevice/internal/devices"
)

// toHTTPError maps domain error codes onto HTTP statuses.
func toHTTPError(msg string, err error) error {
	if err == nil {
		return nil
	}
	switch devices.ErrorCode(err) {
	case devices.ErrCodeInvalidHandle:
		return huma.Error404NotFound(msg, err)
	case devices.ErrCodeInvalidArgument:
		return huma.Error400BadRequest(msg, err)
	case devices.ErrCodePermissionDenied:
		return huma.Error403Forbidden(msg, err)
	case devices.ErrCodeAlreadyRunning, devices.ErrCodeNotRunning:
		return huma.Error409Conflict(msg, err)
	case devices.ErrCodeUnsupportedOperation:
		return huma.Error422UnprocessableEntity(msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}
