package session

import (
	"log/slog"
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/pipeline"
)

// StateChangeCallback is called when a session state changes.
// Used for domain-specific reactions (e.g., events, LED control).
type StateChangeCallback func(deviceID string, oldState, newState State, err error)

// ErrorCallback receives asynchronous failures: pipeline errors, failed
// photos and handler panics.
type ErrorCallback func(deviceID string, err error)

// PermissionChecker reports whether capture of a kind is allowed.
type PermissionChecker interface {
	Check(kind devices.Kind) error
}

// Options configures a new Manager.
type Options struct {
	// Registry provides devices and their configuration (required).
	Registry *devices.Registry

	// Backend opens capture pipelines (required).
	Backend pipeline.Backend

	// Gate must grant the device kind before a session can start (required).
	Gate PermissionChecker

	// OnStateChange is called when session state transitions (optional).
	OnStateChange StateChangeCallback

	// OnError is the asynchronous error channel (optional).
	OnError ErrorCallback

	// DrainTimeout bounds how long Stop waits before warning about a slow handler.
	DrainTimeout time.Duration

	// Logger for session operations. If nil, uses slog.Default().
	Logger *slog.Logger
}
