package session

import (
	"time"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
)

// State represents the current state of a device session.
type State string

// Session states.
const (
	StateIdle      State = "idle"      // No session
	StateStarting  State = "starting"  // Pipeline being opened
	StateRunning   State = "running"   // Delivering buffers
	StateCapturing State = "capturing" // Running with a photo pending
	StateStopping  State = "stopping"  // Draining
)

// Active reports whether buffers are being delivered in this state.
func (s State) Active() bool {
	return s == StateRunning || s == StateCapturing
}

// Info contains information about a device session.
type Info struct {
	DeviceID      string
	SessionID     string
	Kind          devices.Kind
	State         State
	StartedAt     time.Time
	PendingPhotos int
	PhotosTaken   uint64
	LastError     error

	Camera devices.CameraSettings
	Audio  devices.AudioSettings
	Stats  delivery.Stats
}
