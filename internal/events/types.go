package events

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeSessionStateChanged
	TypeSessionError
	TypePhotoCaptured
	TypePermissionResult
	TypeSettingsChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceDiscoveryEvent represents a device appearing or disappearing.
type DeviceDiscoveryEvent struct {
	DeviceID  string   `json:"device_id" example:"7b1c2f9e-3a55-4c1e-9d0a-2f7e8b6c1d44" doc:"Unique device identifier"`
	Name      string   `json:"name" example:"Rear Test Pattern" doc:"Human readable device name"`
	Kind      string   `json:"kind" example:"camera" doc:"Device kind: camera or microphone"`
	Flags     []string `json:"flags" example:"[\"internal\",\"torch\"]" doc:"Capability flags"`
	Action    string   `json:"action" example:"added" doc:"Action type: added, removed"`
	Timestamp string   `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// SessionStateChangedEvent represents a capture session state transition.
// Used for LED control and other reactive subsystems.
type SessionStateChangedEvent struct {
	DeviceID  string `json:"device_id" doc:"Unique device identifier"`
	OldState  string `json:"old_state" example:"starting" doc:"Previous session state"`
	NewState  string `json:"new_state" example:"running" doc:"New session state"`
	Active    bool   `json:"active" example:"true" doc:"Whether the device is delivering buffers"`
	Error     string `json:"error,omitempty" doc:"Error that caused the transition"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// GetDeviceID implements the SessionStateEvent interface for the LED manager.
func (e SessionStateChangedEvent) GetDeviceID() string {
	return e.DeviceID
}

// IsActive implements the SessionStateEvent interface for the LED manager.
func (e SessionStateChangedEvent) IsActive() bool {
	return e.Active
}

// SessionErrorEvent carries an asynchronous capture failure.
type SessionErrorEvent struct {
	DeviceID  string `json:"device_id" doc:"Unique device identifier"`
	Error     string `json:"error" example:"preview handler panicked: boom" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionErrorEvent.
func (e SessionErrorEvent) Type() uint32 { return TypeSessionError }

// PhotoCapturedEvent is published after a photo was delivered.
type PhotoCapturedEvent struct {
	DeviceID  string `json:"device_id" doc:"Unique device identifier"`
	Width     int    `json:"width" example:"1920" doc:"Photo width in pixels"`
	Height    int    `json:"height" example:"1080" doc:"Photo height in pixels"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for PhotoCapturedEvent.
func (e PhotoCapturedEvent) Type() uint32 { return TypePhotoCaptured }

// PermissionResultEvent reports the outcome of a permission request.
type PermissionResultEvent struct {
	Kind      string `json:"kind" example:"camera" doc:"Device kind the permission covers"`
	Granted   bool   `json:"granted" example:"true" doc:"Whether access was granted"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PermissionResultEvent.
func (e PermissionResultEvent) Type() uint32 { return TypePermissionResult }

// SettingsChangedEvent is published when a device configuration is updated.
type SettingsChangedEvent struct {
	DeviceID  string `json:"device_id" doc:"Unique device identifier"`
	Kind      string `json:"kind" example:"camera" doc:"Device kind"`
	Deferred  bool   `json:"deferred" example:"false" doc:"True when some changes apply on the next start"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingsChangedEvent.
func (e SettingsChangedEvent) Type() uint32 { return TypeSettingsChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
