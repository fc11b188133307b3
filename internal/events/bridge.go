package events

import (
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/session"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DeviceChangeHandler returns a registry OnChange callback that publishes
// DeviceDiscoveryEvents.
func (b *Bus) DeviceChangeHandler() func(action string, info devices.Info) {
	return func(action string, info devices.Info) {
		b.Publish(DeviceDiscoveryEvent{
			DeviceID:  info.ID,
			Name:      info.Name,
			Kind:      info.Kind.String(),
			Flags:     info.Flags.Names(),
			Action:    action,
			Timestamp: now(),
		})
	}
}

// SessionStateHandler returns a session OnStateChange callback that
// publishes SessionStateChangedEvents.
func (b *Bus) SessionStateHandler() session.StateChangeCallback {
	return func(deviceID string, oldState, newState session.State, err error) {
		ev := SessionStateChangedEvent{
			DeviceID:  deviceID,
			OldState:  string(oldState),
			NewState:  string(newState),
			Active:    newState.Active(),
			Timestamp: now(),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		b.Publish(ev)
	}
}

// SessionErrorHandler returns a session OnError callback that publishes
// SessionErrorEvents.
func (b *Bus) SessionErrorHandler() session.ErrorCallback {
	return func(deviceID string, err error) {
		b.Publish(SessionErrorEvent{DeviceID: deviceID, Error: err.Error(), Timestamp: now()})
	}
}

// PermissionResultHandler returns a permission OnResult callback that
// publishes PermissionResultEvents.
func (b *Bus) PermissionResultHandler() func(kind devices.Kind, granted bool) {
	return func(kind devices.Kind, granted bool) {
		b.Publish(PermissionResultEvent{Kind: kind.String(), Granted: granted, Timestamp: now()})
	}
}
