package events

import (
	"github.com/kelindar/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediadevice",
	Subsystem: "events",
	Name:      "dropped_total",
	Help:      "Events not forwarded to a channel subscriber because its buffer was full",
}, []string{"event"})

var typeNames = map[uint32]string{
	TypeDeviceDiscovery:     "device-discovery",
	TypeSessionStateChanged: "session-state-changed",
	TypeSessionError:        "session-error",
	TypePhotoCaptured:       "photo-captured",
	TypePermissionResult:    "permission-result",
	TypeSettingsChanged:     "settings-changed",
	TypeLogEntry:            "log-entry",
}

// TypeName returns the SSE event name for an event type.
func TypeName(t uint32) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// SubscribeToChannel forwards events of type T into ch. The publisher never
// blocks: while ch is full, events are counted and dropped.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			eventsDropped.WithLabelValues(TypeName(e.Type())).Inc()
		}
	})
}

// SubscribeDeviceEvents forwards every device, session, permission and
// settings event into ch. Log entries are not included.
func SubscribeDeviceEvents(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[DeviceDiscoveryEvent](bus, ch),
		SubscribeToChannel[SessionStateChangedEvent](bus, ch),
		SubscribeToChannel[SessionErrorEvent](bus, ch),
		SubscribeToChannel[PhotoCapturedEvent](bus, ch),
		SubscribeToChannel[PermissionResultEvent](bus, ch),
		SubscribeToChannel[SettingsChangedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
