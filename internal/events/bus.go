package events

import (
	"github.com/kelindar/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediadevice",
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Events published on the in-process bus",
}, []string{"event"})

// Bus is the in-process event bus. Each event type is dispatched on its own
// kelindar/event queue, so delivery order is only guaranteed per type.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// publishers re-types an Event to its concrete type, which kelindar/event
// dispatches on.
var publishers = map[uint32]func(*event.Dispatcher, Event){}

func route[T Event]() {
	var zero T
	publishers[zero.Type()] = func(d *event.Dispatcher, e Event) {
		event.Publish(d, e.(T))
	}
}

func init() {
	route[DeviceDiscoveryEvent]()
	route[SessionStateChangedEvent]()
	route[SessionErrorEvent]()
	route[PhotoCapturedEvent]()
	route[PermissionResultEvent]()
	route[SettingsChangedEvent]()
	route[LogEntryEvent]()
}

// Publish delivers ev to the subscribers of its type. Types not declared in
// this package are ignored.
func (b *Bus) Publish(ev Event) {
	publish, ok := publishers[ev.Type()]
	if !ok {
		return
	}
	eventsPublished.WithLabelValues(TypeName(ev.Type())).Inc()
	publish(b.dispatcher, ev)
}

// On calls fn for every event of type T until the returned function is
// called.
func On[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}
