package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/session"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan PhotoCapturedEvent, 1)

	unsub := On(bus, func(e PhotoCapturedEvent) {
		received <- e
	})
	defer unsub()

	event := PhotoCapturedEvent{
		DeviceID:  "cam-1",
		Width:     1920,
		Height:    1080,
		Timestamp: "2026-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got != event {
		t.Errorf("Expected %+v, got %+v", event, got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan SessionStateChangedEvent, 1)
	received2 := make(chan SessionStateChangedEvent, 1)

	unsub1 := On(bus, func(e SessionStateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := On(bus, func(e SessionStateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(SessionStateChangedEvent{DeviceID: "cam-1", NewState: "running", Active: true})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionErrorEvent, 1)

	unsub := On(bus, func(e SessionErrorEvent) {
		received <- e
	})

	bus.Publish(SessionErrorEvent{DeviceID: "cam-1"})
	<-received

	unsub()

	bus.Publish(SessionErrorEvent{DeviceID: "cam-2"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	photoReceived := make(chan bool, 1)
	permissionReceived := make(chan bool, 1)

	unsub1 := On(bus, func(_ PhotoCapturedEvent) {
		photoReceived <- true
	})
	defer unsub1()

	unsub2 := On(bus, func(_ PermissionResultEvent) {
		permissionReceived <- true
	})
	defer unsub2()

	bus.Publish(PhotoCapturedEvent{DeviceID: "cam-1"})
	<-photoReceived

	select {
	case <-permissionReceived:
		t.Fatal("Permission subscriber should NOT have received PhotoCapturedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(PermissionResultEvent{Kind: "camera", Granted: true})
	<-permissionReceived

	select {
	case <-photoReceived:
		t.Fatal("Photo subscriber should NOT have received PermissionResultEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := On(bus, func(_ DeviceDiscoveryEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DeviceDiscoveryEvent{
					Action:    "added",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"DeviceDiscovery", DeviceDiscoveryEvent{Action: "added"}},
		{"SessionStateChanged", SessionStateChangedEvent{DeviceID: "cam-1"}},
		{"SessionError", SessionErrorEvent{DeviceID: "cam-1"}},
		{"PhotoCaptured", PhotoCapturedEvent{DeviceID: "cam-1"}},
		{"PermissionResult", PermissionResultEvent{Kind: "microphone"}},
		{"SettingsChanged", SettingsChangedEvent{DeviceID: "cam-1"}},
		{"LogEntry", LogEntryEvent{Seq: 1, Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case DeviceDiscoveryEvent:
				unsub = On(bus, func(e DeviceDiscoveryEvent) { received <- e })
			case SessionStateChangedEvent:
				unsub = On(bus, func(e SessionStateChangedEvent) { received <- e })
			case SessionErrorEvent:
				unsub = On(bus, func(e SessionErrorEvent) { received <- e })
			case PhotoCapturedEvent:
				unsub = On(bus, func(e PhotoCapturedEvent) { received <- e })
			case PermissionResultEvent:
				unsub = On(bus, func(e PermissionResultEvent) { received <- e })
			case SettingsChangedEvent:
				unsub = On(bus, func(e SettingsChangedEvent) { received <- e })
			case LogEntryEvent:
				unsub = On(bus, func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestDeviceDiscoveryEventJSON(t *testing.T) {
	data, err := json.Marshal(DeviceDiscoveryEvent{
		DeviceID:  "cam-1",
		Name:      "Rear",
		Kind:      "camera",
		Flags:     []string{"internal", "torch"},
		Action:    "added",
		Timestamp: "2026-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	for _, key := range []string{"device_id", "name", "kind", "flags", "action", "timestamp"} {
		if _, ok := result[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}

func TestSessionStateChangedEvent_Interface(t *testing.T) {
	event := SessionStateChangedEvent{DeviceID: "cam-1", Active: true}

	if event.GetDeviceID() != "cam-1" {
		t.Errorf("Expected device_id cam-1, got %s", event.GetDeviceID())
	}
	if !event.IsActive() {
		t.Error("Expected active to be true")
	}
}

func TestBridgeHandlers(t *testing.T) {
	bus := New()

	discovered := make(chan DeviceDiscoveryEvent, 1)
	states := make(chan SessionStateChangedEvent, 1)
	failures := make(chan SessionErrorEvent, 1)
	results := make(chan PermissionResultEvent, 1)
	defer On(bus, func(e DeviceDiscoveryEvent) { discovered <- e })()
	defer On(bus, func(e SessionStateChangedEvent) { states <- e })()
	defer On(bus, func(e SessionErrorEvent) { failures <- e })()
	defer On(bus, func(e PermissionResultEvent) { results <- e })()

	bus.DeviceChangeHandler()(devices.ActionAdded, devices.Info{
		ID:    "cam-1",
		Name:  "Rear",
		Kind:  devices.KindCamera,
		Flags: devices.FlagTorchSupported,
	})
	if e := <-discovered; e.Kind != "camera" || e.Action != "added" || len(e.Flags) != 1 || e.Flags[0] != "torch" {
		t.Errorf("discovery event = %+v", e)
	}

	bus.SessionStateHandler()("cam-1", session.StateStarting, session.StateIdle, errors.New("open failed"))
	if e := <-states; e.Active || e.NewState != "idle" || e.Error != "open failed" {
		t.Errorf("state event = %+v", e)
	}

	bus.SessionErrorHandler()("cam-1", errors.New("boom"))
	if e := <-failures; e.Error != "boom" {
		t.Errorf("error event = %+v", e)
	}

	bus.PermissionResultHandler()(devices.KindMicrophone, false)
	if e := <-results; e.Kind != "microphone" || e.Granted {
		t.Errorf("permission event = %+v", e)
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[PhotoCapturedEvent](bus, ch)
	defer unsub()

	event := PhotoCapturedEvent{DeviceID: "cam-1", Width: 640, Height: 480}
	bus.Publish(event)

	received := <-ch
	photo, ok := received.(PhotoCapturedEvent)
	if !ok {
		t.Fatalf("Expected PhotoCapturedEvent, got %T", received)
	}
	if photo.DeviceID != event.DeviceID {
		t.Errorf("Expected device_id %s, got %s", event.DeviceID, photo.DeviceID)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[SettingsChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(SettingsChangedEvent{DeviceID: "cam-1"})
		done <- true
	}()

	<-done // Should complete without blocking
}

func TestSubscribeDeviceEventsSkipsLogs(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeDeviceEvents(bus, ch)
	bus.Publish(LogEntryEvent{Message: "ignored"})
	bus.Publish(DeviceDiscoveryEvent{DeviceID: "cam-1", Action: "added"})
	bus.Publish(SessionErrorEvent{DeviceID: "cam-1", Error: "boom"})

	// Delivery is asynchronous per event type, so order is not fixed.
	seen := map[uint32]bool{}
	for range 2 {
		select {
		case e := <-ch:
			seen[e.(Event).Type()] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if !seen[TypeDeviceDiscovery] || !seen[TypeSessionError] {
		t.Errorf("seen = %v", seen)
	}

	unsub()
	bus.Publish(DeviceDiscoveryEvent{DeviceID: "cam-2"})
	select {
	case e := <-ch:
		t.Errorf("received %+v after unsubscribe", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(PhotoCapturedEvent{}.Type()); got != "photo-captured" {
		t.Errorf("TypeName = %q", got)
	}
	if got := TypeName(99); got != "unknown" {
		t.Errorf("TypeName(99) = %q", got)
	}
}

type foreignEvent struct{}

func (foreignEvent) Type() uint32 { return 99 }

func TestPublishIgnoresForeignTypes(t *testing.T) {
	bus := New()
	received := make(chan DeviceDiscoveryEvent, 1)
	defer On(bus, func(e DeviceDiscoveryEvent) { received <- e })()

	bus.Publish(foreignEvent{})
	bus.Publish(DeviceDiscoveryEvent{DeviceID: "cam-1"})

	select {
	case e := <-received:
		if e.DeviceID != "cam-1" {
			t.Errorf("received %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("discovery event not delivered after a foreign publish")
	}
}
