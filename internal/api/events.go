package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/mediadevice/internal/events"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ConnectedEvent is the first message of every event stream.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z"`
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device changes, session state, errors, photos, permission results and settings changes",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":             ConnectedEvent{},
		"device-discovery":      events.DeviceDiscoveryEvent{},
		"session-state-changed": events.SessionStateChangedEvent{},
		"session-error":         events.SessionErrorEvent{},
		"photo-captured":        events.PhotoCapturedEvent{},
		"permission-result":     events.PermissionResultEvent{},
		"settings-changed":      events.SettingsChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribe := events.SubscribeDeviceEvents(s.eventBus, eventCh)
		defer unsubscribe()

		if err := send.Data(ConnectedEvent{Message: "SSE connection established", Timestamp: now()}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
