package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
)

// LEDControl sets one board LED.
type LEDControl struct {
	Type    string `json:"type" example:"system" doc:"LED name (board-specific: system, user, ...)"`
	Enabled bool   `json:"enabled" example:"true" doc:"Whether the LED should be lit"`
	Pattern string `json:"pattern,omitempty" example:"solid" enum:"solid,blink,heartbeat" doc:"Optional LED pattern"`
}

// LEDRequest represents a request to control an LED
type LEDRequest struct {
	Body LEDControl
}

// LEDCapabilities lists what the board's LEDs support.
type LEDCapabilities struct {
	AvailableTypes    []string `json:"available_types" doc:"LED names present on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Supported LED patterns"`
}

// LEDCapabilitiesResponse represents the LED capabilities of the current board
type LEDCapabilitiesResponse struct {
	Body LEDCapabilities
}

// registerLEDRoutes registers manual LED control. The capture indicator
// overrides a manual setting on its next session state change.
func (s *Server) registerLEDRoutes() {
	ctrl := s.options.LEDController
	if ctrl == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Set an LED's state and optional pattern",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *LEDRequest) (*struct{}, error) {
		if !slices.Contains(ctrl.Available(), input.Body.Type) {
			return nil, huma.Error400BadRequest("Unknown LED " + input.Body.Type)
		}
		if input.Body.Pattern != "" && !slices.Contains(ctrl.Patterns(), input.Body.Pattern) {
			return nil, huma.Error400BadRequest("Unknown LED pattern " + input.Body.Pattern)
		}
		if err := ctrl.Set(input.Body.Type, input.Body.Enabled, input.Body.Pattern); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "Get LED Capabilities",
		Description: "List the LED names and patterns available on this board",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*LEDCapabilitiesResponse, error) {
		return &LEDCapabilitiesResponse{
			Body: LEDCapabilities{
				AvailableTypes:    ctrl.Available(),
				AvailablePatterns: ctrl.Patterns(),
			},
		}, nil
	})

	s.logger.Info("LED routes registered")
}
