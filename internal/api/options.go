package api

import (
	"net/http"
	"time"

	"github.com/smazurov/mediadevice/internal/config"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/events"
	"github.com/smazurov/mediadevice/internal/led"
	"github.com/smazurov/mediadevice/internal/permission"
	"github.com/smazurov/mediadevice/internal/session"
)

// DefaultPhotoTimeout bounds how long a photo request waits for delivery.
const DefaultPhotoTimeout = 10 * time.Second

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	CORSOrigin   string

	// Required collaborators.
	Registry *devices.Registry
	Sessions *session.Manager
	Gate     *permission.Gate
	EventBus *events.Bus

	// Presets receives settings saved through the API. Optional.
	Presets *config.PresetStore

	// LEDController enables the LED routes. Optional.
	LEDController led.Controller

	// PrometheusHandler serves /metrics. Defaults to promhttp.Handler().
	PrometheusHandler http.Handler

	PhotoTimeout time.Duration
}
