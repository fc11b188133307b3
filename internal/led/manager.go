package led

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/smazurov/mediadevice/internal/events"
)

// Manager lights the capture indicator while any device session is active.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger
	indicator   string

	mu     sync.Mutex
	active map[string]bool // deviceID -> delivering
	lit    *bool
}

// NewManager creates a new LED manager that reacts to session state changes.
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		indicator:  indicatorLED(controller.Available()),
		active:     make(map[string]bool),
	}
}

// indicatorLED picks the LED used as capture indicator.
func indicatorLED(available []string) string {
	if slices.Contains(available, "system") {
		return "system"
	}
	if len(available) > 0 {
		return available[0]
	}
	return "system"
}

// Start begins listening for session state change events.
func (m *Manager) Start() {
	m.unsubscribe = events.On(m.eventBus, func(e events.SessionStateChangedEvent) {
		m.handleEvent(e)
	})
	m.logger.Info("LED manager started", "led", m.indicator)
}

// Stop unsubscribes and turns the indicator off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	if err := m.controller.Set(m.indicator, false, ""); err != nil {
		m.logger.Warn("Failed to turn off indicator LED", "error", err)
	}
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(event events.SessionStateChangedEvent) {
	deviceID := event.GetDeviceID()
	active := event.IsActive()

	m.mu.Lock()
	defer m.mu.Unlock()

	if active {
		m.active[deviceID] = true
	} else {
		delete(m.active, deviceID)
	}
	m.logger.Debug("Session state changed", "device_id", deviceID, "active", active)

	m.updateIndicatorLocked()
}

// updateIndicatorLocked writes the LED only when the aggregate state flips.
// Must hold m.mu.
func (m *Manager) updateIndicatorLocked() {
	on := len(m.active) > 0
	if m.lit != nil && *m.lit == on {
		return
	}

	var err error
	if on {
		err = m.controller.Set(m.indicator, true, PatternSolid)
	} else {
		err = m.controller.Set(m.indicator, false, "")
	}
	if err != nil {
		m.logger.Warn("Failed to set indicator LED", "on", on, "error", err)
		return
	}
	m.lit = &on
	m.logger.Debug("Indicator LED updated", "on", on, "active_devices", len(m.active))
}

// ActiveDevices returns the number of devices currently delivering buffers.
func (m *Manager) ActiveDevices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// GetController returns the underlying LED controller for direct API access.
func (m *Manager) GetController() Controller {
	return m.controller
}
