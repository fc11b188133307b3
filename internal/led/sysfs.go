package led

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using the Linux sysfs LED interface.
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name
}

func newSysfs(leds map[string]string) *sysfs {
	return &sysfs{root: sysfsLEDPath, leds: leds}
}

// trigger maps a pattern to the kernel trigger that implements it.
func trigger(pattern string) string {
	switch pattern {
	case PatternSolid:
		return "none"
	case PatternBlink, PatternHeartbeat:
		return "heartbeat"
	default:
		return pattern
	}
}

// Set controls an LED's state and optional pattern.
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	name, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}

	ledPath := filepath.Join(s.root, name)
	if _, err := os.Stat(ledPath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("LED %q not found at %s", ledType, ledPath)
	}

	// "solid" is manual control, so the trigger is cleared before brightness is written.
	if pattern != "" && enabled {
		if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte(trigger(pattern)), 0o644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}
	if !enabled {
		if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte("none"), 0o644); err != nil {
			return fmt.Errorf("failed to clear LED trigger: %w", err)
		}
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(ledPath, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

// Available returns the LED types supported by this controller, sorted.
func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	slices.Sort(types)
	return types
}

func (s *sysfs) Patterns() []string {
	return []string{PatternSolid, PatternBlink, PatternHeartbeat}
}
