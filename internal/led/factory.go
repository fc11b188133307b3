package led

import (
	"os"
	"strings"

	"github.com/smazurov/mediadevice/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boards maps a device tree model substring to the board's LED names.
// The capture indicator uses the "system" type when present, else the first.
var boards = []struct {
	model string
	leds  map[string]string
}{
	{"NanoPC-T6", map[string]string{"user": "usr_led", "system": "sys_led"}},
	{"Orange Pi", map[string]string{"blue": "blue_led", "green": "green_led"}},
	{"Raspberry Pi", map[string]string{"system": "ACT"}},
}

// New creates a new LED controller based on board detection.
// Falls back to a no-op controller if LEDs are not available.
func New(logger logging.Logger) Controller {
	return newForModel(detectBoard(), logger)
}

func newForModel(model string, logger logging.Logger) Controller {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			if logger != nil {
				logger.Info("Detected board, using sysfs LED controller", "board_model", model)
			}
			return newSysfs(b.leds)
		}
	}
	if logger != nil {
		logger.Info("No LED support detected, using no-op controller", "board_model", model)
	}
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	// Device tree strings are NUL terminated.
	return strings.TrimRight(string(data), "\x00")
}
