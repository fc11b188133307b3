package models

import (
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
)

// PresetData is a saved device configuration.
type PresetData struct {
	Key       string                 `json:"key" example:"synthetic:camera:rear" doc:"Discovery key of the device"`
	Name      string                 `json:"name" example:"Rear Test Pattern" doc:"Device name when the preset was saved"`
	Camera    *CameraSettings        `json:"camera,omitempty" doc:"Saved camera settings"`
	Audio     *devices.AudioSettings `json:"audio,omitempty" doc:"Saved microphone settings"`
	UpdatedAt time.Time              `json:"updated_at" doc:"When the preset was last saved"`
}

type PresetResponse struct {
	Body PresetData
}

type PresetListData struct {
	Presets []PresetData `json:"presets" doc:"Saved presets sorted by key"`
	Count   int          `json:"count" example:"1" doc:"Number of presets"`
}

type PresetListResponse struct {
	Body PresetListData
}
