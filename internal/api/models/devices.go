package models

import (
	"github.com/smazurov/mediadevice/internal/devices"
)

// DeviceInfo describes one camera or microphone.
type DeviceInfo struct {
	DeviceID     string   `json:"device_id" example:"7b1c2f9e-3a55-4c1e-9d0a-2f7e8b6c1d44" doc:"Unique device identifier, stable for the process lifetime"`
	Key          string   `json:"key" example:"synthetic:camera:rear" doc:"Discovery key, stable across restarts"`
	Name         string   `json:"name" example:"Rear Test Pattern" doc:"Device name"`
	Kind         string   `json:"kind" example:"camera" enum:"camera,microphone" doc:"Device kind"`
	Type         string   `json:"type" example:"internal" doc:"Device type derived from the flags"`
	Flags        []string `json:"flags" example:"[\"internal\",\"torch\"]" doc:"Capability flags"`
	Running      bool     `json:"running" example:"false" doc:"Whether a capture session owns the device"`
	SessionState string   `json:"session_state" example:"idle" doc:"Current session state"`
}

type DeviceListData struct {
	Devices []DeviceInfo `json:"devices" doc:"Devices matching the query"`
	Count   int          `json:"count" example:"3" doc:"Number of devices returned"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

type DeviceResponse struct {
	Body DeviceInfo
}

// CameraCapabilities holds the fixed, read-only properties of a camera.
type CameraCapabilities struct {
	FieldOfView   devices.FieldOfView `json:"field_of_view" doc:"Horizontal and vertical field of view in degrees"`
	ExposureRange devices.Range       `json:"exposure_range" doc:"Exposure bias bounds"`
	ZoomRange     devices.Range       `json:"zoom_range" doc:"Zoom ratio bounds, minimum is always 1"`
	MaxFrameRate  int                 `json:"max_frame_rate" example:"60" doc:"Highest accepted frame rate"`
	MaxResolution devices.Resolution  `json:"max_resolution" doc:"Largest accepted preview or photo resolution"`
}

// CameraSettings is the wire form of a camera configuration.
type CameraSettings struct {
	PreviewResolution devices.Resolution `json:"preview_resolution" doc:"Preview buffer size"`
	PhotoResolution   devices.Resolution `json:"photo_resolution" doc:"Photo buffer size"`
	FrameRate         int                `json:"frame_rate" example:"30" doc:"Preview frame rate"`
	FlashMode         string             `json:"flash_mode" example:"off" enum:"off,on,auto" doc:"Flash mode"`
	Orientation       string             `json:"orientation" example:"portrait" doc:"Output orientation"`
	ExposureBias      float32            `json:"exposure_bias" example:"0" doc:"Exposure compensation in EV"`
	ZoomRatio         float32            `json:"zoom_ratio" example:"1" doc:"Zoom ratio"`
	ExposureLock      bool               `json:"exposure_lock" doc:"Auto exposure locked"`
	FocusLock         bool               `json:"focus_lock" doc:"Auto focus locked"`
	WhiteBalanceLock  bool               `json:"white_balance_lock" doc:"Auto white balance locked"`
	TorchEnabled      bool               `json:"torch_enabled" doc:"Torch lit"`
	ExposurePoint     devices.Point      `json:"exposure_point" doc:"Exposure point of interest in the unit square"`
	FocusPoint        devices.Point      `json:"focus_point" doc:"Focus point of interest in the unit square"`
}

// NewCameraSettings converts device settings to the wire form.
func NewCameraSettings(s devices.CameraSettings) CameraSettings {
	return CameraSettings{
		PreviewResolution: s.PreviewResolution,
		PhotoResolution:   s.PhotoResolution,
		FrameRate:         s.FrameRate,
		FlashMode:         s.FlashMode.String(),
		Orientation:       s.Orientation.String(),
		ExposureBias:      s.ExposureBias,
		ZoomRatio:         s.ZoomRatio,
		ExposureLock:      s.ExposureLock,
		FocusLock:         s.FocusLock,
		WhiteBalanceLock:  s.WhiteBalanceLock,
		TorchEnabled:      s.TorchEnabled,
		ExposurePoint:     s.ExposurePoint,
		FocusPoint:        s.FocusPoint,
	}
}

type CameraConfigData struct {
	DeviceID     string             `json:"device_id" doc:"Unique device identifier"`
	Capabilities CameraCapabilities `json:"capabilities" doc:"Fixed camera capabilities"`
	Settings     CameraSettings     `json:"settings" doc:"Settings in effect"`
	Pending      *CameraSettings    `json:"pending,omitempty" doc:"Settings that apply on the next start, when they differ"`
}

type CameraConfigResponse struct {
	Body CameraConfigData
}

// CameraUpdate lists the camera settings to change. Omitted fields are left alone.
type CameraUpdate struct {
	PreviewResolution *devices.Resolution `json:"preview_resolution,omitempty" doc:"Preview buffer size (applied on next start while running)"`
	PhotoResolution   *devices.Resolution `json:"photo_resolution,omitempty" doc:"Photo buffer size (applied on next start while running)"`
	FrameRate         *int                `json:"frame_rate,omitempty" minimum:"1" doc:"Preview frame rate (applied on next start while running)"`
	FlashMode         *string             `json:"flash_mode,omitempty" enum:"off,on,auto" doc:"Flash mode"`
	Orientation       *string             `json:"orientation,omitempty" doc:"Output orientation (applied on next start while running)"`
	ExposureBias      *float32            `json:"exposure_bias,omitempty" doc:"Exposure compensation, clamped to the exposure range"`
	ZoomRatio         *float32            `json:"zoom_ratio,omitempty" doc:"Zoom ratio, clamped to the zoom range"`
	ExposureLock      *bool               `json:"exposure_lock,omitempty" doc:"Lock auto exposure"`
	FocusLock         *bool               `json:"focus_lock,omitempty" doc:"Lock auto focus"`
	WhiteBalanceLock  *bool               `json:"white_balance_lock,omitempty" doc:"Lock auto white balance"`
	TorchEnabled      *bool               `json:"torch_enabled,omitempty" doc:"Light the torch"`
	ExposurePoint     *devices.Point      `json:"exposure_point,omitempty" doc:"Exposure point of interest"`
	FocusPoint        *devices.Point      `json:"focus_point,omitempty" doc:"Focus point of interest"`
	SavePreset        bool                `json:"save_preset,omitempty" doc:"Persist the resulting settings so they are restored when the device reappears"`
}

// AudioCapabilities holds the fixed properties of a microphone.
type AudioCapabilities struct {
	MaxChannels      int  `json:"max_channels" example:"2" doc:"Highest accepted channel count"`
	EchoCancellation bool `json:"echo_cancellation" doc:"Whether echo cancellation is available"`
}

type AudioConfigData struct {
	DeviceID     string                 `json:"device_id" doc:"Unique device identifier"`
	Name         string                 `json:"name" doc:"Device name"`
	Capabilities AudioCapabilities      `json:"capabilities" doc:"Fixed microphone capabilities"`
	Settings     devices.AudioSettings  `json:"settings" doc:"Settings in effect"`
	Pending      *devices.AudioSettings `json:"pending,omitempty" doc:"Settings that apply on the next start, when they differ"`
}

type AudioConfigResponse struct {
	Body AudioConfigData
}

// AudioUpdate lists the microphone settings to change.
type AudioUpdate struct {
	SampleRate       *int  `json:"sample_rate,omitempty" doc:"Sample rate in Hz"`
	ChannelCount     *int  `json:"channel_count,omitempty" doc:"Number of interleaved channels"`
	EchoCancellation *bool `json:"echo_cancellation,omitempty" doc:"Enable echo cancellation (ignored when unsupported)"`
	SavePreset       bool  `json:"save_preset,omitempty" doc:"Persist the resulting settings"`
}
