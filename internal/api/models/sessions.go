package models

import (
	"time"

	"github.com/smazurov/mediadevice/internal/delivery"
)

// SessionData describes the capture session of one device.
type SessionData struct {
	DeviceID      string         `json:"device_id" doc:"Unique device identifier"`
	SessionID     string         `json:"session_id,omitempty" doc:"Identifier of the current session"`
	Kind          string         `json:"kind" example:"camera" doc:"Device kind"`
	State         string         `json:"state" example:"running" enum:"idle,starting,running,capturing,stopping" doc:"Session state"`
	StartedAt     *time.Time     `json:"started_at,omitempty" doc:"When the session started"`
	PendingPhotos int            `json:"pending_photos" doc:"Photos requested but not yet delivered"`
	PhotosTaken   uint64         `json:"photos_taken" doc:"Photos delivered during this session"`
	LastError     string         `json:"last_error,omitempty" doc:"Most recent asynchronous error"`
	Stats         delivery.Stats `json:"stats" doc:"Delivery counters of the streaming channel"`
	Level         *float64       `json:"level,omitempty" doc:"RMS level of the latest audio buffer, 0 to 1"`
}

type SessionResponse struct {
	Body SessionData
}

type SessionListData struct {
	Sessions []SessionData `json:"sessions" doc:"Active sessions"`
	Count    int           `json:"count" doc:"Number of active sessions"`
}

type SessionListResponse struct {
	Body SessionListData
}

// PhotoData carries one still image.
type PhotoData struct {
	DeviceID  string `json:"device_id" doc:"Unique device identifier"`
	Width     int    `json:"width" example:"1920" doc:"Image width in pixels"`
	Height    int    `json:"height" example:"1080" doc:"Image height in pixels"`
	Format    string `json:"format" example:"png" doc:"Image encoding"`
	ImageData string `json:"image_data" doc:"Base64 encoded image"`
}

type PhotoResponse struct {
	Body PhotoData
}

// ImageResponse is a raw encoded image.
type ImageResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
