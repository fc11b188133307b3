package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dchest/uniuri"
	"github.com/gorilla/websocket"

	"github.com/smazurov/mediadevice/internal/devices"
)

const (
	defaultStreamFPS = 5
	maxStreamFPS     = 30
	streamWriteWait  = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the CORS middleware
	},
}

// levelMessage is sent to WebSocket clients of a microphone.
type levelMessage struct {
	DeviceID  string  `json:"device_id"`
	Level     float64 `json:"level"`
	Timestamp int64   `json:"timestamp"`
}

// registerStreamHandler mounts the live preview WebSocket. It lives outside
// huma, which has no WebSocket support.
func (s *Server) registerStreamHandler() {
	s.mux.HandleFunc("GET /api/devices/{device_id}/ws", s.serveStream)
}

// serveStream pushes the latest preview frame as a binary PNG message, or
// the audio level as JSON, at up to fps messages per second until the
// client goes away or the session stops.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	if s.authEnabled() {
		msg, _ := checkBasicAuth(r.Header.Get("Authorization"), r.URL.Query().Get("auth"), s.options.AuthUsername, s.options.AuthPassword)
		if msg != "" {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, msg, http.StatusUnauthorized)
			return
		}
	}

	deviceID := r.PathValue("device_id")
	s.mu.Lock()
	c, ok := s.captures[deviceID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "device was not started through the API", http.StatusConflict)
		return
	}

	fps := defaultStreamFPS
	if v := r.URL.Query().Get("fps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxStreamFPS {
			http.Error(w, "fps must be between 1 and 30", http.StatusBadRequest)
			return
		}
		fps = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade to WebSocket", "device_id", deviceID, "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("device_id", deviceID, "stream_id", uniuri.NewLen(8))
	logger.Info("Preview stream opened", "fps", fps, "remote", r.RemoteAddr)
	defer logger.Info("Preview stream closed")

	// Clients only send close frames; reading is what processes them.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var lastSent int64
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		if !s.options.Sessions.StatusByID(deviceID).State.Active() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
				time.Now().Add(streamWriteWait))
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if c.kind == devices.KindMicrophone {
			level, ok := c.latestLevel()
			if !ok {
				continue
			}
			msg := levelMessage{DeviceID: deviceID, Level: level, Timestamp: time.Now().UnixMilli()}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			continue
		}

		frame, ok := c.latestFrame()
		if !ok || frame.Timestamp == lastSent {
			continue
		}
		lastSent = frame.Timestamp

		encoded, err := encodePNG(frame)
		if err != nil {
			logger.Warn("Failed to encode preview frame", "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
			return
		}
	}
}
