package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/events"
	"github.com/smazurov/mediadevice/internal/session"
)

// kindOf returns the kind of deviceID, or zero if it is unknown.
func (s *Server) kindOf(deviceID string) devices.Kind {
	for _, info := range s.registry.Devices(0) {
		if info.ID == deviceID {
			return info.Kind
		}
	}
	return 0
}

func (s *Server) sessionData(info *session.Info) models.SessionData {
	kind := info.Kind
	if kind == 0 {
		kind = s.kindOf(info.DeviceID)
	}
	data := models.SessionData{
		DeviceID:      info.DeviceID,
		SessionID:     info.SessionID,
		Kind:          kind.String(),
		State:         string(info.State),
		PendingPhotos: info.PendingPhotos,
		PhotosTaken:   info.PhotosTaken,
		Stats:         info.Stats,
	}
	if !info.StartedAt.IsZero() {
		started := info.StartedAt
		data.StartedAt = &started
	}
	if info.LastError != nil {
		data.LastError = info.LastError.Error()
	}

	s.mu.Lock()
	c, ok := s.captures[info.DeviceID]
	s.mu.Unlock()
	if ok && c.kind == devices.KindMicrophone {
		if level, ok := c.latestLevel(); ok {
			data.Level = &level
		}
	}
	return data
}

// startCapture starts a session on deviceID that feeds an API-owned capture.
// Start and stop are serialized per device; s.mu only guards shared fields.
func (s *Server) startCapture(ctx context.Context, deviceID string) error {
	s.deviceLock.LockKey(deviceID)
	defer func() { _ = s.deviceLock.UnlockKey(deviceID) }()

	s.mu.Lock()
	c, ok := s.captures[deviceID]
	s.mu.Unlock()
	if ok {
		if s.options.Sessions.StatusByID(deviceID).State.Active() {
			return devices.NewError(devices.ErrCodeAlreadyRunning, fmt.Sprintf("device %s is already running", deviceID), nil)
		}
		// The session ended underneath us, e.g. the device was unplugged.
		s.release(deviceID, c)
	}

	h, err := s.registry.Lookup(deviceID)
	if err != nil {
		return err
	}
	kind, err := s.registry.Kind(h)
	if err != nil {
		_ = s.registry.Release(h)
		return err
	}

	c = newCapture(h, kind)
	if kind == devices.KindCamera {
		err = s.options.Sessions.StartCamera(ctx, h, c.onFrame)
	} else {
		err = s.options.Sessions.StartMicrophone(ctx, h, c.onSamples)
	}
	if err != nil {
		_ = s.registry.Release(h)
		return err
	}

	s.mu.Lock()
	s.captures[deviceID] = c
	s.mu.Unlock()
	return nil
}

// stopCapture stops the session on deviceID and drops the API's handle.
func (s *Server) stopCapture(deviceID string) error {
	s.deviceLock.LockKey(deviceID)
	defer func() { _ = s.deviceLock.UnlockKey(deviceID) }()

	err := s.options.Sessions.StopDevice(deviceID)

	s.mu.Lock()
	c, ok := s.captures[deviceID]
	s.mu.Unlock()
	if ok {
		s.release(deviceID, c)
	}
	return err
}

func (s *Server) release(deviceID string, c *capture) {
	s.mu.Lock()
	delete(s.captures, deviceID)
	s.mu.Unlock()
	if err := s.registry.Release(c.handle); err != nil && !devices.IsCode(err, devices.ErrCodeInvalidHandle) {
		s.logger.Warn("Failed to release capture handle", "device_id", deviceID, "error", err)
	}
}

func (s *Server) stopCaptures() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.captures))
	for id := range s.captures {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.stopCapture(id); err != nil && !devices.IsCode(err, devices.ErrCodeNotRunning) {
			s.logger.Warn("Failed to stop capture", "device_id", id, "error", err)
		}
	}
}

// takePhoto requests one photo and waits for it to be delivered.
func (s *Server) takePhoto(ctx context.Context, deviceID string) (delivery.Frame, error) {
	result := make(chan delivery.Frame, 1)
	err := s.withHandle(deviceID, func(h devices.Handle) error {
		return s.options.Sessions.CapturePhoto(h, func(f delivery.Frame) {
			result <- f.Clone()
		})
	})
	if err != nil {
		return delivery.Frame{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.options.PhotoTimeout)
	defer cancel()

	select {
	case f := <-result:
		return f, nil
	case <-ctx.Done():
		return delivery.Frame{}, fmt.Errorf("photo not delivered: %w", ctx.Err())
	}
}

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "start-device",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/start",
		Summary:     "Start Capture",
		Description: "Start a capture session. Permission for the device kind must have been granted.",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 403, 404, 409, 500},
	}, func(ctx context.Context, input *DevicePathInput) (*models.SessionResponse, error) {
		if err := s.startCapture(ctx, input.DeviceID); err != nil {
			return nil, toHTTPError("Failed to start capture", err)
		}
		s.logger.Info("Capture started", "device_id", input.DeviceID)
		return &models.SessionResponse{Body: s.sessionData(s.options.Sessions.StatusByID(input.DeviceID))}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-device",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/stop",
		Summary:     "Stop Capture",
		Description: "Stop the capture session and wait for in-flight buffers to drain",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 500},
	}, func(ctx context.Context, input *DevicePathInput) (*models.SessionResponse, error) {
		if err := s.stopCapture(input.DeviceID); err != nil {
			return nil, toHTTPError("Failed to stop capture", err)
		}
		s.logger.Info("Capture stopped", "device_id", input.DeviceID)
		return &models.SessionResponse{Body: s.sessionData(s.options.Sessions.StatusByID(input.DeviceID))}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "capture-photo",
		Method:      http.MethodPost,
		Path:        "/api/devices/{device_id}/photo",
		Summary:     "Capture Photo",
		Description: "Capture one photo-resolution frame from a running camera and return it as a base64 PNG",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409, 422, 500, 504},
	}, func(ctx context.Context, input *DevicePathInput) (*models.PhotoResponse, error) {
		frame, err := s.takePhoto(ctx, input.DeviceID)
		if err != nil {
			return nil, toHTTPError("Failed to capture photo", err)
		}
		encoded, err := encodePNG(frame)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to encode photo", err)
		}

		s.eventBus.Publish(events.PhotoCapturedEvent{
			DeviceID:  input.DeviceID,
			Width:     frame.Width,
			Height:    frame.Height,
			Timestamp: now(),
		})

		return &models.PhotoResponse{
			Body: models.PhotoData{
				DeviceID:  input.DeviceID,
				Width:     frame.Width,
				Height:    frame.Height,
				Format:    "png",
				ImageData: base64.StdEncoding.EncodeToString(encoded),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-preview",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/preview",
		Summary:     "Preview Frame",
		Description: "Latest preview frame of a camera started through this API, as PNG",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 422, 504},
	}, func(ctx context.Context, input *DevicePathInput) (*models.ImageResponse, error) {
		s.mu.Lock()
		c, ok := s.captures[input.DeviceID]
		s.mu.Unlock()
		if !ok {
			return nil, huma.Error409Conflict("Device was not started through the API")
		}
		if c.kind != devices.KindCamera {
			return nil, huma.Error422UnprocessableEntity("Preview requires a camera")
		}

		select {
		case <-c.ready:
		case <-time.After(s.options.PhotoTimeout):
			return nil, huma.Error504GatewayTimeout("No preview frame yet")
		case <-ctx.Done():
			return nil, huma.Error504GatewayTimeout("No preview frame yet", ctx.Err())
		}

		frame, _ := c.latestFrame()
		encoded, err := encodePNG(frame)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to encode preview", err)
		}
		return &models.ImageResponse{ContentType: "image/png", Body: encoded}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device-stats",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/stats",
		Summary:     "Session Stats",
		Description: "Session state and delivery counters for a device",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DevicePathInput) (*models.SessionResponse, error) {
		var info *session.Info
		err := s.withHandle(input.DeviceID, func(h devices.Handle) error {
			var err error
			info, err = s.options.Sessions.Status(h)
			return err
		})
		if err != nil {
			return nil, toHTTPError("Device not found", err)
		}
		return &models.SessionResponse{Body: s.sessionData(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Sessions",
		Description: "List every active capture session",
		Tags:        []string{"sessions"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.SessionListResponse, error) {
		infos := s.options.Sessions.Sessions()
		sort.Slice(infos, func(i, j int) bool { return infos[i].DeviceID < infos[j].DeviceID })

		list := make([]models.SessionData, 0, len(infos))
		for _, info := range infos {
			list = append(list, s.sessionData(info))
		}
		return &models.SessionListResponse{
			Body: models.SessionListData{Sessions: list, Count: len(list)},
		}, nil
	})
}
