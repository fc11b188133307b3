package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/events"
)

// CameraUpdateInput combines the device path and the fields to change.
type CameraUpdateInput struct {
	DevicePathInput
	Body models.CameraUpdate
}

// AudioUpdateInput combines the device path and the fields to change.
type AudioUpdateInput struct {
	DevicePathInput
	Body models.AudioUpdate
}

func (s *Server) cameraConfig(cam *devices.Camera, deviceID string) (models.CameraConfigData, error) {
	data := models.CameraConfigData{DeviceID: deviceID}

	fov, err := cam.FieldOfView()
	if err != nil {
		return data, err
	}
	exposure, err := cam.ExposureRange()
	if err != nil {
		return data, err
	}
	zoom, err := cam.ZoomRange()
	if err != nil {
		return data, err
	}
	maxFPS, err := cam.MaxFrameRate()
	if err != nil {
		return data, err
	}
	maxRes, err := cam.MaxResolution()
	if err != nil {
		return data, err
	}
	data.Capabilities = models.CameraCapabilities{
		FieldOfView:   fov,
		ExposureRange: exposure,
		ZoomRange:     zoom,
		MaxFrameRate:  maxFPS,
		MaxResolution: maxRes,
	}

	active, err := cam.Settings()
	if err != nil {
		return data, err
	}
	data.Settings = models.NewCameraSettings(active)

	pending, deferred, err := cam.Pending()
	if err != nil {
		return data, err
	}
	if deferred {
		p := models.NewCameraSettings(pending)
		data.Pending = &p
	}
	return data, nil
}

func (s *Server) audioConfig(mic *devices.Audio, deviceID string, flags devices.Flags) (models.AudioConfigData, error) {
	data := models.AudioConfigData{DeviceID: deviceID}

	name, err := mic.Name()
	if err != nil {
		return data, err
	}
	maxChannels, err := mic.MaxChannels()
	if err != nil {
		return data, err
	}
	data.Name = name
	data.Capabilities = models.AudioCapabilities{
		MaxChannels:      maxChannels,
		EchoCancellation: flags.EchoCancellation(),
	}

	if data.Settings, err = mic.Settings(); err != nil {
		return data, err
	}
	pending, deferred, err := mic.Pending()
	if err != nil {
		return data, err
	}
	if deferred {
		data.Pending = &pending
	}
	return data, nil
}

// applyCameraUpdate runs the setters for every field present in u, stopping
// at the first rejected value.
func applyCameraUpdate(cam *devices.Camera, u models.CameraUpdate) error {
	var steps []func() error

	if u.PreviewResolution != nil {
		steps = append(steps, func() error { return cam.SetPreviewResolution(*u.PreviewResolution) })
	}
	if u.PhotoResolution != nil {
		steps = append(steps, func() error { return cam.SetPhotoResolution(*u.PhotoResolution) })
	}
	if u.FrameRate != nil {
		steps = append(steps, func() error { return cam.SetFrameRate(*u.FrameRate) })
	}
	if u.Orientation != nil {
		steps = append(steps, func() error {
			o, err := devices.ParseOrientation(*u.Orientation)
			if err != nil {
				return err
			}
			return cam.SetOrientation(o)
		})
	}
	if u.FlashMode != nil {
		steps = append(steps, func() error {
			m, err := devices.ParseFlashMode(*u.FlashMode)
			if err != nil {
				return err
			}
			return cam.SetFlashMode(m)
		})
	}
	if u.ExposureBias != nil {
		steps = append(steps, func() error { return cam.SetExposureBias(*u.ExposureBias) })
	}
	if u.ZoomRatio != nil {
		steps = append(steps, func() error { return cam.SetZoomRatio(*u.ZoomRatio) })
	}
	if u.ExposureLock != nil {
		steps = append(steps, func() error { return cam.SetExposureLock(*u.ExposureLock) })
	}
	if u.FocusLock != nil {
		steps = append(steps, func() error { return cam.SetFocusLock(*u.FocusLock) })
	}
	if u.WhiteBalanceLock != nil {
		steps = append(steps, func() error { return cam.SetWhiteBalanceLock(*u.WhiteBalanceLock) })
	}
	if u.TorchEnabled != nil {
		steps = append(steps, func() error { return cam.SetTorchEnabled(*u.TorchEnabled) })
	}
	if u.ExposurePoint != nil {
		steps = append(steps, func() error { return cam.SetExposurePoint(*u.ExposurePoint) })
	}
	if u.FocusPoint != nil {
		steps = append(steps, func() error { return cam.SetFocusPoint(*u.FocusPoint) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func applyAudioUpdate(mic *devices.Audio, u models.AudioUpdate) error {
	if u.SampleRate != nil {
		if err := mic.SetSampleRate(*u.SampleRate); err != nil {
			return err
		}
	}
	if u.ChannelCount != nil {
		if err := mic.SetChannelCount(*u.ChannelCount); err != nil {
			return err
		}
	}
	if u.EchoCancellation != nil {
		if err := mic.SetEchoCancellation(*u.EchoCancellation); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-settings",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/camera",
		Summary:     "Get Camera Settings",
		Description: "Get camera capabilities, active settings and settings pending the next start",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *DevicePathInput) (*models.CameraConfigResponse, error) {
		var resp models.CameraConfigResponse
		err := s.withHandle(input.DeviceID, func(h devices.Handle) error {
			cam, err := s.registry.Camera(h)
			if err != nil {
				return err
			}
			resp.Body, err = s.cameraConfig(cam, input.DeviceID)
			return err
		})
		if err != nil {
			return nil, toHTTPError("Failed to read camera settings", err)
		}
		return &resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-camera-settings",
		Method:      http.MethodPatch,
		Path:        "/api/devices/{device_id}/camera",
		Summary:     "Update Camera Settings",
		Description: "Change camera settings. Range values are clamped. Resolution, frame rate and orientation changes made while running apply on the next start.",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 500},
	}, func(ctx context.Context, input *CameraUpdateInput) (*models.CameraConfigResponse, error) {
		var resp models.CameraConfigResponse
		err := s.withHandle(input.DeviceID, func(h devices.Handle) error {
			cam, err := s.registry.Camera(h)
			if err != nil {
				return err
			}
			if err := applyCameraUpdate(cam, input.Body); err != nil {
				return err
			}
			if resp.Body, err = s.cameraConfig(cam, input.DeviceID); err != nil {
				return err
			}
			if input.Body.SavePreset {
				return s.saveCameraPreset(h, cam)
			}
			return nil
		})
		if err != nil {
			return nil, toHTTPError("Failed to update camera settings", err)
		}

		s.eventBus.Publish(events.SettingsChangedEvent{
			DeviceID:  input.DeviceID,
			Kind:      devices.KindCamera.String(),
			Deferred:  resp.Body.Pending != nil,
			Timestamp: now(),
		})
		return &resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-audio-settings",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}/audio",
		Summary:     "Get Microphone Settings",
		Description: "Get microphone capabilities and settings",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(ctx context.Context, input *DevicePathInput) (*models.AudioConfigResponse, error) {
		var resp models.AudioConfigResponse
		err := s.withHandle(input.DeviceID, func(h devices.Handle) error {
			mic, err := s.registry.Audio(h)
			if err != nil {
				return err
			}
			flags, err := s.registry.Flags(h)
			if err != nil {
				return err
			}
			resp.Body, err = s.audioConfig(mic, input.DeviceID, flags)
			return err
		})
		if err != nil {
			return nil, toHTTPError("Failed to read microphone settings", err)
		}
		return &resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-audio-settings",
		Method:      http.MethodPatch,
		Path:        "/api/devices/{device_id}/audio",
		Summary:     "Update Microphone Settings",
		Description: "Change microphone settings. Changes made while running apply on the next start.",
		Tags:        []string{"settings"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404, 422, 500},
	}, func(ctx context.Context, input *AudioUpdateInput) (*models.AudioConfigResponse, error) {
		var resp models.AudioConfigResponse
		err := s.withHandle(input.DeviceID, func(h devices.Handle) error {
			mic, err := s.registry.Audio(h)
			if err != nil {
				return err
			}
			flags, err := s.registry.Flags(h)
			if err != nil {
				return err
			}
			if err := applyAudioUpdate(mic, input.Body); err != nil {
				return err
			}
			if resp.Body, err = s.audioConfig(mic, input.DeviceID, flags); err != nil {
				return err
			}
			if input.Body.SavePreset {
				return s.saveAudioPreset(h, mic)
			}
			return nil
		})
		if err != nil {
			return nil, toHTTPError("Failed to update microphone settings", err)
		}

		s.eventBus.Publish(events.SettingsChangedEvent{
			DeviceID:  input.DeviceID,
			Kind:      devices.KindMicrophone.String(),
			Deferred:  resp.Body.Pending != nil,
			Timestamp: now(),
		})
		return &resp, nil
	})
}

// saveCameraPreset stores the settings the camera will use on its next start.
func (s *Server) saveCameraPreset(h devices.Handle, cam *devices.Camera) error {
	if s.options.Presets == nil {
		return nil
	}
	desc, err := s.registry.Descriptor(h)
	if err != nil {
		return err
	}
	settings, _, err := cam.Pending()
	if err != nil {
		return err
	}
	return s.options.Presets.SaveCamera(desc.Key, desc.Name, settings)
}

func (s *Server) saveAudioPreset(h devices.Handle, mic *devices.Audio) error {
	if s.options.Presets == nil {
		return nil
	}
	desc, err := s.registry.Descriptor(h)
	if err != nil {
		return err
	}
	settings, _, err := mic.Pending()
	if err != nil {
		return err
	}
	return s.options.Presets.SaveAudio(desc.Key, desc.Name, settings)
}
