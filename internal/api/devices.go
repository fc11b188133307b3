package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/devices"
)

// DevicePathInput identifies a device by its unique ID.
type DevicePathInput struct {
	DeviceID string `path:"device_id" example:"7b1c2f9e-3a55-4c1e-9d0a-2f7e8b6c1d44" doc:"Unique device identifier"`
}

// DeviceListInput filters the device list.
type DeviceListInput struct {
	Kind   string `query:"kind" enum:"camera,microphone" doc:"Only list devices of this kind"`
	Facing string `query:"facing" enum:"front,rear" doc:"Only list cameras facing this way"`
	Type   string `query:"type" enum:"internal,external" doc:"Only list devices of this type"`
}

// withHandle issues a short-lived handle for deviceID and releases it after fn.
func (s *Server) withHandle(deviceID string, fn func(h devices.Handle) error) error {
	h, err := s.registry.Lookup(deviceID)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.registry.Release(h); err != nil {
			s.logger.Debug("Failed to release handle", "device_id", deviceID, "error", err)
		}
	}()
	return fn(h)
}

func (s *Server) deviceInfo(info devices.Info) models.DeviceInfo {
	key, _ := s.registry.KeyOf(info.ID)
	return models.DeviceInfo{
		DeviceID:     info.ID,
		Key:          key,
		Name:         info.Name,
		Kind:         info.Kind.String(),
		Type:         info.Type().String(),
		Flags:        info.Flags.Names(),
		Running:      info.Running,
		SessionState: string(s.options.Sessions.StatusByID(info.ID).State),
	}
}

// criteria builds the query criteria for a device list request.
func (in *DeviceListInput) criteria() ([]devices.Criterion, error) {
	var criteria []devices.Criterion
	if in.Kind != "" {
		kind, err := devices.ParseKind(in.Kind)
		if err != nil {
			return nil, err
		}
		if kind == devices.KindCamera {
			criteria = append(criteria, devices.Cameras)
		} else {
			criteria = append(criteria, devices.Microphones)
		}
	}
	switch in.Facing {
	case "front":
		criteria = append(criteria, devices.FrontCamera)
	case "rear":
		criteria = append(criteria, devices.RearCamera)
	}
	switch in.Type {
	case "internal":
		criteria = append(criteria, devices.InternalDevices)
	case "external":
		criteria = append(criteria, devices.ExternalDevices)
	}
	return criteria, nil
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List cameras and microphones, optionally filtered by kind, facing and type",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(ctx context.Context, input *DeviceListInput) (*models.DeviceListResponse, error) {
		criteria, err := input.criteria()
		if err != nil {
			return nil, toHTTPError("Invalid device filter", err)
		}

		q := devices.NewQuery(s.registry, criteria...)
		defer q.Close()

		list := make([]models.DeviceInfo, 0, q.Count())
		for i := range q.Count() {
			if _, info, ok := q.At(i); ok {
				list = append(list, s.deviceInfo(info))
			}
		}

		return &models.DeviceListResponse{
			Body: models.DeviceListData{Devices: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-device",
		Method:      http.MethodGet,
		Path:        "/api/devices/{device_id}",
		Summary:     "Get Device",
		Description: "Get one device by its unique identifier",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DevicePathInput) (*models.DeviceResponse, error) {
		var resp models.DeviceResponse
		err := s.withHandle(input.DeviceID, func(h devices.Handle) error {
			info, err := s.registry.Info(h)
			if err != nil {
				return err
			}
			resp.Body = s.deviceInfo(info)
			return nil
		})
		if err != nil {
			return nil, toHTTPError("Device not found", err)
		}
		return &resp, nil
	})
}
