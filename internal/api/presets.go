package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/config"
)

// PresetPathInput names a preset by device discovery key.
type PresetPathInput struct {
	Key string `path:"key" example:"synthetic:camera:rear" doc:"Discovery key of the device"`
}

func presetData(p config.Preset) models.PresetData {
	data := models.PresetData{
		Key:       p.Key,
		Name:      p.Name,
		Audio:     p.Audio,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Camera != nil {
		cam := models.NewCameraSettings(*p.Camera)
		data.Camera = &cam
	}
	return data
}

func (s *Server) registerPresetRoutes() {
	if s.options.Presets == nil {
		return
	}
	presets := s.options.Presets

	huma.Register(s.api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/api/presets",
		Summary:     "List Presets",
		Description: "Saved device settings, restored whenever the device is discovered",
		Tags:        []string{"presets"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.PresetListResponse, error) {
		all := presets.All()
		out := make([]models.PresetData, 0, len(all))
		for _, p := range all {
			out = append(out, presetData(p))
		}
		return &models.PresetListResponse{
			Body: models.PresetListData{Presets: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-preset",
		Method:      http.MethodGet,
		Path:        "/api/presets/{key}",
		Summary:     "Get Preset",
		Tags:        []string{"presets"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *PresetPathInput) (*models.PresetResponse, error) {
		p, ok := presets.Get(input.Key)
		if !ok {
			return nil, huma.Error404NotFound("Preset not found")
		}
		return &models.PresetResponse{Body: presetData(p)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-preset",
		Method:        http.MethodDelete,
		Path:          "/api/presets/{key}",
		Summary:       "Delete Preset",
		Description:   "Forget saved settings. Devices keep their current configuration until rediscovered.",
		Tags:          []string{"presets"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500},
	}, func(ctx context.Context, input *PresetPathInput) (*struct{}, error) {
		if _, ok := presets.Get(input.Key); !ok {
			return nil, huma.Error404NotFound("Preset not found")
		}
		if err := presets.Remove(input.Key); err != nil {
			return nil, huma.Error500InternalServerError("Failed to delete preset", err)
		}
		s.logger.Info("Preset deleted", "key", input.Key)
		return nil, nil
	})
}
