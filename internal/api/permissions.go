package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/devices"
)

// PermissionPathInput names the device kind a permission covers.
type PermissionPathInput struct {
	Kind string `path:"kind" enum:"camera,microphone" example:"camera" doc:"Device kind"`
}

func (s *Server) permissionData(kind devices.Kind) models.PermissionData {
	status := s.options.Gate.Status(kind)
	return models.PermissionData{
		Kind:    kind.String(),
		Status:  status.String(),
		Granted: s.options.Gate.Granted(kind),
	}
}

func (s *Server) registerPermissionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-permissions",
		Method:      http.MethodGet,
		Path:        "/api/permissions",
		Summary:     "Permission Status",
		Description: "Last observed permission outcome per device kind",
		Tags:        []string{"permissions"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.PermissionListResponse, error) {
		return &models.PermissionListResponse{
			Body: models.PermissionListData{
				Permissions: []models.PermissionData{
					s.permissionData(devices.KindCamera),
					s.permissionData(devices.KindMicrophone),
				},
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "request-permission",
		Method:      http.MethodPost,
		Path:        "/api/permissions/{kind}",
		Summary:     "Request Permission",
		Description: "Ask for capture permission for a device kind and wait for the answer. The outcome is also published as a permission-result event.",
		Tags:        []string{"permissions"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 504},
	}, func(ctx context.Context, input *PermissionPathInput) (*models.PermissionResponse, error) {
		kind, err := devices.ParseKind(input.Kind)
		if err != nil {
			return nil, toHTTPError("Unknown device kind", err)
		}
		if _, err := s.options.Gate.RequestAndWait(ctx, kind); err != nil {
			return nil, toHTTPError("Permission request failed", err)
		}
		return &models.PermissionResponse{Body: s.permissionData(kind)}, nil
	})
}
