package models

type PermissionData struct {
	Kind    string `json:"kind" example:"camera" doc:"Device kind"`
	Status  string `json:"status" example:"granted" enum:"unknown,granted,denied" doc:"Permission status"`
	Granted bool   `json:"granted" doc:"Whether capture is allowed"`
}

type PermissionResponse struct {
	Body PermissionData
}

type PermissionListData struct {
	Permissions []PermissionData `json:"permissions" doc:"Permission status per device kind"`
}

type PermissionListResponse struct {
	Body PermissionListData
}
