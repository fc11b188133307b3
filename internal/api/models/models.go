package models

// Health check models
type HealthData struct {
	Status      string  `json:"status" example:"ok" doc:"Service status"`
	Message     string  `json:"message" example:"API is healthy" doc:"Status message"`
	Devices     int     `json:"devices" example:"3" doc:"Number of devices currently known"`
	Cameras     int     `json:"cameras" example:"2" doc:"Known cameras"`
	Microphones int     `json:"microphones" example:"1" doc:"Known microphones"`
	Sessions    int     `json:"sessions" example:"0" doc:"Capture sessions currently tracked"`
	Uptime      float64 `json:"uptime_seconds" example:"3600" doc:"Seconds since the server was created"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2026-01-15 14:30" doc:"Build timestamp"`
	Modified  bool   `json:"modified" example:"false" doc:"Built from a tree with uncommitted changes"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Log models
type LogEntry struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Buffer sequence number, increasing"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Most recent log entries, oldest first"`
	Count   int        `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsData struct {
	Global  string            `json:"global" example:"info" doc:"Level of loggers without an override"`
	Modules map[string]string `json:"modules" doc:"Effective level per module"`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}

type LogLevelRequest struct {
	Module string `path:"module" example:"session" doc:"Logger module name"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}
