package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/events"
	"github.com/smazurov/mediadevice/internal/logging"
)

// LogsInput selects recent log entries.
type LogsInput struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Maximum number of entries, 0 for all"`
	Module string `query:"module" example:"session" doc:"Only return entries from this module"`
	Since  uint64 `query:"since" example:"40" doc:"Only return entries with a greater sequence number"`
}

func logEvent(e logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        e.Seq,
		Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
		Level:      e.Level,
		Module:     e.Module,
		Message:    e.Message,
		Attributes: e.Attributes,
	}
}

func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Most recent entries of the in-memory log buffer",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *LogsInput) (*models.LogsResponse, error) {
		var entries []logging.LogEntry
		if buffer := logging.GetBuffer(); buffer != nil {
			entries = buffer.Tail(0, input.Module)
		}

		out := make([]models.LogEntry, 0, len(entries))
		for _, e := range entries {
			if e.Seq <= input.Since {
				continue
			}
			out = append(out, models.LogEntry{
				Seq:        e.Seq,
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		if input.Limit > 0 && len(out) > input.Limit {
			out = out[len(out)-input.Limit:]
		}
		return &models.LogsResponse{Body: models.LogsData{Entries: out, Count: len(out)}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/levels",
		Summary:     "Log Levels",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*models.LogLevelsResponse, error) {
		global, modules := logging.Levels()
		return &models.LogLevelsResponse{Body: models.LogLevelsData{Global: global, Modules: modules}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/levels/{module}",
		Summary:     "Set Log Level",
		Description: "Change one module's level until the next restart",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(ctx context.Context, input *models.LogLevelRequest) (*models.LogLevelsResponse, error) {
		if err := logging.SetModuleLevel(input.Module, input.Body.Level); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		s.logger.Info("Log level changed", "target_module", input.Module, "level", input.Body.Level)
		global, modules := logging.Levels()
		return &models.LogLevelsResponse{Body: models.LogLevelsData{Global: global, Modules: modules}}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost.
		// Live entries already covered by the replay are skipped by Seq.
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		var replayed uint64
		if buffer := logging.GetBuffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				if err := send.Data(logEvent(entry)); err != nil {
					return
				}
				replayed = entry.Seq
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if e, ok := ev.(events.LogEntryEvent); ok && e.Seq != 0 && e.Seq <= replayed {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
