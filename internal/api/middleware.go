package api

import (
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/mediadevice/internal/logging"
)

const requestIDHeader = "X-Request-ID"

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "mediadevice",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Duration of API requests by operation and status",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation", "status"})

// HTTPLoggingMiddleware tags each request with an ID, logs it at a level
// chosen from the response status and records its duration per operation.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	requestID := ctx.Header(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.SetHeader(requestIDHeader, requestID)

	method := ctx.Method()
	logAttrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := redactQuery(ctx.URL().RawQuery); query != "" {
		logAttrs = append(logAttrs, slog.String("query", query))
	}
	if userAgent := ctx.Header("User-Agent"); userAgent != "" {
		logAttrs = append(logAttrs, slog.String("user_agent", userAgent))
	}

	next(ctx)

	elapsed := time.Since(start)
	status := ctx.Status()
	logAttrs = append(logAttrs,
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	)

	operation := "unknown"
	if op := ctx.Operation(); op != nil && op.OperationID != "" {
		operation = op.OperationID
		logAttrs = append(logAttrs, slog.String("operation", operation))
	}
	requestDuration.WithLabelValues(operation, strconv.Itoa(status)).Observe(elapsed.Seconds())

	level := slog.LevelInfo
	switch {
	case method == "OPTIONS":
		level = slog.LevelDebug
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", logAttrs...)
}

// redactQuery hides the credentials EventSource and WebSocket clients pass
// in the auth parameter.
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "<unparsable>"
	}
	if _, ok := values["auth"]; ok {
		values.Set("auth", "REDACTED")
	}
	return values.Encode()
}
