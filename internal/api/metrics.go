package api

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerMetricsHandler mounts the Prometheus endpoint directly on the mux,
// outside huma and its auth middleware.
func (s *Server) registerMetricsHandler() {
	handler := s.options.PrometheusHandler
	if handler == nil {
		handler = promhttp.Handler()
	}
	s.mux.Handle("GET /metrics", handler)
}
