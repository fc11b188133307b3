package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigin   string
	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        int
}

// DefaultCORSConfig returns permissive CORS config for local tooling
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigin:   "*",
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization", "Accept", "Origin", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        86400,
	}
}

// corsHeaders is the precomputed header set for one CORSConfig.
type corsHeaders [][2]string

func newCORSHeaders(config CORSConfig) corsHeaders {
	origin := config.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	h := corsHeaders{
		{"Access-Control-Allow-Origin", origin},
		{"Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", ")},
		{"Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", ")},
		{"Access-Control-Max-Age", strconv.Itoa(config.MaxAge)},
	}
	if len(config.ExposeHeaders) > 0 {
		h = append(h, [2]string{"Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", ")})
	}
	return h
}

func (h corsHeaders) apply(set func(key, value string)) {
	for _, kv := range h {
		set(kv[0], kv[1])
	}
}

// NewCORSMiddleware creates CORS middleware with the given configuration
func NewCORSMiddleware(config CORSConfig) func(huma.Context, func(huma.Context)) {
	headers := newCORSHeaders(config)

	return func(ctx huma.Context, next func(huma.Context)) {
		headers.apply(ctx.SetHeader)

		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}
		next(ctx)
	}
}

// AddCORSHandler answers preflight requests on the mux, since huma
// middleware only runs for registered operations.
func AddCORSHandler(mux *http.ServeMux, config CORSConfig) {
	headers := newCORSHeaders(config)

	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		headers.apply(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
