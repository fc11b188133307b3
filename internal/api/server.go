package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"k8s.io/utils/keymutex"

	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/events"
	"github.com/smazurov/mediadevice/internal/logging"
	"github.com/smazurov/mediadevice/internal/version"
	"github.com/smazurov/mediadevice/ui"
)

const authRealm = `Basic realm="MediaDevice API"`

// Server exposes the device registry and capture sessions over HTTP.
type Server struct {
	api      huma.API
	mux      *http.ServeMux
	options  *Options
	registry *devices.Registry
	eventBus *events.Bus
	logger   *slog.Logger
	started  time.Time

	deviceLock keymutex.KeyMutex // serializes start and stop per device ID

	mu         sync.Mutex
	captures   map[string]*capture // by device ID, sessions started through the API
	httpServer *http.Server
}

// checkBasicAuth validates "Basic" credentials from the Authorization header
// or, for EventSource and WebSocket clients that cannot set headers, the
// auth query parameter. It returns a client-facing message on failure.
func checkBasicAuth(authHeader, queryAuth, username, password string) (string, error) {
	encoded := queryAuth
	if authHeader != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(authHeader, prefix) {
			return "Invalid authentication type", nil
		}
		encoded = authHeader[len(prefix):]
	}
	if encoded == "" {
		return "Authentication required", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "Invalid credentials format", err
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "Invalid credentials format", nil
	}
	if user != username || pass != password {
		return "Invalid credentials", nil
	}
	return "", nil
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		msg, err := checkBasicAuth(ctx.Header("Authorization"), ctx.Query("auth"), username, password)
		if msg != "" {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			if err != nil {
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, err)
			} else {
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
			}
			return
		}
		next(ctx)
	}
}

// authEnabled reports whether basic auth credentials are configured.
func (s *Server) authEnabled() bool {
	return s.options.AuthUsername != "" && s.options.AuthPassword != ""
}

// NewServer creates the API server. It panics if a required collaborator is missing.
func NewServer(opts *Options) *Server {
	if opts.Registry == nil {
		panic("api: Registry is required")
	}
	if opts.Sessions == nil {
		panic("api: Sessions is required")
	}
	if opts.Gate == nil {
		panic("api: Gate is required")
	}
	if opts.EventBus == nil {
		panic("api: EventBus is required")
	}
	if opts.PhotoTimeout <= 0 {
		opts.PhotoTimeout = DefaultPhotoTimeout
	}

	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("MediaDevice API", version.String())
	config.Info.Description = "Camera and microphone enumeration, configuration and capture"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:        api,
		mux:        mux,
		options:    opts,
		registry:   opts.Registry,
		eventBus:   opts.EventBus,
		logger:     logging.GetLogger("api"),
		captures:   make(map[string]*capture),
		deviceLock: keymutex.NewHashed(0),
		started:    time.Now(),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if server.authEnabled() {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	server.registerMetricsHandler()
	server.registerStreamHandler()
	server.registerRoutes()

	// Serve the console at root, but only for non-API paths
	consoleHandler := ui.Handler()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			http.NotFound(w, r)
			return
		}
		consoleHandler.ServeHTTP(w, r)
	})

	return server
}

// Start serves HTTP on addr until Stop is called. It returns
// http.ErrServerClosed after Stop.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting MediaDevice API server", "addr", addr, "auth", s.authEnabled())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")
	return srv.ListenAndServe()
}

// Handler returns the root handler with every route mounted.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Stop stops sessions started through the API and shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	s.stopCaptures()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	// Event, log and preview streams never finish on their own, so close
	// instead of waiting for a graceful shutdown.
	if srv != nil {
		return srv.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		cameras := int(s.registry.Count(devices.KindCamera))
		microphones := int(s.registry.Count(devices.KindMicrophone))
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:      "ok",
				Message:     "API is healthy",
				Devices:     cameras + microphones,
				Cameras:     cameras,
				Microphones: microphones,
				Sessions:    len(s.options.Sessions.Sessions()),
				Uptime:      time.Since(s.started).Seconds(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				Modified:  info.Modified,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerDeviceRoutes()
	s.registerSettingsRoutes()
	s.registerSessionRoutes()
	s.registerPermissionRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
	s.registerLEDRoutes()
	s.registerPresetRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
