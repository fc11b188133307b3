package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/mediadevice/internal/api/models"
	"github.com/smazurov/mediadevice/internal/config"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/events"
	"github.com/smazurov/mediadevice/internal/led"
	"github.com/smazurov/mediadevice/internal/logging"
	"github.com/smazurov/mediadevice/internal/permission"
	"github.com/smazurov/mediadevice/internal/pipeline/synthetic"
	"github.com/smazurov/mediadevice/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv     *Server
	reg     *devices.Registry
	gate    *permission.Gate
	bus     *events.Bus
	presets *config.PresetStore
}

type envOptions struct {
	grant    bool
	username string
	password string
	leds     led.Controller
}

func newTestEnv(t *testing.T, eo envOptions) *testEnv {
	t.Helper()

	backend := synthetic.New(nil, testLogger())
	reg := devices.NewRegistry(&devices.Options{Discoverer: backend, Logger: testLogger()})
	if err := reg.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	bus := events.New()
	auth, err := permission.NewPolicyAuthorizer(permission.PolicyAllow, permission.PolicyAllow, 0)
	if err != nil {
		t.Fatalf("NewPolicyAuthorizer: %v", err)
	}
	gate := permission.NewGate(&permission.Options{
		Authorizer: auth,
		Logger:     testLogger(),
		OnResult:   bus.PermissionResultHandler(),
	})
	if eo.grant {
		for _, kind := range []devices.Kind{devices.KindCamera, devices.KindMicrophone} {
			if _, err := gate.RequestAndWait(context.Background(), kind); err != nil {
				t.Fatalf("RequestAndWait(%s): %v", kind, err)
			}
		}
	}

	mgr := session.NewManager(&session.Options{
		Registry:      reg,
		Backend:       backend,
		Gate:          gate,
		OnStateChange: bus.SessionStateHandler(),
		OnError:       bus.SessionErrorHandler(),
		DrainTimeout:  time.Second,
		Logger:        testLogger(),
	})

	presets := config.NewPresetStore(filepath.Join(t.TempDir(), "presets.toml"))

	srv := NewServer(&Options{
		AuthUsername:  eo.username,
		AuthPassword:  eo.password,
		Registry:      reg,
		Sessions:      mgr,
		Gate:          gate,
		EventBus:      bus,
		Presets:       presets,
		PhotoTimeout:  3 * time.Second,
		LEDController: eo.leds,
	})

	t.Cleanup(func() {
		_ = srv.Stop()
		mgr.StopAll()
		gate.Close()
		reg.Close()
	})
	return &testEnv{srv: srv, reg: reg, gate: gate, bus: bus, presets: presets}
}

func (e *testEnv) deviceID(t *testing.T, name string) string {
	t.Helper()
	for _, info := range e.reg.Devices(0) {
		if info.Name == name {
			return info.ID
		}
	}
	t.Fatalf("device %q not found", name)
	return ""
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, rec.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestHealthAndVersionSkipAuth(t *testing.T) {
	env := newTestEnv(t, envOptions{username: "admin", password: "secret"})

	rec := env.do(t, http.MethodGet, "/api/health", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	health := decode[models.HealthData](t, rec)
	if health.Status != "ok" || health.Devices != 3 || health.Cameras != 2 || health.Microphones != 1 {
		t.Errorf("health = %+v, want ok with 2 cameras and 1 microphone", health)
	}
	if health.Sessions != 0 {
		t.Errorf("sessions = %d before any start", health.Sessions)
	}

	rec = env.do(t, http.MethodGet, "/api/version", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if v := decode[models.VersionData](t, rec); v.GoVersion == "" {
		t.Error("version response missing go_version")
	}
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, envOptions{username: "admin", password: "secret"})
	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	wrong := base64.StdEncoding.EncodeToString([]byte("admin:nope"))

	tests := []struct {
		name   string
		path   string
		header http.Header
		want   int
	}{
		{"missing", "/api/devices", nil, http.StatusUnauthorized},
		{"header", "/api/devices", http.Header{"Authorization": {"Basic " + creds}}, http.StatusOK},
		{"wrong password", "/api/devices", http.Header{"Authorization": {"Basic " + wrong}}, http.StatusUnauthorized},
		{"bearer", "/api/devices", http.Header{"Authorization": {"Bearer token"}}, http.StatusUnauthorized},
		{"query", "/api/devices?auth=" + creds, nil, http.StatusOK},
		{"garbage query", "/api/devices?auth=!!!", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil, tt.header)
			expectStatus(t, rec, tt.want)
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate header")
			}
		})
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/api/devices", nil, nil)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("response missing request ID")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}

	rec = env.do(t, http.MethodGet, "/api/devices", nil, http.Header{requestIDHeader: {"abc"}})
	if got := rec.Header().Get(requestIDHeader); got != "abc" {
		t.Errorf("request ID = %q, want the caller's abc", got)
	}

	rec = env.do(t, http.MethodOptions, "/api/devices/x/camera", nil, nil)
	expectStatus(t, rec, http.StatusNoContent)
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Errorf("preflight methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestListDevices(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Rear Test Pattern", "Front Test Pattern", "Tone Generator"}},
		{"?kind=camera", []string{"Rear Test Pattern", "Front Test Pattern"}},
		{"?kind=microphone", []string{"Tone Generator"}},
		{"?kind=camera&facing=front", []string{"Front Test Pattern"}},
		{"?facing=rear", []string{"Rear Test Pattern"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/devices"+tt.query, nil, nil)
			expectStatus(t, rec, http.StatusOK)

			list := decode[models.DeviceListData](t, rec)
			if list.Count != len(tt.want) {
				t.Fatalf("count = %d, want %d: %+v", list.Count, len(tt.want), list.Devices)
			}
			for i, name := range tt.want {
				if list.Devices[i].Name != name {
					t.Errorf("device %d = %q, want %q", i, list.Devices[i].Name, name)
				}
				if list.Devices[i].DeviceID == "" || list.Devices[i].SessionState != "idle" {
					t.Errorf("device %d = %+v", i, list.Devices[i])
				}
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/api/devices?kind=scanner", nil, nil)
	if rec.Code < 400 || rec.Code >= 500 {
		t.Errorf("unknown kind status = %d, want 4xx", rec.Code)
	}
}

func TestGetDevice(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.deviceID(t, "Rear Test Pattern")

	rec := env.do(t, http.MethodGet, "/api/devices/"+id, nil, nil)
	expectStatus(t, rec, http.StatusOK)
	dev := decode[models.DeviceInfo](t, rec)
	if dev.Kind != "camera" || dev.Running || dev.Key != "synthetic:camera:rear" {
		t.Errorf("device = %+v", dev)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/devices/does-not-exist", nil, nil), http.StatusNotFound)
}

func TestCameraSettings(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rear := env.deviceID(t, "Rear Test Pattern")
	front := env.deviceID(t, "Front Test Pattern")
	mic := env.deviceID(t, "Tone Generator")

	rec := env.do(t, http.MethodGet, "/api/devices/"+rear+"/camera", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	cfg := decode[models.CameraConfigData](t, rec)
	if cfg.Capabilities.ZoomRange.Min != 1 || cfg.Capabilities.ZoomRange.Max != 4 {
		t.Errorf("zoom range = %+v, want [1, 4]", cfg.Capabilities.ZoomRange)
	}
	if cfg.Capabilities.MaxResolution != (devices.Resolution{Width: devices.DefaultMaxWidth, Height: devices.DefaultMaxHeight}) {
		t.Errorf("max resolution = %+v", cfg.Capabilities.MaxResolution)
	}

	rec = env.do(t, http.MethodPatch, "/api/devices/"+rear+"/camera", map[string]any{
		"zoom_ratio":    10,
		"torch_enabled": true,
		"flash_mode":    "auto",
	}, nil)
	expectStatus(t, rec, http.StatusOK)
	cfg = decode[models.CameraConfigData](t, rec)
	if cfg.Settings.ZoomRatio != 4 {
		t.Errorf("zoom = %v, want clamped to 4", cfg.Settings.ZoomRatio)
	}
	if !cfg.Settings.TorchEnabled || cfg.Settings.FlashMode != "auto" {
		t.Errorf("settings = %+v", cfg.Settings)
	}
	if cfg.Pending != nil {
		t.Error("idle camera should have no pending settings")
	}

	tests := []struct {
		name string
		id   string
		body map[string]any
		want int
	}{
		{"torch unsupported", front, map[string]any{"torch_enabled": true}, http.StatusUnprocessableEntity},
		{"point outside unit square", rear, map[string]any{"exposure_point": map[string]float64{"x": 2, "y": 0}}, http.StatusBadRequest},
		{"bad orientation", rear, map[string]any{"orientation": "sideways"}, http.StatusBadRequest},
		{"resolution above max", rear, map[string]any{"preview_resolution": map[string]int{"width": 1 << 30, "height": 1 << 30}}, http.StatusBadRequest},
		{"photo resolution above max", rear, map[string]any{"photo_resolution": map[string]int{"width": devices.DefaultMaxWidth + 1, "height": 1080}}, http.StatusBadRequest},
		{"microphone", mic, map[string]any{"zoom_ratio": 2}, http.StatusUnprocessableEntity},
		{"unknown device", "nope", map[string]any{"zoom_ratio": 2}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPatch, "/api/devices/"+tt.id+"/camera", tt.body, nil), tt.want)
		})
	}
}

func TestCameraGeometryDeferredWhileRunning(t *testing.T) {
	env := newTestEnv(t, envOptions{grant: true})
	rear := env.deviceID(t, "Rear Test Pattern")

	changes := make(chan any, 4)
	unsub := events.SubscribeToChannel[events.SettingsChangedEvent](env.bus, changes)
	defer unsub()

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil), http.StatusOK)

	rec := env.do(t, http.MethodPatch, "/api/devices/"+rear+"/camera", map[string]any{
		"preview_resolution": map[string]int{"width": 640, "height": 480},
	}, nil)
	expectStatus(t, rec, http.StatusOK)
	cfg := decode[models.CameraConfigData](t, rec)
	if cfg.Pending == nil || cfg.Pending.PreviewResolution.Width != 640 {
		t.Fatalf("pending = %+v, want 640x480 preview", cfg.Pending)
	}
	if cfg.Settings.PreviewResolution.Width == 640 {
		t.Error("active preview resolution changed while running")
	}

	select {
	case ev := <-changes:
		if sc := ev.(events.SettingsChangedEvent); !sc.Deferred || sc.DeviceID != rear {
			t.Errorf("event = %+v, want deferred change on %s", sc, rear)
		}
	case <-time.After(time.Second):
		t.Fatal("no settings-changed event")
	}
}

func TestAudioSettingsAndPreset(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	mic := env.deviceID(t, "Tone Generator")

	rec := env.do(t, http.MethodPatch, "/api/devices/"+mic+"/audio", map[string]any{
		"sample_rate":   16000,
		"channel_count": 2,
		"save_preset":   true,
	}, nil)
	expectStatus(t, rec, http.StatusOK)
	cfg := decode[models.AudioConfigData](t, rec)
	if cfg.Settings.SampleRate != 16000 || cfg.Settings.ChannelCount != 2 {
		t.Errorf("settings = %+v", cfg.Settings)
	}
	if !cfg.Capabilities.EchoCancellation || cfg.Capabilities.MaxChannels != 2 {
		t.Errorf("capabilities = %+v", cfg.Capabilities)
	}

	preset, ok := env.presets.Get("synthetic:microphone:0")
	if !ok || preset.Audio == nil || preset.Audio.SampleRate != 16000 {
		t.Errorf("preset = %+v (found %v), want saved 16 kHz settings", preset, ok)
	}

	expectStatus(t, env.do(t, http.MethodPatch, "/api/devices/"+mic+"/audio", map[string]any{"channel_count": 5}, nil), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPatch, "/api/devices/"+mic+"/audio", map[string]any{"sample_rate": 100}, nil), http.StatusBadRequest)
}

func TestStartRequiresPermission(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rear := env.deviceID(t, "Rear Test Pattern")

	results := make(chan any, 1)
	unsub := events.SubscribeToChannel[events.PermissionResultEvent](env.bus, results)
	defer unsub()

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil), http.StatusForbidden)

	rec := env.do(t, http.MethodPost, "/api/permissions/camera", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if p := decode[models.PermissionData](t, rec); !p.Granted || p.Status != "granted" {
		t.Errorf("permission = %+v", p)
	}
	select {
	case ev := <-results:
		if pr := ev.(events.PermissionResultEvent); pr.Kind != "camera" || !pr.Granted {
			t.Errorf("event = %+v", pr)
		}
	case <-time.After(time.Second):
		t.Fatal("no permission-result event")
	}

	rec = env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if st := decode[models.SessionData](t, rec); st.State != "running" || st.Kind != "camera" {
		t.Errorf("session = %+v", st)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil), http.StatusConflict)

	rec = env.do(t, http.MethodPost, "/api/devices/"+rear+"/stop", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if st := decode[models.SessionData](t, rec); st.State != "idle" {
		t.Errorf("state after stop = %q", st.State)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/stop", nil, nil), http.StatusConflict)

	// Restart after stop reuses the device.
	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil), http.StatusOK)
}

func TestPermissionsList(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	expectStatus(t, env.do(t, http.MethodPost, "/api/permissions/microphone", nil, nil), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/api/permissions", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[models.PermissionListData](t, rec)
	got := map[string]string{}
	for _, p := range list.Permissions {
		got[p.Kind] = p.Status
	}
	if got["camera"] != "unknown" || got["microphone"] != "granted" {
		t.Errorf("permissions = %v", got)
	}
}

func TestPhotoAndPreview(t *testing.T) {
	env := newTestEnv(t, envOptions{grant: true})
	rear := env.deviceID(t, "Rear Test Pattern")

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/photo", nil, nil), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodGet, "/api/devices/"+rear+"/preview", nil, nil), http.StatusConflict)

	photos := make(chan any, 1)
	unsub := events.SubscribeToChannel[events.PhotoCapturedEvent](env.bus, photos)
	defer unsub()

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil), http.StatusOK)

	rec := env.do(t, http.MethodPost, "/api/devices/"+rear+"/photo", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	photo := decode[models.PhotoData](t, rec)
	raw, err := base64.StdEncoding.DecodeString(photo.ImageData)
	if err != nil {
		t.Fatalf("photo is not base64: %v", err)
	}
	img, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("photo is not a PNG: %v", err)
	}
	// Default portrait orientation turns the 1920x1080 photo upright.
	if img.Width != 1080 || img.Height != 1920 || photo.Width != 1080 {
		t.Errorf("photo = %dx%d (reported %dx%d), want 1080x1920", img.Width, img.Height, photo.Width, photo.Height)
	}

	select {
	case ev := <-photos:
		if pc := ev.(events.PhotoCapturedEvent); pc.DeviceID != rear || pc.Height != 1920 {
			t.Errorf("event = %+v", pc)
		}
	case <-time.After(time.Second):
		t.Fatal("no photo-captured event")
	}

	rec = env.do(t, http.MethodGet, "/api/devices/"+rear+"/preview", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("preview content type = %q", ct)
	}
	preview, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if preview.Width != 720 || preview.Height != 1280 {
		t.Errorf("preview = %dx%d, want 720x1280", preview.Width, preview.Height)
	}

	rec = env.do(t, http.MethodGet, "/api/devices/"+rear+"/stats", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	stats := decode[models.SessionData](t, rec)
	if stats.PhotosTaken != 1 || stats.Stats.Delivered == 0 || stats.StartedAt == nil {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPhotoOnMicrophoneUnsupported(t *testing.T) {
	env := newTestEnv(t, envOptions{grant: true})
	mic := env.deviceID(t, "Tone Generator")

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+mic+"/start", nil, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+mic+"/photo", nil, nil), http.StatusUnprocessableEntity)
	expectStatus(t, env.do(t, http.MethodGet, "/api/devices/"+mic+"/preview", nil, nil), http.StatusUnprocessableEntity)

	deadline := time.Now().Add(3 * time.Second)
	for {
		rec := env.do(t, http.MethodGet, "/api/devices/"+mic+"/stats", nil, nil)
		expectStatus(t, rec, http.StatusOK)
		stats := decode[models.SessionData](t, rec)
		if stats.Level != nil {
			if *stats.Level <= 0 || *stats.Level > 1 {
				t.Errorf("level = %v, want (0, 1]", *stats.Level)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no audio level reported")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec := env.do(t, http.MethodGet, "/api/sessions", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[models.SessionListData](t, rec); list.Count != 1 || list.Sessions[0].Kind != "microphone" {
		t.Errorf("sessions = %+v", list)
	}
}

func TestStopReleasesHandleForDetach(t *testing.T) {
	env := newTestEnv(t, envOptions{grant: true})
	rear := env.deviceID(t, "Rear Test Pattern")

	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/devices/"+rear+"/stop", nil, nil), http.StatusOK)

	env.srv.mu.Lock()
	n := len(env.srv.captures)
	env.srv.mu.Unlock()
	if n != 0 {
		t.Errorf("captures after stop = %d, want 0", n)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, envOptions{username: "admin", password: "secret"})

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing go_goroutines")
	}
}

func TestLogsEndpoint(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info"})
	env := newTestEnv(t, envOptions{})

	logger := logging.GetLogger("logs-test")
	for i := range 3 {
		logger.Info("entry", "n", i)
	}

	rec := env.do(t, http.MethodGet, "/api/logs?limit=5&module=logs-test", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	logs := decode[models.LogsData](t, rec)
	if logs.Count < 3 || logs.Count > 5 || logs.Count != len(logs.Entries) {
		t.Fatalf("logs count = %d with %d entries", logs.Count, len(logs.Entries))
	}
	last := logs.Entries[len(logs.Entries)-1]
	if last.Module != "logs-test" || last.Seq == 0 {
		t.Errorf("last entry = %+v", last)
	}

	since := logs.Entries[len(logs.Entries)-2].Seq
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/logs?module=logs-test&since=%d", since), nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if after := decode[models.LogsData](t, rec); after.Count != 1 || after.Entries[0].Seq != last.Seq {
		t.Errorf("since=%d returned %+v", since, after.Entries)
	}
}

func TestLogLevelRoutes(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info"})
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodPut, "/api/logs/levels/levels-test", map[string]any{"level": "debug"}, nil)
	expectStatus(t, rec, http.StatusOK)
	if levels := decode[models.LogLevelsData](t, rec); levels.Modules["levels-test"] != "debug" {
		t.Errorf("modules = %v", levels.Modules)
	}
	if !logging.GetLogger("levels-test").Enabled(context.Background(), slog.LevelDebug) {
		t.Error("module logger did not pick up the new level")
	}

	rec = env.do(t, http.MethodGet, "/api/logs/levels", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if levels := decode[models.LogLevelsData](t, rec); levels.Global != "info" {
		t.Errorf("global = %q", levels.Global)
	}

	expectStatus(t, env.do(t, http.MethodPut, "/api/logs/levels/levels-test", map[string]any{"level": "loud"}, nil), http.StatusUnprocessableEntity)
}

func TestConsoleAtRoot(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "MediaDevice") {
		t.Errorf("root did not serve the console: %s", rec.Body.String())
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/nope", nil, nil), http.StatusNotFound)
}

func TestConcurrentStartSingleWinner(t *testing.T) {
	env := newTestEnv(t, envOptions{grant: true})
	rear := env.deviceID(t, "Rear Test Pattern")

	const callers = 8
	codes := make(chan int, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- env.do(t, http.MethodPost, "/api/devices/"+rear+"/start", nil, nil).Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for code := range codes {
		counts[code]++
	}
	if counts[http.StatusOK] != 1 || counts[http.StatusConflict] != callers-1 {
		t.Errorf("status counts = %v, want one 200 and %d 409", counts, callers-1)
	}
}

func TestPresetRoutes(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	mic := env.deviceID(t, "Tone Generator")

	rec := env.do(t, http.MethodGet, "/api/presets", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[models.PresetListData](t, rec); list.Count != 0 {
		t.Fatalf("count = %d, want 0 before any save", list.Count)
	}

	expectStatus(t, env.do(t, http.MethodPatch, "/api/devices/"+mic+"/audio", map[string]any{
		"sample_rate": 16000,
		"save_preset": true,
	}, nil), http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/presets", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	list := decode[models.PresetListData](t, rec)
	if list.Count != 1 || list.Presets[0].Key != "synthetic:microphone:0" {
		t.Fatalf("presets = %+v", list)
	}
	if list.Presets[0].Audio == nil || list.Presets[0].Audio.SampleRate != 16000 {
		t.Errorf("audio = %+v, want 16 kHz", list.Presets[0].Audio)
	}

	rec = env.do(t, http.MethodGet, "/api/presets/synthetic:microphone:0", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if p := decode[models.PresetData](t, rec); p.Name != "Tone Generator" {
		t.Errorf("name = %q", p.Name)
	}

	expectStatus(t, env.do(t, http.MethodDelete, "/api/presets/synthetic:microphone:0", nil, nil), http.StatusNoContent)
	if _, ok := env.presets.Get("synthetic:microphone:0"); ok {
		t.Error("preset still stored after delete")
	}
	expectStatus(t, env.do(t, http.MethodDelete, "/api/presets/synthetic:microphone:0", nil, nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/presets/synthetic:microphone:0", nil, nil), http.StatusNotFound)
}

type fakeLEDs struct {
	mu  sync.Mutex
	set map[string]string
}

func (f *fakeLEDs) Set(ledType string, enabled bool, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set == nil {
		f.set = map[string]string{}
	}
	if !enabled {
		pattern = "off"
	}
	f.set[ledType] = pattern
	return nil
}

func (f *fakeLEDs) Available() []string { return []string{"system", "user"} }

func (f *fakeLEDs) Patterns() []string {
	return []string{led.PatternSolid, led.PatternBlink, led.PatternHeartbeat}
}

func TestLEDRoutes(t *testing.T) {
	leds := &fakeLEDs{}
	env := newTestEnv(t, envOptions{leds: leds})

	rec := env.do(t, http.MethodGet, "/api/leds/capabilities", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if caps := decode[LEDCapabilities](t, rec); len(caps.AvailableTypes) != 2 || len(caps.AvailablePatterns) != 3 {
		t.Errorf("capabilities = %+v", caps)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/leds", map[string]any{
		"type": "user", "enabled": true, "pattern": "heartbeat",
	}, nil), http.StatusNoContent)
	leds.mu.Lock()
	got := leds.set["user"]
	leds.mu.Unlock()
	if got != led.PatternHeartbeat {
		t.Errorf("user LED = %q, want heartbeat", got)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/leds", map[string]any{"type": "power", "enabled": true}, nil), http.StatusBadRequest)
}

func TestLEDRoutesAbsentWithoutController(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	expectStatus(t, env.do(t, http.MethodGet, "/api/leds/capabilities", nil, nil), http.StatusNotFound)
}
