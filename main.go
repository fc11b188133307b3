package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/pkg/browser"

	"github.com/smazurov/mediadevice/cmd"
	"github.com/smazurov/mediadevice/internal/api"
	"github.com/smazurov/mediadevice/internal/config"
	"github.com/smazurov/mediadevice/internal/devices"
	"github.com/smazurov/mediadevice/internal/events"
	"github.com/smazurov/mediadevice/internal/led"
	"github.com/smazurov/mediadevice/internal/logging"
	"github.com/smazurov/mediadevice/internal/permission"
	"github.com/smazurov/mediadevice/internal/pipeline/synthetic"
	"github.com/smazurov/mediadevice/internal/session"
	"github.com/smazurov/mediadevice/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin  string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`
	OpenBrowser bool   `help:"Open the device console in a browser on start" default:"false" toml:"server.open_browser" env:"SERVER_OPEN_BROWSER"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Catalog settings
	CatalogFile  string `help:"Synthetic device catalog (empty uses the built-in catalog)" default:"" toml:"catalog.file" env:"CATALOG_FILE"`
	CatalogWatch bool   `help:"Reload the catalog when the file changes" default:"true" toml:"catalog.watch" env:"CATALOG_WATCH"`
	PresetsFile  string `help:"Device presets file (empty uses the XDG state directory)" default:"" toml:"catalog.presets_file" env:"CATALOG_PRESETS_FILE"`

	// Permission settings
	PermissionsCamera     string `help:"Camera permission policy (allow, deny)" default:"allow" toml:"permissions.camera" env:"PERMISSIONS_CAMERA"`
	PermissionsMicrophone string `help:"Microphone permission policy (allow, deny)" default:"allow" toml:"permissions.microphone" env:"PERMISSIONS_MICROPHONE"`
	PermissionsDelay      string `help:"Simulated prompt delay" default:"0s" toml:"permissions.delay" env:"PERMISSIONS_DELAY"`

	// Delivery settings
	DeliveryDrainTimeout string `help:"How long stop waits for a slow handler before warning" default:"2s" toml:"delivery.drain_timeout" env:"DELIVERY_DRAIN_TIMEOUT"`
	PhotoTimeout         string `help:"How long the API waits for a photo" default:"10s" toml:"delivery.photo_timeout" env:"DELIVERY_PHOTO_TIMEOUT"`

	// Features settings
	FeaturesLEDControl bool `help:"Enable LED capture indicator" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBufferSize int    `help:"Log entries kept in memory for the logs API" default:"1000" toml:"logging.buffer_size" env:"LOGGING_BUFFER_SIZE"`
	LoggingDevices    string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingSession    string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingDelivery   string `help:"Delivery logging level" default:"info" toml:"logging.delivery" env:"LOGGING_DELIVERY"`
	LoggingPermission string `help:"Permission logging level" default:"info" toml:"logging.permission" env:"LOGGING_PERMISSION"`
	LoggingPipeline   string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingLED        string `help:"LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
}

func parseDuration(logger *slog.Logger, name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "option", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

// consoleURL turns a listen address into a URL a local browser can open.
func consoleURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:      opts.LoggingLevel,
			Format:     opts.LoggingFormat,
			BufferSize: opts.LoggingBufferSize,
			Modules: map[string]string{
				"devices":    opts.LoggingDevices,
				"session":    opts.LoggingSession,
				"delivery":   opts.LoggingDelivery,
				"permission": opts.LoggingPermission,
				"pipeline":   opts.LoggingPipeline,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
				"led":        opts.LoggingLED,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		catalog := synthetic.DefaultCatalog()
		if opts.CatalogFile != "" {
			loaded, err := synthetic.LoadCatalog(opts.CatalogFile)
			if err != nil {
				logger.Error("Failed to load device catalog", "file", opts.CatalogFile, "error", err)
				os.Exit(1)
			}
			catalog = loaded
		}
		backend := synthetic.New(catalog, logging.GetLogger("pipeline"))

		presets := config.NewPresetStore(opts.PresetsFile)
		if err := presets.Load(); err != nil {
			logger.Warn("Failed to load presets", "error", err)
		}

		// Presets are restored whenever a device appears, including at startup
		// and after a catalog reload.
		var registry *devices.Registry
		onDeviceChange := eventBus.DeviceChangeHandler()
		registry = devices.NewRegistry(&devices.Options{
			Discoverer: backend,
			Logger:     logging.GetLogger("devices"),
			OnChange: func(action string, info devices.Info) {
				onDeviceChange(action, info)
				if action != devices.ActionAdded {
					return
				}
				h, err := registry.Lookup(info.ID)
				if err != nil {
					return
				}
				if err := presets.Apply(registry, h); err != nil {
					logger.Warn("Failed to apply preset", "device_id", info.ID, "error", err)
				}
				_ = registry.Release(h)
			},
		})

		authorizer, err := permission.NewPolicyAuthorizer(
			opts.PermissionsCamera,
			opts.PermissionsMicrophone,
			parseDuration(logger, "permissions.delay", opts.PermissionsDelay, 0),
		)
		if err != nil {
			logger.Error("Invalid permission policy", "error", err)
			os.Exit(1)
		}
		gate := permission.NewGate(&permission.Options{
			Authorizer: authorizer,
			Logger:     logging.GetLogger("permission"),
			OnResult:   eventBus.PermissionResultHandler(),
		})

		sessions := session.NewManager(&session.Options{
			Registry:      registry,
			Backend:       backend,
			Gate:          gate,
			OnStateChange: eventBus.SessionStateHandler(),
			OnError:       eventBus.SessionErrorHandler(),
			DrainTimeout:  parseDuration(logger, "delivery.drain_timeout", opts.DeliveryDrainTimeout, 2*time.Second),
			Logger:        logging.GetLogger("session"),
		})

		// Catalog edits appear to the registry as devices being plugged in
		// or removed.
		var catalogWatcher *config.Watcher[*synthetic.Catalog]
		if opts.CatalogFile != "" && opts.CatalogWatch {
			catalogWatcher = config.NewConfigWatcher(opts.CatalogFile, synthetic.LoadCatalog, logger)
			catalogWatcher.OnReload(func(c *synthetic.Catalog) {
				backend.SetCatalog(c)
				if refreshErr := registry.Refresh(context.Background()); refreshErr != nil {
					logger.Error("Failed to refresh devices after catalog reload", "error", refreshErr)
				}
			})
		}

		// Initialize LED control if enabled
		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesLEDControl {
			ledLogger := logging.GetLogger("led")
			logger.Info("LED control enabled, initializing")
			ledController = led.New(ledLogger)
			ledManager = led.NewManager(ledController, eventBus, ledLogger)
		}

		server := api.NewServer(&api.Options{
			AuthUsername:  opts.AuthUsername,
			AuthPassword:  opts.AuthPassword,
			CORSOrigin:    opts.CORSOrigin,
			Registry:      registry,
			Sessions:      sessions,
			Gate:          gate,
			EventBus:      eventBus,
			Presets:       presets,
			LEDController: ledController,
			PhotoTimeout:  parseDuration(logger, "delivery.photo_timeout", opts.PhotoTimeout, api.DefaultPhotoTimeout),
		})

		hooks.OnStart(func() {
			if initErr := registry.Init(context.Background()); initErr != nil {
				logger.Error("Device discovery failed", "error", initErr)
				os.Exit(1)
			}

			if catalogWatcher != nil {
				if startErr := catalogWatcher.Start(); startErr != nil {
					logger.Warn("Failed to watch device catalog", "file", opts.CatalogFile, "error", startErr)
				}
			}

			if ledManager != nil {
				ledManager.Start()
			}

			if ok, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			} else if ok {
				logger.Debug("Notified systemd of readiness")
			}

			if opts.OpenBrowser {
				go func() {
					// Give the listener a moment to come up.
					time.Sleep(500 * time.Millisecond)
					url := consoleURL(opts.Port)
					if openErr := browser.OpenURL(url); openErr != nil {
						logger.Warn("Failed to open browser", "url", url, "error", openErr)
					}
				}()
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop sessions after the HTTP server stops accepting new requests
			sessions.StopAll()

			if catalogWatcher != nil {
				if stopErr := catalogWatcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping catalog watcher", "error", stopErr)
				}
			}
			if ledManager != nil {
				ledManager.Stop()
			}
			gate.Close()
			registry.Close()
		})
	})

	cli.Root().Use = "mediadevice"
	cli.Root().Version = version.Short()

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateRecordCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())

	// Run the CLI
	cli.Run()
}
