package logging

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger used by packages that only log.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects levels, output format and buffer size.
type Config struct {
	Level      string            `toml:"level"`
	Format     string            `toml:"format"`
	Modules    map[string]string `toml:"modules"`
	BufferSize int               `toml:"buffer_size"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// state is the process-wide logging setup behind the package functions.
type state struct {
	mu       sync.RWMutex
	config   Config
	ready    bool
	root     slog.LevelVar
	modules  map[string]*moduleLogger
	buffer   *RingBuffer
	callback LogCallback
}

var std = &state{modules: make(map[string]*moduleLogger)}

func (s *state) sinks() (*RingBuffer, LogCallback) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer, s.callback
}

// Initialize applies config. It may be called again. Loggers already handed
// out by GetLogger follow the new levels; GetLogger returns loggers with the
// new format from then on. The ring buffer is kept across calls unless
// BufferSize changes.
func Initialize(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	config.Modules = maps.Clone(config.Modules)
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}
	std.config = config
	std.ready = true

	if std.buffer == nil || len(std.buffer.entries) != config.BufferSize {
		std.buffer = NewRingBuffer(config.BufferSize)
	}

	std.root.Set(levelFor(config, ""))
	for name, m := range std.modules {
		m.level.Set(levelFor(config, name))
		m.logger = newModuleLogger(config.Format, name, m.level)
	}

	slog.SetDefault(slog.New(outputs(config.Format, &std.root)))
}

// GetBuffer returns the ring buffer, or nil before Initialize.
func GetBuffer() *RingBuffer {
	buffer, _ := std.sinks()
	return buffer
}

// SetLogCallback sets the function that receives every buffered entry.
func SetLogCallback(callback LogCallback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = callback
}

// GetLogger returns the logger for module, creating it on first use. Each
// record carries a "module" attribute.
func GetLogger(module string) *slog.Logger {
	std.mu.RLock()
	if m, ok := std.modules[module]; ok {
		logger := m.logger
		std.mu.RUnlock()
		return logger
	}
	std.mu.RUnlock()

	std.mu.Lock()
	defer std.mu.Unlock()
	if m, ok := std.modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	format := "text"
	if std.ready {
		level.Set(levelFor(std.config, module))
		format = std.config.Format
	}
	m := &moduleLogger{level: level, logger: newModuleLogger(format, module, level)}
	std.modules[module] = m
	return m.logger
}

// SetModuleLevel changes a module's level at runtime. The module does not
// need a logger yet.
func SetModuleLevel(module, level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if std.config.Modules == nil {
		std.config.Modules = make(map[string]string)
	}
	std.config.Modules[module] = levelName(parsed)
	if m, ok := std.modules[module]; ok {
		m.level.Set(parsed)
	}
	return nil
}

// Levels returns the global level and the effective level of every module
// that has a logger or an override.
func Levels() (global string, modules map[string]string) {
	std.mu.RLock()
	defer std.mu.RUnlock()

	modules = make(map[string]string, len(std.modules))
	for name := range std.config.Modules {
		modules[name] = levelName(levelFor(std.config, name))
	}
	for name, m := range std.modules {
		modules[name] = levelName(m.level.Level())
	}
	return levelName(std.root.Level()), modules
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// levelFor resolves a module's level: its override, else the global level,
// else info.
func levelFor(config Config, module string) slog.Level {
	if module != "" {
		if l, err := ParseLevel(config.Modules[module]); err == nil {
			return l
		}
	}
	if l, err := ParseLevel(config.Level); err == nil {
		return l
	}
	return slog.LevelInfo
}

func newModuleLogger(format, module string, level slog.Leveler) *slog.Logger {
	return slog.New(outputs(format, level)).With("module", module)
}

// outputs builds the handler chain: stdout when it goes somewhere, the
// journal when journald runs, and always the ring buffer.
func outputs(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers fanout
	if stdoutUsable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if journalAvailable() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return handlers
}

// stdoutUsable reports whether stdout is a terminal, pipe, socket or regular
// file. Other devices such as /dev/null are skipped.
func stdoutUsable() bool {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return true
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}
