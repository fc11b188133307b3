// Package logging configures per-module slog loggers for the device stack.
//
// Each module (devices, session, delivery, permission, pipeline, api, http,
// led) gets its own logger with its own level:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"session": "debug"},
//	})
//	logger := logging.GetLogger("session").With("device_id", id)
//
// Records go to stdout when it is a terminal, pipe or file, and to the
// systemd journal when journald is running (journalctl -t mediadevice
// MODULE=session). Every record is also kept in an in-memory ring buffer
// with a sequence number, which the HTTP API replays to log viewers before
// streaming live entries delivered through SetLogCallback.
//
// Levels can be changed at runtime with SetModuleLevel. Loggers handed out
// before Initialize follow the configured levels and outputs afterwards.
package logging
