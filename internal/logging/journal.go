package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry; filter with journalctl -t.
const SyslogIdentifier = "mediadevice"

// journalHandler sends records to the systemd journal with attributes as
// upper-case fields (device_id becomes DEVICE_ID, groups join with "_").
type journalHandler struct {
	scope
}

func newJournalHandler(level slog.Leveler) *journalHandler {
	return &journalHandler{scope{level: level}}
}

func journalAvailable() bool {
	return journal.Enabled()
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *journalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)
	fields := map[string]string{
		"PRIORITY":          strconv.Itoa(int(priority)),
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}
	h.each(r, "_", func(key string, v slog.Value) {
		if name := journalField(key); name != "" {
			fields[name] = journalValue(v)
		}
	})
	return journal.Send(r.Message, priority, fields)
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &journalHandler{h.withAttrs(attrs)}
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	return &journalHandler{h.withGroup(name)}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalField maps an attribute key to a valid journal field name: upper
// case letters, digits and underscores, not starting with an underscore.
// Keys with nothing usable map to "".
func journalField(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return strings.TrimLeft(name, "_")
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	default:
		return v.String()
	}
}
