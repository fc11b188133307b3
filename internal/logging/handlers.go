package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// LogCallback receives every entry after it is buffered.
type LogCallback func(entry LogEntry)

// scope carries the level, attributes and groups shared by the buffer and
// journal handlers.
type scope struct {
	level  slog.Leveler
	attrs  []groupedAttr
	groups []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

func (s scope) enabled(level slog.Level) bool {
	return level >= s.level.Level()
}

func (s scope) withAttrs(attrs []slog.Attr) scope {
	next := s
	next.attrs = slices.Clone(s.attrs)
	for _, a := range attrs {
		next.attrs = append(next.attrs, groupedAttr{groups: s.groups, attr: a})
	}
	return next
}

func (s scope) withGroup(name string) scope {
	if name == "" {
		return s
	}
	next := s
	next.groups = append(slices.Clone(s.groups), name)
	return next
}

// each calls fn for every leaf attribute of the scope and the record, with
// group names joined by sep in front of the key.
func (s scope) each(r slog.Record, sep string, fn func(key string, v slog.Value)) {
	for _, ga := range s.attrs {
		walkAttr(ga.groups, ga.attr, sep, fn)
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(s.groups, a, sep, fn)
		return true
	})
}

func walkAttr(groups []string, a slog.Attr, sep string, fn func(key string, v slog.Value)) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	if v.Kind() == slog.KindGroup {
		nested := groups
		if a.Key != "" {
			nested = append(slices.Clone(groups), a.Key)
		}
		for _, ga := range v.Group() {
			walkAttr(nested, ga, sep, fn)
		}
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, sep) + sep + key
	}
	fn(key, v)
}

// bufferHandler writes records to the package ring buffer and hands each
// buffered entry to the log callback. Both are looked up per record.
type bufferHandler struct {
	scope
}

func newBufferHandler(level slog.Leveler) *bufferHandler {
	return &bufferHandler{scope{level: level}}
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *bufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer, callback := std.sinks()
	if buffer == nil && callback == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     "app",
		Message:    r.Message,
		Attributes: make(map[string]any),
	}
	h.each(r, ".", func(key string, v slog.Value) {
		if key == "module" {
			entry.Module = v.String()
			return
		}
		entry.Attributes[key] = plainValue(v)
	})

	if buffer != nil {
		entry = buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bufferHandler{h.withAttrs(attrs)}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	return &bufferHandler{h.withGroup(name)}
}

// plainValue converts v into something that encodes cleanly as JSON.
func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

// fanout sends each record to every handler enabled for its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
