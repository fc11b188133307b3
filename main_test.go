package main

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestConsoleURL(t *testing.T) {
	tests := map[string]string{
		":8090":          "http://localhost:8090/",
		"0.0.0.0:9000":   "http://localhost:9000/",
		"[::]:9000":      "http://localhost:9000/",
		"10.0.0.5:8090":  "http://10.0.0.5:8090/",
		"[fe80::1]:8090": "http://[fe80::1]:8090/",
		"localhost":      "http://localhost/",
	}
	for addr, want := range tests {
		if got := consoleURL(addr); got != want {
			t.Errorf("consoleURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := parseDuration(logger, "x", "250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("parseDuration(250ms) = %v", got)
	}
	if got := parseDuration(logger, "x", "soon", time.Second); got != time.Second {
		t.Errorf("parseDuration(soon) = %v, want fallback", got)
	}
}
