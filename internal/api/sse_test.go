package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/mediadevice/internal/devices"
)

// readEvent scans the stream until an "event: name" line and returns the
// data line that follows it.
func readEvent(t *testing.T, r *bufio.Reader, name string) string {
	t.Helper()
	found := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before %q: %v", name, err)
		}
		line = strings.TrimSpace(line)
		if line == "event: "+name {
			found = true
			continue
		}
		if found && strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if data := readEvent(t, r, "connected"); !strings.Contains(data, "SSE connection established") {
		t.Errorf("connected data = %s", data)
	}

	if err := env.gate.Request(devices.KindMicrophone, nil); err != nil {
		t.Fatalf("Request: %v", err)
	}
	data := readEvent(t, r, "permission-result")
	if !strings.Contains(data, `"kind":"microphone"`) || !strings.Contains(data, `"granted":true`) {
		t.Errorf("permission-result data = %s", data)
	}
}

func TestEventsStreamRequiresAuth(t *testing.T) {
	env := newTestEnv(t, envOptions{username: "admin", password: "secret"})

	rec := env.do(t, http.MethodGet, "/api/events", nil, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}
