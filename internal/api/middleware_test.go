package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRedactQuery(t *testing.T) {
	tests := map[string]string{
		"":                      "",
		"kind=camera":           "kind=camera",
		"auth=YWRtaW46c2VjcmV0": "auth=REDACTED",
		"fps=5&auth=abc":        "auth=REDACTED&fps=5",
		"bad=%zz":               "<unparsable>",
	}
	for in, want := range tests {
		if got := redactQuery(in); got != want {
			t.Errorf("redactQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequestDurationRecorded(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	before := testutil.CollectAndCount(requestDuration)

	expectStatus(t, env.do(t, http.MethodGet, "/api/health", nil, nil), http.StatusOK)

	if after := testutil.CollectAndCount(requestDuration); after < before || after == 0 {
		t.Errorf("histogram series = %d (before %d)", after, before)
	}

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if !strings.Contains(rec.Body.String(), `mediadevice_http_request_duration_seconds_count{operation="health-check",status="200"}`) {
		t.Error("metrics output missing health-check request duration")
	}
}
