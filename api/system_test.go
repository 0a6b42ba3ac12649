package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garnizeh/prep/api"
)

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name string
		ping func(context.Context) error
		want int
		body string
	}{
		{name: "NoPing", want: http.StatusOK, body: `{"status":"ok","service":"prep"}`},
		{name: "Reachable", ping: func(context.Context) error { return nil }, want: http.StatusOK, body: `{"status":"ok","service":"prep"}`},
		{name: "Down", ping: func(context.Context) error { return errors.New("db down") }, want: http.StatusServiceUnavailable, body: `{"status":"unavailable","service":"prep"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := &api.SystemHandler{Ping: c.ping}
			w := httptest.NewRecorder()
			h.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != c.want {
				t.Fatalf("status %d, want %d", w.Code, c.want)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("content type %q", ct)
			}
			if got := strings.TrimSpace(w.Body.String()); got != c.body {
				t.Fatalf("body %s, want %s", got, c.body)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	w := httptest.NewRecorder()
	(&api.SystemHandler{}).VersionHandler("v0.4.1", "2026-10-01T12:00:00Z")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assertStatus(t, w, http.StatusOK)
	got := decode[map[string]string](t, w)
	if got["version"] != "v0.4.1" || got["buildTime"] != "2026-10-01T12:00:00Z" {
		t.Fatalf("unexpected version body %v", got)
	}
}

func TestOpenRoutes(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/version", "/metrics"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		assertStatus(t, w, http.StatusOK)
	}

	// requests are counted by route template
	env.do(t, http.MethodGet, "/v1/job-infos/abc", token(t, "user_1"), nil)
	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(w.Body.String(), `route="/v1/job-infos/{id}"`) {
		t.Fatalf("metrics should label requests by route template")
	}

	w = env.do(t, http.MethodOptions, "/v1/ai/questions/generate-question", "", nil)
	assertStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("preflight should carry CORS headers, got %q", got)
	}
}
