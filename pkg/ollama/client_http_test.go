package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garnizeh/prep/pkg/ollama"
)

// ndjson streams objs the way /api/chat does, one flushed line per object.
func ndjson(w http.ResponseWriter, pause time.Duration, objs ...map[string]any) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	for i, o := range objs {
		_ = enc.Encode(o)
		if flusher != nil {
			flusher.Flush()
		}
		if pause > 0 && i+1 < len(objs) {
			time.Sleep(pause)
		}
	}
}

func chunk(content string, done bool) map[string]any {
	return map[string]any{"model": "m", "message": map[string]any{"role": "assistant", "content": content}, "done": done}
}

func newClient(t *testing.T, srv *httptest.Server, threshold int) *ollama.Client {
	t.Helper()
	c, err := ollama.NewClient(ollama.Config{
		BaseURL:                 srv.URL,
		Timeout:                 2 * time.Second,
		CircuitFailureThreshold: threshold,
		CircuitReset:            time.Minute,
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func tagsServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestListModelsAndHealth(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		want      []string
		unhealthy bool
	}{
		{name: "Pulled", body: `{"models":[{"name":"llama3.1:8b","model":"llama3.1:8b"},{"name":"qwen2.5:7b","model":"qwen2.5:7b"}]}`, want: []string{"llama3.1:8b", "qwen2.5:7b"}},
		{name: "Empty", body: `{"models":[]}`, want: []string{}, unhealthy: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := tagsServer(c.body)
			defer srv.Close()
			client := newClient(t, srv, 0)

			names, err := client.ListModels(context.Background())
			if err != nil {
				t.Fatalf("ListModels: %v", err)
			}
			if strings.Join(names, ",") != strings.Join(c.want, ",") {
				t.Fatalf("models = %v, want %v", names, c.want)
			}
			if err := client.Health(context.Background()); (err != nil) != c.unhealthy {
				t.Fatalf("Health() = %v, unhealthy want %v", err, c.unhealthy)
			}
		})
	}
}

func TestChatStreamsFragments(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		ndjson(w, 5*time.Millisecond, chunk("Explain ", false), chunk("channels.", false), chunk("", true))
	}))
	defer srv.Close()

	client := newClient(t, srv, 3)
	var chunks []string
	text, err := client.Chat(context.Background(), ollama.ChatRequest{
		Model:    "m",
		Messages: []ollama.Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "medium"}},
		Format:   json.RawMessage(`{"type":"object"}`),
	}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if text != "Explain channels." {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %#v", chunks)
	}

	if got["model"] != "m" || got["stream"] != true {
		t.Fatalf("unexpected request body: %#v", got)
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected 2 messages in request, got %#v", got["messages"])
	}
	if _, ok := got["format"].(map[string]any); !ok {
		t.Fatalf("expected json schema format in request, got %#v", got["format"])
	}
}

func TestChatStopsOnCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ndjson(w, 0, chunk("a", false), chunk("b", false), chunk("", true))
	}))
	defer srv.Close()

	stop := errors.New("client went away")
	calls := 0
	text, err := newClient(t, srv, 1).Chat(context.Background(), ollama.ChatRequest{Model: "m"}, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 1 || text != "a" {
		t.Fatalf("expected stream to stop after first chunk, calls=%d text=%q", calls, text)
	}
}

func TestChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model crashed"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, 0).Chat(context.Background(), ollama.ChatRequest{Model: "m"}, nil)
	if err == nil {
		t.Fatalf("expected Chat to fail on non-200")
	}
}

func TestChatMalformedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{ this is : not json \n"))
	}))
	defer srv.Close()

	if _, err := newClient(t, srv, 0).Chat(context.Background(), ollama.ChatRequest{Model: "m"}, nil); err == nil {
		t.Fatalf("expected Chat to fail on malformed JSON")
	}
}

func TestBreakerOpensWithoutRetrying(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"permanent"}`))
	}))
	defer srv.Close()

	client := newClient(t, srv, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.Chat(ctx, ollama.ChatRequest{Model: "m"}, nil); err == nil || errors.Is(err, ollama.ErrCircuitOpen) {
			t.Fatalf("attempt %d: expected upstream error, got %v", i+1, err)
		}
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("expected exactly one request per call, got %d", n)
	}

	if _, err := client.Chat(ctx, ollama.ChatRequest{Model: "m"}, nil); !errors.Is(err, ollama.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCallerCancelLeavesBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ndjson(w, 0, chunk("ok", true))
	}))
	defer srv.Close()

	client := newClient(t, srv, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Chat(ctx, ollama.ChatRequest{Model: "m"}, nil); err == nil {
		t.Fatalf("expected error for cancelled context")
	}

	text, err := client.Chat(context.Background(), ollama.ChatRequest{Model: "m"}, nil)
	if err != nil {
		t.Fatalf("expected breaker to stay closed, got %v", err)
	}
	if !strings.Contains(text, "ok") {
		t.Fatalf("unexpected text %q", text)
	}
}
