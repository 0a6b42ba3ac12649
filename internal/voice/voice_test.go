package voice_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/garnizeh/prep/internal/voice"
)

func strptr(s string) *string { return &s }

func TestChatEvents_Paginates(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v0/evi/chats/chat-1" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Hume-Api-Key") != "key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("page_size") != "100" {
			http.Error(w, "bad page size", http.StatusBadRequest)
			return
		}
		page := r.URL.Query().Get("page_number")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"page_number":%s,"page_size":100,"total_pages":2,"events_page":[{"id":"e%s","type":"USER_MESSAGE","role":"USER","message_text":"hi %s"}]}`, page, page, page)
	}))
	defer srv.Close()

	c, err := voice.NewClient(voice.Config{BaseURL: srv.URL, APIKey: "key"}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	events, err := c.ChatEvents(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("ChatEvents: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e0" || events[1].ID != "e1" {
		t.Fatalf("unexpected events %+v", events)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 page requests, got %d", n)
	}
}

func TestChatEvents_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := voice.NewClient(voice.Config{BaseURL: srv.URL, APIKey: "key"}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.ChatEvents(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNotConfigured(t *testing.T) {
	c, err := voice.NewClient(voice.Config{}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.ChatEvents(context.Background(), "x"); !errors.Is(err, voice.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.AccessToken(context.Background()); !errors.Is(err, voice.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, base := range []string{"not a url", "api.hume.ai:443/v0", "ftp://api.hume.ai", "https:///v0"} {
		if _, err := voice.NewClient(voice.Config{BaseURL: base}, nil); err == nil {
			t.Fatalf("expected error for base url %q", base)
		}
	}
}

func TestAccessToken_ClientCredentials(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2-cc/token" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":1800}`))
	}))
	defer srv.Close()

	c, err := voice.NewClient(voice.Config{BaseURL: srv.URL, APIKey: "key", SecretKey: "secret", ConfigID: "cfg"}, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	tok, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Fatalf("unexpected token %q", tok.AccessToken)
	}
	if _, err := c.AccessToken(context.Background()); err != nil {
		t.Fatalf("second AccessToken: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("valid tokens should be reused, got %d fetches", n)
	}
	if c.ConfigID() != "cfg" {
		t.Fatalf("unexpected config id %q", c.ConfigID())
	}
}

func TestCondense(t *testing.T) {
	events := []voice.Event{
		{Type: voice.TypeAgentMessage, MessageText: strptr("Hello")},
		{Type: voice.TypeAgentMessage, MessageText: strptr("Tell me about yourself.")},
		{Type: "SYSTEM_PROMPT", MessageText: strptr("ignored")},
		{Type: voice.TypeUserMessage, MessageText: strptr("I write Go.")},
		{Type: voice.TypeUserMessage},
		{Type: voice.TypeLiveUser, Message: &voice.LiveMessage{Role: "user", Content: "Mostly services."}},
		{Type: voice.TypeLiveAssistant, Message: &voice.LiveMessage{Role: "assistant", Content: "Great."}},
	}

	got := voice.Condense(events)
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d: %+v", len(got), got)
	}
	if got[0].IsUser || len(got[0].Content) != 2 {
		t.Fatalf("first turn should hold both interviewer lines: %+v", got[0])
	}
	if !got[1].IsUser || strings.Join(got[1].Content, " ") != "I write Go. Mostly services." {
		t.Fatalf("unexpected user turn %+v", got[1])
	}
	if got[2].IsUser || got[2].Content[0] != "Great." {
		t.Fatalf("unexpected last turn %+v", got[2])
	}

	if empty := voice.Condense(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice")
	}
}

func TestTranscript(t *testing.T) {
	events := []voice.Event{
		{Type: voice.TypeAgentMessage, Role: "AGENT", MessageText: strptr("Why Go?"), EmotionFeatures: json.RawMessage(`{"Calmness":0.9}`)},
		{Type: voice.TypeUserMessage, Role: voice.RoleUser, MessageText: strptr("Simplicity."), EmotionFeatures: json.RawMessage(`"{\"Joy\":0.4}"`)},
		{Type: "CHAT_END_MESSAGE"},
	}

	got := voice.Transcript(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Speaker != voice.SpeakerInterviewer || got[0].EmotionFeatures != nil {
		t.Fatalf("interviewer entry should carry no emotions: %+v", got[0])
	}
	if got[1].Speaker != voice.SpeakerInterviewee || got[1].EmotionFeatures["Joy"] != 0.4 {
		t.Fatalf("unexpected interviewee entry %+v", got[1])
	}

	b, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "emotionFeatures") {
		t.Fatalf("empty emotions should be omitted: %s", b)
	}
}
