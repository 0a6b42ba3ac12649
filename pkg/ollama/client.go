package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger replaces the package logger. nil is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Client talks to one Ollama instance. Calls are bounded by Config.Timeout
// and guarded by a circuit breaker; nothing is retried.
type Client struct {
	api     *api.Client
	http    *http.Client
	timeout time.Duration
	cb      *breaker
	closed  atomic.Bool
}

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string
	Messages []Message
	// Format is nil for free text or a JSON schema the reply must follow.
	Format json.RawMessage
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("ollama: base url %q must be an absolute http(s) url", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger.Info("ollama: client ready", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return &Client{
		api:     api.NewClient(u, httpClient),
		http:    httpClient,
		timeout: cfg.Timeout,
		cb:      newBreaker(cfg.CircuitFailureThreshold, cfg.CircuitReset),
	}, nil
}

// NewDefaultClient builds a Client on a transport suited to long streams. The
// http.Client itself has no timeout; Config.Timeout applies per call.
func NewDefaultClient(cfg Config) (*Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return NewClient(cfg, &http.Client{Transport: transport})
}

// Close drops idle connections. It may be called more than once.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if tr, ok := c.http.Transport.(interface{ CloseIdleConnections() }); ok {
		tr.CloseIdleConnections()
	}
	return nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// Health fails unless the instance answers and has at least one model.
func (c *Client) Health(ctx context.Context) error {
	names, err := c.ListModels(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ollama health: %w", err)
	case len(names) == 0:
		return fmt.Errorf("ollama health: no models pulled")
	}
	return nil
}

// ListModels returns the names of the models pulled on the instance.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if err := c.cb.allow(); err != nil {
		return nil, err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		c.cb.fail()
		return nil, err
	}
	c.cb.succeed()

	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.Name
	}
	return names, nil
}

// Chat streams a completion, handing each content fragment to fn, and
// returns the accumulated text. An error from fn ends the stream and is
// returned as is. A caller cancelling ctx is not counted against the breaker.
func (c *Client) Chat(ctx context.Context, req ChatRequest, fn func(chunk string) error) (string, error) {
	if err := c.cb.allow(); err != nil {
		return "", err
	}

	msgs := make([]api.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	stream := true

	streamCtx, cancel := c.bound(ctx)
	defer cancel()

	start := time.Now()
	var (
		text  strings.Builder
		fnErr error
	)
	err := c.api.Chat(streamCtx, &api.ChatRequest{Model: req.Model, Messages: msgs, Stream: &stream, Format: req.Format},
		func(r api.ChatResponse) error {
			if r.Message.Content == "" {
				return nil
			}
			text.WriteString(r.Message.Content)
			if fn == nil {
				return nil
			}
			fnErr = fn(r.Message.Content)
			return fnErr
		})
	switch {
	case fnErr != nil:
		return text.String(), fnErr
	case err != nil:
		if ctx.Err() == nil {
			c.cb.fail()
		}
		return text.String(), fmt.Errorf("ollama chat: %w", err)
	}

	c.cb.succeed()
	logger.Debug("ollama: chat done",
		slog.String("model", req.Model),
		slog.Int("chars", text.Len()),
		slog.Duration("took", time.Since(start)),
	)
	return text.String(), nil
}
