// Package voice is a minimal client for a Hume compatible voice interview
// provider: chat transcripts and short lived access tokens for the browser.
package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultBaseURL is the hosted provider.
	DefaultBaseURL = "https://api.hume.ai"
	pageSize       = 100
	// maxPages bounds pagination in case the provider never reports the last page.
	maxPages = 1000
)

var ErrNotConfigured = errors.New("voice provider not configured")

type Config struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	// ConfigID selects the voice configuration the browser should connect with.
	ConfigID string
}

type Client struct {
	base     string
	apiKey   string
	configID string
	http     *http.Client
	tokens   oauth2.TokenSource
}

// NewClient returns a client for cfg. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid voice base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("voice base url %q must be an absolute http(s) url", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		configID: cfg.ConfigID,
		http:     httpClient,
	}

	if cfg.APIKey != "" && cfg.SecretKey != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.APIKey,
			ClientSecret: cfg.SecretKey,
			TokenURL:     c.base + "/oauth2-cc/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		// The token source outlives any request, so it is bound to a
		// background context carrying our http client.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		c.tokens = cc.TokenSource(ctx)
	}

	return c, nil
}

// ConfigID returns the configured voice configuration id, if any.
func (c *Client) ConfigID() string { return c.configID }

// AccessToken returns a short lived token the browser uses to open a voice
// session. Tokens are reused until shortly before they expire.
//
// The fetch is bounded by the http client timeout rather than ctx because the
// cached token is shared by every caller.
func (c *Client) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.tokens == nil {
		return nil, ErrNotConfigured
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("voice access token: %w", err)
	}
	return tok, nil
}

type eventsPage struct {
	PageNumber int     `json:"page_number"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	Events     []Event `json:"events_page"`
}

// ChatEvents returns every event of a chat, oldest first, following
// pagination until the last page.
func (c *Client) ChatEvents(ctx context.Context, chatID string) ([]Event, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var all []Event
	for page := 0; page < maxPages; page++ {
		p, err := c.eventsPage(ctx, chatID, page)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Events...)
		if page+1 >= p.TotalPages || len(p.Events) == 0 {
			break
		}
	}
	return all, nil
}

func (c *Client) eventsPage(ctx context.Context, chatID string, page int) (*eventsPage, error) {
	q := url.Values{}
	q.Set("page_number", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("ascending_order", "true")
	u := c.base + "/v0/evi/chats/" + url.PathEscape(chatID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Hume-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("voice API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var p eventsPage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &p, nil
}
