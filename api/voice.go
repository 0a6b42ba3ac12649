package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/garnizeh/prep/internal/voice"
)

// Tokens issues browser tokens for the voice provider.
type Tokens interface {
	AccessToken(ctx context.Context) (*oauth2.Token, error)
	ConfigID() string
}

type VoiceHandler struct {
	tokens Tokens
}

func NewVoiceHandler(t Tokens) *VoiceHandler {
	return &VoiceHandler{tokens: t}
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt,omitempty"`
	ConfigID    string `json:"configId,omitempty"`
}

// AccessToken hands the signed in user a short lived voice session token.
func (h *VoiceHandler) AccessToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := principal(w, r); !ok {
		return
	}

	if h.tokens == nil {
		http.Error(w, msgVoiceUnavailable, http.StatusServiceUnavailable)
		return
	}
	tok, err := h.tokens.AccessToken(r.Context())
	if errors.Is(err, voice.ErrNotConfigured) {
		http.Error(w, msgVoiceUnavailable, http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		logger.Warn("voice access token", slog.Any("err", err))
		http.Error(w, "Error starting the voice session", http.StatusBadGateway)
		return
	}

	resp := accessTokenResponse{AccessToken: tok.AccessToken, ConfigID: h.tokens.ConfigID()}
	if !tok.Expiry.IsZero() {
		resp.ExpiresAt = tok.Expiry.Unix()
	}
	writeJSON(w, resp, http.StatusOK)
}
