package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/webhook"
	"github.com/garnizeh/prep/pkg/models"
)

const (
	msgInvalidWebhook = "Invalid webhook"
	msgNoPrimaryEmail = "No primary email found"
	msgNoUserID       = "No user ID found"
)

const maxWebhookBody = 1 << 20

// WebhooksHandler keeps the users table in sync with the identity provider.
type WebhooksHandler struct {
	access   *access.Layer
	verifier *webhook.Verifier
}

func NewWebhooksHandler(a *access.Layer, v *webhook.Verifier) *WebhooksHandler {
	return &WebhooksHandler{access: a, verifier: v}
}

func (h *WebhooksHandler) Identity(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		logger.Warn("webhook received but no signing secret is configured")
		http.Error(w, msgInvalidWebhook, http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, msgInvalidWebhook, http.StatusBadRequest)
		return
	}
	if err := h.verifier.Verify(r.Header, body); err != nil {
		logger.Warn("webhook verification failed", slog.Any("err", err), slog.String("remote", r.RemoteAddr))
		http.Error(w, msgInvalidWebhook, http.StatusBadRequest)
		return
	}

	event, err := webhook.ParseEvent(body)
	if err != nil {
		logger.Warn("webhook payload", slog.Any("err", err))
		http.Error(w, msgInvalidWebhook, http.StatusBadRequest)
		return
	}

	switch event.Type {
	case webhook.UserCreated, webhook.UserUpdated:
		data, err := event.User()
		if err != nil || data.ID == "" {
			http.Error(w, msgInvalidWebhook, http.StatusBadRequest)
			return
		}
		email, ok := data.PrimaryEmail()
		if !ok {
			http.Error(w, msgNoPrimaryEmail, http.StatusBadRequest)
			return
		}
		u := &models.User{
			ID:       data.ID,
			Name:     data.FullName(),
			Email:    email,
			ImageURL: data.ImageURL,
			Created:  data.CreatedAt,
			Updated:  data.UpdatedAt,
		}
		if err := h.access.Users.Upsert(r.Context(), u); err != nil {
			internalError(w, "upsert user", err)
			return
		}
		logger.Info("user synced", slog.String("type", event.Type), slog.String("user", data.ID))

	case webhook.UserDeleted:
		data, err := event.User()
		if err != nil || data.ID == "" {
			http.Error(w, msgNoUserID, http.StatusBadRequest)
			return
		}
		if err := h.access.Users.Delete(r.Context(), data.ID); err != nil {
			internalError(w, "delete user", err)
			return
		}
		logger.Info("user deleted", slog.String("user", data.ID))

	default:
		logger.Debug("ignoring webhook", slog.String("type", event.Type))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Webhook received")
}
