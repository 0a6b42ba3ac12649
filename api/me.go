package api

import (
	"net/http"

	"github.com/garnizeh/prep/internal/access"
	"github.com/garnizeh/prep/internal/permissions"
	"github.com/garnizeh/prep/pkg/models"
)

type MeHandler struct {
	access *access.Layer
	perms  *permissions.Evaluator
}

func NewMeHandler(a *access.Layer, p *permissions.Evaluator) *MeHandler {
	return &MeHandler{access: a, perms: p}
}

type meResponse struct {
	// User is null until the identity webhook created the row.
	User        *models.User        `json:"user"`
	Permissions permissions.Summary `json:"permissions"`
}

func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	u, err := h.access.Users.Get(r.Context(), p.UserID)
	if err != nil {
		internalError(w, "load user", err)
		return
	}
	summary, err := h.perms.Summary(r.Context())
	if err != nil {
		internalError(w, "permission summary", err)
		return
	}
	writeJSON(w, meResponse{User: u, Permissions: summary}, http.StatusOK)
}
