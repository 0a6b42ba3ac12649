package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// SystemHandler serves the unauthenticated operational endpoints.
type SystemHandler struct {
	// Ping checks the backing store; nil means always healthy.
	Ping func(ctx context.Context) error
}

type healthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			logger.Warn("health check failed", slog.Any("err", err))
			writeJSON(w, healthStatus{Status: "unavailable", Service: "prep"}, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, healthStatus{Status: "ok", Service: "prep"}, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}
