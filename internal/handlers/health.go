package handlers

import (
	"log/slog"
	"net/http"
	"time"
)

type HealthHandler struct {
	started time.Time
	logger  *slog.Logger
}

func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		started: time.Now(),
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}
