package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mihaisavezi/polychat/internal/history"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Exchange, error)
}

// HistoryHandler serves GET /api/history?limit=N, newest first. A nil reader
// means history is disabled.
type HistoryHandler struct {
	reader HistoryReader
	logger *slog.Logger
}

func NewHistoryHandler(reader HistoryReader, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		reader: reader,
		logger: logger,
	}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		httpError(w, h.logger, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)

		return
	}

	if h.reader == nil {
		httpError(w, h.logger, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpError(w, h.logger, http.StatusBadRequest, "invalid limit %q", raw)
			return
		}

		limit = min(n, maxHistoryLimit)
	}

	exchanges, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		httpError(w, h.logger, http.StatusInternalServerError, "read history: %v", err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{"exchanges": exchanges})
}
