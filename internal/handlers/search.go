package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/search"
)

type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]chat.SearchResult, error)
}

// SearchHandler serves POST /api/web-search, the same contract the chat
// pipeline consumes.
type SearchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewSearchHandler(searcher Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		logger:   logger,
	}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpError(w, h.logger, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)

		return
	}

	var q search.Query
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&q); err != nil {
		httpError(w, h.logger, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if strings.TrimSpace(q.Query) == "" {
		httpError(w, h.logger, http.StatusBadRequest, "Query is required")
		return
	}

	if q.MaxResults <= 0 {
		q.MaxResults = search.DefaultMaxResults
	}

	results, err := h.searcher.Search(r.Context(), q)
	if err != nil {
		if errors.Is(err, search.ErrNotConfigured) {
			httpError(w, h.logger, http.StatusServiceUnavailable, "%v", err)
			return
		}

		httpError(w, h.logger, http.StatusBadGateway, "web search failed: %v", err)

		return
	}

	if results == nil {
		results = []chat.SearchResult{}
	}

	h.logger.Info("Web search", "query", q.Query, "results", len(results), "extract", q.ExtractContent)

	writeJSON(w, h.logger, http.StatusOK, search.Response{Query: q.Query, Results: results})
}
