package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
)

type Dispatcher interface {
	Handle(ctx context.Context, req *chat.Request) (*chat.Envelope, error)
}

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewChatHandler(dispatcher Dispatcher, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpError(w, h.logger, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)

		return
	}

	var req chat.Request

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, &chat.Error{Kind: chat.KindValidation, Message: "Invalid request body: " + err.Error(), Err: err})
		return
	}

	// validated here as well so a bad request never reaches the dispatcher
	if err := req.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()

	tokens, err := chat.CountTokens(req.Messages)
	if err != nil {
		h.logger.Warn("Token count unavailable", "error", err)
	}

	h.logger.Info("Chat request",
		"provider", req.Provider,
		"model", req.Model,
		"messages", len(req.Messages),
		"input_tokens", tokens,
		"web_search", bool(req.WebSearchEnabled),
		"code_generation", bool(req.CodeGenerationEnabled),
	)

	env, err := h.dispatcher.Handle(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Chat response",
		"provider", env.Provider,
		"model", env.Model,
		"retried", env.Retried,
		"duration", time.Since(start),
	)

	writeJSON(w, h.logger, http.StatusOK, env)
}

func (h *ChatHandler) writeError(w http.ResponseWriter, err error) {
	status := chat.StatusFor(err)

	body := chat.ErrorBody{
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var ce *chat.Error
	if errors.As(err, &ce) {
		body.Provider = ce.Provider
		body.Model = ce.Model
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Chat request failed", "status", status, "provider", body.Provider, "model", body.Model, "error", err)
	} else {
		h.logger.Warn("Chat request rejected", "status", status, "error", err)
	}

	writeJSON(w, h.logger, status, body)
}
