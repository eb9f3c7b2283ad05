package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const maxRequestBody = 32 << 20

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

func httpError(w http.ResponseWriter, logger *slog.Logger, code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("HTTP Error", "code", code, "message", msg)
	writeJSON(w, logger, code, map[string]string{"error": msg})
}
