package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder captures what the handler wrote so it can be logged.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(data []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(data)
	sr.bytes += n

	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelWarn
	case status == http.StatusUnauthorized || status == http.StatusTooManyRequests:
		return slog.LevelInfo
	case status >= http.StatusBadRequest:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// NewLoggingMiddleware logs one line per request, tagged with the request id.
// Server errors are raised to Warn.
func NewLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Log(r.Context(), levelFor(rec.status), "HTTP Request",
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"bytes_in", r.ContentLength,
				"bytes_out", rec.bytes,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
