package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaisavezi/polychat/internal/config"
)

func testManager(t *testing.T, apiKey string) *config.Manager {
	t.Helper()

	mgr := config.NewManager(t.TempDir())
	require.NoError(t, mgr.Save(&config.Config{Host: config.DefaultHost, Port: config.DefaultPort, APIKey: apiKey}))

	return mgr
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "ok")
})

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAuthMiddleware(testManager(t, "gateway-secret"), logger)(ok)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
	}{
		{name: "bearer", method: http.MethodPost, path: "/api/chat", header: map[string]string{"Authorization": "Bearer gateway-secret"}, status: http.StatusOK},
		{name: "x-api-key", method: http.MethodPost, path: "/api/chat", header: map[string]string{"X-API-Key": "gateway-secret"}, status: http.StatusOK},
		{name: "wrong key", method: http.MethodPost, path: "/api/chat", header: map[string]string{"Authorization": "Bearer nope"}, status: http.StatusUnauthorized},
		{name: "missing", method: http.MethodPost, path: "/api/chat", status: http.StatusUnauthorized},
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, path: "/api/chat", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Gateway API key not authorized"}`, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_NoKeyConfigured(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAuthMiddleware(testManager(t, ""), logger)(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string

	h := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://chat.example.com"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://chat.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	all := NewCORSMiddleware(nil)(ok)

	req = httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	req.Header.Set("Origin", "https://anything.example")

	rec = httptest.NewRecorder()
	all.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDefaultChain(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := NewMiddlewareSet(testManager(t, "k"), logger)

	h := ms.DefaultChain().Handler(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	// rejected requests still carry a request id
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	ms.HealthChain().Handler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := NewRequestIDMiddleware()(NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{}"))
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, "level=WARN")
	assert.Contains(t, line, "request_id=req-1")
	assert.Contains(t, line, "status=502")
	assert.Contains(t, line, "bytes_out=13")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusOK))
	assert.Equal(t, slog.LevelDebug, levelFor(http.StatusNotFound))
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusUnauthorized))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusGatewayTimeout))
}
