package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mihaisavezi/polychat/internal/config"
)

type AuthMiddleware struct {
	config *config.Manager
	logger *slog.Logger
}

// NewAuthMiddleware checks the gateway key. Vendor API keys travel in the
// request body and are not touched here.
func NewAuthMiddleware(config *config.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	am := &AuthMiddleware{
		config: config,
		logger: logger,
	}

	return am.middleware
}

func (am *AuthMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := am.authenticate(r); err != nil {
			am.logger.Error("Authentication failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"request_id", RequestIDFrom(r.Context()),
			)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Gateway API key not authorized"}`))

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (am *AuthMiddleware) authenticate(r *http.Request) error {
	cfg := am.config.Get()

	// health checks, CORS preflights and an unset key skip auth
	if r.URL.Path == "/health" || r.Method == http.MethodOptions || cfg.APIKey == "" {
		return nil
	}

	var token string

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	} else if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		token = apiKey
	}

	if token == "" {
		return errors.New("no authentication token provided")
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(cfg.APIKey)) != 1 {
		return errors.New("invalid API key")
	}

	return nil
}
