package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mihaisavezi/polychat/internal/config"
)

// Middleware represents a middleware function
type Middleware func(http.Handler) http.Handler

// Chain represents a middleware chain
type Chain struct {
	middlewares []Middleware
}

// New creates a new middleware chain
func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: middlewares}
}

// Then adds more middleware to the chain
func (c Chain) Then(middlewares ...Middleware) Chain {
	all := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	all = append(all, c.middlewares...)

	return Chain{middlewares: append(all, middlewares...)}
}

// Handler applies all middleware in the chain to the given handler
func (c Chain) Handler(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	return handler
}

// MiddlewareSet contains all configured middleware for easy composition
type MiddlewareSet struct {
	RequestID Middleware
	Logging   Middleware
	CORS      Middleware
	Auth      Middleware
}

func NewMiddlewareSet(config *config.Manager, logger *slog.Logger) MiddlewareSet {
	return MiddlewareSet{
		RequestID: NewRequestIDMiddleware(),
		Logging:   NewLoggingMiddleware(logger),
		CORS:      NewCORSMiddleware(config.Get().AllowedOrigins),
		Auth:      NewAuthMiddleware(config, logger),
	}
}

// DefaultChain is used for the /api endpoints. CORS runs before auth so
// preflight requests are answered without a key.
func (ms MiddlewareSet) DefaultChain() Chain {
	return New(
		ms.RequestID,
		ms.Logging,
		ms.CORS,
		ms.Auth,
	)
}

// HealthChain returns the middleware chain for health endpoints (no auth)
func (ms MiddlewareSet) HealthChain() Chain {
	return New(
		ms.RequestID,
		ms.Logging,
	)
}
