package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// NewCORSMiddleware lets the browser UI call the gateway. With no origins
// configured every origin is allowed.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return cors.AllowAll().Handler
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         600,
	})

	return c.Handler
}
