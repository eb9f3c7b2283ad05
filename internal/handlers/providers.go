package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mihaisavezi/polychat/internal/providers"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	DefaultModel   string `json:"defaultModel"`
	Vision         bool   `json:"vision"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxTokens      int    `json:"maxTokens"`
}

// ProvidersHandler serves GET /api/providers.
type ProvidersHandler struct {
	registry *providers.Registry
	logger   *slog.Logger
}

func NewProvidersHandler(registry *providers.Registry, logger *slog.Logger) *ProvidersHandler {
	return &ProvidersHandler{
		registry: registry,
		logger:   logger,
	}
}

func (h *ProvidersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		httpError(w, h.logger, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)

		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{"providers": Describe(h.registry)})
}

// Describe lists the registered chat adapters in name order.
func Describe(registry *providers.Registry) []ProviderInfo {
	names := registry.List()
	out := make([]ProviderInfo, 0, len(names))

	for _, name := range names {
		a, _ := registry.Get(name)
		b := a.Budget()

		out = append(out, ProviderInfo{
			Name:           a.Name(),
			DisplayName:    a.DisplayName(),
			DefaultModel:   a.DefaultModel(),
			Vision:         a.SupportsVision(),
			TimeoutSeconds: int(b.Timeout / time.Second),
			MaxTokens:      b.MaxTokens,
		})
	}

	return out
}
