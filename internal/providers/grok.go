package providers

import (
	"strings"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
)

func NewGrokProvider(opts Options) *OpenAICompatible {
	p := &OpenAICompatible{
		base: base{
			name:         chat.ProviderGrok,
			display:      "Grok",
			defaultModel: "grok-3",
			budget:       Budget{Timeout: 45 * time.Second, MaxTokens: 4000, TokenCap: 8000},
		},
		resolve: resolveGrokModel,
	}
	p.configure(opts, "https://api.x.ai/v1/chat/completions")

	return p
}

func resolveGrokModel(model, custom string) string {
	if custom != "" {
		return custom
	}

	m := strings.ToLower(model)

	switch {
	case strings.Contains(m, "grok-3-mini"):
		return "grok-3-mini"
	case strings.HasPrefix(m, "grok-"):
		return m
	default:
		return "grok-3"
	}
}
