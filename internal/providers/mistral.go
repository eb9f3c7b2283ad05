package providers

import (
	"strings"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
)

var mistralPrefixes = []string{"mistral-", "open-mistral", "open-mixtral", "codestral", "pixtral", "ministral", "magistral"}

func NewMistralProvider(opts Options) *OpenAICompatible {
	p := &OpenAICompatible{
		base: base{
			name:         chat.ProviderMistral,
			display:      "Mistral",
			defaultModel: "mistral-large-latest",
			budget:       Budget{Timeout: 40 * time.Second, MaxTokens: 4000, TokenCap: 8000},
		},
		resolve: resolveMistralModel,
	}
	p.configure(opts, "https://api.mistral.ai/v1/chat/completions")

	return p
}

func resolveMistralModel(model, custom string) string {
	if custom != "" {
		return custom
	}

	m := strings.ToLower(model)
	for _, prefix := range mistralPrefixes {
		if strings.HasPrefix(m, prefix) {
			return m
		}
	}

	return "mistral-large-latest"
}
