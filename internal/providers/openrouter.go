package providers

import (
	"strings"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
)

const defaultReferer = "https://github.com/mihaisavezi/polychat"

// OpenRouter wants "vendor/model" ids. Bare ids get a vendor prefix guessed
// from the model family.
var openRouterVendors = []struct {
	prefix string
	vendor string
}{
	{"gpt", "openai"},
	{"o1", "openai"},
	{"o3", "openai"},
	{"o4", "openai"},
	{"claude", "anthropic"},
	{"gemini", "google"},
	{"gemma", "google"},
	{"llama", "meta-llama"},
	{"mistral", "mistralai"},
	{"mixtral", "mistralai"},
	{"codestral", "mistralai"},
	{"deepseek", "deepseek"},
	{"grok", "x-ai"},
	{"qwen", "qwen"},
	{"command", "cohere"},
}

func NewOpenRouterProvider(opts Options) *OpenAICompatible {
	referer := opts.Referer
	if referer == "" {
		referer = defaultReferer
	}

	p := &OpenAICompatible{
		base: base{
			name:         chat.ProviderOpenRouter,
			display:      "OpenRouter",
			defaultModel: "openai/gpt-4o",
			budget:       Budget{Timeout: 50 * time.Second, MaxTokens: 4000, TokenCap: 8000},
		},
		headers: map[string]string{
			"HTTP-Referer": referer,
			"X-Title":      "Polychat",
		},
		resolve: resolveOpenRouterModel,
	}
	p.configure(opts, "https://openrouter.ai/api/v1/chat/completions")

	return p
}

func resolveOpenRouterModel(model, custom string) string {
	id := custom
	if id == "" {
		id = model
	}

	if id == "" {
		return "openai/gpt-4o"
	}

	if strings.Contains(id, "/") {
		return id
	}

	lower := strings.ToLower(id)
	for _, v := range openRouterVendors {
		if strings.HasPrefix(lower, v.prefix) {
			return v.vendor + "/" + id
		}
	}

	return "openai/" + id
}
