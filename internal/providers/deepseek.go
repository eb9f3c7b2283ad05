package providers

import (
	"strings"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
)

const (
	DeepSeekChatModel     = "deepseek-chat"
	DeepSeekReasonerModel = "deepseek-reasoner"
)

func NewDeepSeekProvider(opts Options) *OpenAICompatible {
	p := &OpenAICompatible{
		base: base{
			name:         chat.ProviderDeepSeek,
			display:      "DeepSeek",
			defaultModel: DeepSeekChatModel,
			budget:       Budget{Timeout: 45 * time.Second, MaxTokens: 4000, TokenCap: 8000},
		},
		resolve: resolveDeepSeekModel,
	}
	p.configure(opts, "https://api.deepseek.com/v1/chat/completions")

	return p
}

// R1 maps to the reasoner; everything else is V3 (deepseek-chat).
func resolveDeepSeekModel(model, custom string) string {
	if custom != "" {
		return custom
	}

	m := strings.ToLower(model)
	if strings.Contains(m, "reasoner") || strings.Contains(m, "r1") {
		return DeepSeekReasonerModel
	}

	return DeepSeekChatModel
}
