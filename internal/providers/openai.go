package providers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/transform"
)

// OpenAICompatible serves every provider speaking the chat-completions
// format: OpenAI, DeepSeek, Grok, OpenRouter and Mistral. They differ only
// in endpoint, model naming, extra headers and whether images are sent.
type OpenAICompatible struct {
	base
	vision  bool
	headers map[string]string
	resolve func(model, custom string) string
}

type openAIRequest struct {
	Model       string                    `json:"model"`
	Messages    []transform.OpenAIMessage `json:"messages"`
	MaxTokens   int                       `json:"max_tokens"`
	Temperature float64                   `json:"temperature"`
}

func NewOpenAIProvider(opts Options) *OpenAICompatible {
	p := &OpenAICompatible{
		base: base{
			name:         chat.ProviderOpenAI,
			display:      "OpenAI",
			defaultModel: "gpt-4o",
			budget:       Budget{Timeout: 45 * time.Second, MaxTokens: 4000, TokenCap: 8000},
		},
		vision:  true,
		resolve: resolveOpenAIModel,
	}
	p.configure(opts, "https://api.openai.com/v1/chat/completions")

	return p
}

func resolveOpenAIModel(model, custom string) string {
	if custom != "" {
		return custom
	}

	if strings.Contains(model, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}

	return "gpt-4o"
}

func (p *OpenAICompatible) ResolveModel(model, custom string) string {
	return p.resolve(strings.TrimSpace(model), strings.TrimSpace(custom))
}

func (p *OpenAICompatible) SupportsVision() bool {
	return p.vision
}

func (p *OpenAICompatible) BuildRequest(ctx context.Context, call Call) (*http.Request, error) {
	msgs := call.Messages
	if !p.vision {
		msgs = transform.ToText(msgs)
	}

	payload := openAIRequest{
		Model:       call.Model,
		Messages:    transform.ToOpenAI(msgs),
		MaxTokens:   call.Params.MaxTokens,
		Temperature: call.Params.Temperature,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + call.APIKey,
	}
	for k, v := range p.headers {
		headers[k] = v
	}

	return p.newJSONRequest(ctx, p.endpoint, payload, headers)
}

func (p *OpenAICompatible) ParseResponse(body gjson.Result) (string, error) {
	if body.Get("error").Exists() && !body.Get("choices").Exists() {
		return "", p.upstreamError(body)
	}

	return body.Get("choices.0.message.content").String(), nil
}
