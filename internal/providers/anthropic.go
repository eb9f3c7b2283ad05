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

const AnthropicVersion = "2023-06-01"

type ClaudeProvider struct {
	base
}

type claudeRequest struct {
	Model       string                    `json:"model"`
	MaxTokens   int                       `json:"max_tokens"`
	Temperature float64                   `json:"temperature"`
	System      string                    `json:"system,omitempty"`
	Messages    []transform.ClaudeMessage `json:"messages"`
}

func NewClaudeProvider(opts Options) *ClaudeProvider {
	p := &ClaudeProvider{
		base: base{
			name:         chat.ProviderClaude,
			display:      "Claude",
			defaultModel: "claude-3-5-sonnet-20241022",
			budget:       Budget{Timeout: 50 * time.Second, MaxTokens: 4000, TokenCap: 8000},
		},
	}
	p.configure(opts, "https://api.anthropic.com/v1/messages")

	return p
}

func (p *ClaudeProvider) SupportsVision() bool {
	return true
}

// ResolveModel maps family names from the UI to dated model ids.
func (p *ClaudeProvider) ResolveModel(model, custom string) string {
	if custom = strings.TrimSpace(custom); custom != "" {
		return custom
	}

	m := strings.ToLower(model)

	switch {
	case strings.Contains(m, "opus-4") || strings.Contains(m, "claude-4-opus"):
		return "claude-opus-4-20250514"
	case strings.Contains(m, "sonnet-4") || strings.Contains(m, "claude-4-sonnet"):
		return "claude-sonnet-4-20250514"
	case strings.Contains(m, "3-7") || strings.Contains(m, "3.7"):
		return "claude-3-7-sonnet-20250219"
	case strings.Contains(m, "opus"):
		return "claude-3-opus-20240229"
	case strings.Contains(m, "haiku"):
		return "claude-3-5-haiku-20241022"
	default:
		return p.defaultModel
	}
}

func (p *ClaudeProvider) BuildRequest(ctx context.Context, call Call) (*http.Request, error) {
	system, messages, err := transform.ToClaude(call.Messages)
	if err != nil {
		return nil, err
	}

	payload := claudeRequest{
		Model:       call.Model,
		MaxTokens:   call.Params.MaxTokens,
		Temperature: call.Params.Temperature,
		System:      system,
		Messages:    messages,
	}

	return p.newJSONRequest(ctx, p.endpoint, payload, map[string]string{
		"x-api-key":         call.APIKey,
		"anthropic-version": AnthropicVersion,
	})
}

// ParseResponse joins the text blocks of the message; content[0].text in
// the common case.
func (p *ClaudeProvider) ParseResponse(body gjson.Result) (string, error) {
	if body.Get("type").String() == "error" {
		return "", p.upstreamError(body)
	}

	var parts []string

	body.Get("content").ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			parts = append(parts, block.Get("text").String())
		}

		return true
	})

	return strings.Join(parts, ""), nil
}
