package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/transform"
)

const Gemini25ProModel = "gemini-2.5-pro-preview-05-06"

// Display names from the UI and the model ids they are sent as. Checked in
// order, so more specific names come first.
var geminiModels = []struct {
	match string
	id    string
}{
	{"2.5-pro", Gemini25ProModel},
	{"2.5-flash", "gemini-2.5-flash-preview-05-20"},
	{"2.0-flash-lite", "gemini-2.0-flash-lite"},
	{"2.0-flash", "gemini-2.0-flash"},
	{"1.5-pro", "gemini-1.5-pro"},
	{"1.5-flash", "gemini-1.5-flash"},
}

type GeminiProvider struct {
	base
}

type geminiRequest struct {
	Contents          []transform.GeminiContent `json:"contents"`
	SystemInstruction *transform.GeminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig    `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

func NewGeminiProvider(opts Options) *GeminiProvider {
	p := &GeminiProvider{
		base: base{
			name:         chat.ProviderGemini,
			display:      "Gemini",
			defaultModel: "gemini-2.0-flash",
			budget:       Budget{Timeout: 50 * time.Second, MaxTokens: 4096, TokenCap: 8192},
		},
	}
	p.configure(opts, "https://generativelanguage.googleapis.com/v1beta/models")

	return p
}

func (p *GeminiProvider) SupportsVision() bool {
	return true
}

func (p *GeminiProvider) ResolveModel(model, custom string) string {
	if custom = strings.TrimSpace(custom); custom != "" {
		return custom
	}

	m := strings.ToLower(model)
	m = strings.ReplaceAll(m, " ", "-")

	for _, gm := range geminiModels {
		if strings.Contains(m, gm.match) {
			return gm.id
		}
	}

	return p.defaultModel
}

// IsGemini25Pro reports the slow model that gets an inline retry on 504.
func IsGemini25Pro(model string) bool {
	return strings.Contains(strings.ToLower(model), "2.5-pro")
}

// BuildRequest sends the key as a query parameter, which is how the
// Generative Language API authenticates.
func (p *GeminiProvider) BuildRequest(ctx context.Context, call Call) (*http.Request, error) {
	system, contents := transform.ToGemini(call.Messages)

	payload := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     call.Params.Temperature,
			MaxOutputTokens: call.Params.MaxTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(p.endpoint, "/"),
		url.PathEscape(call.Model),
		url.QueryEscape(call.APIKey),
	)

	return p.newJSONRequest(ctx, endpoint, payload, nil)
}

func (p *GeminiProvider) ParseResponse(body gjson.Result) (string, error) {
	if body.Get("error").Exists() {
		return "", p.upstreamError(body)
	}

	if !body.Get("candidates.0").Exists() {
		if reason := body.Get("promptFeedback.blockReason").String(); reason != "" {
			return fmt.Sprintf("Gemini declined to answer this request (blocked: %s). Try rephrasing your message.", reason), nil
		}

		return "", nil
	}

	var parts []string

	body.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		if text := part.Get("text"); text.Exists() {
			parts = append(parts, text.String())
		}

		return true
	})

	return strings.Join(parts, ""), nil
}
