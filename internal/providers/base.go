package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mihaisavezi/polychat/internal/chat"
)

const (
	DefaultTemperature = 0.7
	CodeTemperature    = 0.1

	// MaxCodeTimeout caps the raised timeout of code requests so a single
	// call stays inside the inline request budget.
	MaxCodeTimeout = 55 * time.Second

	ContentTypeJSON = "application/json"
)

// Adapter is implemented once per chat provider. It owns the vendor's
// endpoint, auth scheme, model naming and response envelope.
type Adapter interface {
	Name() string
	DisplayName() string
	DefaultModel() string
	ResolveModel(model, custom string) string
	Budget() Budget
	SupportsVision() bool
	BuildRequest(ctx context.Context, call Call) (*http.Request, error)
	ParseResponse(body gjson.Result) (string, error)
	FallbackText() string
}

// Budget is the provider's base timeout and token allowance.
type Budget struct {
	Timeout   time.Duration
	MaxTokens int
	TokenCap  int
}

// Params are the values actually sent for one call.
type Params struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Call is one outbound completion.
type Call struct {
	APIKey   string
	Model    string
	Messages []chat.Message
	Params   Params
	IsCode   bool
}

// Options customise a provider from configuration.
type Options struct {
	BaseURL string
	Extra   map[string]any
	Referer string
}

// OptimizedParams derives call parameters from a budget. Code requests get
// more time and tokens (both capped) and a low temperature for determinism;
// other requests use the caller's temperature or DefaultTemperature.
func OptimizedParams(b Budget, isCode bool, temperature *float64) Params {
	if isCode {
		timeout := b.Timeout * 3 / 2
		if timeout > MaxCodeTimeout {
			timeout = MaxCodeTimeout
		}

		tokens := b.MaxTokens * 2
		if b.TokenCap > 0 && tokens > b.TokenCap {
			tokens = b.TokenCap
		}

		return Params{Timeout: timeout, MaxTokens: tokens, Temperature: CodeTemperature}
	}

	temp := DefaultTemperature
	if temperature != nil {
		temp = *temperature
	}

	return Params{Timeout: b.Timeout, MaxTokens: b.MaxTokens, Temperature: temp}
}

// base carries what every adapter shares.
type base struct {
	name         string
	display      string
	endpoint     string
	defaultModel string
	budget       Budget
	extra        map[string]any
}

func (b *base) Name() string {
	return b.name
}

func (b *base) DisplayName() string {
	return b.display
}

func (b *base) DefaultModel() string {
	return b.defaultModel
}

func (b *base) Budget() Budget {
	return b.budget
}

func (b *base) FallbackText() string {
	return fmt.Sprintf("%s returned an empty response. Please try again or rephrase your message.", b.display)
}

func (b *base) configure(opts Options, defaultEndpoint string) {
	b.endpoint = defaultEndpoint
	if opts.BaseURL != "" {
		b.endpoint = opts.BaseURL
	}

	b.extra = opts.Extra
}

// applyExtra sets configured body overrides, given as sjson paths.
func (b *base) applyExtra(body []byte) ([]byte, error) {
	if len(b.extra) == 0 {
		return body, nil
	}

	keys := make([]string, 0, len(b.extra))
	for k := range b.extra {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var err error
	for _, k := range keys {
		body, err = sjson.SetBytes(body, k, b.extra[k])
		if err != nil {
			return nil, fmt.Errorf("apply %s body override %q: %w", b.name, k, err)
		}
	}

	return body, nil
}

func (b *base) newJSONRequest(ctx context.Context, url string, payload any, headers map[string]string) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", b.name, err)
	}

	body, err = b.applyExtra(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", b.name, err)
	}

	req.Header.Set("Content-Type", ContentTypeJSON)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// upstreamError turns an error object inside a 200 body into a provider error.
func (b *base) upstreamError(body gjson.Result) error {
	msg := body.Get("error.message").String()
	if msg == "" {
		msg = body.Get("error").String()
	}

	return &chat.Error{
		Kind:     chat.KindProviderUnavailable,
		Message:  fmt.Sprintf("%s returned an error: %s", b.display, msg),
		Provider: b.name,
	}
}
