package dispatch

import (
	"strings"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/classify"
	"github.com/mihaisavezi/polychat/internal/delegate"
	"github.com/mihaisavezi/polychat/internal/providers"
)

// RetryPlan is a single inline retry with a smaller payload. It is attempted
// at most once and only when Trigger accepts the first error.
type RetryPlan struct {
	KeepMessages int
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	Trigger      func(err error) bool
}

// Params lowers the original params to the plan's ceilings.
func (p *RetryPlan) Params(orig providers.Params) providers.Params {
	out := providers.Params{
		Timeout:     p.Timeout,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}

	if orig.MaxTokens > 0 && orig.MaxTokens < out.MaxTokens {
		out.MaxTokens = orig.MaxTokens
	}

	if orig.Temperature < out.Temperature {
		out.Temperature = orig.Temperature
	}

	return out
}

// Policy is every fallback decision for one request, made once before
// anything is sent.
type Policy struct {
	// Delegate is tried first when set.
	Delegate delegate.Kind

	// InlineAllowed is false for providers that only exist as delegates.
	InlineAllowed bool

	Retry *RetryPlan
}

var (
	geminiRetry = RetryPlan{
		KeepMessages: 2,
		MaxTokens:    2048,
		Temperature:  0.3,
		Timeout:      25 * time.Second,
		Trigger:      isGatewayTimeout,
	}

	deepSeekRetry = RetryPlan{
		KeepMessages: 3,
		MaxTokens:    2000,
		Temperature:  0.5,
		Timeout:      30 * time.Second,
		Trigger:      func(error) bool { return true },
	}
)

// PolicyFor decides delegation and inline retry from the provider, the
// resolved model id and the classification. Code requests take precedence
// over image requests.
func PolicyFor(provider, model string, cls classify.Result) Policy {
	switch provider {
	case chat.ProviderVEO2:
		return Policy{Delegate: delegate.KindVideo}
	case chat.ProviderRunway:
		return Policy{Delegate: delegate.KindImage}
	}

	p := Policy{InlineAllowed: true}

	switch {
	case cls.IsCodeRequest:
		p.Delegate = delegate.KindCode
	case cls.IsImageRequest:
		p.Delegate = delegate.KindImage
	}

	switch {
	case provider == chat.ProviderGemini && (providers.IsGemini25Pro(model) || cls.IsCodeRequest):
		plan := geminiRetry
		p.Retry = &plan
	case provider == chat.ProviderDeepSeek && model == providers.DeepSeekChatModel:
		plan := deepSeekRetry
		p.Retry = &plan
	}

	return p
}

func isGatewayTimeout(err error) bool {
	return chat.IsTimeout(err) || strings.Contains(err.Error(), "504")
}
