// Package dispatch runs a chat request through the gateway: classify,
// delegate or transform, call the provider, retry once when the policy
// allows, and build the response envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/classify"
	"github.com/mihaisavezi/polychat/internal/delegate"
	"github.com/mihaisavezi/polychat/internal/history"
	"github.com/mihaisavezi/polychat/internal/providers"
	"github.com/mihaisavezi/polychat/internal/search"
	"github.com/mihaisavezi/polychat/internal/transform"
)

const (
	DefaultRequestTimeout = 2 * time.Minute

	historySaveTimeout = 5 * time.Second
)

type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]chat.SearchResult, error)
}

type Delegates interface {
	Has(kind delegate.Kind) bool
	GenerateCode(ctx context.Context, req delegate.CodeRequest) (*delegate.CodeResult, error)
	GenerateImage(ctx context.Context, req delegate.ImageRequest) (*delegate.ImageResult, error)
	GenerateVideo(ctx context.Context, req delegate.VideoRequest) (string, error)
}

type Recorder interface {
	Save(ctx context.Context, ex history.Exchange) (string, error)
}

type Options struct {
	Registry   *providers.Registry
	HTTPClient *http.Client
	Searcher   Searcher
	Delegates  Delegates
	Recorder   Recorder
	Logger     *slog.Logger

	// SearchResults overrides the result count of standard web search.
	SearchResults int

	// RequestTimeout bounds the inline stage: search, the provider call and
	// its retry. Delegates run under their own timeouts.
	RequestTimeout time.Duration
}

type Dispatcher struct {
	registry       *providers.Registry
	client         *http.Client
	searcher       Searcher
	delegates      Delegates
	recorder       Recorder
	logger         *slog.Logger
	searchResults  int
	requestTimeout time.Duration
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		registry:       opts.Registry,
		client:         opts.HTTPClient,
		searcher:       opts.Searcher,
		delegates:      opts.Delegates,
		recorder:       opts.Recorder,
		logger:         opts.Logger,
		searchResults:  opts.SearchResults,
		requestTimeout: opts.RequestTimeout,
	}

	if d.client == nil {
		d.client = &http.Client{}
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	if d.requestTimeout <= 0 {
		d.requestTimeout = DefaultRequestTimeout
	}

	return d
}

// plan is the per-request state computed before anything is sent.
type plan struct {
	req      *chat.Request
	messages []chat.Message
	cls      classify.Result
	adapter  providers.Adapter
	model    string
	policy   Policy
	prompt   string
}

// Handle processes one chat request. Every returned error is a *chat.Error
// carrying the provider and model.
func (d *Dispatcher) Handle(ctx context.Context, req *chat.Request) (*chat.Envelope, error) {
	diag := newDiagnostics(d.logger, req.Provider, req.Model)

	if err := req.Validate(); err != nil {
		return nil, diag.fail(err)
	}

	p, err := d.plan(req, diag)
	if err != nil {
		return nil, diag.fail(err)
	}

	env, err := d.run(ctx, p, diag)
	if err != nil {
		ce := diag.fail(err)
		d.record(ctx, p, nil, ce)

		return nil, ce
	}

	d.record(ctx, p, env, nil)

	return env, nil
}

func (d *Dispatcher) plan(req *chat.Request, diag *Diagnostics) (*plan, error) {
	p := &plan{
		req: req,
		cls: classify.Classify(classify.Input{
			Messages:              req.Messages,
			CodeGenerationEnabled: bool(req.CodeGenerationEnabled),
			Model:                 req.Model,
			ExplicitRetry:         req.IsRetry,
		}),
		messages: chat.WithoutErrors(req.Messages),
		model:    req.Model,
	}

	if last, ok := chat.LastUserMessage(p.messages); ok {
		p.prompt = last.Content
	}

	if adapter, ok := d.registry.Get(req.Provider); ok {
		p.adapter = adapter
		p.model = adapter.ResolveModel(req.Model, req.CustomModelName)
		diag.Model = p.model
	}

	p.policy = PolicyFor(req.Provider, p.model, p.cls)

	if p.policy.InlineAllowed && p.adapter == nil {
		return nil, chat.NewError(chat.KindValidation, "Unsupported provider: %s", req.Provider)
	}

	diag.enter(StageClassified,
		"code", p.cls.IsCodeRequest,
		"code_pattern", p.cls.CodePattern,
		"image", p.cls.IsImageRequest,
		"retry", p.cls.IsRetry,
		"has_images", p.cls.HasImages,
		"delegate", p.policy.Delegate,
	)

	return p, nil
}

func (d *Dispatcher) run(ctx context.Context, p *plan, diag *Diagnostics) (*chat.Envelope, error) {
	if p.policy.Delegate != "" {
		env, err := d.tryDelegate(ctx, p, diag)
		if err == nil {
			return env, nil
		}

		if !p.policy.InlineAllowed {
			return nil, delegateError(p, err)
		}

		if !errors.Is(err, delegate.ErrDisabled) {
			d.logger.Warn("Delegate failed, falling back to inline dispatch",
				"delegate", p.policy.Delegate,
				"provider", p.req.Provider,
				"error", err,
			)
		}
	}

	return d.inline(ctx, p, diag)
}

func (d *Dispatcher) tryDelegate(ctx context.Context, p *plan, diag *Diagnostics) (*chat.Envelope, error) {
	if d.delegates == nil || !d.delegates.Has(p.policy.Delegate) {
		return nil, delegate.ErrDisabled
	}

	diag.Delegate = string(p.policy.Delegate)
	diag.enter(StageDispatched, "delegate", p.policy.Delegate)

	switch p.policy.Delegate {
	case delegate.KindCode:
		res, err := d.delegates.GenerateCode(ctx, delegate.CodeRequest{
			Messages:        p.messages,
			Provider:        p.req.Provider,
			APIKey:          p.req.APIKey,
			Model:           p.model,
			CustomModelName: p.req.CustomModelName,
			Temperature:     p.req.Temperature,
		})
		if err != nil {
			return nil, err
		}

		diag.enter(StageSuccess)

		return &chat.Envelope{
			Response:       res.Content,
			Content:        res.Content,
			Model:          res.Model,
			Provider:       p.req.Provider,
			CodeGeneration: true,
			EdgeFunction:   true,
		}, nil

	case delegate.KindImage:
		res, err := d.delegates.GenerateImage(ctx, imageRequest(p))
		if err != nil {
			return nil, err
		}

		diag.enter(StageSuccess)

		text := fmt.Sprintf("![Generated image](%s)", res.ImageURL)

		return &chat.Envelope{
			Response:        text,
			Content:         text,
			Model:           res.Model,
			Provider:        res.Provider,
			ImageGeneration: true,
			ImageURL:        res.ImageURL,
		}, nil

	case delegate.KindVideo:
		msg, err := d.delegates.GenerateVideo(ctx, delegate.VideoRequest{
			Prompt: p.prompt,
			APIKey: p.req.APIKey,
		})
		if err != nil {
			return nil, err
		}

		diag.enter(StageSuccess)

		return &chat.Envelope{
			Response:        msg,
			Model:           delegate.VideoModel,
			Provider:        p.req.Provider,
			VideoGeneration: true,
		}, nil
	}

	return nil, delegate.ErrDisabled
}

// imageRequest forwards the dedicated keys, falling back to the request key
// for the vendor that is itself the selected provider.
func imageRequest(p *plan) delegate.ImageRequest {
	r := delegate.ImageRequest{
		Prompt:       p.prompt,
		Model:        p.req.Model,
		Provider:     p.req.Provider,
		GeminiAPIKey: p.req.GeminiAPIKey,
		OpenAIAPIKey: p.req.OpenAIAPIKey,
		RunwayAPIKey: p.req.RunwayAPIKey,
	}

	switch p.req.Provider {
	case chat.ProviderGemini:
		if r.GeminiAPIKey == "" {
			r.GeminiAPIKey = p.req.APIKey
		}
	case chat.ProviderOpenAI:
		if r.OpenAIAPIKey == "" {
			r.OpenAIAPIKey = p.req.APIKey
		}
	case chat.ProviderRunway:
		if r.RunwayAPIKey == "" {
			r.RunwayAPIKey = p.req.APIKey
		}
	}

	return r
}

func delegateError(p *plan, err error) error {
	if errors.Is(err, delegate.ErrDisabled) {
		return chat.NewError(chat.KindProviderUnavailable, "The %s generation service is not configured on this gateway.", p.policy.Delegate)
	}

	if chat.IsTimeout(err) {
		return &chat.Error{Kind: chat.KindTimeout, Message: err.Error(), Err: err}
	}

	return &chat.Error{
		Kind:    chat.KindProviderUnavailable,
		Message: fmt.Sprintf("The %s generation service failed: %v", p.policy.Delegate, err),
		Err:     err,
	}
}

// inline transforms the messages and calls the provider directly, all under
// the request deadline.
func (d *Dispatcher) inline(parent context.Context, p *plan, diag *Diagnostics) (*chat.Envelope, error) {
	ctx, cancel := context.WithTimeout(parent, d.requestTimeout)
	defer cancel()

	msgs, results := d.transform(ctx, p)

	diag.enter(StageTransformed, "messages", len(msgs), "search_results", len(results))

	params := providers.OptimizedParams(p.adapter.Budget(), p.cls.IsCodeRequest, p.req.Temperature)
	call := providers.Call{
		APIKey:   p.req.APIKey,
		Model:    p.model,
		Messages: msgs,
		Params:   params,
		IsCode:   p.cls.IsCodeRequest,
	}

	diag.Attempts++
	diag.enter(StageDispatched, "timeout", params.Timeout, "max_tokens", params.MaxTokens, "temperature", params.Temperature)

	text, err := providers.Complete(ctx, d.client, p.adapter, call)
	retried := false

	if err != nil && p.policy.Retry != nil && p.policy.Retry.Trigger(err) && ctx.Err() == nil {
		retry := p.policy.Retry

		retryCall := call
		retryCall.Messages = chat.Tail(msgs, retry.KeepMessages)
		retryCall.Params = retry.Params(params)

		diag.Attempts++
		diag.enter(StageRetriedOnce,
			"first_error", err,
			"messages", len(retryCall.Messages),
			"timeout", retryCall.Params.Timeout,
		)

		retryText, retryErr := providers.Complete(ctx, d.client, p.adapter, retryCall)
		if retryErr != nil {
			d.logger.Warn("Inline retry failed", "provider", p.req.Provider, "model", p.model, "error", retryErr)
		} else {
			text, err, retried = retryText, nil, true
		}
	}

	if err != nil {
		if ctx.Err() != nil && parent.Err() == nil {
			return nil, chat.NewError(chat.KindTimeout,
				"The request timed out after %ds. Please try again or send a shorter message.",
				int(d.requestTimeout.Seconds()))
		}

		return nil, err
	}

	diag.enter(StageSuccess, "attempts", diag.Attempts)

	return &chat.Envelope{
		Response:      text,
		Model:         p.model,
		Provider:      p.req.Provider,
		SearchResults: results,
		Retried:       retried,
	}, nil
}

// transform applies at most one content injection. Code generation wins
// over web search.
func (d *Dispatcher) transform(ctx context.Context, p *plan) ([]chat.Message, []chat.SearchResult) {
	if p.cls.IsCodeRequest {
		return transform.InjectCodeGeneration(p.messages), nil
	}

	if !bool(p.req.WebSearchEnabled) || !transform.SearchSupported(p.req.Provider) || d.searcher == nil {
		return p.messages, nil
	}

	q := search.NewQuery(p.prompt, p.req.UserLocation, bool(p.req.EnhancedWebSearch))
	if d.searchResults > 0 && !q.ExtractContent {
		q.MaxResults = d.searchResults
	}

	sctx, cancel := context.WithTimeout(ctx, q.Timeout())
	defer cancel()

	results, err := d.searcher.Search(sctx, q)
	if err != nil {
		d.logger.Warn("Web search failed, continuing without results", "provider", p.req.Provider, "error", err)
		return p.messages, nil
	}

	if len(results) == 0 {
		return p.messages, nil
	}

	return transform.InjectSearchContext(p.messages, results), results
}

func (d *Dispatcher) record(ctx context.Context, p *plan, env *chat.Envelope, failure *chat.Error) {
	if d.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()

	tokens, err := chat.CountTokens(p.messages)
	if err != nil {
		d.logger.Debug("Token count unavailable", "error", err)
	}

	ex := history.Exchange{
		Provider:    p.req.Provider,
		Model:       p.model,
		Prompt:      p.prompt,
		InputTokens: tokens,
	}

	if env != nil {
		ex.Response = env.Response
		ex.Retried = env.Retried
	} else if failure != nil {
		ex.Response = failure.Message
		ex.IsError = true
	}

	if _, err := d.recorder.Save(ctx, ex); err != nil {
		d.logger.Warn("Failed to save exchange", "error", err)
	}
}
