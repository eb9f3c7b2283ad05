package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/fetch"
)

// Complete runs one call through the adapter: build, send with the call's
// timeout, check status, parse the envelope. Failures come back as
// *chat.Error with a message the user can act on. Empty content is replaced
// by the adapter's fallback text.
func Complete(ctx context.Context, client *http.Client, a Adapter, call Call) (string, error) {
	req, err := a.BuildRequest(ctx, call)
	if err != nil {
		return "", err
	}

	msg := fetch.TimeoutMessage(fetch.Caller{Provider: a.DisplayName(), Code: call.IsCode}, call.Params.Timeout)

	resp, err := fetch.Do(ctx, client, req, call.Params.Timeout, msg)
	if err != nil {
		return "", transportError(ctx, a, call, err)
	}

	body, err := fetch.ReadBody(resp)
	if err != nil {
		return "", transportError(ctx, a, call, err)
	}

	if err := CheckStatus(a, call.Model, resp.StatusCode, body); err != nil {
		return "", err
	}

	parsed, err := fetch.SafeJSONParse(body, a.DisplayName())
	if err != nil {
		return "", withContext(err, a.Name(), call.Model)
	}

	text, err := a.ParseResponse(parsed)
	if err != nil {
		return "", withContext(err, a.Name(), call.Model)
	}

	if strings.TrimSpace(text) == "" {
		return a.FallbackText(), nil
	}

	return text, nil
}

func transportError(ctx context.Context, a Adapter, call Call, err error) error {
	var te *fetch.TimeoutError
	if errors.As(err, &te) {
		return &chat.Error{
			Kind:     chat.KindTimeout,
			Message:  te.Message,
			Provider: a.Name(),
			Model:    call.Model,
			Err:      err,
		}
	}

	// the caller's own deadline or cancellation; it reports that itself
	if ctx.Err() != nil {
		return err
	}

	return &chat.Error{
		Kind:     chat.KindProviderUnavailable,
		Message:  fmt.Sprintf("Could not reach %s. Please check your connection and try again.", a.DisplayName()),
		Provider: a.Name(),
		Model:    call.Model,
		Err:      err,
	}
}

// CheckStatus maps a non-2xx vendor status to a user-facing error.
func CheckStatus(a Adapter, model string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	e := &chat.Error{
		Kind:       chat.KindProviderUnavailable,
		Provider:   a.Name(),
		Model:      model,
		StatusCode: status,
	}

	name := a.DisplayName()

	switch status {
	case http.StatusGatewayTimeout:
		e.Kind = chat.KindTimeout
		e.Message = fmt.Sprintf("%s request timed out (504). Try a smaller request or break it into parts.", name)
	case http.StatusUnauthorized:
		e.Kind = chat.KindAuth
		e.Message = fmt.Sprintf("Invalid %s API key. Please check the key in your settings.", name)
	case http.StatusPaymentRequired:
		e.Message = fmt.Sprintf("Your %s account has run out of credits. Please add credits and try again.", name)
	case http.StatusNotFound:
		e.Message = fmt.Sprintf("The model %s is not available on %s. Please choose a different model.", model, name)
	case http.StatusTooManyRequests:
		e.Message = fmt.Sprintf("%s rate limit exceeded. Please wait a moment and try again.", name)
	case http.StatusServiceUnavailable:
		e.Message = fmt.Sprintf("%s is temporarily unavailable. Please try again in a few minutes.", name)
	default:
		e.Message = fmt.Sprintf("%s is currently unavailable (status %d)", name, status)
		if detail := errorDetail(body); detail != "" {
			e.Message += ": " + detail
		}
	}

	return e
}

func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}

	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}

	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String {
		return msg.String()
	}

	return ""
}

func withContext(err error, provider, model string) error {
	var ce *chat.Error
	if errors.As(err, &ce) {
		return ce.WithContext(provider, model)
	}

	return err
}
