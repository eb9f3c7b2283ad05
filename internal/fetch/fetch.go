// Package fetch wraps outbound HTTP calls with a hard per-call deadline and
// turns vendor response bodies into parsed JSON.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TimeoutError is returned when a call exceeds its own deadline. Message is
// meant for the end user.
type TimeoutError struct {
	Message string
	After   time.Duration
	URL     string
}

func (e *TimeoutError) Error() string {
	return e.Message
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// Caller describes who is making the call so the timeout message can be
// phrased for the user.
type Caller struct {
	Provider string
	Edge     bool
	Code     bool
}

// TimeoutMessage builds the user-facing message for a call that ran out of time.
func TimeoutMessage(c Caller, after time.Duration) string {
	secs := int(after.Round(time.Second) / time.Second)

	name := c.Provider
	if name == "" {
		name = "The AI provider"
	}

	switch {
	case c.Edge && c.Code:
		return fmt.Sprintf("Code generation timed out after %ds. The request is too large for a single pass; try breaking it into smaller parts.", secs)
	case c.Edge:
		return fmt.Sprintf("The generation service timed out after %ds. Please try again with a shorter prompt.", secs)
	case c.Code:
		return fmt.Sprintf("%s request timed out after %ds while generating code. Try breaking your request into smaller parts.", name, secs)
	default:
		return fmt.Sprintf("%s request timed out after %ds. Please try again or send a shorter message.", name, secs)
	}
}

// Do issues req with a deadline of timeout. The deadline also covers reading
// the body; the returned body releases the deadline when closed. Network
// failures other than the deadline are returned unchanged. Do never retries.
func Do(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration, message string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)

	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}

	resp, err := client.Do(req.WithContext(callCtx))
	if err != nil {
		expired := deadlineHit(ctx, callCtx)
		cancel()

		if expired {
			return nil, &TimeoutError{Message: message, After: timeout, URL: redact(req)}
		}

		return nil, err
	}

	resp.Body = &deadlineBody{
		ReadCloser: resp.Body,
		parent:     ctx,
		ctx:        callCtx,
		cancel:     cancel,
		timeoutErr: &TimeoutError{Message: message, After: timeout, URL: redact(req)},
	}

	return resp, nil
}

// deadlineHit reports whether the call's own deadline fired while the
// caller's context is still alive.
func deadlineHit(parent, call context.Context) bool {
	return errors.Is(call.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

type deadlineBody struct {
	io.ReadCloser
	parent     context.Context
	ctx        context.Context
	cancel     context.CancelFunc
	timeoutErr *TimeoutError
}

func (b *deadlineBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF && deadlineHit(b.parent, b.ctx) {
		return n, b.timeoutErr
	}

	return n, err
}

func (b *deadlineBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// redact drops the query string, which carries the Gemini API key.
func redact(req *http.Request) string {
	if req.URL == nil {
		return ""
	}

	u := *req.URL
	u.RawQuery = ""

	return u.String()
}
