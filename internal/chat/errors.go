package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies gateway errors by the HTTP status they surface as.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindTimeout
	KindProviderUnavailable
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindParse:
		return "parse"
	default:
		return "internal"
	}
}

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a user-facing gateway error. Message is shown to the user as is;
// Provider and Model are the diagnostic context captured when it was raised.
type Error struct {
	Kind       Kind
	Message    string
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the error is a request timeout.
func (e *Error) Timeout() bool {
	return e.Kind == KindTimeout
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// WithContext returns a copy of e carrying provider and model, keeping any
// values already set.
func (e *Error) WithContext(provider, model string) *Error {
	c := *e
	if c.Provider == "" {
		c.Provider = provider
	}

	if c.Model == "" {
		c.Model = model
	}

	return &c
}

type timeouter interface {
	Timeout() bool
}

// IsTimeout reports whether err, or anything it wraps, is a timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var t timeouter
	if errors.As(err, &t) {
		return t.Timeout()
	}

	return false
}

// StatusFor maps an error to the HTTP status of the chat endpoint. Typed
// errors decide directly; anything else falls back to matching the message.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind.Status()
	}

	if IsTimeout(err) {
		return http.StatusGatewayTimeout
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return http.StatusGatewayTimeout
	case strings.Contains(msg, "api key"):
		return http.StatusUnauthorized
	case strings.Contains(msg, "required"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
