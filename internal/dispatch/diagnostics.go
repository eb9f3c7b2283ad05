package dispatch

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mihaisavezi/polychat/internal/chat"
)

type Stage string

const (
	StageReceived    Stage = "received"
	StageClassified  Stage = "classified"
	StageTransformed Stage = "transformed"
	StageDispatched  Stage = "dispatched"
	StageSuccess     Stage = "success"
	StageRetriedOnce Stage = "retried_once"
	StageFailed      Stage = "failed"
)

// Diagnostics is the context of one request as it moves through the
// pipeline. It is passed into the error path so a failure always reports
// the provider and model that were in play.
type Diagnostics struct {
	Provider string
	Model    string
	Stage    Stage
	Delegate string
	Attempts int

	logger *slog.Logger
}

func newDiagnostics(logger *slog.Logger, provider, model string) *Diagnostics {
	d := &Diagnostics{
		Provider: provider,
		Model:    model,
		logger:   logger,
	}
	d.enter(StageReceived)

	return d
}

func (d *Diagnostics) enter(stage Stage, args ...any) {
	d.Stage = stage
	d.logger.Debug("Request stage", append([]any{"stage", stage, "provider", d.Provider, "model", d.Model}, args...)...)
}

// fail moves to StageFailed and returns err as a *chat.Error carrying the
// diagnostic context. Untyped errors keep their message and get the kind
// their message maps to.
func (d *Diagnostics) fail(err error) *chat.Error {
	d.enter(StageFailed, "attempts", d.Attempts, "error", err)

	var ce *chat.Error
	if errors.As(err, &ce) {
		return ce.WithContext(d.Provider, d.Model)
	}

	return &chat.Error{
		Kind:     kindForStatus(chat.StatusFor(err)),
		Message:  err.Error(),
		Provider: d.Provider,
		Model:    d.Model,
		Err:      err,
	}
}

func kindForStatus(status int) chat.Kind {
	switch status {
	case http.StatusBadRequest:
		return chat.KindValidation
	case http.StatusUnauthorized:
		return chat.KindAuth
	case http.StatusGatewayTimeout:
		return chat.KindTimeout
	default:
		return chat.KindInternal
	}
}
