// Package publish hands freshly generated callback tokens to the external
// system that will later resume the suspended step.
//
// Publication is the only point where a token leaves the process before
// resumption. The owning engine may re-run it after a crash, so every
// Publisher must tolerate repeated publication of the same token; Idempotent
// adds a Redis guard for publishers that cannot.
package publish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahrav/go-callback/internal/domain"
)

var (
	// ErrPublishFailed indicates the external system could not accept the token.
	ErrPublishFailed = errors.New("callback publication failed")

	// ErrAlreadyPublished indicates the token was published earlier and this
	// attempt was deduplicated.
	ErrAlreadyPublished = errors.New("callback token already published")
)

// Publisher delivers a callback payload to an external system.
type Publisher interface {
	Publish(ctx context.Context, payload domain.CallbackPayload) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, payload domain.CallbackPayload) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, payload domain.CallbackPayload) error {
	return f(ctx, payload)
}

// Log is a Publisher that only records the token. It is useful when an
// operator resumes workflows by hand from the logged token.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a logging publisher (slog.Default when logger is nil).
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Publish implements Publisher.
func (l *Log) Publish(ctx context.Context, payload domain.CallbackPayload) error {
	l.logger.InfoContext(ctx, "Callback token submitted to external system",
		"callback_id", payload.CallbackID,
		"execution_id", payload.ExecutionID,
		"step", payload.StepLabel,
		"deadline", payload.Deadline,
	)
	return nil
}
