// Package resume delivers a terminal outcome for a callback token to the
// control plane that wakes the suspended workflow step.
package resume

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
)

// DefaultFailureMessage is delivered when a failure resume carries no message.
const DefaultFailureMessage = "Workflow failed via resume command"

// ControlPlane accepts resume signals. A second delivery for an already
// resolved token must be rejected, not silently accepted.
type ControlPlane interface {
	DeliverSuccess(ctx context.Context, token string, payload []byte) error
	DeliverFailure(ctx context.Context, token string, message string) error
}

// Delivery describes what was sent to the control plane.
type Delivery struct {
	Token     string             `json:"token"`
	Kind      domain.OutcomeKind `json:"kind"`
	Payload   json.RawMessage    `json:"payload,omitempty"`
	Message   string             `json:"message,omitempty"`
	Defaulted bool               `json:"defaulted"`
	SentAt    time.Time          `json:"sent_at"`
}

// Dispatcher validates and delivers resume outcomes. It keeps no per-call
// state and is safe for concurrent use.
type Dispatcher struct {
	plane  ControlPlane
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger injects the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the time source used for default payloads.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher that delivers through plane.
func NewDispatcher(plane ControlPlane, opts ...Option) *Dispatcher {
	d := &Dispatcher{plane: plane, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resume delivers outcome for token with exactly one control-plane call.
//
// The token is validated before any I/O. Success outcomes without a payload,
// or with a payload that is not valid JSON, deliver the default approval
// payload instead. Failure outcomes without a message deliver
// DefaultFailureMessage. Errors are *DispatchError.
func (d *Dispatcher) Resume(ctx context.Context, token string, outcome domain.Outcome) (*Delivery, error) {
	if err := callback.Validate(token); err != nil {
		d.logger.ErrorContext(ctx, "refusing to resume with invalid token", "token", token, "error", err)
		return nil, newDispatchError(KindInvalidToken, token, err)
	}

	delivery, err := d.normalize(ctx, token, outcome)
	if err != nil {
		return nil, err
	}

	if delivery.Kind == domain.OutcomeFailure {
		err = d.plane.DeliverFailure(ctx, token, delivery.Message)
	} else {
		err = d.plane.DeliverSuccess(ctx, token, delivery.Payload)
	}
	if err != nil {
		dErr := classify(token, err)
		d.logger.ErrorContext(ctx, "failed to resume workflow",
			"token", token,
			"kind", dErr.Kind,
			"hint", dErr.Hint,
			"error", err)
		return nil, dErr
	}

	d.logger.InfoContext(ctx, "workflow resumed",
		"token", token,
		"outcome", delivery.Kind,
		"defaulted", delivery.Defaulted)
	return delivery, nil
}

func (d *Dispatcher) normalize(ctx context.Context, token string, outcome domain.Outcome) (*Delivery, error) {
	now := d.now()
	delivery := &Delivery{Token: token, Kind: outcome.Kind, SentAt: now.UTC()}

	switch outcome.Kind {
	case domain.OutcomeFailure:
		delivery.Message = outcome.Message
		if delivery.Message == "" {
			delivery.Message = DefaultFailureMessage
			delivery.Defaulted = true
		}
		return delivery, nil

	case domain.OutcomeSuccess:
		if len(outcome.Payload) > 0 {
			if json.Valid(outcome.Payload) {
				delivery.Payload = append(json.RawMessage(nil), outcome.Payload...)
				return delivery, nil
			}
			var probe any
			parseErr := &PayloadParseError{Payload: string(outcome.Payload), Err: json.Unmarshal(outcome.Payload, &probe)}
			d.logger.WarnContext(ctx, "invalid JSON payload, using default success payload",
				"token", token,
				"error", parseErr)
		}
		raw, err := json.Marshal(domain.NewDefaultApproval(now))
		if err != nil {
			return nil, newDispatchError(KindValidation, token, err)
		}
		delivery.Payload = raw
		delivery.Defaulted = true
		return delivery, nil

	default:
		return nil, newDispatchError(KindValidation, token, domain.ErrInvalidOutcome)
	}
}
