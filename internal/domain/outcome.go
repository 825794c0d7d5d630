package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutcomeKind tags the terminal result delivered for a callback token.
type OutcomeKind string

const (
	// OutcomeSuccess resumes the suspended step with a structured payload.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeFailure fails the suspended step with a message.
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the tagged value delivered against a callback token.
// Success outcomes carry Payload; failure outcomes carry Message.
type Outcome struct {
	Kind    OutcomeKind     `json:"kind" validate:"required,oneof=success failure"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Success builds a success outcome. A nil or empty payload means "absent".
func Success(payload []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

// Failure builds a failure outcome. An empty message means "absent".
func Failure(message string) Outcome {
	return Outcome{Kind: OutcomeFailure, Message: message}
}

// IsSuccess reports whether the outcome is a success.
func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// Validate checks that the outcome is well formed for delivery to a
// suspended step. Success payloads must be valid JSON and failures must
// carry a message.
func (o Outcome) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOutcome, err)
	}

	switch o.Kind {
	case OutcomeSuccess:
		if len(o.Payload) == 0 || !json.Valid(o.Payload) {
			return fmt.Errorf("%w: success payload must be valid JSON", ErrInvalidOutcome)
		}
	case OutcomeFailure:
		if o.Message == "" {
			return fmt.Errorf("%w: failure message is required", ErrInvalidOutcome)
		}
	}
	return nil
}

// DefaultApproval is the payload substituted when a success resume carries no
// usable payload.
type DefaultApproval struct {
	Approved    bool      `json:"approved"`
	CompletedAt time.Time `json:"completedAt"`
}

// NewDefaultApproval returns the default success payload stamped at now.
func NewDefaultApproval(now time.Time) DefaultApproval {
	return DefaultApproval{Approved: true, CompletedAt: now.UTC()}
}

// ResumeRequest is the argument of the resume update delivered to a
// suspended workflow.
type ResumeRequest struct {
	Token   string  `json:"token" validate:"required"`
	Outcome Outcome `json:"outcome"`
}

// Validate checks the request shape.
func (r ResumeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResumeRequest, err)
	}
	if err := r.Outcome.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResumeRequest, err)
	}
	return nil
}
