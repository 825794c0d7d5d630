// Package events provides the event infrastructure used to report callback
// lifecycle facts (token published, suspension resolved) to downstream
// consumers. It defines the Envelope type and the EventSink interface.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by this module.
const (
	// TypeTokenPublished is emitted after a callback token reaches the external system.
	TypeTokenPublished = "callback.token_published"

	// TypeTokenPublishSkipped is emitted when a repeated publication is deduplicated.
	TypeTokenPublishSkipped = "callback.token_publish_skipped"
)

// Envelope wraps an event payload with routing and idempotency metadata.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing, e.g. "callback.token_published".
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	Source string `json:"source"`

	// Version enables schema evolution.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey lets sinks drop duplicates produced by activity retries
	// or engine re-execution. For callback events this is the token.
	IdempotencyKey string `json:"idempotency_key"`

	// WorkflowID identifies the Temporal workflow that triggered this event.
	WorkflowID string `json:"workflow_id"`

	// RunID identifies the specific workflow execution run.
	RunID string `json:"run_id"`

	// Payload contains the event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope with a fresh ID and the current time.
// Payload marshaling errors are returned to the caller.
func NewEnvelope(eventType, source, idempotencyKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:             uuid.NewString(),
		Type:           eventType,
		Source:         source,
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
		Payload:        raw,
	}, nil
}

// EventSink defines the interface for emitting events to downstream consumers.
//
// Append should be idempotent on IdempotencyKey and return quickly. Callers do
// not fail their primary operation when Append fails.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.Append with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// LogEventSink writes every event as a structured log line.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink returns a sink that logs to logger (slog.Default when nil).
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

// Append implements EventSink.
func (s *LogEventSink) Append(ctx context.Context, envelope Envelope) error {
	s.logger.InfoContext(ctx, "event",
		"event_id", envelope.ID,
		"event_type", envelope.Type,
		"source", envelope.Source,
		"idempotency_key", envelope.IdempotencyKey,
		"workflow_id", envelope.WorkflowID,
		"run_id", envelope.RunID,
		"payload", string(envelope.Payload),
	)
	return nil
}
