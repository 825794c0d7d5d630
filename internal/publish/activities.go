package publish

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/pkg/activity"
	"github.com/ahrav/go-callback/pkg/events"
)

// ActivityName is the registered name of the publication activity.
const ActivityName = "PublishCallbackToken"

// Error types reported by the publication activity.
const (
	ErrTypeInvalidToken  = "InvalidCallbackToken"
	ErrTypePublishFailed = "CallbackPublishFailed"
)

// Request is the publication activity input.
type Request struct {
	Token       string    `json:"token"`
	ExecutionID string    `json:"execution_id"`
	StepLabel   string    `json:"step_label"`
	Deadline    time.Time `json:"deadline"`
	Data        any       `json:"data,omitempty"`
}

// Activities exposes publication as a Temporal activity.
type Activities struct {
	activity.BaseActivities
	publisher Publisher
	now       func() time.Time
}

// NewActivities creates publication activities backed by publisher.
func NewActivities(base activity.BaseActivities, publisher Publisher) *Activities {
	return &Activities{BaseActivities: base, publisher: publisher, now: time.Now}
}

// PublishCallbackToken publishes req.Token to the external system. Errors are
// non-retryable: the suspender treats a failed publication as fatal.
func (a *Activities) PublishCallbackToken(ctx context.Context, req Request) error {
	if err := callback.Validate(req.Token); err != nil {
		return temporal.NewNonRetryableApplicationError("refusing to publish invalid token", ErrTypeInvalidToken, err)
	}

	wfCtx := a.GetWorkflowContext(ctx)

	payload := domain.NewCallbackPayload(req.Token, a.now(), req.Data)
	payload.ExecutionID = req.ExecutionID
	payload.StepLabel = req.StepLabel
	payload.Deadline = req.Deadline.UTC()
	if err := payload.Validate(); err != nil {
		return temporal.NewNonRetryableApplicationError("invalid callback payload", ErrTypeInvalidToken, err)
	}

	err := a.publisher.Publish(ctx, payload)
	switch {
	case errors.Is(err, ErrAlreadyPublished):
		activity.SafeLog(ctx, "Callback token already published, skipping",
			"callback_id", req.Token, "attempt", wfCtx.Attempt)
		a.emit(ctx, wfCtx, events.TypeTokenPublishSkipped, payload)
		return nil
	case err != nil:
		activity.SafeLogError(ctx, "Callback token publication failed",
			"callback_id", req.Token, "error", err)
		return temporal.NewNonRetryableApplicationError("callback publication failed", ErrTypePublishFailed, err)
	}

	activity.SafeLog(ctx, "Callback token published",
		"callback_id", req.Token, "step", req.StepLabel)
	a.emit(ctx, wfCtx, events.TypeTokenPublished, payload)
	return nil
}

func (a *Activities) emit(ctx context.Context, wfCtx activity.WorkflowContext, eventType string, payload domain.CallbackPayload) {
	env, err := events.NewEnvelope(eventType, "publish-activity", payload.CallbackID+":"+eventType, payload)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to build event envelope", "event_type", eventType, "error", err)
		return
	}
	env.WorkflowID = wfCtx.WorkflowID
	env.RunID = wfCtx.RunID
	a.EmitEventSafe(ctx, env, eventType)
}
