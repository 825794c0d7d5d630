package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/internal/suspend"
)

// DefaultUpdateTimeout bounds a single resume update round trip.
const DefaultUpdateTimeout = 30 * time.Second

// Temporal resumes suspended steps by sending the callback.resume update to
// the workflow execution encoded in the token.
type Temporal struct {
	client  client.Client
	codec   *callback.Codec
	logger  *slog.Logger
	timeout time.Duration
}

// TemporalOption configures a Temporal control plane.
type TemporalOption func(*Temporal)

// WithTemporalCodec overrides the codec used to extract the workflow id.
func WithTemporalCodec(c *callback.Codec) TemporalOption {
	return func(t *Temporal) { t.codec = c }
}

// WithTemporalLogger injects the logger.
func WithTemporalLogger(l *slog.Logger) TemporalOption {
	return func(t *Temporal) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithUpdateTimeout bounds each update call. Zero disables the bound.
func WithUpdateTimeout(d time.Duration) TemporalOption {
	return func(t *Temporal) { t.timeout = d }
}

// NewTemporal creates a control plane backed by c.
func NewTemporal(c client.Client, opts ...TemporalOption) *Temporal {
	t := &Temporal{
		client:  c,
		codec:   callback.NewCodec(),
		logger:  slog.Default(),
		timeout: DefaultUpdateTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DeliverSuccess implements resume.ControlPlane.
func (t *Temporal) DeliverSuccess(ctx context.Context, token string, payload []byte) error {
	return t.deliver(ctx, domain.ResumeRequest{Token: token, Outcome: domain.Success(payload)})
}

// DeliverFailure implements resume.ControlPlane.
func (t *Temporal) DeliverFailure(ctx context.Context, token, message string) error {
	return t.deliver(ctx, domain.ResumeRequest{Token: token, Outcome: domain.Failure(message)})
}

func (t *Temporal) deliver(ctx context.Context, req domain.ResumeRequest) error {
	tok, err := t.codec.Parse(req.Token)
	if err != nil {
		return err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.logger.DebugContext(ctx, "sending resume update",
		"workflow_id", tok.ExecutionID,
		"token", req.Token,
		"outcome", req.Outcome.Kind)

	handle, err := t.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   tok.ExecutionID,
		UpdateName:   suspend.ResumeUpdateName,
		Args:         []any{req},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return classifyTemporal(tok.ExecutionID, err)
	}
	if err := handle.Get(ctx, nil); err != nil {
		return classifyTemporal(tok.ExecutionID, err)
	}
	return nil
}

// classifyTemporal maps update failures onto the domain sentinels so the
// dispatcher can tell rejected tokens from infrastructure problems.
func classifyTemporal(workflowID string, err error) error {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: workflow %s: %w", domain.ErrCallbackNotFound, workflowID, err)
	}

	var invalid *serviceerror.InvalidArgument
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidResumeRequest, err)
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case suspend.ErrTypeNotFound, suspend.ErrTypeNotPending:
			return fmt.Errorf("%w: %w", domain.ErrCallbackNotFound, err)
		case suspend.ErrTypeInvalidRequest:
			return fmt.Errorf("%w: %w", domain.ErrInvalidResumeRequest, err)
		}
	}
	return err
}
