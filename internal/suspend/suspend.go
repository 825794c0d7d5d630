// Package suspend implements the step-level suspend/resume contract on top of
// Temporal workflows.
//
// A Suspender is created once per workflow execution. Each Suspend call mints
// a callback token, publishes it through the publish activity, and parks the
// workflow until a resume update for that token arrives or the timeout
// elapses. The update validator makes the workflow itself the authority that
// accepts at most one outcome per token.
package suspend

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/internal/publish"
)

const (
	// ResumeUpdateName is the Temporal update that delivers an outcome.
	ResumeUpdateName = "callback.resume"

	// PendingQueryName lists the suspension records still open.
	PendingQueryName = "callback.pending"

	// DefaultPublishTimeout bounds the single publication attempt.
	DefaultPublishTimeout = 30 * time.Second
)

// Application error types surfaced to resume callers and workflow callers.
const (
	ErrTypeNotFound       = "CallbackNotFound"
	ErrTypeNotPending     = "CallbackNotPending"
	ErrTypeInvalidRequest = "InvalidResumeRequest"
	ErrTypeFailed         = "CallbackFailed"
	ErrTypePublishFailed  = publish.ErrTypePublishFailed
	ErrTypeInvalidSuspend = "InvalidSuspension"
)

// ErrTimedOut is returned by Result.Decode for a timed-out suspension.
var ErrTimedOut = errors.New("callback timed out")

// Result is what a suspended step resolves to when it does not fail.
type Result struct {
	Token    string                  `json:"token"`
	Payload  json.RawMessage         `json:"payload,omitempty"`
	TimedOut bool                    `json:"timed_out"`
	Fallback *domain.TimeoutFallback `json:"fallback,omitempty"`
}

// Decode unmarshals the success payload into v.
func (r *Result) Decode(v any) error {
	if r.TimedOut {
		return ErrTimedOut
	}
	return json.Unmarshal(r.Payload, v)
}

// Suspender owns the suspension records of one workflow execution. Workflow
// code is single-threaded, so no locking is needed.
type Suspender struct {
	codec          *callback.Codec
	publishTimeout time.Duration
	records        map[string]*domain.SuspensionRecord
}

// Option configures a Suspender.
type Option func(*Suspender)

// WithCodec overrides the token codec.
func WithCodec(c *callback.Codec) Option {
	return func(s *Suspender) { s.codec = c }
}

// WithPublishTimeout sets the start-to-close timeout of the publication activity.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Suspender) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// New installs the resume update handler and pending query for the current
// workflow and returns the Suspender bound to them.
func New(ctx workflow.Context, opts ...Option) (*Suspender, error) {
	s := &Suspender{
		codec:          callback.NewCodec(),
		publishTimeout: DefaultPublishTimeout,
		records:        make(map[string]*domain.SuspensionRecord),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := workflow.SetUpdateHandlerWithOptions(
		ctx,
		ResumeUpdateName,
		s.handleResume,
		workflow.UpdateHandlerOptions{Validator: s.validateResume},
	); err != nil {
		return nil, fmt.Errorf("register %s update handler: %w", ResumeUpdateName, err)
	}
	if err := workflow.SetQueryHandler(ctx, PendingQueryName, s.pending); err != nil {
		return nil, fmt.Errorf("register %s query handler: %w", PendingQueryName, err)
	}
	return s, nil
}

// Suspend parks the calling step until an outcome arrives for a fresh token or
// timeout elapses.
//
// Success resolves to a Result carrying the payload. Failure returns a
// non-retryable CallbackFailed error whose message is the delivered message.
// Timeout is not an error: the Result carries a TimeoutFallback. A failed
// publication is fatal and not retried here.
func (s *Suspender) Suspend(
	ctx workflow.Context,
	stepLabel string,
	timeout time.Duration,
	data any,
) (*Result, error) {
	logger := workflow.GetLogger(ctx)

	if timeout <= 0 {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("step %q: timeout must be positive, got %s", stepLabel, timeout),
			ErrTypeInvalidSuspend,
			nil,
		)
	}

	token, err := s.newToken(ctx)
	if err != nil {
		return nil, err
	}

	rec := domain.NewSuspensionRecord(token, stepLabel, workflow.Now(ctx), timeout)
	s.records[token] = rec
	defer delete(s.records, token)

	logger.Info("Suspending step for callback",
		"step", stepLabel,
		"callback_id", token,
		"deadline", rec.Deadline)

	if err := s.publish(ctx, rec, data); err != nil {
		logger.Error("Callback token publication failed", "step", stepLabel, "callback_id", token, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("step %q: publishing callback token failed", stepLabel),
			ErrTypePublishFailed,
			err,
		)
	}

	if remaining := rec.Deadline.Sub(workflow.Now(ctx)); remaining > 0 && rec.State == domain.SuspensionPending {
		if _, err := workflow.AwaitWithTimeout(ctx, remaining, func() bool {
			return rec.State != domain.SuspensionPending
		}); err != nil {
			return nil, err
		}
	}

	switch rec.Observe(workflow.Now(ctx)) {
	case domain.SuspensionSucceeded:
		logger.Info("Callback succeeded", "step", stepLabel, "callback_id", token)
		return &Result{Token: token, Payload: rec.Outcome.Payload}, nil
	case domain.SuspensionFailed:
		logger.Info("Callback failed", "step", stepLabel, "callback_id", token, "message", rec.Outcome.Message)
		return nil, temporal.NewNonRetryableApplicationError(rec.Outcome.Message, ErrTypeFailed, nil)
	default:
		fallback := domain.NewTimeoutFallback(token, timeout, workflow.Now(ctx))
		logger.Warn("Callback timed out, proceeding with default values",
			"step", stepLabel,
			"callback_id", token,
			"timeout", timeout)
		return &Result{Token: token, TimedOut: true, Fallback: &fallback}, nil
	}
}

// newToken mints the token inside a side effect so replays reuse it.
func (s *Suspender) newToken(ctx workflow.Context) (string, error) {
	executionID := workflow.GetInfo(ctx).WorkflowExecution.ID

	var token string
	encoded := workflow.SideEffect(ctx, func(workflow.Context) any {
		t, err := s.codec.Generate(executionID)
		if err != nil {
			return ""
		}
		return t
	})
	if err := encoded.Get(&token); err != nil {
		return "", fmt.Errorf("decode callback token: %w", err)
	}
	if token == "" {
		return "", temporal.NewNonRetryableApplicationError(
			"cannot mint callback token",
			ErrTypeInvalidSuspend,
			callback.ErrInvalidExecutionID,
		)
	}
	return token, nil
}

func (s *Suspender) publish(ctx workflow.Context, rec *domain.SuspensionRecord, data any) error {
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: s.publishTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	req := publish.Request{
		Token:       rec.Token,
		ExecutionID: workflow.GetInfo(ctx).WorkflowExecution.ID,
		StepLabel:   rec.StepLabel,
		Deadline:    rec.Deadline,
		Data:        data,
	}
	return workflow.ExecuteActivity(actx, publish.ActivityName, req).Get(ctx, nil)
}

// validateResume rejects requests before they enter workflow history. It must
// not mutate state.
func (s *Suspender) validateResume(ctx workflow.Context, req domain.ResumeRequest) error {
	if err := req.Validate(); err != nil {
		return temporal.NewApplicationError(err.Error(), ErrTypeInvalidRequest)
	}
	rec, ok := s.records[req.Token]
	if !ok {
		return temporal.NewApplicationError(fmt.Sprintf("no pending callback for token %s", req.Token), ErrTypeNotFound)
	}
	if state := rec.StateAt(workflow.Now(ctx)); state.IsTerminal() {
		return temporal.NewApplicationError(fmt.Sprintf("callback %s is %s", req.Token, state), ErrTypeNotPending)
	}
	return nil
}

func (s *Suspender) handleResume(ctx workflow.Context, req domain.ResumeRequest) error {
	rec, ok := s.records[req.Token]
	if !ok {
		return temporal.NewApplicationError(fmt.Sprintf("no pending callback for token %s", req.Token), ErrTypeNotFound)
	}
	if err := rec.Resolve(workflow.Now(ctx), req.Outcome); err != nil {
		if errors.Is(err, domain.ErrRecordNotPending) {
			return temporal.NewApplicationError(err.Error(), ErrTypeNotPending)
		}
		return temporal.NewApplicationError(err.Error(), ErrTypeInvalidRequest)
	}
	workflow.GetLogger(ctx).Info("Callback outcome accepted",
		"callback_id", req.Token,
		"outcome", req.Outcome.Kind)
	return nil
}

func (s *Suspender) pending() ([]domain.SuspensionRecord, error) {
	out := make([]domain.SuspensionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}
