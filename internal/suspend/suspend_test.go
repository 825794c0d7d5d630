package suspend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/internal/publish"
)

const (
	testExecutionID = "exec-42"
	testCorrelation = "123e4567-e89b-12d3-a456-426614174000"
	testToken       = "callback-exec-42-" + testCorrelation
)

type suspendInput struct {
	Timeout time.Duration
	Linger  time.Duration
}

// suspendingWorkflow suspends once and optionally keeps running afterwards so
// late resume attempts hit a live workflow.
func suspendingWorkflow(ctx workflow.Context, in suspendInput) (*Result, error) {
	codec := callback.NewCodec(callback.WithIDGenerator(func() uuid.UUID {
		return uuid.MustParse(testCorrelation)
	}))
	s, err := New(ctx, WithCodec(codec), WithPublishTimeout(5*time.Second))
	if err != nil {
		return nil, err
	}

	res, err := s.Suspend(ctx, "approve", in.Timeout, map[string]any{"items": 3})
	if err != nil {
		return nil, err
	}
	if in.Linger > 0 {
		_ = workflow.Sleep(ctx, in.Linger)
	}
	return res, nil
}

type harness struct {
	env       *testsuite.TestWorkflowEnvironment
	published atomic.Int32
	lastReq   atomic.Value
}

func newHarness(t *testing.T, publishErr error) *harness {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	h := &harness{env: testSuite.NewTestWorkflowEnvironment()}

	h.env.SetStartWorkflowOptions(client.StartWorkflowOptions{ID: testExecutionID})
	h.env.RegisterWorkflow(suspendingWorkflow)
	h.env.RegisterActivityWithOptions(
		func(_ context.Context, req publish.Request) error {
			h.published.Add(1)
			h.lastReq.Store(req)
			return publishErr
		},
		activity.RegisterOptions{Name: publish.ActivityName},
	)
	return h
}

type updateResult struct {
	rejected  error
	completed bool
	err       error
}

func (h *harness) resumeAt(delay time.Duration, req domain.ResumeRequest, out *updateResult) {
	h.env.RegisterDelayedCallback(func() {
		h.env.UpdateWorkflow(ResumeUpdateName, uuid.NewString(), &testsuite.TestUpdateCallback{
			OnAccept: func() {},
			OnReject: func(err error) { out.rejected = err },
			OnComplete: func(_ interface{}, err error) {
				out.completed = true
				out.err = err
			},
		}, req)
	}, delay)
}

func appErrType(t *testing.T, err error) string {
	t.Helper()
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	return appErr.Type()
}

func TestSuspend_Success(t *testing.T) {
	h := newHarness(t, nil)
	var upd updateResult
	h.resumeAt(time.Minute, domain.ResumeRequest{
		Token:   testToken,
		Outcome: domain.Success([]byte(`{"albums":[{"albumIndex":1,"year":1974}],"validated":true}`)),
	}, &upd)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Hour})

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())
	require.NoError(t, upd.rejected)
	assert.True(t, upd.completed)
	assert.NoError(t, upd.err)

	var res Result
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.Equal(t, testToken, res.Token)
	assert.False(t, res.TimedOut)

	var payload struct {
		Validated bool `json:"validated"`
	}
	require.NoError(t, res.Decode(&payload))
	assert.True(t, payload.Validated)

	assert.Equal(t, int32(1), h.published.Load())
	req := h.lastReq.Load().(publish.Request)
	assert.Equal(t, testToken, req.Token)
	assert.Equal(t, testExecutionID, req.ExecutionID)
	assert.Equal(t, "approve", req.StepLabel)
}

func TestSuspend_Failure(t *testing.T) {
	h := newHarness(t, nil)
	var upd updateResult
	h.resumeAt(time.Minute, domain.ResumeRequest{
		Token:   testToken,
		Outcome: domain.Failure("User rejected validation"),
	}, &upd)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Hour})

	require.True(t, h.env.IsWorkflowCompleted())
	err := h.env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrTypeFailed, appErr.Type())
	assert.Equal(t, "User rejected validation", appErr.Message())
	assert.True(t, appErr.NonRetryable())
}

func TestSuspend_TimeoutFallback(t *testing.T) {
	h := newHarness(t, nil)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: 10 * time.Second})

	require.True(t, h.env.IsWorkflowCompleted())
	require.NoError(t, h.env.GetWorkflowError())

	var res Result
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.True(t, res.TimedOut)
	require.NotNil(t, res.Fallback)
	assert.True(t, res.Fallback.TimedOut)
	assert.Equal(t, testToken, res.Fallback.Token)
	assert.Equal(t, domain.TimeoutFallbackValue, res.Fallback.DefaultValue)
	assert.Equal(t, 10*time.Second, res.Fallback.TimeoutDuration)
	assert.ErrorIs(t, res.Decode(&struct{}{}), ErrTimedOut)
}

func TestSuspend_LateResumeIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	var late updateResult
	h.resumeAt(2*time.Minute, domain.ResumeRequest{
		Token:   testToken,
		Outcome: domain.Success([]byte(`{"approved":true}`)),
	}, &late)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Minute, Linger: time.Hour})

	require.NoError(t, h.env.GetWorkflowError())
	require.Error(t, late.rejected)
	assert.Equal(t, ErrTypeNotFound, appErrType(t, late.rejected))

	var res Result
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.True(t, res.TimedOut)
}

func TestSuspend_DuplicateResumeIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	var first, second updateResult
	h.resumeAt(time.Minute, domain.ResumeRequest{Token: testToken, Outcome: domain.Success([]byte(`{"n":1}`))}, &first)
	h.resumeAt(time.Minute+time.Second, domain.ResumeRequest{Token: testToken, Outcome: domain.Success([]byte(`{"n":2}`))}, &second)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Hour, Linger: time.Hour})

	require.NoError(t, h.env.GetWorkflowError())
	require.NoError(t, first.rejected)
	assert.NoError(t, first.err)

	dupErr := second.rejected
	if dupErr == nil {
		dupErr = second.err
	}
	require.Error(t, dupErr, "second resume for the same token must not be accepted")
	assert.Contains(t, []string{ErrTypeNotFound, ErrTypeNotPending}, appErrType(t, dupErr))

	var res Result
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.JSONEq(t, `{"n":1}`, string(res.Payload))
}

func TestSuspend_UnknownTokenAndMalformedRequest(t *testing.T) {
	h := newHarness(t, nil)
	var unknown, malformed, good updateResult
	h.resumeAt(time.Minute, domain.ResumeRequest{
		Token:   "callback-exec-42-00000000-0000-0000-0000-000000000000",
		Outcome: domain.Success([]byte(`{}`)),
	}, &unknown)
	h.resumeAt(2*time.Minute, domain.ResumeRequest{Token: testToken, Outcome: domain.Failure("")}, &malformed)
	h.resumeAt(3*time.Minute, domain.ResumeRequest{Token: testToken, Outcome: domain.Success([]byte(`{}`))}, &good)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Hour})

	require.NoError(t, h.env.GetWorkflowError())
	assert.Equal(t, ErrTypeNotFound, appErrType(t, unknown.rejected))
	assert.Equal(t, ErrTypeInvalidRequest, appErrType(t, malformed.rejected))
	assert.NoError(t, good.rejected)

	var res Result
	require.NoError(t, h.env.GetWorkflowResult(&res))
	assert.False(t, res.TimedOut)
}

func TestSuspend_PublicationFailureIsFatal(t *testing.T) {
	h := newHarness(t, errors.New("external system unreachable"))

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Hour})

	require.True(t, h.env.IsWorkflowCompleted())
	err := h.env.GetWorkflowError()
	require.Error(t, err)
	assert.Equal(t, ErrTypePublishFailed, appErrType(t, err))
	assert.Equal(t, int32(1), h.published.Load(), "publication must not be retried")
}

func TestSuspend_RejectsNonPositiveTimeout(t *testing.T) {
	h := newHarness(t, nil)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: 0})

	err := h.env.GetWorkflowError()
	require.Error(t, err)
	assert.Equal(t, ErrTypeInvalidSuspend, appErrType(t, err))
	assert.Equal(t, int32(0), h.published.Load())
}

func TestSuspend_PendingQuery(t *testing.T) {
	h := newHarness(t, nil)
	var pending []domain.SuspensionRecord
	var queryErr error
	h.env.RegisterDelayedCallback(func() {
		val, err := h.env.QueryWorkflow(PendingQueryName)
		if err != nil {
			queryErr = err
			return
		}
		queryErr = val.Get(&pending)
	}, time.Minute)

	h.env.ExecuteWorkflow(suspendingWorkflow, suspendInput{Timeout: time.Hour})

	require.NoError(t, queryErr)
	require.Len(t, pending, 1)
	assert.Equal(t, testToken, pending[0].Token)
	assert.Equal(t, domain.SuspensionPending, pending[0].State)
	assert.Equal(t, "approve", pending[0].StepLabel)
}
