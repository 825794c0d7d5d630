package controlplane

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/internal/suspend"
)

const testToken = "callback-order-7-123e4567-e89b-12d3-a456-426614174000"

func newTestTemporal(c client.Client) *Temporal {
	return NewTemporal(c, WithTemporalLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestTemporal_DeliverSuccessSendsUpdate(t *testing.T) {
	c := &mocks.Client{}
	handle := &mocks.WorkflowUpdateHandle{}

	var sent client.UpdateWorkflowOptions
	c.On("UpdateWorkflow", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(client.UpdateWorkflowOptions) }).
		Return(handle, nil).Once()
	handle.On("Get", mock.Anything, nil).Return(nil).Once()

	err := newTestTemporal(c).DeliverSuccess(context.Background(), testToken, []byte(`{"approved":true}`))
	require.NoError(t, err)

	assert.Equal(t, "order-7", sent.WorkflowID)
	assert.Equal(t, suspend.ResumeUpdateName, sent.UpdateName)
	assert.Equal(t, client.WorkflowUpdateStageCompleted, sent.WaitForStage)
	require.Len(t, sent.Args, 1)

	req, ok := sent.Args[0].(domain.ResumeRequest)
	require.True(t, ok)
	assert.Equal(t, testToken, req.Token)
	assert.Equal(t, domain.OutcomeSuccess, req.Outcome.Kind)
	assert.JSONEq(t, `{"approved":true}`, string(req.Outcome.Payload))

	c.AssertExpectations(t)
	handle.AssertExpectations(t)
}

func TestTemporal_DeliverFailureSendsMessage(t *testing.T) {
	c := &mocks.Client{}
	handle := &mocks.WorkflowUpdateHandle{}

	c.On("UpdateWorkflow", mock.Anything, mock.MatchedBy(func(o client.UpdateWorkflowOptions) bool {
		req, ok := o.Args[0].(domain.ResumeRequest)
		return ok && req.Outcome.Kind == domain.OutcomeFailure && req.Outcome.Message == "User rejected validation"
	})).Return(handle, nil).Once()
	handle.On("Get", mock.Anything, nil).Return(nil).Once()

	err := newTestTemporal(c).DeliverFailure(context.Background(), testToken, "User rejected validation")
	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestTemporal_InvalidTokenMakesNoCall(t *testing.T) {
	c := &mocks.Client{}

	err := NewTemporal(c, WithTemporalCodec(callback.NewCodec(callback.WithStrictParsing()))).
		DeliverSuccess(context.Background(), "callback-exec-1-abc", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, callback.ErrInvalidToken)
	c.AssertNotCalled(t, "UpdateWorkflow", mock.Anything, mock.Anything)
}

func TestTemporal_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		updateErr error
		getErr    error
		want      error
	}{
		{
			name:      "workflow gone",
			updateErr: serviceerror.NewNotFound("workflow execution already completed"),
			want:      domain.ErrCallbackNotFound,
		},
		{
			name:      "bad argument",
			updateErr: serviceerror.NewInvalidArgument("bad update"),
			want:      domain.ErrInvalidResumeRequest,
		},
		{
			name:   "unknown token",
			getErr: temporal.NewApplicationError("no pending callback", suspend.ErrTypeNotFound),
			want:   domain.ErrCallbackNotFound,
		},
		{
			name:   "already resolved",
			getErr: temporal.NewApplicationError("callback is succeeded", suspend.ErrTypeNotPending),
			want:   domain.ErrCallbackNotFound,
		},
		{
			name:   "rejected request",
			getErr: temporal.NewApplicationError("failure message is required", suspend.ErrTypeInvalidRequest),
			want:   domain.ErrInvalidResumeRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mocks.Client{}
			handle := &mocks.WorkflowUpdateHandle{}
			if tt.updateErr != nil {
				c.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(nil, tt.updateErr).Once()
			} else {
				c.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(handle, nil).Once()
				handle.On("Get", mock.Anything, nil).Return(tt.getErr).Once()
			}

			err := newTestTemporal(c).DeliverSuccess(context.Background(), testToken, []byte(`{}`))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTemporal_UnclassifiedErrorPassesThrough(t *testing.T) {
	c := &mocks.Client{}
	unavailable := errors.New("dial tcp: connection refused")
	c.On("UpdateWorkflow", mock.Anything, mock.Anything).Return(nil, unavailable).Once()

	err := newTestTemporal(c).DeliverFailure(context.Background(), testToken, "boom")
	require.ErrorIs(t, err, unavailable)
	assert.NotErrorIs(t, err, domain.ErrCallbackNotFound)
	assert.NotErrorIs(t, err, domain.ErrInvalidResumeRequest)
}
