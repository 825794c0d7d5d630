package resume

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-callback/internal/domain"
)

const testToken = "callback-exec-42-123e4567-e89b-12d3-a456-426614174000"

type mockPlane struct{ mock.Mock }

func (m *mockPlane) DeliverSuccess(ctx context.Context, token string, payload []byte) error {
	return m.Called(ctx, token, payload).Error(0)
}

func (m *mockPlane) DeliverFailure(ctx context.Context, token, message string) error {
	return m.Called(ctx, token, message).Error(0)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(plane ControlPlane) *Dispatcher {
	return NewDispatcher(plane,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestResume_SuccessWithPayload(t *testing.T) {
	plane := new(mockPlane)
	payload := []byte(`{"approved":true,"reviewer":"john.doe"}`)
	plane.On("DeliverSuccess", mock.Anything, testToken, mock.MatchedBy(func(p []byte) bool {
		return string(p) == string(payload)
	})).Return(nil).Once()

	d := newTestDispatcher(plane)
	delivery, err := d.Resume(context.Background(), testToken, domain.Success(payload))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, delivery.Kind)
	assert.False(t, delivery.Defaulted)
	assert.JSONEq(t, string(payload), string(delivery.Payload))
	plane.AssertExpectations(t)
}

func TestResume_SuccessDefaultsPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "absent", payload: nil},
		{name: "invalid json", payload: []byte(`{not json`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delivered []byte
			plane := new(mockPlane)
			plane.On("DeliverSuccess", mock.Anything, testToken, mock.Anything).
				Run(func(args mock.Arguments) { delivered = args.Get(2).([]byte) }).
				Return(nil).Once()

			d := newTestDispatcher(plane)
			delivery, err := d.Resume(context.Background(), testToken, domain.Success(tt.payload))
			require.NoError(t, err)
			assert.True(t, delivery.Defaulted)

			var approval domain.DefaultApproval
			require.NoError(t, json.Unmarshal(delivered, &approval))
			assert.True(t, approval.Approved)
			assert.True(t, approval.CompletedAt.Equal(fixedNow))
			plane.AssertNumberOfCalls(t, "DeliverSuccess", 1)
		})
	}
}

func TestResume_Failure(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "with message", message: "User rejected validation", want: "User rejected validation"},
		{name: "default message", message: "", want: DefaultFailureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plane := new(mockPlane)
			plane.On("DeliverFailure", mock.Anything, testToken, tt.want).Return(nil).Once()

			d := newTestDispatcher(plane)
			delivery, err := d.Resume(context.Background(), testToken, domain.Failure(tt.message))
			require.NoError(t, err)
			assert.Equal(t, tt.want, delivery.Message)
			assert.Equal(t, tt.message == "", delivery.Defaulted)
			plane.AssertExpectations(t)
		})
	}
}

func TestResume_InvalidTokenMakesNoCall(t *testing.T) {
	plane := new(mockPlane)
	d := newTestDispatcher(plane)

	for _, token := range []string{"", "not-a-token", "cb-exec-1"} {
		_, err := d.Resume(context.Background(), token, domain.Success(nil))
		require.Error(t, err)

		var dErr *DispatchError
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, KindInvalidToken, dErr.Kind)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.NotEmpty(t, dErr.Hint)
	}
	plane.AssertNotCalled(t, "DeliverSuccess", mock.Anything, mock.Anything, mock.Anything)
	plane.AssertNotCalled(t, "DeliverFailure", mock.Anything, mock.Anything, mock.Anything)
}

func TestResume_ClassifiesControlPlaneErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     ErrorKind
		sentinel error
		rejected bool
	}{
		{
			name:     "unknown or used token",
			err:      domain.ErrCallbackNotFound,
			kind:     KindNotFoundOrExpired,
			sentinel: ErrNotFoundOrExpired,
			rejected: true,
		},
		{
			name:     "rejected request",
			err:      domain.ErrInvalidResumeRequest,
			kind:     KindValidation,
			sentinel: ErrValidation,
			rejected: true,
		},
		{
			name:     "transport failure",
			err:      errors.New("connection refused"),
			kind:     KindControlPlaneUnavailable,
			sentinel: ErrControlPlaneUnavailable,
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			kind:     KindControlPlaneUnavailable,
			sentinel: ErrControlPlaneUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plane := new(mockPlane)
			plane.On("DeliverSuccess", mock.Anything, testToken, mock.Anything).Return(tt.err).Once()

			d := newTestDispatcher(plane)
			_, err := d.Resume(context.Background(), testToken, domain.Success([]byte(`{}`)))
			require.Error(t, err)

			var dErr *DispatchError
			require.ErrorAs(t, err, &dErr)
			assert.Equal(t, tt.kind, dErr.Kind)
			assert.Equal(t, tt.rejected, dErr.TokenRejected())
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, tt.err)
			plane.AssertNumberOfCalls(t, "DeliverSuccess", 1)
		})
	}
}

func TestResume_UnknownOutcomeKind(t *testing.T) {
	plane := new(mockPlane)
	d := newTestDispatcher(plane)

	_, err := d.Resume(context.Background(), testToken, domain.Outcome{Kind: "maybe"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
	plane.AssertNotCalled(t, "DeliverSuccess", mock.Anything, mock.Anything, mock.Anything)
}
