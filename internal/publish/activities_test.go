package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/pkg/activity"
	"github.com/ahrav/go-callback/pkg/events"
)

type capturingSink struct {
	mu  sync.Mutex
	got []events.Envelope
}

func (s *capturingSink) Append(_ context.Context, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, env)
	return nil
}

func (s *capturingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.got))
	for _, e := range s.got {
		out = append(out, e.Type)
	}
	return out
}

func TestPublishCallbackToken(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	req := Request{
		Token:       "callback-exec-42-123e4567-e89b-12d3-a456-426614174000",
		ExecutionID: "exec-42",
		StepLabel:   "approve",
		Deadline:    time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		Data:        map[string]any{"items": 3},
	}

	t.Run("publishes and emits event", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		sink := &capturingSink{}

		var got domain.CallbackPayload
		pub := PublisherFunc(func(_ context.Context, p domain.CallbackPayload) error {
			got = p
			return nil
		})
		acts := NewActivities(activity.NewBaseActivities(sink), pub)
		env.RegisterActivity(acts.PublishCallbackToken)

		_, err := env.ExecuteActivity(acts.PublishCallbackToken, req)
		require.NoError(t, err)

		assert.Equal(t, req.Token, got.CallbackID)
		assert.Equal(t, "approve", got.StepLabel)
		assert.Equal(t, domain.CallbackStatusPending, got.Status)
		assert.True(t, got.Deadline.Equal(req.Deadline))
		assert.Equal(t, []string{events.TypeTokenPublished}, sink.types())
	})

	t.Run("duplicate publication is not an error", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		sink := &capturingSink{}
		pub := PublisherFunc(func(_ context.Context, p domain.CallbackPayload) error {
			return ErrAlreadyPublished
		})
		acts := NewActivities(activity.NewBaseActivities(sink), pub)
		env.RegisterActivity(acts.PublishCallbackToken)

		_, err := env.ExecuteActivity(acts.PublishCallbackToken, req)
		require.NoError(t, err)
		assert.Equal(t, []string{events.TypeTokenPublishSkipped}, sink.types())
	})

	t.Run("publisher failure is non-retryable", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		pub := PublisherFunc(func(_ context.Context, _ domain.CallbackPayload) error {
			return errors.New("connection refused")
		})
		acts := NewActivities(activity.NewBaseActivities(nil), pub)
		env.RegisterActivity(acts.PublishCallbackToken)

		_, err := env.ExecuteActivity(acts.PublishCallbackToken, req)
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ErrTypePublishFailed, appErr.Type())
		assert.True(t, appErr.NonRetryable())
	})

	t.Run("invalid token rejected before publishing", func(t *testing.T) {
		env := testSuite.NewTestActivityEnvironment()
		called := false
		pub := PublisherFunc(func(_ context.Context, _ domain.CallbackPayload) error {
			called = true
			return nil
		})
		acts := NewActivities(activity.NewBaseActivities(nil), pub)
		env.RegisterActivity(acts.PublishCallbackToken)

		bad := req
		bad.Token = "not-a-token"
		_, err := env.ExecuteActivity(acts.PublishCallbackToken, bad)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ErrTypeInvalidToken, appErr.Type())
		assert.False(t, called)
	})
}
