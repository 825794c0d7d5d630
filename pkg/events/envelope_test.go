package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(TypeTokenPublished, "publish-activity", "callback-a-b", map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, TypeTokenPublished, env.Type)
	assert.Equal(t, "callback-a-b", env.IdempotencyKey)
	assert.JSONEq(t, `{"k":"v"}`, string(env.Payload))
	assert.False(t, env.Timestamp.IsZero())

	_, err = NewEnvelope(TypeTokenPublished, "x", "y", make(chan int))
	assert.Error(t, err, "unmarshalable payload should fail")
}

func TestLogEventSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogEventSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	env, err := NewEnvelope(TypeTokenPublished, "test", "callback-a-b", nil)
	require.NoError(t, err)
	require.NoError(t, sink.Append(context.Background(), env))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, TypeTokenPublished, line["event_type"])
	assert.Equal(t, "callback-a-b", line["idempotency_key"])
}

func TestNoOpEventSink(t *testing.T) {
	assert.NoError(t, NewNoOpEventSink().Append(context.Background(), Envelope{}))
}
