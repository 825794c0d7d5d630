package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-callback/internal/domain"
)

// DefaultGuardTTL is how long a publication marker is kept. It must outlive
// the longest suspension timeout so late re-executions are still caught.
const DefaultGuardTTL = 48 * time.Hour

const guardKeyPrefix = "callback:published:"

// redisGuard is the subset of the Redis client used by Idempotent.
type redisGuard interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Idempotent wraps a Publisher so each token is published at most once while
// its marker lives in Redis. If the inner publisher fails the marker is
// removed so a re-execution can try again.
//
// When Redis itself is unreachable the guard fails open: the payload is
// published and receivers fall back to the Idempotency-Key header.
type Idempotent struct {
	next   Publisher
	client redisGuard
	ttl    time.Duration
	logger *slog.Logger
}

// NewIdempotent builds the guard. ttl <= 0 selects DefaultGuardTTL.
func NewIdempotent(next Publisher, client redisGuard, ttl time.Duration, logger *slog.Logger) *Idempotent {
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Idempotent{next: next, client: client, ttl: ttl, logger: logger}
}

// GuardKey returns the Redis key marking token as published.
func GuardKey(token string) string { return guardKeyPrefix + token }

// Publish implements Publisher. A deduplicated call returns ErrAlreadyPublished.
func (p *Idempotent) Publish(ctx context.Context, payload domain.CallbackPayload) error {
	key := GuardKey(payload.CallbackID)

	acquired, err := p.client.SetNX(ctx, key, payload.Timestamp.Format(time.RFC3339Nano), p.ttl).Result()
	if err != nil {
		p.logger.WarnContext(ctx, "publication guard unavailable, publishing without dedupe",
			"callback_id", payload.CallbackID,
			"error", err)
		return p.next.Publish(ctx, payload)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrAlreadyPublished, payload.CallbackID)
	}

	if err := p.next.Publish(ctx, payload); err != nil {
		if delErr := p.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil && !errors.Is(delErr, redis.Nil) {
			p.logger.ErrorContext(ctx, "failed to release publication guard",
				"callback_id", payload.CallbackID,
				"error", delErr)
		}
		return err
	}
	return nil
}
