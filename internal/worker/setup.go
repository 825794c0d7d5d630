// Package worker provides initialization and setup utilities for Temporal
// workers: client construction, publisher wiring, and registration.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"

	"github.com/ahrav/go-callback/internal/config"
	"github.com/ahrav/go-callback/internal/publish"
)

// TemporalClientOptions maps cfg onto client options. The SDK logs through
// logger.
func TemporalClientOptions(cfg config.TemporalConfig, logger *slog.Logger) client.Options {
	if logger == nil {
		logger = slog.Default()
	}
	return client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	}
}

// InitializeTemporalClient dials the Temporal frontend described by cfg.
func InitializeTemporalClient(cfg config.TemporalConfig, logger *slog.Logger) (client.Client, error) {
	c, err := client.Dial(TemporalClientOptions(cfg, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// InitializePublisher builds the token publisher described by cfg. When a
// Redis address is configured the publisher is wrapped in the publication
// guard. The returned close function releases the Redis client.
func InitializePublisher(ctx context.Context, cfg config.PublisherConfig, logger *slog.Logger) (publish.Publisher, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }

	var pub publish.Publisher
	switch cfg.Kind {
	case config.PublisherLog:
		pub = publish.NewLog(logger)
	case config.PublisherWebhook:
		if cfg.WebhookURL == "" {
			return nil, noop, errors.New("webhook publisher requires a webhook url")
		}
		pub = publish.NewWebhook(cfg.WebhookURL,
			publish.WithTimeout(cfg.Timeout),
			publish.WithRateLimit(cfg.RateLimit, cfg.BurstSize))
	default:
		return nil, noop, fmt.Errorf("unknown publisher kind %q", cfg.Kind)
	}

	if cfg.RedisAddr == "" {
		return pub, noop, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The guard fails open, so an unreachable Redis at startup is not fatal.
		logger.WarnContext(ctx, "publication guard redis unreachable",
			"addr", cfg.RedisAddr,
			"error", err)
	}
	return publish.NewIdempotent(pub, rdb, cfg.GuardTTL, logger), rdb.Close, nil
}
