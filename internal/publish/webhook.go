package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-callback/internal/domain"
)

// IdempotencyKeyHeader carries the token so receivers can drop repeats.
const IdempotencyKeyHeader = "Idempotency-Key"

// Webhook publishes callback payloads as JSON to an HTTP endpoint. It makes a
// single attempt per Publish call; retrying is left to the caller.
type Webhook struct {
	client  *resty.Client
	url     string
	limiter *rate.Limiter
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.client.SetTimeout(d) }
}

// WithHeader adds a static header to every request, e.g. Authorization.
func WithHeader(key, value string) WebhookOption {
	return func(w *Webhook) { w.client.SetHeader(key, value) }
}

// WithRateLimit bounds the publication rate towards the external system.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) WebhookOption {
	return func(w *Webhook) {
		if perSecond <= 0 {
			w.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewWebhook creates a publisher posting to url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetRetryCount(0),
		url: url,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Publish implements Publisher.
func (w *Webhook) Publish(ctx context.Context, payload domain.CallbackPayload) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %w", ErrPublishFailed, err)
		}
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader(IdempotencyKeyHeader, payload.CallbackID).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s responded %d: %s", ErrPublishFailed, w.url, resp.StatusCode(), resp.String())
	}
	return nil
}
