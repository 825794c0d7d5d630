package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ahrav/go-callback/internal/domain"
)

// DefaultHTTPTimeout bounds one control-plane request.
const DefaultHTTPTimeout = 30 * time.Second

// HTTP resumes suspended steps through a REST control plane:
//
//	POST {base}/callbacks/{token}/success   body: raw JSON payload
//	POST {base}/callbacks/{token}/failure   body: {"error": message}
//
// Exactly one request is made per call; client retries are disabled.
type HTTP struct {
	client *resty.Client
}

// HTTPOption configures an HTTP control plane.
type HTTPOption func(*resty.Client)

// WithHTTPTimeout overrides the request timeout.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithBearerToken authenticates requests with a bearer token.
func WithBearerToken(token string) HTTPOption {
	return func(c *resty.Client) {
		if token != "" {
			c.SetAuthToken(token)
		}
	}
}

// WithHTTPHeader adds a header to every request.
func WithHTTPHeader(key, value string) HTTPOption {
	return func(c *resty.Client) { c.SetHeader(key, value) }
}

// NewHTTP creates a control plane rooted at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(DefaultHTTPTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return &HTTP{client: c}
}

type failureBody struct {
	Error string `json:"error"`
}

// DeliverSuccess implements resume.ControlPlane.
func (h *HTTP) DeliverSuccess(ctx context.Context, token string, payload []byte) error {
	return h.post(ctx, token, "success", payload)
}

// DeliverFailure implements resume.ControlPlane.
func (h *HTTP) DeliverFailure(ctx context.Context, token, message string) error {
	return h.post(ctx, token, "failure", failureBody{Error: message})
}

func (h *HTTP) post(ctx context.Context, token, action string, body any) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/callbacks/" + url.PathEscape(token) + "/" + action)
	if err != nil {
		return fmt.Errorf("post %s callback: %w", action, err)
	}

	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusConflict, code == http.StatusGone:
		return fmt.Errorf("%w: control plane returned %d: %s", domain.ErrCallbackNotFound, code, resp.String())
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: control plane returned %d: %s", domain.ErrInvalidResumeRequest, code, resp.String())
	default:
		return fmt.Errorf("control plane returned %d: %s", code, resp.String())
	}
}
