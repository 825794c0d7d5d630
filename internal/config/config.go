// Package config loads process configuration for the worker and the resume
// command. Values come from DefaultConfig, then CALLBACK_* environment
// variables, then explicit overrides such as command-line flags.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Control plane kinds.
const (
	ControlPlaneTemporal = "temporal"
	ControlPlaneHTTP     = "http"
)

// Publisher kinds.
const (
	PublisherLog     = "log"
	PublisherWebhook = "webhook"
)

// Output formats of the resume command.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Log levels and formats.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	FormatText = "text"
	FormatJSON = "json"
)

// Config is the root configuration.
type Config struct {
	Temporal   TemporalConfig   `koanf:"temporal"`
	Resume     ResumeConfig     `koanf:"resume"`
	Publisher  PublisherConfig  `koanf:"publisher"`
	Suspension SuspensionConfig `koanf:"suspension"`
	Log        LogConfig        `koanf:"log"`
}

// TemporalConfig locates the Temporal frontend.
type TemporalConfig struct {
	HostPort  string `koanf:"host_port"  validate:"required,hostname_port"`
	Namespace string `koanf:"namespace"  validate:"required"`
	TaskQueue string `koanf:"task_queue" validate:"required"`
}

// ResumeConfig selects how the resume command reaches the control plane.
type ResumeConfig struct {
	ControlPlane string        `koanf:"control_plane" validate:"required,oneof=temporal http"`
	BaseURL      string        `koanf:"base_url"      validate:"required_if=ControlPlane http,omitempty,url"`
	AuthToken    string        `koanf:"auth_token"`
	Timeout      time.Duration `koanf:"timeout"       validate:"gt=0"`
	Output       string        `koanf:"output"        validate:"oneof=text json"`
}

// PublisherConfig controls where callback tokens are published. When
// RedisAddr is set, publication is guarded so each token is delivered once.
type PublisherConfig struct {
	Kind       string        `koanf:"kind"        validate:"required,oneof=log webhook"`
	WebhookURL string        `koanf:"webhook_url" validate:"required_if=Kind webhook,omitempty,url"`
	Timeout    time.Duration `koanf:"timeout"     validate:"gt=0"`
	RateLimit  float64       `koanf:"rate_limit"  validate:"gte=0"` // Requests per second; 0 disables limiting
	BurstSize  int           `koanf:"burst_size"  validate:"gte=1"`
	RedisAddr  string        `koanf:"redis_addr"  validate:"omitempty,hostname_port"`
	RedisDB    int           `koanf:"redis_db"    validate:"gte=0"`
	GuardTTL   time.Duration `koanf:"guard_ttl"   validate:"gt=0"`
}

// SuspensionConfig holds defaults for suspended steps.
type SuspensionConfig struct {
	CallbackTimeout time.Duration `koanf:"callback_timeout" validate:"gt=0"`
	PublishTimeout  time.Duration `koanf:"publish_timeout"  validate:"gt=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"  validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks c against its struct tags.
func (c *Config) Validate() error { return validate.Struct(c) }
