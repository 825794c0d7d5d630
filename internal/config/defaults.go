package config

import "time"

// Temporal connection defaults.
const (
	DefaultTemporalHostPort  = "localhost:7233"
	DefaultTemporalNamespace = "default"
	DefaultTaskQueue         = "callback-processing"
)

// Resume defaults.
const (
	DefaultControlPlane  = ControlPlaneTemporal
	DefaultResumeTimeout = 30 * time.Second
)

// Publisher defaults.
const (
	DefaultPublisherKind    = PublisherLog
	DefaultPublishTimeout   = 10 * time.Second
	DefaultRedisGuardTTL    = 48 * time.Hour
	DefaultPublishBurstSize = 1
)

// Suspension defaults.
const (
	DefaultCallbackTimeout        = 60 * time.Minute
	DefaultPublishActivityTimeout = 30 * time.Second
)

// DefaultConfig returns a configuration that talks to a local Temporal
// frontend and logs published tokens instead of delivering them.
func DefaultConfig() *Config {
	return &Config{
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalHostPort,
			Namespace: DefaultTemporalNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Resume: ResumeConfig{
			ControlPlane: DefaultControlPlane,
			Timeout:      DefaultResumeTimeout,
			Output:       OutputText,
		},
		Publisher: PublisherConfig{
			Kind:      DefaultPublisherKind,
			Timeout:   DefaultPublishTimeout,
			GuardTTL:  DefaultRedisGuardTTL,
			BurstSize: DefaultPublishBurstSize,
		},
		Suspension: SuspensionConfig{
			CallbackTimeout: DefaultCallbackTimeout,
			PublishTimeout:  DefaultPublishActivityTimeout,
		},
		Log: LogConfig{
			Level:  LevelInfo,
			Format: FormatText,
		},
	}
}
