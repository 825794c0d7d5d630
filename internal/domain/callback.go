package domain

import (
	"time"
)

// TimeoutFallbackValue is the default value carried by a timed-out suspension.
const TimeoutFallbackValue = "timeout-fallback"

// TimeoutFallback is returned instead of an error when a suspended step
// reaches its deadline. Callers proceed with degraded data.
type TimeoutFallback struct {
	TimedOut        bool          `json:"timedOut"`
	Token           string        `json:"token"`
	DefaultValue    string        `json:"defaultValue"`
	TimeoutDuration time.Duration `json:"timeoutDuration"`
	Timestamp       time.Time     `json:"timestamp"`
}

// NewTimeoutFallback builds the fallback marker for token after timeout.
func NewTimeoutFallback(token string, timeout time.Duration, at time.Time) TimeoutFallback {
	return TimeoutFallback{
		TimedOut:        true,
		Token:           token,
		DefaultValue:    TimeoutFallbackValue,
		TimeoutDuration: timeout,
		Timestamp:       at.UTC(),
	}
}

// CallbackStatusPending marks a published callback awaiting resolution.
const CallbackStatusPending = "pending"

// CallbackPayload is what gets published to the external system that will
// later resume the step.
type CallbackPayload struct {
	CallbackID  string    `json:"callbackId" validate:"required"`
	ExecutionID string    `json:"executionId,omitempty"`
	StepLabel   string    `json:"stepLabel,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Deadline    time.Time `json:"deadline"`
	Data        any       `json:"data,omitempty"`
	Status      string    `json:"status"`
}

// NewCallbackPayload creates a pending callback payload.
func NewCallbackPayload(callbackID string, now time.Time, data any) CallbackPayload {
	return CallbackPayload{
		CallbackID: callbackID,
		Timestamp:  now.UTC(),
		Data:       data,
		Status:     CallbackStatusPending,
	}
}

// Validate checks the payload before publication.
func (p CallbackPayload) Validate() error {
	return validate.Struct(p)
}

// CallbackResponse summarizes a delivered resume for the operator.
type CallbackResponse struct {
	CallbackID   string    `json:"callbackId"`
	Success      bool      `json:"success"`
	Data         any       `json:"data"`
	Message      string    `json:"message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	ResponseTime int64     `json:"responseTime"`
}

// NewCallbackResponse builds a response stamped at now.
func NewCallbackResponse(callbackID string, success bool, data any, message string, now time.Time) CallbackResponse {
	return CallbackResponse{
		CallbackID:   callbackID,
		Success:      success,
		Data:         data,
		Message:      message,
		Timestamp:    now.UTC(),
		ResponseTime: now.UnixMilli(),
	}
}
