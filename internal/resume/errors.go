package resume

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-callback/internal/callback"
	"github.com/ahrav/go-callback/internal/domain"
)

// ErrorKind classifies why a resume attempt failed.
type ErrorKind string

const (
	// KindInvalidToken means the token failed local validation; no call was made.
	KindInvalidToken ErrorKind = "invalid_token"

	// KindNotFoundOrExpired means the control plane does not know the token,
	// already resolved it, or the suspension expired.
	KindNotFoundOrExpired ErrorKind = "not_found_or_expired"

	// KindValidation means the control plane rejected the request shape.
	KindValidation ErrorKind = "validation"

	// KindControlPlaneUnavailable covers every other transport or
	// infrastructure failure.
	KindControlPlaneUnavailable ErrorKind = "control_plane_unavailable"
)

// Sentinel errors matched by DispatchError.Is.
var (
	ErrInvalidToken            = callback.ErrInvalidToken
	ErrNotFoundOrExpired       = errors.New("callback not found or expired")
	ErrValidation              = errors.New("resume request rejected by control plane")
	ErrControlPlaneUnavailable = errors.New("control plane unavailable")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidToken:            ErrInvalidToken,
	KindNotFoundOrExpired:       ErrNotFoundOrExpired,
	KindValidation:              ErrValidation,
	KindControlPlaneUnavailable: ErrControlPlaneUnavailable,
}

var kindHints = map[ErrorKind]string{
	KindInvalidToken:            `callback tokens look like "callback-<executionId>-<uuid>"`,
	KindNotFoundOrExpired:       "the callback token was not found; it may have expired or been used already",
	KindValidation:              "this usually means the callback token is invalid or already used",
	KindControlPlaneUnavailable: "the control plane could not be reached; the resume was not retried",
}

// DispatchError reports a failed resume with an operator-facing hint.
type DispatchError struct {
	Kind  ErrorKind
	Token string
	Hint  string
	Err   error
}

// Error implements error.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("resume %s: %s: %v", e.Token, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error { return e.Err }

// Is matches the sentinel error of the error kind.
func (e *DispatchError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// TokenRejected reports whether the failure means the token itself is unusable
// (invalid, unknown, used, or expired) rather than an infrastructure problem.
func (e *DispatchError) TokenRejected() bool {
	return e.Kind != KindControlPlaneUnavailable
}

func newDispatchError(kind ErrorKind, token string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Token: token, Hint: kindHints[kind], Err: err}
}

// classify maps a control-plane error onto the dispatch taxonomy.
func classify(token string, err error) *DispatchError {
	switch {
	case errors.Is(err, domain.ErrCallbackNotFound):
		return newDispatchError(KindNotFoundOrExpired, token, err)
	case errors.Is(err, domain.ErrInvalidResumeRequest):
		return newDispatchError(KindValidation, token, err)
	case errors.Is(err, callback.ErrInvalidToken):
		return newDispatchError(KindInvalidToken, token, err)
	default:
		return newDispatchError(KindControlPlaneUnavailable, token, err)
	}
}

// PayloadParseError records a success payload that was not valid JSON. It is
// logged and never returned: the dispatcher substitutes the default payload.
type PayloadParseError struct {
	Payload string
	Err     error
}

// Error implements error.
func (e *PayloadParseError) Error() string {
	return fmt.Sprintf("invalid JSON payload %q: %v", e.Payload, e.Err)
}

// Unwrap returns the parse error.
func (e *PayloadParseError) Unwrap() error { return e.Err }
