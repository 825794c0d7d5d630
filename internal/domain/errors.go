package domain

import "errors"

// ErrInvalidOutcome indicates that a resume outcome is malformed.
var ErrInvalidOutcome = errors.New("invalid callback outcome")

// ErrCallbackNotFound is returned by control planes when the token is unknown,
// already resolved, or past its deadline.
var ErrCallbackNotFound = errors.New("callback not found or no longer pending")

// ErrInvalidResumeRequest is returned by control planes when the resume request
// itself is rejected as malformed.
var ErrInvalidResumeRequest = errors.New("invalid resume request")

// ErrRecordNotPending indicates an attempt to resolve a suspension record that
// already reached a terminal state.
var ErrRecordNotPending = errors.New("suspension record is not pending")
