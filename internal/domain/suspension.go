package domain

import (
	"fmt"
	"time"
)

// SuspensionState is the lifecycle state of a suspended step.
type SuspensionState string

const (
	// SuspensionPending is the initial state; the step is waiting.
	SuspensionPending SuspensionState = "pending"
	// SuspensionSucceeded means a success outcome was delivered.
	SuspensionSucceeded SuspensionState = "succeeded"
	// SuspensionFailed means a failure outcome was delivered.
	SuspensionFailed SuspensionState = "failed"
	// SuspensionExpired means the deadline passed without an outcome.
	SuspensionExpired SuspensionState = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s SuspensionState) IsTerminal() bool { return s != SuspensionPending }

// SuspensionRecord tracks a single suspend/resume instance. It is owned by the
// suspender that created it and is only mutated by Resolve or Observe.
type SuspensionRecord struct {
	Token        string          `json:"token"`
	StepLabel    string          `json:"step_label"`
	RegisteredAt time.Time       `json:"registered_at"`
	Deadline     time.Time       `json:"deadline"`
	State        SuspensionState `json:"state"`
	Outcome      *Outcome        `json:"outcome,omitempty"`
}

// NewSuspensionRecord creates a pending record whose deadline is
// registeredAt+timeout.
func NewSuspensionRecord(token, stepLabel string, registeredAt time.Time, timeout time.Duration) *SuspensionRecord {
	return &SuspensionRecord{
		Token:        token,
		StepLabel:    stepLabel,
		RegisteredAt: registeredAt,
		Deadline:     registeredAt.Add(timeout),
		State:        SuspensionPending,
	}
}

// StateAt returns the state the record would have when observed at now,
// without mutating it.
func (r *SuspensionRecord) StateAt(now time.Time) SuspensionState {
	if r.State == SuspensionPending && !now.Before(r.Deadline) {
		return SuspensionExpired
	}
	return r.State
}

// Observe moves a pending record past its deadline to expired and returns the
// resulting state.
func (r *SuspensionRecord) Observe(now time.Time) SuspensionState {
	r.State = r.StateAt(now)
	return r.State
}

// Resolve records a delivered outcome. It fails if the record is no longer
// pending at now.
func (r *SuspensionRecord) Resolve(now time.Time, outcome Outcome) error {
	if state := r.Observe(now); state.IsTerminal() {
		return fmt.Errorf("%w: token %s is %s", ErrRecordNotPending, r.Token, state)
	}
	if err := outcome.Validate(); err != nil {
		return err
	}

	o := outcome
	r.Outcome = &o
	if outcome.IsSuccess() {
		r.State = SuspensionSucceeded
	} else {
		r.State = SuspensionFailed
	}
	return nil
}

// Expire forces a pending record into the expired state. Terminal records are
// left untouched.
func (r *SuspensionRecord) Expire() {
	if r.State == SuspensionPending {
		r.State = SuspensionExpired
	}
}
