package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-callback/internal/domain"
)

// Memory is an in-process control plane. Callers register suspensions and
// later inspect what was delivered. It accepts at most one outcome per token.
type Memory struct {
	mu      sync.Mutex
	records map[string]*domain.SuspensionRecord
	now     func() time.Time
}

// NewMemory creates an empty in-memory control plane.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*domain.SuspensionRecord), now: time.Now}
}

// WithClock replaces the time source and returns m.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Register opens a pending suspension for token.
func (m *Memory) Register(token, stepLabel string, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[token] = domain.NewSuspensionRecord(token, stepLabel, m.now(), timeout)
}

// Record returns a copy of the record for token as observed now.
func (m *Memory) Record(token string) (domain.SuspensionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[token]
	if !ok {
		return domain.SuspensionRecord{}, false
	}
	rec.Observe(m.now())
	return *rec, true
}

// DeliverSuccess implements resume.ControlPlane.
func (m *Memory) DeliverSuccess(_ context.Context, token string, payload []byte) error {
	return m.resolve(token, domain.Success(payload))
}

// DeliverFailure implements resume.ControlPlane.
func (m *Memory) DeliverFailure(_ context.Context, token, message string) error {
	return m.resolve(token, domain.Failure(message))
}

func (m *Memory) resolve(token string, outcome domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[token]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCallbackNotFound, token)
	}
	if err := rec.Resolve(m.now(), outcome); err != nil {
		if errors.Is(err, domain.ErrRecordNotPending) {
			return fmt.Errorf("%w: %w", domain.ErrCallbackNotFound, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidResumeRequest, err)
	}
	return nil
}
