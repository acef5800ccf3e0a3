package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Ledger. It protects against a later phase failing
// within the same run but does not survive a restart. Sharing one Memory
// between orchestrators stands in for a durable backend in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*PartialResult
	now     func() time.Time
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*PartialResult),
		now:     time.Now,
	}
}

func (m *Memory) Store(_ context.Context, jobID string, phase Phase, payload json.RawMessage) error {
	if !validPayload(payload) {
		return fmt.Errorf("failed to store %s for job %s: %w", phase, jobID, ErrEmptyPayload)
	}
	stored := make(json.RawMessage, len(payload))
	copy(stored, payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.entryLocked(jobID)
	entry.Phases[phase] = stored
	entry.UpdatedAt = m.now()
	return nil
}

func (m *Memory) SaveInput(_ context.Context, jobID string, input json.RawMessage) error {
	if !validPayload(input) {
		return fmt.Errorf("failed to store input for job %s: %w", jobID, ErrEmptyPayload)
	}
	stored := make(json.RawMessage, len(input))
	copy(stored, input)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.entryLocked(jobID)
	entry.Input = stored
	entry.UpdatedAt = m.now()
	return nil
}

func (m *Memory) entryLocked(jobID string) *PartialResult {
	entry, ok := m.entries[jobID]
	if !ok {
		entry = &PartialResult{JobID: jobID, Phases: make(map[Phase]json.RawMessage)}
		m.entries[jobID] = entry
	}
	return entry
}

func (m *Memory) Get(_ context.Context, jobID string) (*PartialResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := &PartialResult{
		JobID:     entry.JobID,
		Input:     entry.Input,
		Phases:    make(map[Phase]json.RawMessage, len(entry.Phases)),
		UpdatedAt: entry.UpdatedAt,
	}
	for phase, payload := range entry.Phases {
		snapshot.Phases[phase] = payload
	}
	return snapshot, nil
}

func (m *Memory) Has(_ context.Context, jobID string, phase Phase) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[jobID]
	return ok && entry.Has(phase), nil
}

func (m *Memory) Clear(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, jobID)
	return nil
}

func (m *Memory) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	n := 0
	for id, entry := range m.entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Ledger = (*Memory)(nil)
