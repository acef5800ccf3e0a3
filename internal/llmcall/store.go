package llmcall

import (
	"sync"
)

// DefaultHistorySize bounds the in-memory call history.
const DefaultHistorySize = 500

// Store is a fixed-size ring of recent calls. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	calls []*Call
	next  int
	full  bool
}

// NewStore creates a store holding at most size calls.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Store{calls: make([]*Call, size)}
}

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	JobID     string
	PromptKey string
	Success   *bool
	Limit     int
}

// Add appends a call, overwriting the oldest when full.
func (s *Store) Add(call *Call) {
	if call == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[s.next] = call
	s.next = (s.next + 1) % len(s.calls)
	if s.next == 0 {
		s.full = true
	}
}

// List returns matching calls, newest first.
func (s *Store) List(filter QueryFilter) []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.calls)
	}

	out := make([]Call, 0)
	for i := 0; i < n; i++ {
		idx := (s.next - 1 - i + len(s.calls)) % len(s.calls)
		c := s.calls[idx]
		if filter.JobID != "" && c.JobID != filter.JobID {
			continue
		}
		if filter.PromptKey != "" && c.PromptKey != filter.PromptKey {
			continue
		}
		if filter.Success != nil && c.Success != *filter.Success {
			continue
		}
		out = append(out, *c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// CountByPromptKey returns call counts grouped by prompt key.
func (s *Store) CountByPromptKey(jobID string) map[string]int {
	counts := make(map[string]int)
	for _, c := range s.List(QueryFilter{JobID: jobID}) {
		counts[c.PromptKey]++
	}
	return counts
}
