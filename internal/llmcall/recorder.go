package llmcall

import (
	"github.com/jackzampolin/roadmap/internal/providers"
)

// Observer receives every recorded call, e.g. to export metrics.
type Observer interface {
	ObserveCall(Call)
}

// Recorder captures every attempt into a Store. A nil Recorder discards.
type Recorder struct {
	store     *Store
	observers []Observer
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(store *Store, observers ...Observer) *Recorder {
	return &Recorder{store: store, observers: observers}
}

// Record captures one attempt.
func (r *Recorder) Record(result *providers.ChatResult, req *providers.ChatRequest, attempt int) {
	if r == nil {
		return
	}
	call := FromChatResult(result, req, attempt)
	if call == nil {
		return
	}
	if r.store != nil {
		r.store.Add(call)
	}
	for _, o := range r.observers {
		o.ObserveCall(*call)
	}
}

// Store returns the backing store.
func (r *Recorder) Store() *Store {
	if r == nil {
		return nil
	}
	return r.store
}
