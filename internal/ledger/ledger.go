// Package ledger records which generation phases have completed for a job
// so a retry can skip work that already succeeded.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Phase names one generation step.
type Phase string

const (
	PhaseChart   Phase = "chart"
	PhaseSummary Phase = "summary"
	PhaseSlides  Phase = "slides"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseChart, PhaseSummary, PhaseSlides}

var (
	// ErrNotFound is returned when no phase has been recorded for a job.
	ErrNotFound = errors.New("partial result not found")

	// ErrEmptyPayload rejects writes that would replace a phase with nothing.
	ErrEmptyPayload = errors.New("phase payload is empty")
)

// PartialResult is the set of completed phases for one job, plus the request
// that started it so the job can be resumed by a later process.
type PartialResult struct {
	JobID     string                    `json:"job_id"`
	Input     json.RawMessage           `json:"input,omitempty"`
	Phases    map[Phase]json.RawMessage `json:"phases"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Has reports whether phase is present.
func (p *PartialResult) Has(phase Phase) bool {
	if p == nil {
		return false
	}
	_, ok := p.Phases[phase]
	return ok
}

// Ledger stores per-job phase checkpoints. Implementations are safe for
// concurrent use.
type Ledger interface {
	// Store records a completed phase, replacing any earlier payload for it.
	Store(ctx context.Context, jobID string, phase Phase, payload json.RawMessage) error

	// SaveInput records the request payload a job was submitted with.
	SaveInput(ctx context.Context, jobID string, input json.RawMessage) error

	// Get returns every recorded phase for a job, or ErrNotFound.
	Get(ctx context.Context, jobID string) (*PartialResult, error)

	// Has reports whether phase has been recorded for a job.
	Has(ctx context.Context, jobID string, phase Phase) (bool, error)

	// Clear drops all phases for a job.
	Clear(ctx context.Context, jobID string) error

	// Sweep drops entries not updated within maxAge and returns how many.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)

	Close() error
}

func validPayload(payload json.RawMessage) bool {
	return len(payload) > 0 && string(payload) != "null"
}
