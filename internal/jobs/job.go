// Package jobs tracks asynchronous generation requests from submission to a
// terminal state.
package jobs

import (
	"encoding/json"
	"errors"
	"time"
)

// Status represents the current state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

var (
	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = errors.New("job not found")

	// ErrTerminal is returned when completing or failing a finished job.
	ErrTerminal = errors.New("job already finished")
)

// Job is a point-in-time snapshot of one generation request.
type Job struct {
	ID          string          `json:"id"`
	Status      Status          `json:"status"`
	Progress    string          `json:"progress,omitempty"`
	Percent     *int            `json:"percent,omitempty"`
	Result      json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	ResumedFrom string          `json:"resumed_from,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Update carries a progress announcement. Empty fields are left unchanged.
type Update struct {
	Status   Status
	Progress string
	Percent  *int
}

// Percent returns a pointer to p, for building Updates.
func Percent(p int) *int {
	return &p
}
