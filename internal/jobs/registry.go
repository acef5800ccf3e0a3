package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	job   Job
	input json.RawMessage
	done  chan struct{}
}

// Registry holds every live job. Each job has a single writer (its
// orchestration goroutine) and any number of readers.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:   make(map[string]*entry),
		logger: logger,
		now:    time.Now,
	}
}

// Create registers a new queued job and returns its ID.
func (r *Registry) Create(input json.RawMessage) string {
	return r.create(input, "")
}

// CreateResumed registers a job that continues the work of an earlier one.
func (r *Registry) CreateResumed(input json.RawMessage, from string) string {
	return r.create(input, from)
}

func (r *Registry) create(input json.RawMessage, from string) string {
	id := uuid.New().String()
	now := r.now()

	r.mu.Lock()
	r.jobs[id] = &entry{
		job: Job{
			ID:          id,
			Status:      StatusQueued,
			Progress:    "Queued",
			ResumedFrom: from,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		input: input,
		done:  make(chan struct{}),
	}
	r.mu.Unlock()

	r.logger.Debug("job created", "id", id, "resumed_from", from)
	return id
}

// Update merges a progress announcement into the job. Unknown IDs are logged
// and ignored. Finished jobs are never modified.
func (r *Registry) Update(id string, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		r.logger.Warn("update for unknown job", "id", id)
		return
	}
	if e.job.Status.Terminal() {
		r.logger.Debug("ignoring update for finished job", "id", id, "status", e.job.Status)
		return
	}

	switch u.Status {
	case "":
	case StatusQueued, StatusProcessing:
		e.job.Status = u.Status
	default:
		r.logger.Warn("update cannot set terminal status", "id", id, "status", u.Status)
	}
	if u.Progress != "" {
		e.job.Progress = u.Progress
	}
	if u.Percent != nil {
		p := *u.Percent
		e.job.Percent = &p
	}
	e.job.UpdatedAt = r.now()
}

// Complete marks the job done with its result payload.
func (r *Registry) Complete(id string, result json.RawMessage) error {
	return r.finish(id, func(j *Job) {
		j.Status = StatusComplete
		j.Progress = "Complete"
		j.Percent = Percent(100)
		j.Result = result
	})
}

// Fail marks the job failed with a human-readable message.
func (r *Registry) Fail(id string, message string) error {
	return r.finish(id, func(j *Job) {
		j.Status = StatusError
		j.Error = message
	})
}

func (r *Registry) finish(id string, apply func(*Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		r.logger.Warn("finish for unknown job", "id", id)
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, e.job.Status)
	}

	apply(&e.job)
	e.job.UpdatedAt = r.now()
	close(e.done)
	return nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return snapshot(e.job), nil
}

// Input returns the request payload the job was created with.
func (r *Registry) Input(id string) (json.RawMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.input, nil
}

// Done returns a channel closed when the job reaches a terminal state.
func (r *Registry) Done(id string) (<-chan struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.done, nil
}

// Wait blocks until the job finishes or ctx is done.
func (r *Registry) Wait(ctx context.Context, id string) (Job, error) {
	done, err := r.Done(id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-done:
		return r.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// List returns snapshots of all jobs, newest first.
func (r *Registry) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, snapshot(e.job))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Counts returns the number of jobs in each status.
func (r *Registry) Counts() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[Status]int{
		StatusQueued:     0,
		StatusProcessing: 0,
		StatusComplete:   0,
		StatusError:      0,
	}
	for _, e := range r.jobs {
		counts[e.job.Status]++
	}
	return counts
}

// Sweep removes jobs created more than maxAge ago, whatever their status.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	n := 0
	for id, e := range r.jobs {
		if e.job.CreatedAt.Before(cutoff) {
			if !e.job.Status.Terminal() {
				close(e.done)
			}
			delete(r.jobs, id)
			n++
		}
	}
	if n > 0 {
		r.logger.Debug("swept jobs", "count", n)
	}
	return n
}

func snapshot(j Job) Job {
	if j.Percent != nil {
		p := *j.Percent
		j.Percent = &p
	}
	return j
}
