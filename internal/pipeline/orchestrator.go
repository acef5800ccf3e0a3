// Package pipeline runs generation jobs: it validates a submission, checks the
// report cache, runs the chart, summary and slides stages in dependency order
// through the retry envelope, and records the outcome in the job registry.
//
// Each stage's output is written to the partial-result ledger as soon as it
// exists. A job that fails part way can be resumed; stages already in the
// ledger are not generated again.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/roadmap/internal/cache"
	"github.com/jackzampolin/roadmap/internal/jobs"
	"github.com/jackzampolin/roadmap/internal/ledger"
	"github.com/jackzampolin/roadmap/internal/llmcall"
	"github.com/jackzampolin/roadmap/internal/metrics"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/report"
	"github.com/jackzampolin/roadmap/internal/results"
)

// Config holds orchestration limits.
type Config struct {
	ChunkThreshold   int
	ChunkSize        int
	MaxResearchBytes int
	MaxAttempts      int
	JobTimeout       time.Duration
	LargeJobTimeout  time.Duration
	Model            string
	Temperature      float64
}

// DefaultConfig returns the default orchestration limits.
func DefaultConfig() Config {
	return Config{
		ChunkThreshold:   50_000,
		ChunkSize:        40_000,
		MaxResearchBytes: 5 << 20,
		MaxAttempts:      llmcall.DefaultMaxAttempts,
		JobTimeout:       5 * time.Minute,
		LargeJobTimeout:  15 * time.Minute,
		Temperature:      0.2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = d.ChunkThreshold
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.MaxResearchBytes <= 0 {
		c.MaxResearchBytes = d.MaxResearchBytes
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.LargeJobTimeout <= 0 {
		c.LargeJobTimeout = d.LargeJobTimeout
	}
	return c
}

// Deps are the collaborators an Orchestrator drives. Jobs, Cache, Ledger,
// Caller and Prompts are required; Results and Metrics are optional.
type Deps struct {
	Jobs    *jobs.Registry
	Cache   *cache.Cache
	Ledger  ledger.Ledger
	Results results.Store
	Caller  *llmcall.Caller
	Prompts *prompts.Resolver
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Orchestrator owns the background goroutine of every running job.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	stages []Stage

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates an Orchestrator running the given stages, or DefaultStages when
// none are given.
func New(cfg Config, deps Deps, stages ...Stage) (*Orchestrator, error) {
	if deps.Jobs == nil || deps.Cache == nil || deps.Ledger == nil || deps.Caller == nil || deps.Prompts == nil {
		return nil, fmt.Errorf("pipeline: jobs, cache, ledger, caller and prompts are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(stages) == 0 {
		stages = DefaultStages()
	}

	reg := NewRegistry()
	for _, s := range stages {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	ordered, err := reg.GetOrdered()
	if err != nil {
		return nil, fmt.Errorf("failed to order stages: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		deps:    deps,
		logger:  deps.Logger,
		stages:  ordered,
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Caller returns the retry envelope jobs generate through.
func (o *Orchestrator) Caller() *llmcall.Caller {
	return o.deps.Caller
}

// Submit validates req and starts a job for it. Input errors are returned
// synchronously and never create a job.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	research, err := req.Validate(o.cfg.MaxResearchBytes)
	if err != nil {
		return "", err
	}
	input, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closing {
		return "", ErrShuttingDown
	}
	id := o.deps.Jobs.Create(input)
	o.saveInput(ctx, id, input)
	o.start(id, req, research)
	return id, nil
}

// Resume starts a new job for the request of a failed one. Stages the failed
// job completed are copied over and not generated again.
//
// A job the registry no longer knows, because the process restarted or the
// job was swept, is resumed from the ledger when a durable ledger still holds
// its request. Completed jobs clear their ledger entry, so anything found
// there did not finish.
func (o *Orchestrator) Resume(ctx context.Context, failedID string) (string, error) {
	input, partial, err := o.resumeSource(ctx, failedID)
	if err != nil {
		return "", err
	}
	var req Request
	if err := json.Unmarshal(input, &req); err != nil {
		return "", fmt.Errorf("failed to decode stored request: %w", err)
	}
	research, err := req.Validate(o.cfg.MaxResearchBytes)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closing {
		return "", ErrShuttingDown
	}

	id := o.deps.Jobs.CreateResumed(input, failedID)
	o.saveInput(ctx, id, input)
	if partial != nil {
		for phase, payload := range partial.Phases {
			if err := o.deps.Ledger.Store(ctx, id, phase, payload); err != nil {
				o.logger.Warn("failed to copy saved phase", "job_id", id, "phase", phase, "error", err)
			}
		}
		if err := o.deps.Ledger.Clear(ctx, failedID); err != nil {
			o.logger.Warn("failed to clear resumed ledger", "job_id", failedID, "error", err)
		}
	}
	o.logger.Info("resuming job", "job_id", id, "resumed_from", failedID, "saved_phases", len(partialPhases(partial)))
	o.start(id, req, research)
	return id, nil
}

// resumeSource returns the request and saved phases of a job to resume.
func (o *Orchestrator) resumeSource(ctx context.Context, failedID string) (json.RawMessage, *ledger.PartialResult, error) {
	partial, err := o.deps.Ledger.Get(ctx, failedID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load saved phases: %w", err)
	}

	job, err := o.deps.Jobs.Get(failedID)
	switch {
	case err == nil:
		if job.Status != jobs.StatusError {
			return nil, nil, fmt.Errorf("%w: %s is %s", ErrNotResumable, failedID, job.Status)
		}
		input, err := o.deps.Jobs.Input(failedID)
		if err != nil {
			return nil, nil, err
		}
		return input, partial, nil
	case errors.Is(err, jobs.ErrNotFound) && partial != nil && len(partial.Input) > 0:
		return partial.Input, partial, nil
	default:
		return nil, nil, err
	}
}

// saveInput records the request in the ledger so a later process can resume
// the job. Failures are logged; the job still runs.
func (o *Orchestrator) saveInput(ctx context.Context, id string, input json.RawMessage) {
	if err := o.deps.Ledger.SaveInput(ctx, id, input); err != nil {
		o.logger.Warn("failed to save job input", "job_id", id, "error", err)
	}
}

func partialPhases(p *ledger.PartialResult) map[ledger.Phase]json.RawMessage {
	if p == nil {
		return nil
	}
	return p.Phases
}

// start must be called with o.mu held.
func (o *Orchestrator) start(id string, req Request, research string) {
	o.deps.Metrics.RecordSubmitted()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.process(id, req, research)
	}()
}

// Shutdown stops accepting jobs and waits for running ones. If ctx expires
// first, running jobs are cancelled and ctx's error is returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		return ctx.Err()
	}
}

// cacheOptions is everything besides the prompt and research that changes
// the generated report.
type cacheOptions struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Slides      bool    `json:"slides"`
	ChunkSize   int     `json:"chunk_size"`
	Prompts     string  `json:"prompts"`
}

func (o *Orchestrator) process(id string, req Request, research string) {
	start := time.Now()
	logger := o.logger.With("job_id", id)

	updates := make(chan jobs.Update, 16)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for u := range updates {
			o.deps.Jobs.Update(id, u)
		}
	}()
	var once sync.Once
	finish := func() {
		once.Do(func() {
			close(updates)
			<-drained
		})
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			finish()
			o.fail(id, fmt.Errorf("internal error: %v", r), start)
		}
	}()

	timeout := o.cfg.JobTimeout
	if len(research) > o.cfg.ChunkThreshold {
		timeout = o.cfg.LargeJobTimeout
	}
	ctx, cancel := context.WithTimeout(o.baseCtx, timeout)
	defer cancel()

	payload, cached, err := o.generate(ctx, id, req, research, updates)
	finish()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			err = fmt.Errorf("%w: timed out after %s", err, timeout)
		}
		logger.Warn("job failed", "error", err, "elapsed", time.Since(start))
		o.fail(id, err, start)
		return
	}

	if o.deps.Results != nil {
		if err := o.deps.Results.Save(o.baseCtx, id, payload); err != nil {
			logger.Warn("failed to save result", "error", err)
		}
	}
	if err := o.deps.Jobs.Complete(id, payload); err != nil {
		logger.Warn("failed to complete job", "error", err)
		return
	}

	outcome := "complete"
	if cached {
		outcome = "cached"
	}
	o.deps.Metrics.RecordFinished(outcome, time.Since(start))
	logger.Info("job complete", "cached", cached, "elapsed", time.Since(start))
}

func (o *Orchestrator) generate(ctx context.Context, id string, req Request, research string, updates chan<- jobs.Update) (json.RawMessage, bool, error) {
	progress := func(u jobs.Update) { updates <- u }
	progress(jobs.Update{Status: jobs.StatusProcessing, Progress: "Validating input", Percent: jobs.Percent(5)})

	rc := &RunContext{
		JobID:       id,
		Request:     req,
		Research:    research,
		Model:       o.cfg.Model,
		Temp:        o.cfg.Temperature,
		Config:      o.cfg,
		Prompts:     o.deps.Prompts,
		Outputs:     make(map[string]json.RawMessage),
		caller:      o.deps.Caller,
		maxAttempts: o.cfg.MaxAttempts,
		progress:    progress,
		onRetry:     o.deps.Metrics.RecordRetry,
	}
	if req.Options.Model != "" {
		rc.Model = req.Options.Model
	}
	if req.Options.Temperature != nil {
		rc.Temp = *req.Options.Temperature
	}

	stages := make([]Stage, 0, len(o.stages))
	for _, s := range o.stages {
		if s.Enabled(req.Options) {
			stages = append(stages, s)
		}
	}

	progress(jobs.Update{Progress: "Checking cache", Percent: jobs.Percent(10)})
	key := cache.Key(req.Prompt, research, cacheOptions{
		Model:       rc.Model,
		Temperature: rc.Temp,
		Slides:      slidesStage{}.Enabled(req.Options),
		ChunkSize:   o.cfg.ChunkSize,
		Prompts:     o.deps.Prompts.Fingerprint(),
	})
	if payload, ok := o.deps.Cache.Get(key); ok {
		o.deps.Metrics.RecordCacheLookup(true)
		o.clearLedger(id)
		return payload, true, nil
	}
	o.deps.Metrics.RecordCacheLookup(false)

	saved, err := o.deps.Ledger.Get(ctx, id)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		o.logger.Warn("failed to read ledger, regenerating all phases", "job_id", id, "error", err)
	}

	for _, s := range stages {
		name := s.Name()
		if saved != nil && saved.Has(ledger.Phase(name)) {
			rc.Outputs[name] = saved.Phases[ledger.Phase(name)]
			progress(jobs.Update{Progress: "Using saved " + name})
			continue
		}

		phaseStart := time.Now()
		out, err := s.Run(ctx, rc)
		if err != nil {
			return nil, false, &phaseError{phase: name, err: err}
		}
		o.deps.Metrics.RecordPhase(name, time.Since(phaseStart))
		rc.Outputs[name] = out

		if err := o.deps.Ledger.Store(ctx, id, ledger.Phase(name), out); err != nil {
			o.logger.Warn("failed to save phase", "job_id", id, "phase", name, "error", err)
		}
	}

	progress(jobs.Update{Progress: "Assembling report", Percent: jobs.Percent(95)})
	payload, err := assemble(rc.Outputs)
	if err != nil {
		return nil, false, err
	}

	o.deps.Cache.Set(key, payload)
	o.clearLedger(id)
	return payload, false, nil
}

func (o *Orchestrator) clearLedger(id string) {
	if err := o.deps.Ledger.Clear(o.baseCtx, id); err != nil {
		o.logger.Warn("failed to clear ledger", "job_id", id, "error", err)
	}
}

func assemble(outputs map[string]json.RawMessage) (json.RawMessage, error) {
	var r report.Report
	fields := []struct {
		phase ledger.Phase
		dst   any
	}{
		{ledger.PhaseChart, &r.Chart},
		{ledger.PhaseSummary, &r.Summary},
		{ledger.PhaseSlides, &r.Slides},
	}
	for _, f := range fields {
		raw, ok := outputs[string(f.phase)]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.phase, err)
		}
	}
	if r.Chart == nil {
		return nil, fmt.Errorf("failed to assemble report: %w", report.ErrNothingToMerge)
	}
	return r.Marshal()
}

func (o *Orchestrator) fail(id string, err error, start time.Time) {
	if ferr := o.deps.Jobs.Fail(id, Describe(err)); ferr != nil {
		o.logger.Warn("failed to record job failure", "job_id", id, "error", ferr)
		return
	}
	o.deps.Metrics.RecordFinished("error", time.Since(start))
}
