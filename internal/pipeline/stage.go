package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/roadmap/internal/jobs"
	"github.com/jackzampolin/roadmap/internal/llmcall"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/providers"
)

// Stage is one generation phase. Each stage turns the research (and the
// output of the stages it depends on) into a structured payload.
type Stage interface {
	// Name doubles as the ledger phase key.
	Name() string
	Dependencies() []string
	Description() string

	// Enabled reports whether the stage runs for these request options.
	Enabled(opts Options) bool

	Run(ctx context.Context, rc *RunContext) (json.RawMessage, error)
}

// RunContext is the per-job state handed to each stage.
type RunContext struct {
	JobID    string
	Request  Request
	Research string
	Model    string
	Temp     float64
	Config   Config
	Prompts  *prompts.Resolver

	// Outputs holds the payload of every stage that has already finished.
	Outputs map[string]json.RawMessage

	caller      *llmcall.Caller
	maxAttempts int
	progress    func(jobs.Update)
	onRetry     func(stage string)
}

// Progress announces a processing step.
func (rc *RunContext) Progress(message string, percent int) {
	if rc.progress == nil {
		return
	}
	rc.progress(jobs.Update{
		Status:   jobs.StatusProcessing,
		Progress: message,
		Percent:  jobs.Percent(percent),
	})
}

// Generate sends req through the retry envelope. label names the step in
// retry progress messages, e.g. "chart part 2 of 3".
func (rc *RunContext) Generate(ctx context.Context, stage, label string, req *providers.ChatRequest) (json.RawMessage, error) {
	req.JobID = rc.JobID
	return rc.caller.Call(ctx, req, rc.maxAttempts, func(ev llmcall.RetryEvent) {
		if rc.onRetry != nil {
			rc.onRetry(stage)
		}
		if rc.progress != nil {
			rc.progress(jobs.Update{
				Progress: fmt.Sprintf("Retrying %s (attempt %d of %d) in %s",
					label, ev.Attempt+1, ev.MaxAttempts, ev.Delay),
			})
		}
	})
}
