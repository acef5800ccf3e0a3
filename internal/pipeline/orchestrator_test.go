package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/roadmap/internal/cache"
	"github.com/jackzampolin/roadmap/internal/jobs"
	"github.com/jackzampolin/roadmap/internal/ledger"
	"github.com/jackzampolin/roadmap/internal/llmcall"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/prompts/chart"
	"github.com/jackzampolin/roadmap/internal/prompts/slides"
	"github.com/jackzampolin/roadmap/internal/prompts/summary"
	"github.com/jackzampolin/roadmap/internal/providers"
	"github.com/jackzampolin/roadmap/internal/report"
	"github.com/jackzampolin/roadmap/internal/results"
)

type fixture struct {
	orch    *Orchestrator
	jobs    *jobs.Registry
	cache   *cache.Cache
	ledger  *ledger.Memory
	results *results.Memory
	mock    *providers.MockClient
	calls   *llmcall.Store
}

func newFixture(t *testing.T, cfg Config, respond func(*providers.ChatRequest) (string, error), stages ...Stage) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	mock := providers.NewMockClient()
	mock.Respond = respond
	if respond == nil {
		mock.Respond = defaultResponder
	}

	resolver := prompts.NewResolver(logger)
	chart.RegisterPrompts(resolver)
	summary.RegisterPrompts(resolver)
	slides.RegisterPrompts(resolver)

	calls := llmcall.NewStore(100)
	f := &fixture{
		jobs:    jobs.NewRegistry(logger),
		cache:   cache.New(cache.Config{Logger: logger}),
		ledger:  ledger.NewMemory(),
		results: results.NewMemory(time.Hour, 0),
		mock:    mock,
		calls:   calls,
	}
	orch, err := New(cfg, Deps{
		Jobs:    f.jobs,
		Cache:   f.cache,
		Ledger:  f.ledger,
		Results: f.results,
		Caller: llmcall.NewCaller(llmcall.CallerConfig{
			Client:    mock,
			Recorder:  llmcall.NewRecorder(calls),
			Logger:    logger,
			BaseDelay: time.Millisecond,
			MaxDelay:  time.Millisecond,
		}),
		Prompts: resolver,
		Logger:  logger,
	}, stages...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.orch = orch
	t.Cleanup(func() { orch.Shutdown(context.Background()) })
	return f
}

func (f *fixture) wait(t *testing.T, id string) jobs.Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	job, err := f.jobs.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait(%s) error = %v", id, err)
	}
	return job
}

// chunkIndex extracts N from a chart prompt key "phases.chart.user#N".
func chunkIndex(req *providers.ChatRequest) int {
	_, idx, _ := strings.Cut(req.PromptKey, "#")
	var n int
	fmt.Sscanf(idx, "%d", &n)
	return n
}

func chartFor(i int) string {
	return fmt.Sprintf(`{
		"title": "Roadmap",
		"timeColumns": ["Q%d", "Q%d"],
		"data": [
			{"title": "Team", "entity": "", "isSwimlane": true, "bar": null},
			{"title": "Task %d", "entity": "Team", "isSwimlane": false, "bar": {"startCol": 0, "endCol": 1, "color": "blue"}}
		],
		"legend": [{"color": "blue", "label": "Planned"}]
	}`, i+1, i+2, i)
}

const (
	summaryJSON = `{"title": "Summary", "paragraphs": ["We ship."], "keyPoints": ["Ship"]}`
	slidesJSON  = `{"slides": [{"title": "Overview", "bullets": ["Ship"]}]}`
)

func defaultResponder(req *providers.ChatRequest) (string, error) {
	switch {
	case strings.HasPrefix(req.PromptKey, chart.UserPromptKey):
		return chartFor(chunkIndex(req)), nil
	case req.PromptKey == summary.UserPromptKey:
		return summaryJSON, nil
	case req.PromptKey == slides.UserPromptKey:
		return slidesJSON, nil
	}
	return "", fmt.Errorf("unexpected prompt key %q", req.PromptKey)
}

func research(n int) string {
	var b strings.Builder
	for b.Len() < n {
		fmt.Fprintf(&b, "Milestone %d lands this quarter. ", b.Len())
	}
	return b.String()[:n]
}

func simpleRequest() Request {
	return Request{
		Prompt:    "Build a product roadmap",
		Documents: []Document{{Name: "notes.md", Text: "We launch the beta in Q1 and GA in Q2."}},
	}
}

func TestOrchestrator_SmallInput(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	id, err := f.orch.Submit(context.Background(), simpleRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	job := f.wait(t, id)
	if job.Status != jobs.StatusComplete {
		t.Fatalf("Status = %s, error = %q", job.Status, job.Error)
	}
	if job.Percent == nil || *job.Percent != 100 {
		t.Errorf("Percent = %v, want 100", job.Percent)
	}

	var rep report.Report
	if err := json.Unmarshal(job.Result, &rep); err != nil {
		t.Fatalf("result is not a report: %v", err)
	}
	if rep.Chart == nil || rep.Summary == nil || rep.Slides == nil {
		t.Fatalf("report incomplete: %s", job.Result)
	}

	reqs := f.mock.Requests()
	wantKeys := []string{chart.UserPromptKey + "#0", summary.UserPromptKey, slides.UserPromptKey}
	if len(reqs) != len(wantKeys) {
		t.Fatalf("got %d provider calls, want %d", len(reqs), len(wantKeys))
	}
	for i, want := range wantKeys {
		if reqs[i].PromptKey != want {
			t.Errorf("call %d = %s, want %s", i, reqs[i].PromptKey, want)
		}
		if reqs[i].JobID != id {
			t.Errorf("call %d JobID = %s", i, reqs[i].JobID)
		}
	}

	stored, err := f.results.Get(context.Background(), id)
	if err != nil || string(stored) != string(job.Result) {
		t.Errorf("result store = %s, %v", stored, err)
	}
	if _, err := f.ledger.Get(context.Background(), id); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("ledger not cleared after success: %v", err)
	}
	if n := len(f.calls.List(llmcall.QueryFilter{JobID: id})); n != 3 {
		t.Errorf("recorded %d calls, want 3", n)
	}
}

func TestOrchestrator_ChunkedInput(t *testing.T) {
	f := newFixture(t, Config{ChunkThreshold: 50_000, ChunkSize: 40_000}, nil)

	req := Request{
		Prompt:    "Roadmap",
		Documents: []Document{{Text: research(85_000)}},
	}
	id, err := f.orch.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	job := f.wait(t, id)
	if job.Status != jobs.StatusComplete {
		t.Fatalf("Status = %s, error = %q", job.Status, job.Error)
	}

	var chartCalls []string
	for _, r := range f.mock.Requests() {
		if strings.HasPrefix(r.PromptKey, chart.UserPromptKey) {
			chartCalls = append(chartCalls, r.PromptKey)
		}
	}
	want := []string{chart.UserPromptKey + "#0", chart.UserPromptKey + "#1", chart.UserPromptKey + "#2"}
	if strings.Join(chartCalls, ",") != strings.Join(want, ",") {
		t.Fatalf("chart calls = %v, want %v", chartCalls, want)
	}

	var rep report.Report
	json.Unmarshal(job.Result, &rep)
	if got := strings.Join(rep.Chart.TimeColumns, ","); got != "Q1,Q2,Q3,Q4" {
		t.Errorf("TimeColumns = %s, want Q1,Q2,Q3,Q4", got)
	}
	if len(rep.Chart.Data) != 4 {
		t.Fatalf("merged %d rows, want swimlane + 3 tasks: %+v", len(rep.Chart.Data), rep.Chart.Data)
	}
	task1 := rep.Chart.Data[2]
	if task1.Title != "Task 1" || task1.Bar == nil || task1.Bar.StartCol != 1 || task1.Bar.EndCol != 2 {
		t.Errorf("Task 1 not remapped onto merged axis: %+v %+v", task1, task1.Bar)
	}
	if len(rep.Chart.Legend) != 1 {
		t.Errorf("Legend = %+v", rep.Chart.Legend)
	}
}

func TestOrchestrator_IdenticalResubmissionHitsCache(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	ctx := context.Background()

	first, _ := f.orch.Submit(ctx, simpleRequest())
	firstJob := f.wait(t, first)
	callsAfterFirst := f.mock.RequestCount()

	second, err := f.orch.Submit(ctx, simpleRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	secondJob := f.wait(t, second)

	if secondJob.Status != jobs.StatusComplete {
		t.Fatalf("Status = %s", secondJob.Status)
	}
	if f.mock.RequestCount() != callsAfterFirst {
		t.Errorf("cache hit made %d provider calls", f.mock.RequestCount()-callsAfterFirst)
	}
	if string(secondJob.Result) != string(firstJob.Result) {
		t.Error("cached result differs from original")
	}
	if stats := f.cache.Stats(); stats.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", stats.Hits)
	}

	t.Run("different options miss", func(t *testing.T) {
		req := simpleRequest()
		req.Options.Model = "other-model"
		id, _ := f.orch.Submit(ctx, req)
		f.wait(t, id)
		if f.mock.RequestCount() == callsAfterFirst {
			t.Error("changed model should not hit the cache")
		}
	})
}

func TestOrchestrator_InvalidRequests(t *testing.T) {
	f := newFixture(t, Config{MaxResearchBytes: 100}, nil)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"missing prompt", Request{Documents: []Document{{Text: "x"}}}, ErrInvalidRequest},
		{"no documents", Request{Prompt: "p"}, ErrInvalidRequest},
		{"blank documents", Request{Prompt: "p", Documents: []Document{{Name: "a", Text: "  \n"}}}, ErrInvalidRequest},
		{"bad temperature", Request{Prompt: "p", Documents: []Document{{Text: "x"}}, Options: Options{Temperature: ptr(3.0)}}, ErrInvalidRequest},
		{"too large", Request{Prompt: "p", Documents: []Document{{Text: research(101)}}}, ErrResearchTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.orch.Submit(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := len(f.jobs.List()); n != 0 {
		t.Errorf("input errors created %d jobs", n)
	}
}

func TestOrchestrator_FailureThenResume(t *testing.T) {
	var slidesDown atomic.Bool
	slidesDown.Store(true)
	respond := func(req *providers.ChatRequest) (string, error) {
		if req.PromptKey == slides.UserPromptKey && slidesDown.Load() {
			return "", &providers.APIError{Provider: "mock", StatusCode: 400, Message: "bad request"}
		}
		return defaultResponder(req)
	}
	f := newFixture(t, Config{}, respond)
	ctx := context.Background()

	id, _ := f.orch.Submit(ctx, simpleRequest())
	failed := f.wait(t, id)
	if failed.Status != jobs.StatusError {
		t.Fatalf("Status = %s, want error", failed.Status)
	}
	if !strings.HasPrefix(failed.Error, "Slides generation failed") {
		t.Errorf("Error = %q", failed.Error)
	}
	if failed.Result != nil {
		t.Errorf("failed job has result %s", failed.Result)
	}

	partial, err := f.ledger.Get(ctx, id)
	if err != nil {
		t.Fatalf("ledger.Get() error = %v", err)
	}
	if !partial.Has(ledger.PhaseChart) || !partial.Has(ledger.PhaseSummary) || partial.Has(ledger.PhaseSlides) {
		t.Errorf("ledger phases = %v", partial.Phases)
	}

	slidesDown.Store(false)
	before := f.mock.RequestCount()

	resumed, err := f.orch.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	job := f.wait(t, resumed)
	if job.Status != jobs.StatusComplete {
		t.Fatalf("resumed Status = %s, error = %q", job.Status, job.Error)
	}
	if job.ResumedFrom != id {
		t.Errorf("ResumedFrom = %q, want %q", job.ResumedFrom, id)
	}
	if got := f.mock.RequestCount() - before; got != 1 {
		t.Errorf("resume made %d calls, want only the slides call", got)
	}

	t.Run("only failed jobs resume", func(t *testing.T) {
		if _, err := f.orch.Resume(ctx, resumed); !errors.Is(err, ErrNotResumable) {
			t.Errorf("Resume(complete) error = %v, want ErrNotResumable", err)
		}
		if _, err := f.orch.Resume(ctx, "missing"); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("Resume(missing) error = %v, want jobs.ErrNotFound", err)
		}
	})
}

func TestOrchestrator_ResumeAfterRestart(t *testing.T) {
	var summaryDown atomic.Bool
	summaryDown.Store(true)
	respond := func(req *providers.ChatRequest) (string, error) {
		if req.PromptKey == summary.UserPromptKey && summaryDown.Load() {
			return "", &providers.APIError{Provider: "mock", StatusCode: 400, Message: "bad request"}
		}
		return defaultResponder(req)
	}
	f := newFixture(t, Config{}, respond)
	ctx := context.Background()

	id, _ := f.orch.Submit(ctx, simpleRequest())
	if job := f.wait(t, id); job.Status != jobs.StatusError {
		t.Fatalf("Status = %s, want error", job.Status)
	}
	partial, err := f.ledger.Get(ctx, id)
	if err != nil || len(partial.Input) == 0 || !partial.Has(ledger.PhaseChart) {
		t.Fatalf("ledger after failure = %+v, %v", partial, err)
	}

	// A new process: empty registry and cache, same ledger.
	logger := slog.New(slog.DiscardHandler)
	restarted := jobs.NewRegistry(logger)
	orch, err := New(Config{}, Deps{
		Jobs:    restarted,
		Cache:   cache.New(cache.Config{Logger: logger}),
		Ledger:  f.ledger,
		Caller:  f.orch.Caller(),
		Prompts: f.orch.deps.Prompts,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { orch.Shutdown(context.Background()) })

	summaryDown.Store(false)
	before := f.mock.RequestCount()

	resumed, err := orch.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() after restart error = %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	job, err := restarted.Wait(waitCtx, resumed)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if job.Status != jobs.StatusComplete {
		t.Fatalf("resumed Status = %s, error = %q", job.Status, job.Error)
	}
	if job.ResumedFrom != id {
		t.Errorf("ResumedFrom = %q, want %q", job.ResumedFrom, id)
	}
	if got := f.mock.RequestCount() - before; got != 2 {
		t.Errorf("resume made %d calls, want summary and slides only", got)
	}
	if _, err := f.ledger.Get(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("old ledger entry not cleared: %v", err)
	}

	t.Run("nothing saved", func(t *testing.T) {
		if _, err := orch.Resume(ctx, id); !errors.Is(err, jobs.ErrNotFound) {
			t.Errorf("second Resume() error = %v, want jobs.ErrNotFound", err)
		}
	})
}

func TestOrchestrator_RetriesTransientFailure(t *testing.T) {
	var chartCalls atomic.Int32
	respond := func(req *providers.ChatRequest) (string, error) {
		if strings.HasPrefix(req.PromptKey, chart.UserPromptKey) && chartCalls.Add(1) == 1 {
			return "", &providers.APIError{Provider: "mock", StatusCode: 503, Message: "overloaded", Retryable: true}
		}
		return defaultResponder(req)
	}
	f := newFixture(t, Config{}, respond)

	id, _ := f.orch.Submit(context.Background(), simpleRequest())
	job := f.wait(t, id)
	if job.Status != jobs.StatusComplete {
		t.Fatalf("Status = %s, error = %q", job.Status, job.Error)
	}
	if chartCalls.Load() != 2 {
		t.Errorf("chart calls = %d, want 2", chartCalls.Load())
	}
	failures := false
	for _, c := range f.calls.List(llmcall.QueryFilter{JobID: id, Success: ptr(false)}) {
		if c.Attempt == 1 {
			failures = true
		}
	}
	if !failures {
		t.Error("failed first attempt was not recorded")
	}
}

func TestOrchestrator_TerminalFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantMsg   string
		wantCalls int64
	}{
		{"content filtered", providers.ErrContentFiltered, "declined this content", 1},
		{"retries exhausted", &providers.APIError{Provider: "mock", StatusCode: 502, Message: "bad gateway", Retryable: true}, "kept failing", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{MaxAttempts: 3}, func(*providers.ChatRequest) (string, error) {
				return "", tt.err
			})
			id, _ := f.orch.Submit(context.Background(), simpleRequest())
			job := f.wait(t, id)
			if job.Status != jobs.StatusError {
				t.Fatalf("Status = %s", job.Status)
			}
			if !strings.Contains(job.Error, tt.wantMsg) || !strings.HasPrefix(job.Error, "Chart generation failed") {
				t.Errorf("Error = %q, want mention of %q", job.Error, tt.wantMsg)
			}
			if got := f.mock.RequestCount(); got != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	f := newFixture(t, Config{JobTimeout: 20 * time.Millisecond}, nil)
	f.mock.Latency = time.Second

	id, _ := f.orch.Submit(context.Background(), simpleRequest())
	job := f.wait(t, id)
	if job.Status != jobs.StatusError || !strings.Contains(job.Error, "ran out of time") {
		t.Errorf("job = %s %q", job.Status, job.Error)
	}
}

func TestOrchestrator_SlidesDisabled(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	req := simpleRequest()
	req.Options.Slides = ptr(false)

	id, _ := f.orch.Submit(context.Background(), req)
	job := f.wait(t, id)
	if job.Status != jobs.StatusComplete {
		t.Fatalf("Status = %s", job.Status)
	}
	if f.mock.RequestCount() != 2 {
		t.Errorf("provider calls = %d, want 2", f.mock.RequestCount())
	}
	if strings.Contains(string(job.Result), `"slides"`) {
		t.Errorf("result has slides: %s", job.Result)
	}
}

func TestOrchestrator_PanicFailsJob(t *testing.T) {
	boom := newFakeStage("chart")
	boom.run = func(context.Context, *RunContext) (json.RawMessage, error) {
		panic("stage exploded")
	}
	f := newFixture(t, Config{}, nil, boom)

	id, _ := f.orch.Submit(context.Background(), simpleRequest())
	job := f.wait(t, id)
	if job.Status != jobs.StatusError || !strings.Contains(job.Error, "stage exploded") {
		t.Errorf("job = %s %q", job.Status, job.Error)
	}
}

func TestOrchestrator_ProgressIsMonotonicToComplete(t *testing.T) {
	release := make(chan struct{})
	respond := func(req *providers.ChatRequest) (string, error) {
		if req.PromptKey == summary.UserPromptKey {
			<-release
		}
		return defaultResponder(req)
	}
	f := newFixture(t, Config{}, respond)

	id, _ := f.orch.Submit(context.Background(), simpleRequest())

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, _ := f.jobs.Get(id)
		if job.Progress == "Generating summary" {
			if job.Status != jobs.StatusProcessing || job.Percent == nil || *job.Percent != 70 {
				t.Errorf("mid-flight job = %+v", job)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never reached summary phase: %+v", job)
		}
		time.Sleep(time.Millisecond)
	}
	close(release)

	if job := f.wait(t, id); job.Status != jobs.StatusComplete {
		t.Errorf("Status = %s", job.Status)
	}
}

func TestOrchestrator_Shutdown(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	if err := f.orch.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := f.orch.Submit(context.Background(), simpleRequest()); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Submit() after Shutdown error = %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
