package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jackzampolin/roadmap/internal/llmcall"
)

func TestObserveCall(t *testing.T) {
	m := New(Sources{})

	m.ObserveCall(llmcall.Call{Provider: "openrouter", Success: true, LatencyMs: 1500, InputTokens: 100, OutputTokens: 40, CostUSD: 0.002})
	m.ObserveCall(llmcall.Call{Provider: "openrouter", Success: false})

	if got := testutil.ToFloat64(m.LLMCalls.WithLabelValues("openrouter", "success")); got != 1 {
		t.Errorf("success calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMCalls.WithLabelValues("openrouter", "error")); got != 1 {
		t.Errorf("error calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMTokens.WithLabelValues("openrouter", "prompt")); got != 100 {
		t.Errorf("prompt tokens = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.LLMCostUSD.WithLabelValues("openrouter")); got != 0.002 {
		t.Errorf("cost = %v, want 0.002", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCall(llmcall.Call{})
	m.RecordSubmitted()
	m.RecordFinished("complete", time.Second)
	m.RecordPhase("chart", time.Second)
	m.RecordRetry("chart")
	m.RecordCacheLookup(true)
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New(Sources{
		JobCounts: func() map[string]int { return map[string]int{"processing": 2} },
		CacheSize: func() int { return 7 },
	})
	m.RecordCacheLookup(true)
	m.RecordFinished("cached", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`roadmap_jobs{status="processing"} 2`,
		`roadmap_cache_entries 7`,
		`roadmap_cache_lookups_total{result="hit"} 1`,
		`roadmap_jobs_finished_total{outcome="cached"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
