package metrics

import (
	"time"

	"github.com/jackzampolin/roadmap/internal/llmcall"
)

// All Record methods are safe on a nil *Metrics so callers need no guards.

// ObserveCall records one generation attempt. It satisfies llmcall.Observer.
func (m *Metrics) ObserveCall(call llmcall.Call) {
	if m == nil {
		return
	}
	provider := call.Provider
	if provider == "" {
		provider = "unknown"
	}
	outcome := "success"
	if !call.Success {
		outcome = "error"
	}
	m.LLMCalls.WithLabelValues(provider, outcome).Inc()
	m.LLMLatency.WithLabelValues(provider).Observe(float64(call.LatencyMs) / 1000)
	m.LLMTokens.WithLabelValues(provider, "prompt").Add(float64(call.InputTokens))
	m.LLMTokens.WithLabelValues(provider, "completion").Add(float64(call.OutputTokens))
	if call.CostUSD > 0 {
		m.LLMCostUSD.WithLabelValues(provider).Add(call.CostUSD)
	}
}

// RecordSubmitted counts an accepted job.
func (m *Metrics) RecordSubmitted() {
	if m == nil {
		return
	}
	m.JobsSubmitted.Inc()
}

// RecordFinished counts a job reaching a terminal state.
func (m *Metrics) RecordFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(outcome).Inc()
	m.JobDuration.Observe(elapsed.Seconds())
}

// RecordPhase observes the duration of one phase.
func (m *Metrics) RecordPhase(phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// RecordRetry counts a retried attempt within phase.
func (m *Metrics) RecordRetry(phase string) {
	if m == nil {
		return
	}
	m.LLMRetries.WithLabelValues(phase).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

var _ llmcall.Observer = (*Metrics)(nil)
