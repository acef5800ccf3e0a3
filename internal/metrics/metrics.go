// Package metrics exposes Prometheus metrics for jobs, generation calls and
// the result cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roadmap"

// Sources supplies point-in-time values that are read at scrape time.
// Any field may be nil.
type Sources struct {
	JobCounts   func() map[string]int
	CacheSize   func() int
	CacheMemory func() int64
}

// Metrics holds every collector, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	JobsSubmitted prometheus.Counter
	JobsFinished  *prometheus.CounterVec
	JobDuration   prometheus.Histogram
	PhaseDuration *prometheus.HistogramVec

	LLMCalls     *prometheus.CounterVec
	LLMLatency   *prometheus.HistogramVec
	LLMTokens    *prometheus.CounterVec
	LLMCostUSD   *prometheus.CounterVec
	LLMRetries   *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
}

// New creates the collectors and registers them, plus Go runtime collectors.
func New(src Sources) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		JobsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of accepted generation jobs",
		}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Finished jobs by outcome (complete, error, cached)",
		}, []string{"outcome"}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each generation phase",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"phase"}),

		LLMCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Generation service attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Generation service attempt latency",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		LLMTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by direction (prompt, completion)",
		}, []string{"provider", "direction"}),
		LLMCostUSD: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Reported generation cost in USD",
		}, []string{"provider"}),
		LLMRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_retries_total",
			Help:      "Retried generation attempts by phase",
		}, []string{"phase"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Report cache lookups by result (hit, miss)",
		}, []string{"result"}),
	}

	if src.JobCounts != nil {
		for _, status := range []string{"queued", "processing", "complete", "error"} {
			status := status
			f.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "jobs",
				Help:        "Jobs currently held in the registry by status",
				ConstLabels: prometheus.Labels{"status": status},
			}, func() float64 {
				return float64(src.JobCounts()[status])
			})
		}
	}
	if src.CacheSize != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries in the report cache",
		}, func() float64 { return float64(src.CacheSize()) })
	}
	if src.CacheMemory != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_memory_bytes",
			Help:      "Estimated payload bytes held by the report cache",
		}, func() float64 { return float64(src.CacheMemory()) })
	}

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
