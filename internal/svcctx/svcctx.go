// Package svcctx carries the wired services through request contexts.
// It is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/roadmap/internal/cache"
	"github.com/jackzampolin/roadmap/internal/config"
	"github.com/jackzampolin/roadmap/internal/home"
	"github.com/jackzampolin/roadmap/internal/jobs"
	"github.com/jackzampolin/roadmap/internal/ledger"
	"github.com/jackzampolin/roadmap/internal/llmcall"
	"github.com/jackzampolin/roadmap/internal/metrics"
	"github.com/jackzampolin/roadmap/internal/pipeline"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/providers"
	"github.com/jackzampolin/roadmap/internal/results"
)

// Services holds all core services that flow through context.
type Services struct {
	Jobs         *jobs.Registry
	Cache        *cache.Cache
	Ledger       ledger.Ledger
	Results      results.Store
	Orchestrator *pipeline.Orchestrator
	LLMCalls     *llmcall.Store
	Prompts      *prompts.Resolver
	Metrics      *metrics.Metrics
	Providers    *providers.Registry
	ConfigMgr    *config.Manager
	Home         *home.Dir
	Logger       *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// JobsFrom extracts the job registry from context.
func JobsFrom(ctx context.Context) *jobs.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Jobs
	}
	return nil
}

// CacheFrom extracts the report cache from context.
func CacheFrom(ctx context.Context) *cache.Cache {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cache
	}
	return nil
}

// ResultsFrom extracts the result store from context.
func ResultsFrom(ctx context.Context) results.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Results
	}
	return nil
}

// OrchestratorFrom extracts the job orchestrator from context.
func OrchestratorFrom(ctx context.Context) *pipeline.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// LLMCallsFrom extracts the LLM call history from context.
func LLMCallsFrom(ctx context.Context) *llmcall.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.LLMCalls
	}
	return nil
}

// PromptsFrom extracts the prompt resolver from context.
func PromptsFrom(ctx context.Context) *prompts.Resolver {
	if s := ServicesFrom(ctx); s != nil {
		return s.Prompts
	}
	return nil
}

// ProvidersFrom extracts the provider registry from context.
func ProvidersFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Providers
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
