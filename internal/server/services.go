package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/roadmap/internal/cache"
	"github.com/jackzampolin/roadmap/internal/config"
	"github.com/jackzampolin/roadmap/internal/home"
	"github.com/jackzampolin/roadmap/internal/jobs"
	"github.com/jackzampolin/roadmap/internal/ledger"
	"github.com/jackzampolin/roadmap/internal/llmcall"
	"github.com/jackzampolin/roadmap/internal/metrics"
	"github.com/jackzampolin/roadmap/internal/pipeline"
	"github.com/jackzampolin/roadmap/internal/prompts"
	"github.com/jackzampolin/roadmap/internal/prompts/chart"
	"github.com/jackzampolin/roadmap/internal/prompts/slides"
	"github.com/jackzampolin/roadmap/internal/prompts/summary"
	"github.com/jackzampolin/roadmap/internal/providers"
	"github.com/jackzampolin/roadmap/internal/results"
	"github.com/jackzampolin/roadmap/internal/svcctx"
	"github.com/jackzampolin/roadmap/internal/sweeper"
)

const (
	storeMemory = "memory"
	storeSQLite = "sqlite"
	storeRedis  = "redis"
)

// buildServices wires every component from cfg. client, when non-nil,
// replaces the configured providers.
func buildServices(ctx context.Context, cfg *config.Config, dir *home.Dir, client providers.LLMClient, logger *slog.Logger) (*svcctx.Services, error) {
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	if client != nil {
		registry.RegisterLLM(cfg.Defaults.LLMProvider, client)
	} else {
		registry.Reload(cfg.ToProviderRegistryConfig())
	}
	if len(registry.ListLLM()) == 0 {
		logger.Warn("no LLM providers configured; jobs will fail until one is enabled")
	}

	resolver := prompts.NewResolver(logger)
	chart.RegisterPrompts(resolver)
	summary.RegisterPrompts(resolver)
	slides.RegisterPrompts(resolver)
	if dir != nil {
		n, err := resolver.LoadOverrides(dir.PromptsPath())
		if err != nil {
			return nil, fmt.Errorf("failed to load prompt overrides: %w", err)
		}
		if n > 0 {
			logger.Info("loaded prompt overrides", "count", n)
		}
	}

	jobRegistry := jobs.NewRegistry(logger)
	reportCache := cache.New(cache.Config{
		TTL:             cfg.Cache.TTL(),
		MaxEntries:      cfg.Cache.MaxEntries,
		CleanupInterval: cfg.Cache.SweepInterval(),
		Logger:          logger,
	})

	m := metrics.New(metrics.Sources{
		JobCounts: func() map[string]int {
			out := make(map[string]int)
			for status, n := range jobRegistry.Counts() {
				out[string(status)] = n
			}
			return out
		},
		CacheSize:   reportCache.Len,
		CacheMemory: func() int64 { return int64(reportCache.Stats().MemoryBytes) },
	})

	calls := llmcall.NewStore(llmcall.DefaultHistorySize)
	caller := llmcall.NewCaller(llmcall.CallerConfig{
		Client:    registry.Selector(cfg.Defaults.LLMProvider),
		Recorder:  llmcall.NewRecorder(calls, m),
		Logger:    logger,
		BaseDelay: cfg.Generation.RetryBaseDelay(),
		MaxDelay:  cfg.Generation.RetryMaxDelay(),
	})

	partials, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := openResults(ctx, cfg, dir)
	if err != nil {
		partials.Close()
		return nil, err
	}

	orch, err := pipeline.New(pipeline.Config{
		ChunkThreshold:   cfg.Generation.ChunkThreshold,
		ChunkSize:        cfg.Generation.ChunkSize,
		MaxResearchBytes: cfg.Generation.MaxResearchBytes,
		MaxAttempts:      cfg.Generation.MaxAttempts,
		JobTimeout:       cfg.Generation.JobTimeout(),
		LargeJobTimeout:  cfg.Generation.LargeJobTimeout(),
		Temperature:      cfg.Defaults.Temperature,
	}, pipeline.Deps{
		Jobs:    jobRegistry,
		Cache:   reportCache,
		Ledger:  partials,
		Results: store,
		Caller:  caller,
		Prompts: resolver,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		partials.Close()
		store.Close()
		return nil, err
	}

	return &svcctx.Services{
		Jobs:         jobRegistry,
		Cache:        reportCache,
		Ledger:       partials,
		Results:      store,
		Orchestrator: orch,
		LLMCalls:     calls,
		Prompts:      resolver,
		Metrics:      m,
		Providers:    registry,
		Home:         dir,
		Logger:       logger,
	}, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
	switch cfg.Storage.Ledger {
	case "", storeMemory:
		return ledger.NewMemory(), nil
	case storeRedis:
		url := config.ResolveEnvVars(cfg.Storage.RedisURL)
		if url == "" {
			return nil, errors.New("storage.redis_url is required for the redis ledger")
		}
		l, err := ledger.NewRedis(ctx, url, cfg.Retention.Ledger())
		if err != nil {
			return nil, fmt.Errorf("failed to open redis ledger: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Storage.Ledger)
	}
}

func openResults(ctx context.Context, cfg *config.Config, dir *home.Dir) (results.Store, error) {
	switch cfg.Storage.Results {
	case "", storeMemory:
		return results.NewMemory(cfg.Retention.Results(), cfg.Retention.SweepInterval()), nil
	case storeSQLite:
		path := cfg.Storage.SQLitePath
		if dir != nil {
			path = dir.Resolve(path)
		}
		s, err := results.OpenSQLite(ctx, path, cfg.Retention.Results())
		if err != nil {
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Storage.Results)
	}
}

// sweepTasks returns the periodic cleanup jobs for s.
func sweepTasks(s *svcctx.Services, cfg *config.Config) []sweeper.Task {
	jobsAge := cfg.Retention.Jobs()
	ledgerAge := cfg.Retention.Ledger()
	interval := cfg.Retention.SweepInterval()
	return []sweeper.Task{
		{
			Name:     "jobs",
			Interval: interval,
			Run: func(context.Context) (int, error) {
				return s.Jobs.Sweep(jobsAge), nil
			},
		},
		{
			Name:     "ledger",
			Interval: interval,
			Run: func(ctx context.Context) (int, error) {
				return s.Ledger.Sweep(ctx, ledgerAge)
			},
		},
		{
			Name:     "results",
			Interval: interval,
			Run:      s.Results.Sweep,
		},
		{
			Name:     "cache",
			Interval: cfg.Cache.SweepInterval(),
			Run: func(context.Context) (int, error) {
				return s.Cache.Sweep(), nil
			},
		},
	}
}

// closeStores releases the ledger and result store, bounded by timeout.
func closeStores(s *svcctx.Services, logger *slog.Logger, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Ledger.Close(); err != nil {
			logger.Error("ledger close error", "error", err)
		}
		if err := s.Results.Close(); err != nil {
			logger.Error("results close error", "error", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("timed out closing stores")
	}
}
