// Package server runs the roadmap HTTP API and its background sweeper.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/roadmap/internal/api"
	"github.com/jackzampolin/roadmap/internal/config"
	"github.com/jackzampolin/roadmap/internal/home"
	"github.com/jackzampolin/roadmap/internal/providers"
	"github.com/jackzampolin/roadmap/internal/server/endpoints"
	"github.com/jackzampolin/roadmap/internal/svcctx"
	"github.com/jackzampolin/roadmap/internal/sweeper"
)

const shutdownTimeout = 30 * time.Second

// Server is the roadmap HTTP server. It owns every service built from
// config and tears them down on shutdown.
type Server struct {
	httpServer *http.Server
	services   *svcctx.Services
	sweeper    *sweeper.Sweeper
	configMgr  *config.Manager
	logger     *slog.Logger

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support.
	// When nil, defaults are used.
	ConfigManager *config.Manager
	// Home is the roadmap home directory. Optional.
	Home *home.Dir
	// Client replaces the configured LLM providers, for tests.
	Client providers.LLMClient
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New builds every service and the HTTP handler. Nothing listens until Start.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
	}

	services, err := buildServices(ctx, appCfg, cfg.Home, cfg.Client, cfg.Logger)
	if err != nil {
		return nil, err
	}
	services.ConfigMgr = cfg.ConfigManager

	sw, err := sweeper.New(cfg.Logger, sweepTasks(services, appCfg)...)
	if err != nil {
		closeStores(services, cfg.Logger, shutdownTimeout)
		return nil, fmt.Errorf("failed to create sweeper: %w", err)
	}

	s := &Server{
		services:  services,
		sweeper:   sw,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	if cfg.ConfigManager != nil && cfg.Client == nil {
		cfg.ConfigManager.OnChange(s.reload)
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the routed HTTP handler with services attached to every
// request context.
func (s *Server) Handler() http.Handler {
	reg := api.NewRegistry()
	reg.Register(endpoints.All()...)

	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, s.requireInit)
	return s.withServices(mux)
}

// Services returns the wired services.
func (s *Server) Services() *svcctx.Services {
	return s.services
}

// Start serves HTTP and runs the sweeper until ctx is cancelled or either
// fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer s.setNotRunning()

	if s.configMgr != nil && s.configMgr.File() != "" {
		s.configMgr.WatchConfig()
		s.logger.Info("watching config for changes", "file", s.configMgr.File())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutdown signal received")
		return s.shutdown()
	})

	return g.Wait()
}

// shutdown stops accepting requests, waits for running jobs, and closes
// the stores.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := s.services.Orchestrator.Shutdown(ctx); err != nil {
		s.logger.Warn("running jobs cancelled at shutdown", "error", err)
	}
	closeStores(s.services, s.logger, 5*time.Second)

	s.logger.Info("server stopped")
	return nil
}

// reload applies a changed config file. Provider settings and prompt
// overrides take effect for the next call; storage and limits need a restart.
func (s *Server) reload(c *config.Config) {
	s.services.Providers.Reload(c.ToProviderRegistryConfig())
	if sel, ok := s.services.Orchestrator.Caller().Client().(*providers.Selector); ok && sel.Name() != c.Defaults.LLMProvider {
		sel.SetProvider(c.Defaults.LLMProvider)
		s.logger.Info("default provider changed", "provider", c.Defaults.LLMProvider)
	}
	s.logger.Info("provider registry reloaded from config", "providers", s.services.Providers.ListLLM())

	if s.services.Home == nil {
		return
	}
	n, err := s.services.Prompts.LoadOverrides(s.services.Home.PromptsPath())
	if err != nil {
		s.logger.Warn("failed to reload prompt overrides", "error", err)
		return
	}
	s.logger.Info("prompt overrides reloaded", "count", n)
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit returns 503 until the orchestrator is wired.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil || s.services.Orchestrator == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
