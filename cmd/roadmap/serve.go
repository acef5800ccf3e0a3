package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/roadmap/internal/config"
	"github.com/jackzampolin/roadmap/internal/home"
	"github.com/jackzampolin/roadmap/internal/server"
)

var (
	serveHost string
	servePort string
	logFormat string
	logLevel  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the roadmap server",
	Long: `Start the roadmap HTTP server.

Configuration is read from --config, ./config.yaml or <home>/config.yaml,
and reloaded when the file changes. Prompt overrides are read from
<home>/prompts.

Examples:
  roadmap serve                    # Start on default port 8080
  roadmap serve --port 3000        # Start on custom port
  roadmap serve --host 0.0.0.0     # Bind to all interfaces
  roadmap serve --log-format json  # Structured logs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(logFormat, logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfgMgr.OnError(func(err error) {
			logger.Error("config reload failed", "error", err)
		})
		if f := cfgMgr.File(); f != "" {
			logger.Info("loaded config", "file", f)
		} else {
			logger.Info("no config file found, using defaults", "hint", "roadmap config init")
		}

		srv, err := server.New(cmd.Context(), server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown.
		return srv.Start(cmd.Context())
	},
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
}
