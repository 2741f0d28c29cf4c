// Package main is the entry point for the CRM gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/onestopcrm/crmgate/internal/config"
	"github.com/onestopcrm/crmgate/internal/gateway"
	"github.com/onestopcrm/crmgate/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)

	metrics := observability.NewMetrics("crmgate")
	build := func(c *config.Config) (*gateway.Gateway, error) {
		return gateway.New(c,
			gateway.WithLogger(logger),
			gateway.WithMetrics(metrics),
		)
	}

	gw, err := build(cfg)
	if err != nil {
		logger.Fatal("failed to assemble gateway", observability.Error(err))
	}

	handler := newSwappableHandler(gw.Handler())

	watcher, err := config.NewWatcher(flags.configPath, func(next *config.Config) {
		rebuilt, buildErr := build(next)
		if buildErr != nil {
			logger.Error("rejecting reloaded configuration", observability.Error(buildErr))
			return
		}
		handler.Swap(rebuilt.Handler())
		logger.Info("gateway rebuilt from reloaded configuration")
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Fatal("failed to create configuration watcher", observability.Error(err))
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if err := watcher.Start(watchCtx); err != nil {
		logger.Fatal("failed to start configuration watcher", observability.Error(err))
	}
	defer func() { _ = watcher.Stop() }()

	runServer(cfg, handler, logger)
}

// swappableHandler lets the serving handler be replaced while the
// server keeps running, so configuration reloads do not require a
// listener restart.
type swappableHandler struct {
	current atomic.Pointer[http.Handler]
}

func newSwappableHandler(h http.Handler) *swappableHandler {
	s := &swappableHandler{}
	s.current.Store(&h)
	return s
}

// Swap replaces the handler used for subsequent requests. In-flight
// requests finish on the handler they started with.
func (s *swappableHandler) Swap(h http.Handler) {
	s.current.Store(&h)
}

func (s *swappableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*s.current.Load()).ServeHTTP(w, r)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("CRMGATE_CONFIG_PATH", "configs/crmgate.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("CRMGATE_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("CRMGATE_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("crmgate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig loads and validates the configuration.
func loadConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting crmgate",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address),
		observability.String("auth_store", cfg.Auth.Store),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled),
	)

	return cfg
}

// runServer serves the gateway until SIGINT or SIGTERM, then shuts
// down gracefully.
func runServer(cfg *config.Config, handler http.Handler, logger observability.Logger) {
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", observability.String("address", cfg.Server.Address))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", observability.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", observability.Error(err))
	}

	logger.Info("stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
