// Package main is the entry point for the edge server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/avaedge/internal/config"
	"github.com/vyrodovalexey/avaedge/internal/dispatch"
	"github.com/vyrodovalexey/avaedge/internal/observability"
	"github.com/vyrodovalexey/avaedge/internal/server"
	"github.com/vyrodovalexey/avaedge/internal/vhost"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath   string
	logLevel     string
	logFormat    string
	validateOnly bool
	showVersion  bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	if flags.validateOnly {
		validateAndExit(flags.configPath)
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadAndValidateConfig(flags.configPath, logger)
	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("EDGE_CONFIG_PATH", "configs/edge.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("EDGE_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error), overrides the configuration")
	logFormat := flag.String("log-format", getEnvOrDefault("EDGE_LOG_FORMAT", ""),
		"Log format (json, console), overrides the configuration")
	validateOnly := flag.Bool("validate", false, "Validate the configuration and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:   *configPath,
		logLevel:     *logLevel,
		logFormat:    *logFormat,
		validateOnly: *validateOnly,
		showVersion:  *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("avaedge version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// validateAndExit checks the configuration, including pattern and
// template compilation, and exits with a matching status code.
func validateAndExit(configPath string) {
	cfg, err := config.LoadConfig(configPath)
	if err == nil {
		err = config.ValidateConfig(cfg)
	}
	if err == nil {
		_, err = vhost.Build(cfg, nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("configuration valid")
	os.Exit(0)
}

// initLogger initializes the logger from flags; configuration values
// fill in later once loaded.
func initLogger(flags cliFlags) observability.Logger {
	level := flags.logLevel
	if level == "" {
		level = "info"
	}
	format := flags.logFormat
	if format == "" {
		format = "json"
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting avaedge",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	if err := config.ValidateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", observability.Error(err))
	}

	logger.Info("configuration loaded",
		observability.Int("listeners", len(cfg.Listen)),
		observability.Int("vhosts", len(cfg.VHosts)),
	)

	return cfg
}

// run builds the tree, starts the server, and blocks until shutdown.
func run(cfg *config.Config, configPath string, logger observability.Logger) {
	tree, err := vhost.Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to compile configuration", observability.Error(err))
	}

	dispatcher := dispatch.NewDispatcher(tree, logger)
	srv := server.NewServer(cfg, dispatcher, logger)

	errCh, err := srv.Start()
	if err != nil {
		logger.Fatal("failed to start server", observability.Error(err))
	}

	watcher := startConfigWatcher(configPath, dispatcher, logger)

	waitForShutdown(srv, watcher, errCh, logger)
}

// startConfigWatcher starts the configuration watcher. A change only
// takes effect after the new configuration validates and compiles;
// until then the active tree keeps serving.
func startConfigWatcher(
	configPath string,
	dispatcher *dispatch.Dispatcher,
	logger observability.Logger,
) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		tree, buildErr := vhost.Build(newCfg, logger)
		if buildErr != nil {
			dispatcher.ReloadFailed(buildErr)
			return
		}
		dispatcher.Swap(tree)
	},
		config.WithLogger(logger),
		config.WithErrorCallback(func(watchErr error) {
			dispatcher.ReloadFailed(watchErr)
		}),
	)
	if err != nil {
		logger.Error("failed to create config watcher, hot reload disabled",
			observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Error("failed to start config watcher, hot reload disabled",
			observability.Error(err))
		return nil
	}

	return watcher
}

// waitForShutdown blocks until a signal or a listener failure, then
// shuts everything down gracefully.
func waitForShutdown(
	srv *server.Server,
	watcher *config.Watcher,
	errCh <-chan error,
	logger observability.Logger,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down",
			observability.String("signal", sig.String()),
		)
	case err := <-errCh:
		logger.Error("listener failed, shutting down", observability.Error(err))
	}

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("failed to stop config watcher", observability.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", observability.Error(err))
	}

	logger.Info("shutdown complete")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
