package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/neuragate/gateway/internal/config"
	"github.com/neuragate/gateway/internal/gateway"
	"github.com/neuragate/gateway/internal/logging"
	"github.com/neuragate/gateway/internal/routestore"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("neuragate %s\n", version)
		os.Exit(0)
	}

	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "neuragate: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := watcher.Current()

	logger, closer, err := logging.New(logging.Config{Level: cfg.Logging.Level, Output: cfg.Logging.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "neuragate: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	defer logging.Sync()

	activeCloser := closer
	defer func() {
		if activeCloser != nil {
			activeCloser.Close()
		}
	}()

	// Only the logger is hot-reloaded from a changed config file: the
	// listener address and store/proxy/telemetry clients are all
	// captured once at Gateway construction, and
	// changing them live would mean tearing down and rebuilding
	// long-lived connections mid-request. Route definitions are the
	// one thing this process reloads live, and they flow through
	// routestore's own change-notification path instead.
	watcher.OnChange(func(next *config.Config) {
		newLogger, newCloser, err := logging.New(logging.Config{Level: next.Logging.Level, Output: next.Logging.Output})
		if err != nil {
			logging.Error("config reload: failed to rebuild logger, keeping previous", zap.Error(err))
			return
		}
		logging.SetGlobal(newLogger)
		if activeCloser != nil {
			activeCloser.Close()
		}
		activeCloser = newCloser
	})
	if err := watcher.Start(); err != nil {
		logging.Warn("config file watcher unavailable, logging level is fixed for this run", zap.Error(err))
	}
	defer watcher.Stop()

	fallbackSet, err := routestore.LoadFallbackSet(cfg.Store.FallbackPath)
	if err != nil {
		logging.Error("failed to load fallback route set", zap.Error(err))
		os.Exit(1)
	}

	ctx := context.Background()
	gw, err := gateway.New(ctx, cfg, fallbackSet)
	if err != nil {
		logging.Error("failed to wire gateway", zap.Error(err))
		os.Exit(1)
	}

	server := gateway.NewServer(cfg, gw)
	logging.Info("starting neuragate", zap.String("version", version), zap.String("addr", cfg.Server.Addr))
	if err := server.Run(ctx); err != nil {
		logging.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}
