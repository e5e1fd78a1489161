// Package main runs the parcelscout tool server: a browser automation
// service that exposes navigation, extraction, and assessor scraping tools
// over stdio or websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/oakmont/parcelscout/pkg/browser"
	"github.com/oakmont/parcelscout/pkg/config"
	"github.com/oakmont/parcelscout/pkg/dispatch"
	"github.com/oakmont/parcelscout/pkg/logging"
	"github.com/oakmont/parcelscout/pkg/metrics"
	"github.com/oakmont/parcelscout/pkg/protocol"
	"github.com/oakmont/parcelscout/pkg/security/urlguard"
	"github.com/oakmont/parcelscout/pkg/tools"
	browsertools "github.com/oakmont/parcelscout/pkg/tools/browser"
	"github.com/oakmont/parcelscout/pkg/transport"
)

const version = "0.1.0"

func main() {
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("parcelscout v%s\n", version)
		return
	}

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "parcelscout: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting parcelscout",
		zap.String("version", version),
		zap.String("transport", string(cfg.Server.Transport)),
		zap.Int("pool_capacity", cfg.Pool.Capacity))

	guard, err := urlguard.NewGuard(cfg.Browser.AllowedURLs)
	if err != nil {
		return fmt.Errorf("invalid URL allowlist: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	manager := browser.NewManager(browser.ManagerOptions{
		Capacity:       cfg.Pool.Capacity,
		IdleTimeout:    cfg.Pool.IdleTimeout,
		ReapInterval:   cfg.Pool.ReapInterval,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
		Headless:       cfg.Browser.Headless,
		Viewport: browser.Viewport{
			Width:  cfg.Browser.ViewportWidth,
			Height: cfg.Browser.ViewportHeight,
		},
		InstallDrivers: cfg.Browser.InstallDrivers,
		Guard:          guard,
		Logger:         logger.Component("browser"),
		Metrics:        m,
	})
	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser engine: %w", err)
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warn("browser engine shutdown failed", zap.Error(err))
		}
	}()

	toolRegistry := tools.NewRegistry()
	if err := browsertools.RegisterAll(toolRegistry, manager); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	toolRegistry.Freeze()
	logger.Info("tools registered", zap.Strings("tools", toolRegistry.Names()))

	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Registry:        toolRegistry,
		Manager:         manager,
		DefaultDeadline: cfg.Pool.DefaultDeadline,
		Logger:          logger.Component("dispatch"),
		Metrics:         m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	go manager.RunReaper(ctx)

	handler := func(ctx context.Context, req *protocol.Request) *protocol.Response {
		return dispatcher.Handle(ctx, req)
	}

	var t transport.Transport
	switch cfg.Server.Transport {
	case config.TransportWebSocket:
		t = transport.NewWebSocket(transport.WebSocketOptions{
			Addr:     cfg.BindAddress(),
			Handler:  handler,
			Logger:   logger.Component("transport"),
			Gatherer: registry,
		})
	default:
		t = transport.NewStdio(os.Stdin, os.Stdout, handler, logger.Component("transport"))
	}

	return t.Run(ctx)
}
