// syncd keeps a dashboard client session synchronized with the server: one
// push stream, topic subscriptions with delta reconciliation, broadcast event
// routing, and connection status reporting.
// Usage: syncd --config configs/syncd.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/calverton/dashsync/internal/config"
	"github.com/calverton/dashsync/internal/router"
	"github.com/calverton/dashsync/internal/sidechannel"
	"github.com/calverton/dashsync/internal/status"
	"github.com/calverton/dashsync/internal/stream"
	"github.com/calverton/dashsync/internal/topic"
	"github.com/calverton/dashsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	deviceID := cfg.Device.ID
	if deviceID == "" {
		deviceID = uuid.NewString()
		logger.Info("generated device id", "device_id", deviceID)
	}

	logger.Info("configuration loaded",
		"stream_url", cfg.Server.StreamURL,
		"api_url", cfg.Server.APIURL,
		"topics", len(cfg.Topics),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Side-channel REST client
	side := sidechannel.NewClient(
		cfg.Server.APIURL,
		cfg.Server.Token,
		sidechannel.WithLogger(logger),
		sidechannel.WithTimeout(time.Duration(cfg.SideChannel.Timeout)*time.Second),
		sidechannel.WithRetries(cfg.SideChannel.MaxRetries, time.Second),
	)

	// Topic registry and broadcast routers
	registry := topic.NewRegistry(side, logger)
	routers := router.NewSet(logger)

	// Connection manager over the WebSocket stream
	clientCfg := stream.ClientConfig{
		URL:          cfg.Server.StreamURL,
		Token:        cfg.Server.Token,
		PingTimeout:  cfg.Stream.PingTimeout,
		WriteTimeout: cfg.Stream.WriteTimeout,
		BufferSize:   cfg.Stream.BufferSize,
	}
	mgrCfg := stream.ManagerConfig{
		BaseDelay:           cfg.Reconnect.BaseDelay,
		MaxDelay:            cfg.Reconnect.MaxDelay,
		MaxAttempts:         cfg.Reconnect.MaxAttempts,
		MaxSequenceDuration: cfg.Reconnect.MaxSequenceDuration,
		DeviceID:            deviceID,
	}
	mgr := stream.NewManager(mgrCfg, stream.NewWebSocketDialer(clientCfg, logger), logger)

	mgr.Attach(registry)
	mgr.Attach(routers)
	mgr.OnTransition(registry.HandleTransition)

	// Status reporting: tiered severity and toasts, logged in a headless run
	reporter := status.NewReporter(status.Config{
		GracePeriod:         cfg.Status.GracePeriod,
		SuccessDismissAfter: cfg.Status.SuccessDismissAfter,
	}, &logSurface{logger: logger}, mgr.Retry, logger)
	mgr.OnTransition(reporter.HandleTransition)
	mgr.OnTransition(func(t stream.Transition) {
		logger.Info("connection state changed",
			"from", t.From.String(),
			"to", t.To.String(),
			"connection_id", t.ConnectionID,
		)
	})

	if cfg.Device.PushEndpoint != "" {
		mgr.SetPushEndpointReporting(staticPushEndpoint(cfg.Device.PushEndpoint), side)
	}

	// Subscribe configured topics with logging consumers
	for _, t := range cfg.Topics {
		defer registry.Subscribe(t, func(doc json.RawMessage) {
			logger.Debug("topic document updated", "topic", t, "bytes", len(doc))
		})()
	}

	logger.Info("initializing connection")
	mgr.Initialize(ctx)
	defer mgr.Teardown()

	// SIGUSR1 acts as a network-regained hint: attempt a reconnect now
	// instead of waiting out the backoff delay.
	probeCh := make(chan os.Signal, 1)
	signal.Notify(probeCh, syscall.SIGUSR1)
	go func() {
		for range probeCh {
			logger.Info("probe signal received")
			mgr.Probe()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// Stats printer
	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				mgrStats := mgr.Stats()
				topicStats := registry.Stats()
				logger.Info("stats",
					"state", mgrStats.State.String(),
					"attempts", mgrStats.Attempts,
					"received", mgrStats.Received,
					"parse_errors", mgrStats.ParseErrors,
					"unrouted", mgrStats.Unrouted,
					"topics", topicStats.Topics,
					"callbacks", topicStats.Callbacks,
					"cached", topicStats.Cached,
					"severity", string(reporter.Severity()),
				)
			}
		}
	})

	// Wait for shutdown
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("syncd running - press Ctrl+C to stop")
	g.Wait()

	logger.Info("shutting down...")
}

// logSurface is a toast surface for a headless run: show/dismiss become log
// lines instead of UI.
type logSurface struct {
	logger *slog.Logger
}

func (s *logSurface) Show(t status.Toast) {
	s.logger.Warn("toast shown", "kind", string(t.Kind), "has_retry", t.Retry != nil)
}

func (s *logSurface) Dismiss(kind status.ToastKind) {
	s.logger.Info("toast dismissed", "kind", string(kind))
}

// staticPushEndpoint serves a fixed endpoint from config.
type staticPushEndpoint string

func (e staticPushEndpoint) PushEndpoint(context.Context) (string, error) {
	return string(e), nil
}
