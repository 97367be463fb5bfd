// streamtest connects to the dashboard sync stream and prints everything it
// receives to the console: topic documents after reconciliation, broadcast
// events, and connection state changes.
// Usage: streamtest --config configs/syncd.local.yaml [topic ...]
//
// Topics given as arguments override the config's topic list.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/calverton/dashsync/internal/config"
	"github.com/calverton/dashsync/internal/router"
	"github.com/calverton/dashsync/internal/sidechannel"
	"github.com/calverton/dashsync/internal/status"
	"github.com/calverton/dashsync/internal/stream"
	"github.com/calverton/dashsync/internal/topic"
)

func main() {
	configPath := flag.String("config", "configs/syncd.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full document JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn, // keep the console for the event printers
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	topics := cfg.Topics
	if flag.NArg() > 0 {
		topics = flag.Args()
	}
	if len(topics) == 0 {
		fmt.Fprintln(os.Stderr, "no topics: pass them as arguments or set them in config")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	side := sidechannel.NewClient(
		cfg.Server.APIURL,
		cfg.Server.Token,
		sidechannel.WithLogger(logger),
		sidechannel.WithTimeout(time.Duration(cfg.SideChannel.Timeout)*time.Second),
		sidechannel.WithRetries(cfg.SideChannel.MaxRetries, time.Second),
	)
	registry := topic.NewRegistry(side, logger)
	routers := router.NewSet(logger)

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
		DeviceID:            uuid.NewString(),
	}
	mgr := stream.NewManager(mgrCfg, stream.NewWebSocketDialer(clientCfg, logger), logger)

	mgr.Attach(registry)
	mgr.Attach(routers)
	mgr.OnTransition(registry.HandleTransition)
	mgr.OnTransition(func(t stream.Transition) {
		fmt.Printf("[STATE] %s -> %s connection_id=%s\n", t.From, t.To, t.ConnectionID)
	})

	reporter := status.NewReporter(status.Config{
		GracePeriod:         cfg.Status.GracePeriod,
		SuccessDismissAfter: cfg.Status.SuccessDismissAfter,
	}, consoleSurface{}, mgr.Retry, logger)
	mgr.OnTransition(reporter.HandleTransition)

	// Topic printers
	for _, t := range topics {
		defer registry.Subscribe(t, printDocument(t, *verbose))()
	}

	// Broadcast printers
	routers.ServiceStatus.Subscribe(func(ev router.ServiceStatusEvent) {
		fmt.Printf("[SERVICE] %s status=%s %s\n", ev.Service, ev.Status, ev.Message)
	})
	routers.Backup.Subscribe(func(ev router.BackupEvent) {
		fmt.Printf("[BACKUP] %s stage=%s\n", ev.BackupID, ev.Stage)
	})
	routers.Notification.Subscribe(func(ev router.NotificationEvent) {
		fmt.Printf("[NOTIFY] %s: %s\n", ev.Title, ev.Body)
	})
	routers.CacheInvalidate.Subscribe(func(ev router.CacheInvalidateEvent) {
		fmt.Printf("[INVALIDATE] entity=%s\n", ev.Entity)
	})
	routers.Theme.Subscribe(func(ev router.ThemeEvent) {
		fmt.Printf("[THEME] %s\n", ev.Theme)
	})
	routers.Progress.Subscribe(func(ev router.ProgressEvent) {
		fmt.Printf("[PROGRESS] %s %.0f%% %s\n", ev.JobID, ev.Fraction*100, ev.Detail)
	})

	mgr.Initialize(ctx)
	defer mgr.Teardown()

	// Severity ticker
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		last := reporter.Severity()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if sev := reporter.Severity(); sev != last {
					fmt.Printf("[SEVERITY] %s\n", sev)
					last = sev
				}
			}
		}
	}()

	fmt.Printf("streaming %d topic(s) - press Ctrl+C to stop\n", len(topics))
	<-ctx.Done()
}

func printDocument(topicName string, verbose bool) topic.Callback {
	return func(doc json.RawMessage) {
		if verbose {
			var pretty json.RawMessage = doc
			if indented, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				doc = indented
			}
			fmt.Printf("[TOPIC %s]\n%s\n", topicName, doc)
		} else {
			fmt.Printf("[TOPIC %s] %d bytes\n", topicName, len(doc))
		}
	}
}

// consoleSurface prints toasts instead of rendering them.
type consoleSurface struct{}

func (consoleSurface) Show(t status.Toast) {
	fmt.Printf("[TOAST] show %s\n", t.Kind)
}

func (consoleSurface) Dismiss(kind status.ToastKind) {
	fmt.Printf("[TOAST] dismiss %s\n", kind)
}
