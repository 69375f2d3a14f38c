package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podstore/podstore/internal/logger"
	"github.com/podstore/podstore/pkg/config"
	"github.com/podstore/podstore/pkg/gc"
	"github.com/podstore/podstore/pkg/metrics"
	"github.com/podstore/podstore/pkg/registry"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	statusInterval := flag.Duration("status-interval", 5*time.Minute, "Interval for logging pod status (0 to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger.SetLevel(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("podstore - Solid pod origin server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Object stores configured: %d", len(cfg.Stores))
	logger.Info("Locking: %s (timeout %v)", cfg.Locking.Type, cfg.Locking.Timeout)
	if cfg.RateLimit.WritesPerSecond > 0 {
		logger.Info("Write throttling: %d ops/s (burst %d)", cfg.RateLimit.WritesPerSecond, cfg.RateLimit.Burst)
	} else {
		logger.Info("Write throttling disabled")
	}
	if cfg.Metrics.Enabled {
		logger.Info("Metrics collection enabled")
	}

	reg, err := config.BuildRegistry(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to provision pods: %v", err)
	}

	for _, pod := range reg.Pods() {
		logger.Info("Pod %q serving %s on store %q", pod.Name, pod.Space().RootURI(), pod.StoreName)
	}

	var sweepers []*gc.Sweeper
	if cfg.GC.Enabled {
		for _, pod := range reg.Pods() {
			store, ok := reg.GetStore(pod.StoreName)
			if !ok {
				continue
			}
			sw := gc.NewSweeper(store, gc.Config{
				Enabled:  true,
				Interval: cfg.GC.Interval,
				DryRun:   cfg.GC.DryRun,
			})
			sw.Start()
			sweepers = append(sweepers, sw)
		}
		logger.Info("Auxiliary sweeper enabled: interval=%v dry_run=%v", cfg.GC.Interval, cfg.GC.DryRun)
	}

	if *statusInterval > 0 {
		go logStatus(ctx, reg, *statusInterval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Serving %d pod(s). Press Ctrl+C to stop.", len(reg.Pods()))
	<-sigChan

	logger.Info("Shutdown signal received, closing stores...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	for _, sw := range sweepers {
		if err := sw.Stop(stopCtx); err != nil {
			logger.Warn("Sweeper shutdown: %v", err)
		}
	}
	stopCancel()

	done := make(chan error, 1)
	go func() { done <- reg.Close() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Store shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Stopped gracefully")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Error("Shutdown timed out after %v", cfg.Server.ShutdownTimeout)
		os.Exit(1)
	}
}

// logStatus periodically logs one line per pod with its root container's
// current state.
func logStatus(ctx context.Context, reg *registry.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pod := range reg.Pods() {
				rr, err := pod.Service.Get(ctx, pod.Space().RootURI())
				if err != nil {
					logger.Warn("Pod %q: root unavailable: %v", pod.Name, err)
					continue
				}
				rr.Representation.Data.Close()
				logger.Info("Pod %q: %d resource(s) in root container", pod.Name, len(rr.Containment))
			}
			logOperationTotals()
		}
	}
}

// logOperationTotals logs the running count of storage operations when
// metrics collection is on.
func logOperationTotals() {
	if !metrics.IsEnabled() {
		return
	}
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		logger.Warn("Could not gather metrics: %v", err)
		return
	}
	for _, mf := range families {
		if mf.GetName() != "podstore_storage_operations_total" {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		logger.Info("Storage operations served so far: %.0f", total)
	}
}
