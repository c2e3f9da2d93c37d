// SPDX-License-Identifier: MIT

// orchestrd receives scheduler triggers, runs the duplicate-run guard against
// the compute instance and exposes queue operations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jsj9346/makenaide-sub006/internal/api"
	"github.com/jsj9346/makenaide-sub006/internal/config"
	"github.com/jsj9346/makenaide-sub006/internal/lifecycle"
	mklog "github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/notify"
	"github.com/jsj9346/makenaide-sub006/internal/queue"
	"github.com/jsj9346/makenaide-sub006/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("orchestrd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrd: %v\n", err)
		os.Exit(1)
	}
	mklog.Configure(mklog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.Service,
		Version: version,
	})
	logger := mklog.WithComponent("orchestrd")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    cfg.Service,
		ServiceVersion: version,
		ExporterType:   cfg.TelemetryExporter,
		Endpoint:       cfg.TelemetryEndpoint,
		SamplingRate:   cfg.TelemetrySampling,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry init failed")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	} else {
		notifier = notify.NewLogNotifier()
	}
	// One skip notice per schedule every 10 minutes is plenty.
	damped := notify.NewDamped(notifier, rate.Every(10*time.Minute), 1)

	controller := lifecycle.NewAPIController(cfg.ComputeAPIBase, cfg.InstanceID, cfg.ComputeAPIToken, cfg.LifecycleTimeout)
	guard := lifecycle.NewGuard(controller, damped)

	q, err := queue.NewRedisQueue(ctx, queue.RedisQueueConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Key:         cfg.QueueKey,
		MaxAttempts: cfg.QueueMaxAttempts,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("queue init failed")
	}
	defer func() { _ = q.Close() }()

	server := api.NewServer(guard, q, api.Config{TriggerRatePerMin: cfg.TriggerRatePerMin})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, cfg.ListenAddr)
	})
	g.Go(func() error {
		return serveMetrics(ctx, cfg.MetricsAddr)
	})

	logger.Info().
		Str("listen", cfg.ListenAddr).
		Str("metrics", cfg.MetricsAddr).
		Str("instance_id", cfg.InstanceID).
		Msg("orchestrd started")

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("orchestrd failed")
	}
	logger.Info().Msg("orchestrd stopped")
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
