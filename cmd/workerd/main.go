// SPDX-License-Identifier: MIT

// workerd consumes backtest jobs from the queue and persists their results.
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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jsj9346/makenaide-sub006/internal/config"
	mklog "github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/notify"
	"github.com/jsj9346/makenaide-sub006/internal/phase"
	"github.com/jsj9346/makenaide-sub006/internal/queue"
	"github.com/jsj9346/makenaide-sub006/internal/store"
	"github.com/jsj9346/makenaide-sub006/internal/telemetry"
	"github.com/jsj9346/makenaide-sub006/internal/worker"
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
		fmt.Printf("workerd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "workerd: %v\n", err)
		os.Exit(1)
	}
	mklog.Configure(mklog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.Service,
		Version: version,
	})
	logger := mklog.WithComponent("workerd")

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

	// Binding reconciliation shares the queue's redis instance.
	bindClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = bindClient.Close() }()
	bindings := worker.NewRedisBindingStore(bindClient, cfg.QueueKey)
	action, err := worker.EnsureBinding(ctx, bindings, "backtest-workers", cfg.QueueKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("binding reconciliation failed")
	}
	logger.Info().Str("action", string(action)).Msg("queue binding ready")

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("store open failed")
	}
	defer func() { _ = st.Close() }()

	// Stages announce on the in-process bus; the failure alerter is the
	// durable-enough consumer turning failures into notifications.
	bus := phase.NewMemoryBus()
	announcer := phase.NewAnnouncer(bus, 2*time.Second)
	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	} else {
		notifier = notify.NewLogNotifier()
	}
	alerter := phase.NewFailureAlerter(bus, notify.NewDamped(notifier, rate.Every(time.Minute), 3))

	processor := worker.NewAnnouncingProcessor(
		worker.NewBacktestProcessor(st).WithSignals(announcer, 0.05),
		announcer, worker.BacktestPhase)

	hostname, _ := os.Hostname()
	pool := worker.NewPool(q, processor, worker.PoolConfig{
		Consumer:     fmt.Sprintf("workerd-%s", hostname),
		Concurrency:  cfg.WorkerSlots,
		ClaimBatch:   cfg.WorkerBatchSize,
		Visibility:   cfg.QueueVisibility,
		PollInterval: cfg.WorkerBatchWait,
	})
	sweeper := worker.NewSweeper(q, cfg.QueueVisibility/3, 100)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
	g.Go(func() error { return alerter.Run(ctx) })
	g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })

	logger.Info().
		Int("slots", cfg.WorkerSlots).
		Str("queue", cfg.QueueKey).
		Dur("visibility", cfg.QueueVisibility).
		Msg("workerd started")

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("workerd failed")
	}
	logger.Info().Msg("workerd stopped")
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
