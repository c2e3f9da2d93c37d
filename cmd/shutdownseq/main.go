// SPDX-License-Identifier: MIT

// shutdownseq runs the ordered shutdown sequence once and exits: checkpoint
// local state, sync artifacts, notify, stop the compute instance. A non-zero
// exit means the sequence aborted and the instance was left running.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jsj9346/makenaide-sub006/internal/artifact"
	"github.com/jsj9346/makenaide-sub006/internal/config"
	"github.com/jsj9346/makenaide-sub006/internal/lifecycle"
	mklog "github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
	"github.com/jsj9346/makenaide-sub006/internal/notify"
	"github.com/jsj9346/makenaide-sub006/internal/shutdown"
	"github.com/jsj9346/makenaide-sub006/internal/store"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	reason := flag.String("reason", "scheduled", "shutdown reason recorded in the notification")
	executionID := flag.String("execution-id", "", "execution ID used as the artifact prefix")
	flag.Parse()

	if *showVersion {
		fmt.Printf("shutdownseq %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shutdownseq: %v\n", err)
		os.Exit(1)
	}
	mklog.Configure(mklog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.Service,
		Version: version,
	})
	logger := mklog.WithComponent("shutdownseq")

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("store open failed")
	}
	defer func() { _ = st.Close() }()

	var syncer artifact.Syncer
	if cfg.ObjectEndpoint != "" {
		syncer, err = artifact.NewObjectSyncer(ctx, artifact.ObjectSyncerConfig{
			Endpoint:  cfg.ObjectEndpoint,
			AccessKey: cfg.ObjectAccessKey,
			SecretKey: cfg.ObjectSecretKey,
			UseSSL:    cfg.ObjectSecure,
			Bucket:    cfg.ObjectBucket,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage init failed")
		}
	} else {
		syncer = &artifact.DirSyncer{Root: cfg.BackupDir}
	}

	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	} else {
		notifier = notify.NewLogNotifier()
	}
	controller := lifecycle.NewAPIController(cfg.ComputeAPIBase, cfg.InstanceID, cfg.ComputeAPIToken, cfg.LifecycleTimeout)

	prefix := *executionID
	if prefix == "" {
		prefix = "manual"
	}
	// Checkpoints land inside the artifact tree so the sync step carries
	// them to durable storage.
	seq := shutdown.NewSequencer(st, syncer, notifier, controller,
		filepath.Join(cfg.ArtifactDir, "checkpoints"), cfg.ArtifactDir, prefix)

	res := seq.Execute(ctx, model.ShutdownContext{Reason: *reason})
	for _, step := range res.Steps {
		ev := logger.Info()
		if step.Err != nil {
			ev = logger.Error().Err(step.Err)
		}
		ev.Str("step", step.Name).Dur("duration", step.Duration).Msg("step finished")
	}
	if res.Outcome != shutdown.OutcomeCompleted {
		logger.Error().Str("outcome", string(res.Outcome)).Msg("shutdown sequence aborted")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown sequence completed")
}
