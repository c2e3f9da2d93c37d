// SPDX-License-Identifier: MIT

// Package config assembles the process configuration exactly once at startup.
// Business logic never reads the environment; it receives this struct (or a
// slice of it) through constructors. Precedence: ENV > config file > defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the full configuration for all makenaide binaries. Each binary
// uses the subset it needs.
type Config struct {
	LogLevel string
	Service  string

	// Compute instance lifecycle.
	InstanceID       string
	ComputeAPIBase   string
	ComputeAPIToken  string
	LifecycleTimeout time.Duration

	// Notification channel.
	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// Job queue.
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	QueueKey         string
	QueueMaxAttempts int
	QueueVisibility  time.Duration

	// Worker pool.
	WorkerSlots     int
	WorkerBatchSize int
	WorkerBatchWait time.Duration

	// Local working store and shutdown artifacts.
	DataDir     string
	BackupDir   string
	ArtifactDir string

	// Durable object storage for artifact sync.
	ObjectEndpoint  string
	ObjectAccessKey string
	ObjectSecretKey string
	ObjectBucket    string
	ObjectSecure    bool

	// Trigger endpoint.
	ListenAddr        string
	MetricsAddr       string
	TriggerRatePerMin int

	// Tracing.
	TelemetryEnabled  bool
	TelemetryExporter string
	TelemetryEndpoint string
	TelemetrySampling float64
}

func defaults() Config {
	return Config{
		LogLevel:          "info",
		Service:           "makenaide",
		LifecycleTimeout:  10 * time.Second,
		NotifyTimeout:     5 * time.Second,
		RedisAddr:         "127.0.0.1:6379",
		QueueKey:          "makenaide:jobs",
		QueueMaxAttempts:  5,
		QueueVisibility:   15 * time.Second,
		WorkerSlots:       4,
		WorkerBatchSize:   1,
		WorkerBatchWait:   2 * time.Second,
		DataDir:           "/var/lib/makenaide",
		BackupDir:         "/var/lib/makenaide/backups",
		ArtifactDir:       "/var/lib/makenaide/artifacts",
		ObjectBucket:      "makenaide-artifacts",
		ListenAddr:        ":8080",
		MetricsAddr:       ":9090",
		TriggerRatePerMin: 30,
		TelemetryExporter: "grpc",
		TelemetrySampling: 1.0,
	}
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = ParseString("MAKENAIDE_LOG_LEVEL", cfg.LogLevel)
	cfg.Service = ParseString("MAKENAIDE_SERVICE", cfg.Service)

	cfg.InstanceID = ParseString("MAKENAIDE_INSTANCE_ID", cfg.InstanceID)
	cfg.ComputeAPIBase = ParseString("MAKENAIDE_COMPUTE_API_BASE", cfg.ComputeAPIBase)
	cfg.ComputeAPIToken = ParseString("MAKENAIDE_COMPUTE_API_TOKEN", cfg.ComputeAPIToken)
	cfg.LifecycleTimeout = ParseDuration("MAKENAIDE_LIFECYCLE_TIMEOUT", cfg.LifecycleTimeout)

	cfg.NotifyWebhookURL = ParseString("MAKENAIDE_NOTIFY_WEBHOOK_URL", cfg.NotifyWebhookURL)
	cfg.NotifyTimeout = ParseDuration("MAKENAIDE_NOTIFY_TIMEOUT", cfg.NotifyTimeout)

	cfg.RedisAddr = ParseString("MAKENAIDE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("MAKENAIDE_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("MAKENAIDE_REDIS_DB", cfg.RedisDB)
	cfg.QueueKey = ParseString("MAKENAIDE_QUEUE_KEY", cfg.QueueKey)
	cfg.QueueMaxAttempts = ParseInt("MAKENAIDE_QUEUE_MAX_ATTEMPTS", cfg.QueueMaxAttempts)
	cfg.QueueVisibility = ParseDuration("MAKENAIDE_QUEUE_VISIBILITY", cfg.QueueVisibility)

	cfg.WorkerSlots = ParseInt("MAKENAIDE_WORKER_SLOTS", cfg.WorkerSlots)
	cfg.WorkerBatchSize = ParseInt("MAKENAIDE_WORKER_BATCH_SIZE", cfg.WorkerBatchSize)
	cfg.WorkerBatchWait = ParseDuration("MAKENAIDE_WORKER_BATCH_WAIT", cfg.WorkerBatchWait)

	cfg.DataDir = ParseString("MAKENAIDE_DATA_DIR", cfg.DataDir)
	cfg.BackupDir = ParseString("MAKENAIDE_BACKUP_DIR", cfg.BackupDir)
	cfg.ArtifactDir = ParseString("MAKENAIDE_ARTIFACT_DIR", cfg.ArtifactDir)

	cfg.ObjectEndpoint = ParseString("MAKENAIDE_OBJECT_ENDPOINT", cfg.ObjectEndpoint)
	cfg.ObjectAccessKey = ParseString("MAKENAIDE_OBJECT_ACCESS_KEY", cfg.ObjectAccessKey)
	cfg.ObjectSecretKey = ParseString("MAKENAIDE_OBJECT_SECRET_KEY", cfg.ObjectSecretKey)
	cfg.ObjectBucket = ParseString("MAKENAIDE_OBJECT_BUCKET", cfg.ObjectBucket)
	cfg.ObjectSecure = ParseBool("MAKENAIDE_OBJECT_SECURE", cfg.ObjectSecure)

	cfg.ListenAddr = ParseString("MAKENAIDE_LISTEN", cfg.ListenAddr)
	cfg.MetricsAddr = ParseString("MAKENAIDE_METRICS_ADDR", cfg.MetricsAddr)
	cfg.TriggerRatePerMin = ParseInt("MAKENAIDE_TRIGGER_RATE_PER_MIN", cfg.TriggerRatePerMin)

	cfg.TelemetryEnabled = ParseBool("MAKENAIDE_OTEL_ENABLED", cfg.TelemetryEnabled)
	cfg.TelemetryExporter = ParseString("MAKENAIDE_OTEL_EXPORTER", cfg.TelemetryExporter)
	cfg.TelemetryEndpoint = ParseString("MAKENAIDE_OTEL_ENDPOINT", cfg.TelemetryEndpoint)
	cfg.TelemetrySampling = ParseFloat("MAKENAIDE_OTEL_SAMPLING", cfg.TelemetrySampling)
}

// Validate rejects configurations that would fail at first use.
func (c Config) Validate() error {
	if c.QueueMaxAttempts < 1 {
		return fmt.Errorf("queue max attempts must be >= 1, got %d", c.QueueMaxAttempts)
	}
	if c.QueueVisibility <= 0 {
		return fmt.Errorf("queue visibility timeout must be positive, got %s", c.QueueVisibility)
	}
	if c.WorkerSlots < 1 {
		return fmt.Errorf("worker slots must be >= 1, got %d", c.WorkerSlots)
	}
	if c.WorkerBatchSize < 1 {
		return fmt.Errorf("worker batch size must be >= 1, got %d", c.WorkerBatchSize)
	}
	if c.LifecycleTimeout <= 0 {
		return fmt.Errorf("lifecycle timeout must be positive, got %s", c.LifecycleTimeout)
	}
	return nil
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in ascending precedence. filePath may be empty.
func Load(filePath string) (Config, error) {
	cfg := defaults()
	if filePath != "" {
		if err := applyFile(&cfg, filePath); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", filePath, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
