// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with durations as strings ("30s", "5m") so the
// YAML file stays human-editable.
type fileConfig struct {
	LogLevel *string `yaml:"logLevel"`
	Service  *string `yaml:"service"`

	InstanceID       *string `yaml:"instanceID"`
	ComputeAPIBase   *string `yaml:"computeAPIBase"`
	ComputeAPIToken  *string `yaml:"computeAPIToken"`
	LifecycleTimeout *string `yaml:"lifecycleTimeout"`

	NotifyWebhookURL *string `yaml:"notifyWebhookURL"`
	NotifyTimeout    *string `yaml:"notifyTimeout"`

	RedisAddr        *string `yaml:"redisAddr"`
	RedisPassword    *string `yaml:"redisPassword"`
	RedisDB          *int    `yaml:"redisDB"`
	QueueKey         *string `yaml:"queueKey"`
	QueueMaxAttempts *int    `yaml:"queueMaxAttempts"`
	QueueVisibility  *string `yaml:"queueVisibility"`

	WorkerSlots     *int    `yaml:"workerSlots"`
	WorkerBatchSize *int    `yaml:"workerBatchSize"`
	WorkerBatchWait *string `yaml:"workerBatchWait"`

	DataDir     *string `yaml:"dataDir"`
	BackupDir   *string `yaml:"backupDir"`
	ArtifactDir *string `yaml:"artifactDir"`

	ObjectEndpoint  *string `yaml:"objectEndpoint"`
	ObjectAccessKey *string `yaml:"objectAccessKey"`
	ObjectSecretKey *string `yaml:"objectSecretKey"`
	ObjectBucket    *string `yaml:"objectBucket"`
	ObjectSecure    *bool   `yaml:"objectSecure"`

	ListenAddr        *string `yaml:"listenAddr"`
	MetricsAddr       *string `yaml:"metricsAddr"`
	TriggerRatePerMin *int    `yaml:"triggerRatePerMin"`

	TelemetryEnabled  *bool    `yaml:"telemetryEnabled"`
	TelemetryExporter *string  `yaml:"telemetryExporter"`
	TelemetryEndpoint *string  `yaml:"telemetryEndpoint"`
	TelemetrySampling *float64 `yaml:"telemetrySampling"`
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setDur(dst *time.Duration, src *string, key string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// applyFile overlays values from a YAML file onto cfg. Keys absent from the
// file leave the existing value untouched.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.Service, fc.Service)

	setStr(&cfg.InstanceID, fc.InstanceID)
	setStr(&cfg.ComputeAPIBase, fc.ComputeAPIBase)
	setStr(&cfg.ComputeAPIToken, fc.ComputeAPIToken)
	if err := setDur(&cfg.LifecycleTimeout, fc.LifecycleTimeout, "lifecycleTimeout"); err != nil {
		return err
	}

	setStr(&cfg.NotifyWebhookURL, fc.NotifyWebhookURL)
	if err := setDur(&cfg.NotifyTimeout, fc.NotifyTimeout, "notifyTimeout"); err != nil {
		return err
	}

	setStr(&cfg.RedisAddr, fc.RedisAddr)
	setStr(&cfg.RedisPassword, fc.RedisPassword)
	setInt(&cfg.RedisDB, fc.RedisDB)
	setStr(&cfg.QueueKey, fc.QueueKey)
	setInt(&cfg.QueueMaxAttempts, fc.QueueMaxAttempts)
	if err := setDur(&cfg.QueueVisibility, fc.QueueVisibility, "queueVisibility"); err != nil {
		return err
	}

	setInt(&cfg.WorkerSlots, fc.WorkerSlots)
	setInt(&cfg.WorkerBatchSize, fc.WorkerBatchSize)
	if err := setDur(&cfg.WorkerBatchWait, fc.WorkerBatchWait, "workerBatchWait"); err != nil {
		return err
	}

	setStr(&cfg.DataDir, fc.DataDir)
	setStr(&cfg.BackupDir, fc.BackupDir)
	setStr(&cfg.ArtifactDir, fc.ArtifactDir)

	setStr(&cfg.ObjectEndpoint, fc.ObjectEndpoint)
	setStr(&cfg.ObjectAccessKey, fc.ObjectAccessKey)
	setStr(&cfg.ObjectSecretKey, fc.ObjectSecretKey)
	setStr(&cfg.ObjectBucket, fc.ObjectBucket)
	setBool(&cfg.ObjectSecure, fc.ObjectSecure)

	setStr(&cfg.ListenAddr, fc.ListenAddr)
	setStr(&cfg.MetricsAddr, fc.MetricsAddr)
	setInt(&cfg.TriggerRatePerMin, fc.TriggerRatePerMin)

	setBool(&cfg.TelemetryEnabled, fc.TelemetryEnabled)
	setStr(&cfg.TelemetryExporter, fc.TelemetryExporter)
	setStr(&cfg.TelemetryEndpoint, fc.TelemetryEndpoint)
	if fc.TelemetrySampling != nil {
		cfg.TelemetrySampling = *fc.TelemetrySampling
	}

	return nil
}
