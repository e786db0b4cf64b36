// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package config loads and validates ChurnPipe configuration.
//
// Configuration is layered via Koanf v2, highest priority last:
//
//  1. Built-in defaults (struct provider)
//  2. Config file (config.yaml, or CHURNPIPE_CONFIG path)
//  3. Environment variables with the CHURNPIPE_ prefix
//
// Example environment overrides:
//
//	CHURNPIPE_LOG_LEVEL=debug
//	CHURNPIPE_DATABASE_PATH=/data/churnpipe.db
//	CHURNPIPE_TRAINING_SEED=7
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration for all pipeline stages.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Data      DataConfig      `koanf:"data"`
	Training  TrainingConfig  `koanf:"training"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Server    ServerConfig    `koanf:"server"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// DatabaseConfig controls the DuckDB table store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory, which
	// is only useful for tests.
	Path string `koanf:"path"`

	// Threads caps DuckDB's internal parallelism. <= 0 uses all cores.
	Threads int `koanf:"threads"`

	// MaxMemory is DuckDB's memory budget (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`
}

// DataConfig locates the raw input CSVs ingested into the table store.
type DataConfig struct {
	UsersCSV   string `koanf:"users_csv"`
	LoginsCSV  string `koanf:"logins_csv"`
	WatchCSV   string `koanf:"watch_csv"`
	RatingsCSV string `koanf:"ratings_csv"`
}

// TrainingConfig holds the fixed training hyperparameters. These are
// operational configuration, not tuned per run.
type TrainingConfig struct {
	// Seed drives the train/validation split and bootstrap sampling.
	Seed int64 `koanf:"seed"`

	// ValidationFraction is the held-out share of labeled rows.
	ValidationFraction float64 `koanf:"validation_fraction"`

	NumTrees        int `koanf:"num_trees"`
	MaxDepth        int `koanf:"max_depth"`
	MinSamplesSplit int `koanf:"min_samples_split"`
	MinSamplesLeaf  int `koanf:"min_samples_leaf"`
	NumWorkers      int `koanf:"num_workers"`

	// ThresholdStart/ThresholdStep define the threshold search grid
	// over (0, 1). ThresholdIncludeOne makes 1.0 a valid candidate.
	ThresholdStart      float64 `koanf:"threshold_start"`
	ThresholdStep       float64 `koanf:"threshold_step"`
	ThresholdIncludeOne bool    `koanf:"threshold_include_one"`
}

// ArtifactsConfig locates the persisted model artifacts.
type ArtifactsConfig struct {
	// Dir is the directory holding the bundle and its metadata sidecar.
	Dir string `koanf:"dir"`
}

// BundlePath returns the artifact bundle file path.
func (a ArtifactsConfig) BundlePath() string {
	return filepath.Join(a.Dir, "churn_model.bin")
}

// MetadataPath returns the JSON metadata sidecar path.
func (a ArtifactsConfig) MetadataPath() string {
	return filepath.Join(a.Dir, "churn_model.json")
}

// ServerConfig controls the read-only risk API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// defaultConfig returns a Config with all defaults applied. Defaults
// are layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:      "data/churnpipe.db",
			Threads:   0,
			MaxMemory: "2GB",
		},
		Data: DataConfig{
			UsersCSV:   "data/users.csv",
			LoginsCSV:  "data/logins.csv",
			WatchCSV:   "data/watch.csv",
			RatingsCSV: "data/ratings.csv",
		},
		Training: TrainingConfig{
			Seed:                42,
			ValidationFraction:  0.2,
			NumTrees:            400,
			MaxDepth:            12,
			MinSamplesSplit:     5,
			MinSamplesLeaf:      2,
			NumWorkers:          4,
			ThresholdStart:      0.05,
			ThresholdStep:       0.05,
			ThresholdIncludeOne: false,
		},
		Artifacts: ArtifactsConfig{
			Dir: "models",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}
