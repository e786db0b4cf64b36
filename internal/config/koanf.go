// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/churnpipe/config.yaml",
	"/etc/churnpipe/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CHURNPIPE_CONFIG"

// envPrefix namespaces all environment overrides.
const envPrefix = "CHURNPIPE_"

// envOverrides maps environment variable names (without the prefix) to
// koanf paths. Only listed variables are honored; everything else in
// the environment is ignored.
var envOverrides = map[string]string{
	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",

	"DATABASE_PATH":       "database.path",
	"DATABASE_THREADS":    "database.threads",
	"DATABASE_MAX_MEMORY": "database.max_memory",

	"DATA_USERS_CSV":   "data.users_csv",
	"DATA_LOGINS_CSV":  "data.logins_csv",
	"DATA_WATCH_CSV":   "data.watch_csv",
	"DATA_RATINGS_CSV": "data.ratings_csv",

	"TRAINING_SEED":                  "training.seed",
	"TRAINING_VALIDATION_FRACTION":   "training.validation_fraction",
	"TRAINING_NUM_TREES":             "training.num_trees",
	"TRAINING_MAX_DEPTH":             "training.max_depth",
	"TRAINING_MIN_SAMPLES_SPLIT":     "training.min_samples_split",
	"TRAINING_MIN_SAMPLES_LEAF":      "training.min_samples_leaf",
	"TRAINING_NUM_WORKERS":           "training.num_workers",
	"TRAINING_THRESHOLD_START":       "training.threshold_start",
	"TRAINING_THRESHOLD_STEP":        "training.threshold_step",
	"TRAINING_THRESHOLD_INCLUDE_ONE": "training.threshold_include_one",

	"ARTIFACTS_DIR": "artifacts.dir",

	"SERVER_HOST":             "server.host",
	"SERVER_PORT":             "server.port",
	"SERVER_READ_TIMEOUT":     "server.read_timeout",
	"SERVER_WRITE_TIMEOUT":    "server.write_timeout",
	"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
}

// Load builds the layered configuration: defaults, then an optional
// config file, then environment overrides, then validation.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		return envOverrides[strings.TrimPrefix(key, envPrefix)]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the config file to load, or "" for none.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
