// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package config

import (
	"fmt"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("CHURNPIPE_LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateTraining() error {
	t := c.Training

	if t.ValidationFraction <= 0 || t.ValidationFraction >= 1 {
		return fmt.Errorf("training.validation_fraction must be in (0, 1), got %f", t.ValidationFraction)
	}
	if t.NumTrees <= 0 {
		return fmt.Errorf("training.num_trees must be positive, got %d", t.NumTrees)
	}
	if t.MaxDepth <= 0 {
		return fmt.Errorf("training.max_depth must be positive, got %d", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return fmt.Errorf("training.min_samples_split must be at least 2, got %d", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return fmt.Errorf("training.min_samples_leaf must be at least 1, got %d", t.MinSamplesLeaf)
	}
	if t.ThresholdStart <= 0 || t.ThresholdStart >= 1 {
		return fmt.Errorf("training.threshold_start must be in (0, 1), got %f", t.ThresholdStart)
	}
	if t.ThresholdStep <= 0 || t.ThresholdStep >= 1 {
		return fmt.Errorf("training.threshold_step must be in (0, 1), got %f", t.ThresholdStep)
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir must not be empty")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	return nil
}
