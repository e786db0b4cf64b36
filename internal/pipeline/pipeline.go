// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package pipeline orchestrates the four stages of the churn analysis:
// feature building, model training, scoring, and result merging. Stages
// communicate only through materialized tables and the persisted model
// bundle, so each one can be re-run independently as long as its inputs
// have been produced by an earlier run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/streamlytics/churnpipe/internal/config"
	"github.com/streamlytics/churnpipe/internal/database"
	"github.com/streamlytics/churnpipe/internal/features"
	"github.com/streamlytics/churnpipe/internal/logging"
	"github.com/streamlytics/churnpipe/internal/merge"
	"github.com/streamlytics/churnpipe/internal/metrics"
	"github.com/streamlytics/churnpipe/internal/model"
	"github.com/streamlytics/churnpipe/internal/scorer"
	"github.com/streamlytics/churnpipe/internal/trainer"
)

// Pipeline wires the stages to the table store and configuration.
type Pipeline struct {
	db  *database.DB
	cfg *config.Config
}

// New returns a pipeline bound to an open database.
func New(db *database.DB, cfg *config.Config) *Pipeline {
	return &Pipeline{db: db, cfg: cfg}
}

// trainerConfig maps the operational configuration onto the trainer's
// hyperparameters, falling back to trainer defaults for unset values.
func (p *Pipeline) trainerConfig() trainer.Config {
	tc := trainer.DefaultConfig()
	t := p.cfg.Training
	tc.Seed = t.Seed
	if t.ValidationFraction > 0 {
		tc.ValidationFraction = t.ValidationFraction
	}
	if t.NumTrees > 0 {
		tc.Forest.NumTrees = t.NumTrees
	}
	if t.MaxDepth > 0 {
		tc.Forest.MaxDepth = t.MaxDepth
	}
	if t.MinSamplesSplit > 0 {
		tc.Forest.MinSamplesSplit = t.MinSamplesSplit
	}
	if t.MinSamplesLeaf > 0 {
		tc.Forest.MinSamplesLeaf = t.MinSamplesLeaf
	}
	if t.NumWorkers > 0 {
		tc.Forest.NumWorkers = t.NumWorkers
	}
	if t.ThresholdStart > 0 {
		tc.Grid.Start = t.ThresholdStart
	}
	if t.ThresholdStep > 0 {
		tc.Grid.Step = t.ThresholdStep
	}
	tc.Grid.IncludeOne = t.ThresholdIncludeOne
	return tc
}

// Ingest imports the raw CSV inputs into the database.
func (p *Pipeline) Ingest(ctx context.Context) error {
	return p.db.ImportAll(ctx, p.cfg.Data)
}

// BuildFeatures loads the raw tables, derives one feature row per user,
// and rebuilds the churn_features table.
func (p *Pipeline) BuildFeatures(ctx context.Context) error {
	start := time.Now()
	rows, err := p.buildFeatures(ctx)
	metrics.RecordStage("features", time.Since(start), rows, err)
	return err
}

func (p *Pipeline) buildFeatures(ctx context.Context) (int, error) {
	users, err := p.db.LoadUsers(ctx)
	if err != nil {
		return 0, err
	}
	logins, err := p.db.LoadLogins(ctx)
	if err != nil {
		return 0, err
	}
	watch, err := p.db.LoadWatch(ctx)
	if err != nil {
		return 0, err
	}
	ratings, err := p.db.LoadRatings(ctx)
	if err != nil {
		return 0, err
	}

	in := features.Input{Users: users, Logins: logins, Watch: watch, Ratings: ratings}
	rows, err := features.Build(in)
	if err != nil {
		return 0, err
	}
	if err := p.db.WriteFeatures(ctx, rows); err != nil {
		return 0, err
	}

	logging.Info().
		Int("users", len(users)).
		Int("features", len(rows)).
		Time("reference_time", features.ReferenceTime(in)).
		Msg("Feature table rebuilt")

	return len(rows), nil
}

// Train fits the model on the labeled feature rows and persists the
// bundle plus its metadata sidecar atomically.
func (p *Pipeline) Train(ctx context.Context) error {
	start := time.Now()
	rows, err := p.train(ctx)
	metrics.RecordStage("train", time.Since(start), rows, err)
	return err
}

func (p *Pipeline) train(ctx context.Context) (int, error) {
	rows, err := p.db.LoadFeatures(ctx)
	if err != nil {
		return 0, err
	}

	res, err := trainer.Train(p.trainerConfig(), rows)
	if err != nil {
		return 0, err
	}

	bundlePath := p.cfg.Artifacts.BundlePath()
	if err := res.Bundle.Save(bundlePath); err != nil {
		return 0, err
	}
	if err := res.Bundle.WriteMetadata(p.cfg.Artifacts.MetadataPath()); err != nil {
		return 0, err
	}

	m := res.Metrics
	metrics.RecordTraining(m.ROCAUC, m.BestF1, m.BestThreshold, m.TrainRows, m.ValidationRows)

	logging.Info().
		Str("bundle_id", res.Bundle.ID).
		Str("path", bundlePath).
		Float64("roc_auc", m.ROCAUC).
		Float64("threshold", m.BestThreshold).
		Msg("Model bundle persisted")

	return m.TrainRows + m.ValidationRows, nil
}

// Score loads the persisted bundle, scores every feature row, and
// rebuilds the user_risk table in probability-descending order.
func (p *Pipeline) Score(ctx context.Context) error {
	start := time.Now()
	rows, err := p.score(ctx)
	metrics.RecordStage("score", time.Since(start), rows, err)
	return err
}

func (p *Pipeline) score(ctx context.Context) (int, error) {
	bundle, err := model.Load(p.cfg.Artifacts.BundlePath())
	if err != nil {
		return 0, err
	}
	s, err := scorer.New(bundle)
	if err != nil {
		return 0, err
	}

	rows, err := p.db.LoadFeatures(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("pipeline: churn_features is empty, run build-features first")
	}

	scored, err := s.Score(rows)
	if err != nil {
		return 0, err
	}
	if err := p.db.WriteScores(ctx, scored); err != nil {
		return 0, err
	}

	flagged := 0
	for i := range scored {
		flagged += scored[i].PredictedChurn
	}
	metrics.RecordScoring(len(scored), flagged)

	logging.Info().
		Str("bundle_id", s.BundleID()).
		Float64("threshold", s.Threshold()).
		Int("scored", len(scored)).
		Int("flagged", flagged).
		Msg("Risk table rebuilt")

	return len(scored), nil
}

// MergeResults joins the user profiles with their scores and rebuilds
// the final_user_risk presentation table.
func (p *Pipeline) MergeResults(ctx context.Context) error {
	start := time.Now()
	rows, err := p.mergeResults(ctx)
	metrics.RecordStage("merge", time.Since(start), rows, err)
	return err
}

func (p *Pipeline) mergeResults(ctx context.Context) (int, error) {
	users, err := p.db.LoadUsers(ctx)
	if err != nil {
		return 0, err
	}
	scores, err := p.db.LoadScores(ctx)
	if err != nil {
		return 0, err
	}

	merged := merge.Merge(users, scores)
	if err := p.db.WriteMerged(ctx, merged); err != nil {
		return 0, err
	}

	unscored := 0
	for i := range merged {
		if !merged[i].Scored() {
			unscored++
		}
	}
	if unscored > 0 {
		logging.Warn().Int("unscored", unscored).Msg("Users without scores in merged output")
	}
	logging.Info().Int("rows", len(merged)).Msg("Presentation table rebuilt")

	return len(merged), nil
}

// Run executes the full pipeline: ingest, features, train, score, merge.
func (p *Pipeline) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"ingest", p.Ingest},
		{"build-features", p.BuildFeatures},
		{"train", p.Train},
		{"score", p.Score},
		{"merge", p.MergeResults},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		logging.Info().Str("stage", step.name).Msg("Pipeline stage starting")
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("pipeline: stage %s: %w", step.name, err)
		}
	}
	metrics.RecordPipelineSuccess()
	logging.Info().Msg("Pipeline run complete")
	return nil
}
