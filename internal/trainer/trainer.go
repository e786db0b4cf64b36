// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package trainer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/streamlytics/churnpipe/internal/logging"
	"github.com/streamlytics/churnpipe/internal/model"
	"github.com/streamlytics/churnpipe/internal/models"
)

// ErrInsufficientData is returned when the labeled feature table cannot
// support a training run: no labeled rows remain after dropping missing
// targets, only one outcome class is present, or the validation
// partition would be empty.
var ErrInsufficientData = errors.New("trainer: insufficient labeled data")

// ThresholdGrid defines the candidate decision thresholds evaluated
// during threshold search. The grid starts at Start (exclusive of 0)
// and advances by Step while below 1.0. Whether 1.0 itself is a valid
// candidate is an explicit configuration choice rather than an
// accident of the step arithmetic.
type ThresholdGrid struct {
	Start float64
	Step  float64

	// IncludeOne appends 1.0 as a final candidate. A threshold of 1.0
	// predicts churn only for rows the model is completely certain of.
	IncludeOne bool
}

// DefaultThresholdGrid returns the production grid: 0.05 steps over
// (0, 1), excluding 1.0.
func DefaultThresholdGrid() ThresholdGrid {
	return ThresholdGrid{Start: 0.05, Step: 0.05, IncludeOne: false}
}

// Candidates materializes the grid in ascending order.
func (g ThresholdGrid) Candidates() []float64 {
	start := g.Start
	if start <= 0 {
		start = 0.05
	}
	step := g.Step
	if step <= 0 {
		step = 0.05
	}

	n := int(math.Round((1.0 - start) / step))
	out := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		t := start + float64(i)*step
		if t > 1.0-1e-9 {
			break
		}
		out = append(out, t)
	}
	if g.IncludeOne {
		out = append(out, 1.0)
	}
	return out
}

// Config holds the fixed training configuration.
type Config struct {
	// Seed drives the stratified split and the forest's bootstrap
	// sampling.
	Seed int64

	// ValidationFraction is the share of labeled rows held out for
	// threshold selection and diagnostics.
	ValidationFraction float64

	Forest model.ForestConfig
	Grid   ThresholdGrid
}

// DefaultConfig returns the production training configuration.
func DefaultConfig() Config {
	return Config{
		Seed:               42,
		ValidationFraction: 0.2,
		Forest:             model.DefaultForestConfig(),
		Grid:               DefaultThresholdGrid(),
	}
}

// Metrics summarizes one training run. Informational only; nothing in
// the pipeline gates on these values.
type Metrics struct {
	TrainRows      int     `json:"train_rows"`
	ValidationRows int     `json:"validation_rows"`
	PositiveRate   float64 `json:"positive_rate"`
	ROCAUC         float64 `json:"roc_auc"`
	BestThreshold  float64 `json:"best_threshold"`
	BestF1         float64 `json:"best_f1"`
	F1AtDefault    float64 `json:"f1_at_default"`
}

// Result is the output of a training run.
type Result struct {
	Bundle  *model.Bundle
	Metrics Metrics
}

// Train fits a classifier on the labeled feature rows and selects the
// operating threshold. Rows with a missing target are dropped before
// anything else happens.
func Train(cfg Config, rows []models.FeatureRow) (*Result, error) {
	if cfg.ValidationFraction <= 0 || cfg.ValidationFraction >= 1 {
		cfg.ValidationFraction = 0.2
	}
	cfg.Forest.Seed = cfg.Seed

	labeled := make([]models.FeatureRow, 0, len(rows))
	for i := range rows {
		if rows[i].Churned != nil {
			labeled = append(labeled, rows[i])
		}
	}
	if len(labeled) == 0 {
		return nil, fmt.Errorf("%w: no rows with a target remain", ErrInsufficientData)
	}

	y := make([]int, len(labeled))
	var positives int
	for i := range labeled {
		y[i] = *labeled[i].Churned
		if y[i] == 1 {
			positives++
		}
	}
	if positives == 0 || positives == len(y) {
		return nil, fmt.Errorf("%w: target contains a single class", ErrInsufficientData)
	}

	trainIdx, valIdx := stratifiedSplit(y, cfg.ValidationFraction, cfg.Seed)
	if len(valIdx) == 0 {
		return nil, fmt.Errorf("%w: validation partition is empty", ErrInsufficientData)
	}

	trainRows := make([]models.FeatureRow, len(trainIdx))
	trainY := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainRows[i] = labeled[idx]
		trainY[i] = y[idx]
	}
	valRows := make([]models.FeatureRow, len(valIdx))
	valY := make([]int, len(valIdx))
	for i, idx := range valIdx {
		valRows[i] = labeled[idx]
		valY[i] = y[idx]
	}

	// The encoder is fitted on the training partition only, so category
	// values first seen in validation exercise the unknown-category
	// policy the same way production data will.
	encoder := model.FitEncoder(trainRows)

	forest, err := model.FitForest(cfg.Forest, encoder.Transform(trainRows), trainY)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}

	valProbs := forest.PredictProbability(encoder.Transform(valRows))

	bestThreshold, bestF1 := searchThreshold(cfg.Grid, valY, valProbs)
	auc := rocAUC(valY, valProbs)
	f1Default := f1Score(valY, applyThreshold(valProbs, 0.5))

	bundle := model.NewBundle(forest, encoder, bestThreshold)
	bundle.ValidationAUC = auc
	bundle.ValidationF1 = bestF1

	m := Metrics{
		TrainRows:      len(trainIdx),
		ValidationRows: len(valIdx),
		PositiveRate:   float64(positives) / float64(len(y)),
		ROCAUC:         auc,
		BestThreshold:  bestThreshold,
		BestF1:         bestF1,
		F1AtDefault:    f1Default,
	}

	logging.Info().
		Str("bundle_id", bundle.ID).
		Int("train_rows", m.TrainRows).
		Int("validation_rows", m.ValidationRows).
		Float64("positive_rate", m.PositiveRate).
		Float64("roc_auc", m.ROCAUC).
		Float64("threshold", m.BestThreshold).
		Float64("f1", m.BestF1).
		Msg("Training run complete")

	return &Result{Bundle: bundle, Metrics: m}, nil
}

// searchThreshold evaluates every grid candidate on the validation
// partition and returns the one maximizing F1. Ties break to the
// lowest candidate via strict improvement; if no candidate scores
// above zero the default 0.5 is kept.
func searchThreshold(grid ThresholdGrid, y []int, probs []float64) (threshold, f1 float64) {
	threshold = 0.5
	for _, t := range grid.Candidates() {
		score := f1Score(y, applyThreshold(probs, t))
		if score > f1 {
			f1 = score
			threshold = t
		}
	}
	return threshold, f1
}

// applyThreshold maps probabilities to binary predictions:
// 1 iff prob >= threshold.
func applyThreshold(probs []float64, threshold float64) []int {
	preds := make([]int, len(probs))
	for i, p := range probs {
		if p >= threshold {
			preds[i] = 1
		}
	}
	return preds
}

// stratifiedSplit partitions row indices into train and validation
// sets, preserving the class ratio. Each class is shuffled and split
// independently, and at least one sample per class always stays in the
// training partition.
func stratifiedSplit(y []int, validationFraction float64, seed int64) (trainIdx, valIdx []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := map[int][]int{}
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	// Iterate classes in fixed order for determinism.
	for _, label := range []int{0, 1} {
		indices := byClass[label]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nVal := int(math.Round(float64(len(indices)) * validationFraction))
		if nVal >= len(indices) {
			nVal = len(indices) - 1
		}
		if nVal < 0 {
			nVal = 0
		}

		valIdx = append(valIdx, indices[:nVal]...)
		trainIdx = append(trainIdx, indices[nVal:]...)
	}

	return trainIdx, valIdx
}
