// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package scorer applies a trained artifact bundle to a feature table,
// producing a churn probability and binary prediction per subscriber.
//
// A Scorer is constructed once around a loaded bundle and reused across
// scoring calls; there is no hidden process-wide model state. The
// output table is sorted by churn probability descending (stable on
// input order for ties) so the highest-risk subscribers come first.
// That ordering is part of the contract.
package scorer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/streamlytics/churnpipe/internal/logging"
	"github.com/streamlytics/churnpipe/internal/model"
	"github.com/streamlytics/churnpipe/internal/models"
)

// ErrInvalidProbability is wrapped by InvalidProbabilityError; it marks
// a corrupted or incompatible artifact whose output left [0, 1].
var ErrInvalidProbability = errors.New("scorer: model produced probability outside [0,1]")

// SchemaMismatchError reports a feature column disagreement between the
// bundle's training-time schema and the schema this build scores with.
// A bundle trained against a different column set must never be applied.
type SchemaMismatchError struct {
	Want []string
	Got  []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("scorer: feature schema mismatch: bundle trained on [%s], scoring schema is [%s]",
		strings.Join(e.Want, " "), strings.Join(e.Got, " "))
}

// InvalidProbabilityError identifies the row whose probability estimate
// failed the defensive range check.
type InvalidProbabilityError struct {
	UserID string
	Value  float64
}

func (e *InvalidProbabilityError) Error() string {
	return fmt.Sprintf("scorer: probability %f for user %s outside [0,1]", e.Value, e.UserID)
}

func (e *InvalidProbabilityError) Unwrap() error {
	return ErrInvalidProbability
}

// Scorer applies one loaded bundle. Safe for concurrent use: scoring
// never mutates the bundle.
type Scorer struct {
	bundle *model.Bundle
}

// New validates the bundle's feature schema against this build's
// canonical schema and returns a ready Scorer.
func New(bundle *model.Bundle) (*Scorer, error) {
	want := append(append([]string{}, models.NumericFeatureNames()...), models.CategoricalFeatureNames()...)
	got := append(append([]string{}, bundle.Encoder.NumericNames...), bundle.Encoder.CategoricalNames...)

	if len(want) != len(got) {
		return nil, &SchemaMismatchError{Want: got, Got: want}
	}
	for i := range want {
		if want[i] != got[i] {
			return nil, &SchemaMismatchError{Want: got, Got: want}
		}
	}

	return &Scorer{bundle: bundle}, nil
}

// Threshold returns the decision threshold paired with the bundle.
func (s *Scorer) Threshold() float64 {
	return s.bundle.Threshold
}

// BundleID returns the version id of the loaded artifact.
func (s *Scorer) BundleID() string {
	return s.bundle.ID
}

// Score produces one ScoredRow per input row, sorted by churn
// probability descending. A target column present on the input is
// ignored for inference but carried through to the output. Identity
// and label fields pass through unmodified; only the feature columns
// are fed to the model.
func (s *Scorer) Score(rows []models.FeatureRow) ([]models.ScoredRow, error) {
	if len(rows) == 0 {
		return []models.ScoredRow{}, nil
	}

	probs := s.bundle.Forest.PredictProbability(s.bundle.Encoder.Transform(rows))

	scored := make([]models.ScoredRow, len(rows))
	for i := range rows {
		p := probs[i]
		if p < 0 || p > 1 {
			return nil, &InvalidProbabilityError{UserID: rows[i].UserID, Value: p}
		}
		scored[i] = models.ScoredRow{
			FeatureRow:       rows[i],
			ChurnProbability: p,
		}
		if p >= s.bundle.Threshold {
			scored[i].PredictedChurn = 1
		}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].ChurnProbability > scored[b].ChurnProbability
	})

	logging.Debug().
		Str("bundle_id", s.bundle.ID).
		Int("rows", len(scored)).
		Float64("threshold", s.bundle.Threshold).
		Msg("Feature table scored")

	return scored, nil
}
