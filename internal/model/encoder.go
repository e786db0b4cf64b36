// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/streamlytics/churnpipe/internal/models"
)

// Encoder maps typed feature rows onto a dense numeric design matrix.
// Numeric columns pass through as-is; categorical columns are one-hot
// encoded over the categories observed at fit time.
//
// A category value unseen during fitting encodes as all-zero indicators.
// Production data may contain plan types that did not exist when the
// model was trained, and those rows must still score.
//
// All fields are exported for gob serialization inside a Bundle.
type Encoder struct {
	// NumericNames are the numeric feature columns, in matrix order.
	NumericNames []string

	// CategoricalNames are the categorical feature columns, in matrix
	// order after the numeric block.
	CategoricalNames []string

	// Categories maps each categorical column to its known category
	// values, sorted for a stable indicator layout.
	Categories map[string][]string
}

// FitEncoder learns the categorical vocabulary from the given rows and
// returns an encoder with the canonical feature schema.
func FitEncoder(rows []models.FeatureRow) *Encoder {
	e := &Encoder{
		NumericNames:     models.NumericFeatureNames(),
		CategoricalNames: models.CategoricalFeatureNames(),
		Categories:       make(map[string][]string),
	}

	for ci, name := range e.CategoricalNames {
		seen := make(map[string]struct{})
		for i := range rows {
			seen[rows[i].CategoricalFeatureValues()[ci]] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		e.Categories[name] = cats
	}

	return e
}

// NumFeatures returns the width of the encoded matrix.
func (e *Encoder) NumFeatures() int {
	n := len(e.NumericNames)
	for _, name := range e.CategoricalNames {
		n += len(e.Categories[name])
	}
	return n
}

// ColumnNames returns the encoded column names in matrix order:
// numeric columns first, then one indicator column per known category
// named "<column>=<category>".
func (e *Encoder) ColumnNames() []string {
	names := make([]string, 0, e.NumFeatures())
	names = append(names, e.NumericNames...)
	for _, col := range e.CategoricalNames {
		for _, cat := range e.Categories[col] {
			names = append(names, col+"="+cat)
		}
	}
	return names
}

// Transform encodes rows into a dense matrix of shape len(rows) x NumFeatures.
// Returns nil for an empty row set (gonum rejects zero-row matrices).
func (e *Encoder) Transform(rows []models.FeatureRow) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	p := e.NumFeatures()
	x := mat.NewDense(len(rows), p, nil)

	for i := range rows {
		col := 0
		for _, v := range rows[i].NumericFeatureValues() {
			x.Set(i, col, v)
			col++
		}
		catVals := rows[i].CategoricalFeatureValues()
		for ci, name := range e.CategoricalNames {
			for _, cat := range e.Categories[name] {
				if catVals[ci] == cat {
					x.Set(i, col, 1)
				}
				col++
			}
		}
	}

	return x
}
