// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package trainer implements the offline training protocol: a
// class-stratified train/validation split, forest fitting with class
// reweighting, F1-driven threshold selection on a fixed grid, and
// atomic persistence of the resulting artifact bundle.
//
// The split, the forest, and the threshold grid all derive from one
// configured seed, so a training run is fully reproducible from its
// inputs and configuration.
package trainer
