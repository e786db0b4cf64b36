// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package model implements the churn classifier and its persistence.
//
// # Components
//
//   - Encoder: turns typed feature rows into a dense numeric matrix,
//     one-hot encoding categorical columns with a fixed unknown-category
//     policy (all-zero indicators).
//   - Forest: a bagged ensemble of depth-limited decision trees with
//     inverse-frequency class weighting to counteract class imbalance.
//   - Bundle: the versioned artifact pairing a trained forest, its
//     encoder, and the tuned decision threshold. The pair is persisted
//     atomically; a threshold is never applied against a forest it was
//     not trained with.
//
// # Substitutability
//
// The rest of the pipeline depends only on the Classifier interface
// (predict a class-1 probability per row), so any implementation
// satisfying that contract can replace the forest without touching the
// trainer or scorer.
//
// # Determinism
//
// Training is deterministic for a fixed seed: each tree derives its own
// random source from the configured seed and tree index, so results do
// not depend on goroutine scheduling.
package model
