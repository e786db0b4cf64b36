// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package models provides the data structures shared across the churn
// pipeline: raw event tables, the derived per-user feature row, scored
// rows, and the merged presentation table.
//
// The pipeline stages communicate exclusively through these types (and
// their materialized counterparts in the table store); no stage shares
// in-memory handles with another.
package models
