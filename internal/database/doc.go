// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package database provides the DuckDB-backed table store for the
// churn pipeline.
//
// Pipeline stages communicate only through the tables materialized
// here; the algorithmic core never touches storage directly. Raw CSV
// inputs are ingested with explicit column contracts, and every derived
// table (churn_features, user_risk, final_user_risk) is rebuilt in full
// inside a transaction: either the complete new table commits, or the
// previous contents survive untouched.
//
// # Tables
//
//   - users, logins, watch, ratings: raw inputs, replaced on ingest
//   - churn_features: one feature row per subscriber
//   - user_risk: scored rows, ordered by churn probability descending
//   - final_user_risk: profile + score presentation table
package database
