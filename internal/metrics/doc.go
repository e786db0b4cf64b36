// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

/*
Package metrics provides Prometheus metrics collection and export for observability.

# Overview

The package instruments the four pipeline stages, model training diagnostics,
database queries, and the risk API:

Pipeline Metrics:
  - pipeline_stage_duration_seconds: Stage execution time (histogram)
    Labels: stage (features, train, score, merge)
  - pipeline_stage_runs_total: Stage executions (counter)
    Labels: stage, status (success, failure)
  - pipeline_stage_rows: Rows produced by the most recent run (gauge)
    Labels: stage
  - pipeline_last_success_timestamp: Unix timestamp of last full run (gauge)

Training Metrics:
  - training_validation_auc: Validation ROC-AUC from the last run (gauge)
  - training_validation_f1: Best validation F1 from the last run (gauge)
  - training_decision_threshold: Selected decision threshold (gauge)
  - training_samples: Labeled sample counts (gauge)
    Labels: partition (train, validation)

Scoring Metrics:
  - scoring_users: Subscribers scored in the last run (gauge)
  - scoring_predicted_churners: Subscribers flagged as risks (gauge)

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: Failed queries (counter)
    Labels: operation, table

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8460/metrics

# Thread Safety

All recording functions are safe for concurrent use. The Prometheus client
library handles synchronization internally.

# Cardinality Management

Labels are restricted to fixed, low-cardinality value sets: stage names,
table names, and normalized route patterns. Per-subscriber labels are
never used.
*/
package metrics
