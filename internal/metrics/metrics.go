// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Stage Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"}, // "features", "train", "score", "merge"
	)

	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_runs_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "status"}, // status: "success", "failure"
	)

	StageRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_stage_rows",
			Help: "Number of rows produced by the most recent run of each stage",
		},
		[]string{"stage"},
	)

	PipelineLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_last_success_timestamp",
			Help: "Unix timestamp of the last successful full pipeline run",
		},
	)

	// Training Metrics
	TrainingValidationAUC = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_validation_auc",
			Help: "ROC-AUC on the validation partition from the most recent training run",
		},
	)

	TrainingValidationF1 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_validation_f1",
			Help: "Best validation F1 from the most recent training run",
		},
	)

	TrainingThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_decision_threshold",
			Help: "Decision threshold selected by the most recent training run",
		},
	)

	TrainingSamples = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "training_samples",
			Help: "Number of labeled samples used by the most recent training run",
		},
		[]string{"partition"}, // "train", "validation"
	)

	// Scoring Metrics
	ScoredUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_users",
			Help: "Number of subscribers scored in the most recent scoring run",
		},
	)

	PredictedChurners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoring_predicted_churners",
			Help: "Number of subscribers flagged as churn risks in the most recent scoring run",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordStage records one pipeline stage execution.
func RecordStage(stage string, duration time.Duration, rows int, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		StageRuns.WithLabelValues(stage, "failure").Inc()
		return
	}
	StageRuns.WithLabelValues(stage, "success").Inc()
	StageRows.WithLabelValues(stage).Set(float64(rows))
}

// RecordPipelineSuccess marks the completion of a full pipeline run.
func RecordPipelineSuccess() {
	PipelineLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordTraining publishes diagnostics from a training run.
func RecordTraining(auc, f1, threshold float64, trainSamples, validationSamples int) {
	TrainingValidationAUC.Set(auc)
	TrainingValidationF1.Set(f1)
	TrainingThreshold.Set(threshold)
	TrainingSamples.WithLabelValues("train").Set(float64(trainSamples))
	TrainingSamples.WithLabelValues("validation").Set(float64(validationSamples))
}

// RecordScoring publishes counts from a scoring run.
func RecordScoring(scored, flagged int) {
	ScoredUsers.Set(float64(scored))
	PredictedChurners.Set(float64(flagged))
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
