// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/streamlytics/churnpipe/internal/database"
	"github.com/streamlytics/churnpipe/internal/models"
)

// Version is the reported application version.
const Version = "1.0.0"

// maxRiskLimit caps the ?limit parameter on the risk listing.
const maxRiskLimit = 10000

// RiskStore is the read-only view of the table store the API serves
// from. *database.DB satisfies it; tests substitute a fixture.
type RiskStore interface {
	Ping(ctx context.Context) error
	LoadMerged(ctx context.Context) ([]models.MergedRow, error)
	LoadRiskSummary(ctx context.Context) (*database.RiskSummary, error)
}

var _ RiskStore = (*database.DB)(nil)

// Handler serves the risk API endpoints.
type Handler struct {
	store RiskStore
}

// NewHandler returns a handler backed by the given store.
func NewHandler(store RiskStore) *Handler {
	return &Handler{store: store}
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status            string    `json:"status"`
	Version           string    `json:"version"`
	DatabaseConnected bool      `json:"database_connected"`
	Timestamp         time.Time `json:"timestamp"`
}

// Health reports database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store.Ping(r.Context()) == nil

	status := "healthy"
	code := http.StatusOK
	if !dbConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, APIResponse{
		Success: dbConnected,
		Data: HealthStatus{
			Status:            status,
			Version:           Version,
			DatabaseConnected: dbConnected,
			Timestamp:         time.Now().UTC(),
		},
	})
}

// Risk returns the merged risk table, highest risk first. An optional
// ?limit=N query parameter truncates the listing.
func (h *Handler) Risk(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRiskLimit {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT",
				"limit must be an integer between 1 and 10000")
			return
		}
		limit = n
	}

	rows, err := h.store.LoadMerged(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED",
			"failed to load risk table")
		return
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []models.MergedRow{}
	}

	respondData(w, rows, &APIMeta{Timestamp: time.Now().UTC(), Count: len(rows)})
}

// RiskSummary returns aggregate counts over the risk table.
func (h *Handler) RiskSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.LoadRiskSummary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED",
			"failed to load risk summary")
		return
	}
	respondData(w, summary, &APIMeta{Timestamp: time.Now().UTC()})
}
