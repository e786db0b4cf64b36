// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/streamlytics/churnpipe/internal/logging"
)

// APIResponse is the response wrapper for all endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful.
	Success bool `json:"success"`

	// Data contains the response payload (null on error).
	Data any `json:"data,omitempty"`

	// Error contains error details (null on success).
	Error *APIError `json:"error,omitempty"`

	// Meta contains optional metadata about the response.
	Meta *APIMeta `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// APIMeta contains optional response metadata.
type APIMeta struct {
	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`

	// Count is the number of items in a list response.
	Count int `json:"count,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
	}
}

func respondData(w http.ResponseWriter, data any, meta *APIMeta) {
	respondJSON(w, http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}
