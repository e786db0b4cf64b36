// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package merge joins scored rows back onto subscriber profiles for the
// presentation layer.
//
// The join is anchored on the user table: output cardinality always
// equals user cardinality. Subscribers without a score (added after the
// last feature build) appear with nil score fields, which the
// presentation layer must tolerate; scored rows with no matching
// subscriber are dropped.
package merge

import (
	"github.com/streamlytics/churnpipe/internal/logging"
	"github.com/streamlytics/churnpipe/internal/models"
)

// Merge left-joins scores onto users by user_id, producing exactly one
// merged row per user in input order.
func Merge(users []models.User, scores []models.ScoredRow) []models.MergedRow {
	byUser := make(map[string]*models.ScoredRow, len(scores))
	for i := range scores {
		if _, ok := byUser[scores[i].UserID]; !ok {
			byUser[scores[i].UserID] = &scores[i]
		}
	}

	merged := make([]models.MergedRow, 0, len(users))
	var unscored int
	for _, u := range users {
		row := models.MergedRow{
			UserID:     u.UserID,
			Age:        u.Age,
			PlanType:   u.PlanType,
			SignupDate: u.SignupDate,
			Churned:    u.Churned,
		}
		if s, ok := byUser[u.UserID]; ok {
			row.AccountAgeDays = intPtr(s.AccountAgeDays)
			row.DaysSinceLastLogin = intPtr(s.DaysSinceLastLogin)
			row.TotalWatchTime30d = floatPtr(s.TotalWatchTime30d)
			row.AvgRating = floatPtr(s.AvgRating)
			row.NumRatings = intPtr(s.NumRatings)
			row.ChurnProbability = floatPtr(s.ChurnProbability)
			row.PredictedChurn = intPtr(s.PredictedChurn)
		} else {
			unscored++
		}
		merged = append(merged, row)
	}

	logging.Debug().
		Int("users", len(users)).
		Int("scores", len(scores)).
		Int("unscored", unscored).
		Msg("Scores merged onto user profiles")

	return merged
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
