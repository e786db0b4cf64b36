// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package features builds the per-subscriber feature table from raw
// event logs.
//
// All temporal aggregates are computed relative to one shared reference
// date: the maximum timestamp observed across the login and watch logs.
// Using the observed maximum rather than wall-clock time makes feature
// values reproducible for a fixed input snapshot.
//
// Missing aggregates default deterministically:
//
//   - no login ever          -> days_since_last_login = 999
//   - no watch in the window -> total_watch_time_30d  = 0
//   - no ratings ever        -> avg_rating = 0, num_ratings = 0
//
// These defaults are policy, not absent data; downstream consumers rely
// on their exact values.
package features

import (
	"errors"
	"time"

	"github.com/streamlytics/churnpipe/internal/logging"
	"github.com/streamlytics/churnpipe/internal/models"
)

// NoLoginSentinel is the days_since_last_login value assigned to
// subscribers with no login events at all.
const NoLoginSentinel = 999

// WatchWindowDays is the length of the trailing watch-time window.
const WatchWindowDays = 30

// ErrEmptyInput is returned when the user table is empty. Empty event
// tables are valid and produce defaults; an empty user table means
// there is nothing to build features for.
var ErrEmptyInput = errors.New("features: user table is empty")

// Input bundles the raw tables consumed by Build. The caller is
// responsible for loading them; the builder never touches storage.
type Input struct {
	Users   []models.User
	Logins  []models.LoginEvent
	Watch   []models.WatchEvent
	Ratings []models.RatingEvent
}

// Build produces exactly one FeatureRow per user in the input, keyed on
// user_id with left-join semantics: every user appears once regardless
// of event coverage. Output order is unspecified.
func Build(in Input) ([]models.FeatureRow, error) {
	if len(in.Users) == 0 {
		return nil, ErrEmptyInput
	}

	reference := ReferenceTime(in)

	lastLogin := make(map[string]time.Time, len(in.Users))
	for _, ev := range in.Logins {
		if cur, ok := lastLogin[ev.UserID]; !ok || ev.LoginDate.After(cur) {
			lastLogin[ev.UserID] = ev.LoginDate
		}
	}

	cutoff := reference.AddDate(0, 0, -WatchWindowDays)
	watch30 := make(map[string]float64)
	for _, ev := range in.Watch {
		// Events exactly at the window boundary are included.
		if !ev.WatchDate.Before(cutoff) {
			watch30[ev.UserID] += ev.WatchTime
		}
	}

	ratingSum := make(map[string]float64)
	ratingCount := make(map[string]int)
	for _, ev := range in.Ratings {
		ratingSum[ev.UserID] += ev.Rating
		ratingCount[ev.UserID]++
	}

	rows := make([]models.FeatureRow, 0, len(in.Users))
	for _, u := range in.Users {
		row := models.FeatureRow{
			UserID:             u.UserID,
			Age:                u.Age,
			PlanType:           u.PlanType,
			AccountAgeDays:     wholeDays(u.SignupDate, reference),
			DaysSinceLastLogin: NoLoginSentinel,
			Churned:            u.Churned,
		}

		if last, ok := lastLogin[u.UserID]; ok {
			row.DaysSinceLastLogin = wholeDays(last, reference)
		}
		row.TotalWatchTime30d = watch30[u.UserID]
		if n := ratingCount[u.UserID]; n > 0 {
			row.AvgRating = ratingSum[u.UserID] / float64(n)
			row.NumRatings = n
		}

		rows = append(rows, row)
	}

	logging.Debug().
		Int("users", len(in.Users)).
		Int("logins", len(in.Logins)).
		Int("watch_events", len(in.Watch)).
		Int("ratings", len(in.Ratings)).
		Time("reference", reference).
		Msg("Feature table built")

	return rows, nil
}

// ReferenceTime returns the shared reference date for an input snapshot:
// the maximum timestamp across the login and watch logs. When both logs
// are empty it falls back to the latest signup date, so that account
// ages remain non-negative and every aggregate takes its default.
func ReferenceTime(in Input) time.Time {
	var ref time.Time
	for _, ev := range in.Logins {
		if ev.LoginDate.After(ref) {
			ref = ev.LoginDate
		}
	}
	for _, ev := range in.Watch {
		if ev.WatchDate.After(ref) {
			ref = ev.WatchDate
		}
	}
	if ref.IsZero() {
		for _, u := range in.Users {
			if u.SignupDate.After(ref) {
				ref = u.SignupDate
			}
		}
	}
	return ref
}

// wholeDays returns the whole number of days from earlier to later.
func wholeDays(earlier, later time.Time) int {
	return int(later.Sub(earlier) / (24 * time.Hour))
}
