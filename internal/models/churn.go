// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

// Package models provides data structures for the ChurnPipe application.
// This file contains the raw event tables and derived churn risk models.
package models

import "time"

// User represents a subscriber profile row from the raw users table.
type User struct {
	// UserID uniquely identifies a subscriber across all tables.
	UserID string `json:"user_id"`

	// Age is the subscriber's age in years.
	Age int `json:"age"`

	// PlanType is the subscription tier (e.g. "basic", "standard", "premium").
	PlanType string `json:"plan_type"`

	// SignupDate is the date the subscriber created their account.
	SignupDate time.Time `json:"signup_date"`

	// Churned is the historical outcome label (1 = churned, 0 = retained).
	// Nil when the outcome is unknown, as in current scoring tables.
	Churned *int `json:"churned,omitempty"`
}

// LoginEvent represents a single login by a subscriber.
type LoginEvent struct {
	UserID    string    `json:"user_id"`
	LoginDate time.Time `json:"login_date"`
}

// WatchEvent represents a single viewing session.
type WatchEvent struct {
	UserID    string    `json:"user_id"`
	WatchDate time.Time `json:"watch_date"`

	// WatchTime is the session duration in minutes.
	WatchTime float64 `json:"watch_time"`
}

// RatingEvent represents a single content rating submitted by a subscriber.
type RatingEvent struct {
	UserID string  `json:"user_id"`
	Rating float64 `json:"rating"`
}

// FeatureRow is the derived feature vector for one subscriber, computed
// as of a shared reference date. Immutable once computed for a given
// input snapshot.
type FeatureRow struct {
	UserID string `json:"user_id"`

	// Age and PlanType are carried over from the user profile.
	Age      int    `json:"age"`
	PlanType string `json:"plan_type"`

	// AccountAgeDays is the whole number of days between signup and the
	// reference date.
	AccountAgeDays int `json:"account_age_days"`

	// DaysSinceLastLogin is the days between the subscriber's most recent
	// login and the reference date. Subscribers with no logins at all get
	// the sentinel value 999.
	DaysSinceLastLogin int `json:"days_since_last_login"`

	// TotalWatchTime30d is the summed watch time over the trailing 30-day
	// window ending at the reference date. Zero when there is no watch
	// activity in the window.
	TotalWatchTime30d float64 `json:"total_watch_time_30d"`

	// AvgRating and NumRatings summarize all ratings ever submitted.
	// Both zero when the subscriber has never rated anything.
	AvgRating  float64 `json:"avg_rating"`
	NumRatings int     `json:"num_ratings"`

	// Churned is the outcome label; present only in historical (labeled)
	// feature tables, nil in current scoring tables.
	Churned *int `json:"churned,omitempty"`
}

// ScoredRow is a FeatureRow plus the model's risk estimate.
type ScoredRow struct {
	FeatureRow

	// ChurnProbability is the classifier's class-1 probability, in [0, 1].
	ChurnProbability float64 `json:"churn_probability"`

	// PredictedChurn is 1 iff ChurnProbability >= the trained threshold.
	PredictedChurn int `json:"predicted_churn"`
}

// MergedRow is one row of the presentation table: subscriber profile
// attributes left-joined with score fields. Score fields are nil for
// subscribers that were added after the last scoring run; the
// presentation layer must tolerate that state.
type MergedRow struct {
	UserID     string    `json:"user_id"`
	Age        int       `json:"age"`
	PlanType   string    `json:"plan_type"`
	SignupDate time.Time `json:"signup_date"`
	Churned    *int      `json:"churned,omitempty"`

	AccountAgeDays     *int     `json:"account_age_days"`
	DaysSinceLastLogin *int     `json:"days_since_last_login"`
	TotalWatchTime30d  *float64 `json:"total_watch_time_30d"`
	AvgRating          *float64 `json:"avg_rating"`
	NumRatings         *int     `json:"num_ratings"`
	ChurnProbability   *float64 `json:"churn_probability"`
	PredictedChurn     *int     `json:"predicted_churn"`
}

// Scored reports whether this row carries score fields from a scoring run.
func (m *MergedRow) Scored() bool {
	return m.ChurnProbability != nil
}

// NumericFeatureNames lists the numeric feature columns fed to the
// classifier, in canonical order.
func NumericFeatureNames() []string {
	return []string{
		"age",
		"account_age_days",
		"days_since_last_login",
		"total_watch_time_30d",
		"avg_rating",
		"num_ratings",
	}
}

// CategoricalFeatureNames lists the categorical feature columns fed to
// the classifier (one-hot encoded), in canonical order.
func CategoricalFeatureNames() []string {
	return []string{"plan_type"}
}

// NumericFeatureValues returns the numeric feature values of a row in
// the same order as NumericFeatureNames.
func (f *FeatureRow) NumericFeatureValues() []float64 {
	return []float64{
		float64(f.Age),
		float64(f.AccountAgeDays),
		float64(f.DaysSinceLastLogin),
		f.TotalWatchTime30d,
		f.AvgRating,
		float64(f.NumRatings),
	}
}

// CategoricalFeatureValues returns the categorical feature values of a
// row in the same order as CategoricalFeatureNames.
func (f *FeatureRow) CategoricalFeatureValues() []string {
	return []string{f.PlanType}
}
