// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package features

import (
	"errors"
	"testing"
	"time"

	"github.com/streamlytics/churnpipe/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func findRow(t *testing.T, rows []models.FeatureRow, userID string) models.FeatureRow {
	t.Helper()
	for _, r := range rows {
		if r.UserID == userID {
			return r
		}
	}
	t.Fatalf("no feature row for user %q", userID)
	return models.FeatureRow{}
}

func TestBuildEmptyUsers(t *testing.T) {
	_, err := Build(Input{})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Build() error = %v, want ErrEmptyInput", err)
	}
}

func TestBuildOneRowPerUser(t *testing.T) {
	in := Input{
		Users: []models.User{
			{UserID: "u1", SignupDate: day(2025, 1, 1)},
			{UserID: "u2", SignupDate: day(2025, 2, 1)},
			{UserID: "u3", SignupDate: day(2025, 3, 1)},
		},
		Logins: []models.LoginEvent{
			{UserID: "u1", LoginDate: day(2025, 6, 1)},
			{UserID: "u1", LoginDate: day(2025, 6, 10)},
		},
	}

	rows, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(rows) != len(in.Users) {
		t.Fatalf("got %d rows, want %d (one per user)", len(rows), len(in.Users))
	}

	seen := make(map[string]int)
	for _, r := range rows {
		seen[r.UserID]++
	}
	for _, u := range in.Users {
		if seen[u.UserID] != 1 {
			t.Errorf("user %q appears %d times, want exactly once", u.UserID, seen[u.UserID])
		}
	}
}

func TestBuildReferenceTime(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want time.Time
	}{
		{
			name: "max of login dates",
			in: Input{
				Logins: []models.LoginEvent{
					{UserID: "u1", LoginDate: day(2025, 5, 1)},
					{UserID: "u2", LoginDate: day(2025, 7, 15)},
				},
				Watch: []models.WatchEvent{
					{UserID: "u1", WatchDate: day(2025, 6, 1)},
				},
			},
			want: day(2025, 7, 15),
		},
		{
			name: "max of watch dates",
			in: Input{
				Logins: []models.LoginEvent{
					{UserID: "u1", LoginDate: day(2025, 5, 1)},
				},
				Watch: []models.WatchEvent{
					{UserID: "u1", WatchDate: day(2025, 8, 2)},
				},
			},
			want: day(2025, 8, 2),
		},
		{
			name: "falls back to latest signup when no events",
			in: Input{
				Users: []models.User{
					{UserID: "u1", SignupDate: day(2025, 1, 1)},
					{UserID: "u2", SignupDate: day(2025, 4, 1)},
				},
			},
			want: day(2025, 4, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReferenceTime(tt.in); !got.Equal(tt.want) {
				t.Errorf("ReferenceTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSentinelDefaults(t *testing.T) {
	// u2 has no events of any kind; every aggregate must take its
	// documented default, never null or negative.
	in := Input{
		Users: []models.User{
			{UserID: "u1", Age: 30, SignupDate: day(2025, 1, 1)},
			{UserID: "u2", Age: 55, SignupDate: day(2025, 3, 1)},
		},
		Logins: []models.LoginEvent{
			{UserID: "u1", LoginDate: day(2025, 6, 30)},
		},
		Watch: []models.WatchEvent{
			{UserID: "u1", WatchDate: day(2025, 6, 30), WatchTime: 120},
		},
		Ratings: []models.RatingEvent{
			{UserID: "u1", Rating: 4},
		},
	}

	rows, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	r := findRow(t, rows, "u2")
	if r.DaysSinceLastLogin != NoLoginSentinel {
		t.Errorf("DaysSinceLastLogin = %d, want sentinel %d", r.DaysSinceLastLogin, NoLoginSentinel)
	}
	if r.TotalWatchTime30d != 0 {
		t.Errorf("TotalWatchTime30d = %f, want 0", r.TotalWatchTime30d)
	}
	if r.AvgRating != 0 {
		t.Errorf("AvgRating = %f, want 0", r.AvgRating)
	}
	if r.NumRatings != 0 {
		t.Errorf("NumRatings = %d, want 0", r.NumRatings)
	}
}

func TestBuildAccountAge(t *testing.T) {
	in := Input{
		Users: []models.User{
			{UserID: "u1", SignupDate: day(2025, 1, 1)},
		},
		Logins: []models.LoginEvent{
			{UserID: "u1", LoginDate: day(2025, 1, 31)},
		},
	}

	rows, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	r := findRow(t, rows, "u1")
	if r.AccountAgeDays != 30 {
		t.Errorf("AccountAgeDays = %d, want 30", r.AccountAgeDays)
	}
	if r.AccountAgeDays < 0 {
		t.Errorf("AccountAgeDays = %d, must be non-negative", r.AccountAgeDays)
	}
	if r.DaysSinceLastLogin != 0 {
		t.Errorf("DaysSinceLastLogin = %d, want 0 (login on reference date)", r.DaysSinceLastLogin)
	}
}

func TestBuildWatchWindowBoundary(t *testing.T) {
	reference := day(2025, 7, 31)

	tests := []struct {
		name      string
		watchDate time.Time
		want      float64
	}{
		{"inside window", reference.AddDate(0, 0, -5), 90},
		{"exactly at boundary is included", reference.AddDate(0, 0, -WatchWindowDays), 90},
		{"one day outside is excluded", reference.AddDate(0, 0, -WatchWindowDays-1), 0},
		{"on reference date", reference, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{
				Users: []models.User{
					{UserID: "u1", SignupDate: day(2025, 1, 1)},
				},
				// Pin the reference date with a login event.
				Logins: []models.LoginEvent{
					{UserID: "u1", LoginDate: reference},
				},
				Watch: []models.WatchEvent{
					{UserID: "u1", WatchDate: tt.watchDate, WatchTime: 90},
				},
			}

			rows, err := Build(in)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			r := findRow(t, rows, "u1")
			if r.TotalWatchTime30d != tt.want {
				t.Errorf("TotalWatchTime30d = %f, want %f", r.TotalWatchTime30d, tt.want)
			}
		})
	}
}

func TestBuildRatingStats(t *testing.T) {
	in := Input{
		Users: []models.User{
			{UserID: "u1", SignupDate: day(2025, 1, 1)},
		},
		Logins: []models.LoginEvent{
			{UserID: "u1", LoginDate: day(2025, 7, 1)},
		},
		// Ratings have no time window; all of them count.
		Ratings: []models.RatingEvent{
			{UserID: "u1", Rating: 5},
			{UserID: "u1", Rating: 3},
			{UserID: "u1", Rating: 4},
		},
	}

	rows, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	r := findRow(t, rows, "u1")
	if r.NumRatings != 3 {
		t.Errorf("NumRatings = %d, want 3", r.NumRatings)
	}
	if r.AvgRating != 4 {
		t.Errorf("AvgRating = %f, want 4", r.AvgRating)
	}
}

func TestBuildCarriesLabel(t *testing.T) {
	churned := 1
	in := Input{
		Users: []models.User{
			{UserID: "u1", SignupDate: day(2025, 1, 1), Churned: &churned},
			{UserID: "u2", SignupDate: day(2025, 1, 1)},
		},
		Logins: []models.LoginEvent{
			{UserID: "u1", LoginDate: day(2025, 7, 1)},
		},
	}

	rows, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	labeled := findRow(t, rows, "u1")
	if labeled.Churned == nil || *labeled.Churned != 1 {
		t.Errorf("Churned = %v, want 1", labeled.Churned)
	}
	unlabeled := findRow(t, rows, "u2")
	if unlabeled.Churned != nil {
		t.Errorf("Churned = %v, want nil for unlabeled user", unlabeled.Churned)
	}
}

func TestBuildEndToEndScenario(t *testing.T) {
	// Three subscribers: one with no activity ever, one with a login
	// exactly 30 days before the reference date plus an in-window watch
	// event, and one whose login pins the reference date.
	reference := day(2025, 9, 1)
	in := Input{
		Users: []models.User{
			{UserID: "ghost", Age: 41, SignupDate: day(2024, 9, 1)},
			{UserID: "edge", Age: 29, SignupDate: day(2025, 1, 1)},
			{UserID: "anchor", Age: 35, SignupDate: day(2025, 6, 1)},
		},
		Logins: []models.LoginEvent{
			{UserID: "edge", LoginDate: reference.AddDate(0, 0, -30)},
			{UserID: "anchor", LoginDate: reference},
		},
		Watch: []models.WatchEvent{
			{UserID: "edge", WatchDate: reference.AddDate(0, 0, -10), WatchTime: 45},
		},
	}

	rows, err := Build(in)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ghost := findRow(t, rows, "ghost")
	if ghost.DaysSinceLastLogin != 999 || ghost.TotalWatchTime30d != 0 ||
		ghost.AvgRating != 0 || ghost.NumRatings != 0 {
		t.Errorf("inactive user defaults = {%d %f %f %d}, want {999 0 0 0}",
			ghost.DaysSinceLastLogin, ghost.TotalWatchTime30d, ghost.AvgRating, ghost.NumRatings)
	}

	edge := findRow(t, rows, "edge")
	if edge.DaysSinceLastLogin != 30 {
		t.Errorf("edge DaysSinceLastLogin = %d, want 30", edge.DaysSinceLastLogin)
	}
	if edge.TotalWatchTime30d != 45 {
		t.Errorf("edge TotalWatchTime30d = %f, want 45 (in-window watch included)", edge.TotalWatchTime30d)
	}
}
