// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/streamlytics/churnpipe/internal/models"
)

// LoadUsers reads the full users table.
func (db *DB) LoadUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT user_id, age, plan_type, signup_date, churned FROM users")
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		var u models.User
		var churned sql.NullInt32
		if err := rows.Scan(&u.UserID, &u.Age, &u.PlanType, &u.SignupDate, &churned); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Churned = nullableInt(churned)
		users = append(users, u)
	}
	return users, rows.Err()
}

// LoadLogins reads the full logins table.
func (db *DB) LoadLogins(ctx context.Context) ([]models.LoginEvent, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT user_id, login_date FROM logins")
	if err != nil {
		return nil, fmt.Errorf("failed to load logins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.LoginEvent
	for rows.Next() {
		var ev models.LoginEvent
		if err := rows.Scan(&ev.UserID, &ev.LoginDate); err != nil {
			return nil, fmt.Errorf("failed to scan login row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LoadWatch reads the full watch table.
func (db *DB) LoadWatch(ctx context.Context) ([]models.WatchEvent, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT user_id, watch_date, watch_time FROM watch")
	if err != nil {
		return nil, fmt.Errorf("failed to load watch events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.WatchEvent
	for rows.Next() {
		var ev models.WatchEvent
		if err := rows.Scan(&ev.UserID, &ev.WatchDate, &ev.WatchTime); err != nil {
			return nil, fmt.Errorf("failed to scan watch row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LoadRatings reads the full ratings table.
func (db *DB) LoadRatings(ctx context.Context) ([]models.RatingEvent, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT user_id, rating FROM ratings")
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.RatingEvent
	for rows.Next() {
		var ev models.RatingEvent
		if err := rows.Scan(&ev.UserID, &ev.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// WriteFeatures replaces the churn_features table with the given rows.
// The replacement is transactional: a failure leaves the previous
// feature table intact.
func (db *DB) WriteFeatures(ctx context.Context, features []models.FeatureRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin feature write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM churn_features"); err != nil {
		return fmt.Errorf("failed to clear churn_features: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO churn_features
		(user_id, age, plan_type, account_age_days, days_since_last_login,
		 total_watch_time_30d, avg_rating, num_ratings, churned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range features {
		f := &features[i]
		if _, err := stmt.ExecContext(ctx,
			f.UserID, f.Age, f.PlanType, f.AccountAgeDays, f.DaysSinceLastLogin,
			f.TotalWatchTime30d, f.AvgRating, f.NumRatings, nullableIntValue(f.Churned),
		); err != nil {
			return fmt.Errorf("failed to insert feature row for %s: %w", f.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit churn_features: %w", err)
	}
	return nil
}

// LoadFeatures reads the full churn_features table.
func (db *DB) LoadFeatures(ctx context.Context) ([]models.FeatureRow, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT
		user_id, age, plan_type, account_age_days, days_since_last_login,
		total_watch_time_30d, avg_rating, num_ratings, churned
		FROM churn_features`)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var features []models.FeatureRow
	for rows.Next() {
		var f models.FeatureRow
		var churned sql.NullInt32
		if err := rows.Scan(&f.UserID, &f.Age, &f.PlanType, &f.AccountAgeDays,
			&f.DaysSinceLastLogin, &f.TotalWatchTime30d, &f.AvgRating, &f.NumRatings, &churned,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		f.Churned = nullableInt(churned)
		features = append(features, f)
	}
	return features, rows.Err()
}

// WriteScores replaces the user_risk table. The slice order (highest
// risk first, stable on ties) is stored in the position column and
// reproduced by LoadScores.
func (db *DB) WriteScores(ctx context.Context, scores []models.ScoredRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin score write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_risk"); err != nil {
		return fmt.Errorf("failed to clear user_risk: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO user_risk
		(position, user_id, age, plan_type, account_age_days, days_since_last_login,
		 total_watch_time_30d, avg_rating, num_ratings, churned,
		 churn_probability, predicted_churn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range scores {
		s := &scores[i]
		if _, err := stmt.ExecContext(ctx,
			i, s.UserID, s.Age, s.PlanType, s.AccountAgeDays, s.DaysSinceLastLogin,
			s.TotalWatchTime30d, s.AvgRating, s.NumRatings, nullableIntValue(s.Churned),
			s.ChurnProbability, s.PredictedChurn,
		); err != nil {
			return fmt.Errorf("failed to insert score row for %s: %w", s.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user_risk: %w", err)
	}
	return nil
}

// LoadScores reads the user_risk table in its contracted order.
func (db *DB) LoadScores(ctx context.Context) ([]models.ScoredRow, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT
		user_id, age, plan_type, account_age_days, days_since_last_login,
		total_watch_time_30d, avg_rating, num_ratings, churned,
		churn_probability, predicted_churn
		FROM user_risk ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scores []models.ScoredRow
	for rows.Next() {
		var s models.ScoredRow
		var churned sql.NullInt32
		if err := rows.Scan(&s.UserID, &s.Age, &s.PlanType, &s.AccountAgeDays,
			&s.DaysSinceLastLogin, &s.TotalWatchTime30d, &s.AvgRating, &s.NumRatings,
			&churned, &s.ChurnProbability, &s.PredictedChurn,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		s.Churned = nullableInt(churned)
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// WriteMerged replaces the final_user_risk presentation table.
func (db *DB) WriteMerged(ctx context.Context, merged []models.MergedRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merged write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM final_user_risk"); err != nil {
		return fmt.Errorf("failed to clear final_user_risk: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO final_user_risk
		(user_id, age, plan_type, signup_date, churned, account_age_days,
		 days_since_last_login, total_watch_time_30d, avg_rating, num_ratings,
		 churn_probability, predicted_churn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare merged insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range merged {
		m := &merged[i]
		if _, err := stmt.ExecContext(ctx,
			m.UserID, m.Age, m.PlanType, m.SignupDate, nullableIntValue(m.Churned),
			nullableIntValue(m.AccountAgeDays), nullableIntValue(m.DaysSinceLastLogin),
			nullableFloatValue(m.TotalWatchTime30d), nullableFloatValue(m.AvgRating),
			nullableIntValue(m.NumRatings), nullableFloatValue(m.ChurnProbability),
			nullableIntValue(m.PredictedChurn),
		); err != nil {
			return fmt.Errorf("failed to insert merged row for %s: %w", m.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final_user_risk: %w", err)
	}
	return nil
}

// LoadMerged reads the presentation table with the highest risk first
// and unscored subscribers at the end.
func (db *DB) LoadMerged(ctx context.Context) ([]models.MergedRow, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT
		user_id, age, plan_type, signup_date, churned, account_age_days,
		days_since_last_login, total_watch_time_30d, avg_rating, num_ratings,
		churn_probability, predicted_churn
		FROM final_user_risk
		ORDER BY churn_probability DESC NULLS LAST, user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load merged rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merged []models.MergedRow
	for rows.Next() {
		var m models.MergedRow
		var churned, accountAge, daysSince, numRatings, predicted sql.NullInt32
		var watch, avgRating, prob sql.NullFloat64
		if err := rows.Scan(&m.UserID, &m.Age, &m.PlanType, &m.SignupDate, &churned,
			&accountAge, &daysSince, &watch, &avgRating, &numRatings, &prob, &predicted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan merged row: %w", err)
		}
		m.Churned = nullableInt(churned)
		m.AccountAgeDays = nullableInt(accountAge)
		m.DaysSinceLastLogin = nullableInt(daysSince)
		m.TotalWatchTime30d = nullableFloat(watch)
		m.AvgRating = nullableFloat(avgRating)
		m.NumRatings = nullableInt(numRatings)
		m.ChurnProbability = nullableFloat(prob)
		m.PredictedChurn = nullableInt(predicted)
		merged = append(merged, m)
	}
	return merged, rows.Err()
}

// RiskSummary aggregates the presentation table for the API.
type RiskSummary struct {
	TotalUsers        int     `json:"total_users"`
	ScoredUsers       int     `json:"scored_users"`
	PredictedChurners int     `json:"predicted_churners"`
	AvgProbability    float64 `json:"avg_churn_probability"`
	MaxProbability    float64 `json:"max_churn_probability"`
}

// LoadRiskSummary computes aggregate counts over final_user_risk.
func (db *DB) LoadRiskSummary(ctx context.Context) (*RiskSummary, error) {
	var s RiskSummary
	err := db.conn.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(churn_probability),
		COALESCE(SUM(predicted_churn), 0),
		COALESCE(AVG(churn_probability), 0),
		COALESCE(MAX(churn_probability), 0)
		FROM final_user_risk`).Scan(
		&s.TotalUsers, &s.ScoredUsers, &s.PredictedChurners,
		&s.AvgProbability, &s.MaxProbability)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk summary: %w", err)
	}
	return &s, nil
}

func nullableInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableIntValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
