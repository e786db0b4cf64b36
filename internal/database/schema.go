// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package database

import (
	"context"
	"fmt"
)

// schemaStatements creates every pipeline table. Derived tables carry
// the same column set as their in-memory counterparts in the models
// package; user_risk additionally stores the output position so that
// the contracted probability-descending order (stable on ties) is
// reproduced exactly on load.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id     VARCHAR NOT NULL,
		age         INTEGER NOT NULL,
		plan_type   VARCHAR NOT NULL,
		signup_date DATE NOT NULL,
		churned     INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS logins (
		user_id    VARCHAR NOT NULL,
		login_date DATE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS watch (
		user_id    VARCHAR NOT NULL,
		watch_date DATE NOT NULL,
		watch_time DOUBLE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id VARCHAR NOT NULL,
		rating  DOUBLE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS churn_features (
		user_id               VARCHAR NOT NULL,
		age                   INTEGER NOT NULL,
		plan_type             VARCHAR NOT NULL,
		account_age_days      INTEGER NOT NULL,
		days_since_last_login INTEGER NOT NULL,
		total_watch_time_30d  DOUBLE NOT NULL,
		avg_rating            DOUBLE NOT NULL,
		num_ratings           INTEGER NOT NULL,
		churned               INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS user_risk (
		position              INTEGER NOT NULL,
		user_id               VARCHAR NOT NULL,
		age                   INTEGER NOT NULL,
		plan_type             VARCHAR NOT NULL,
		account_age_days      INTEGER NOT NULL,
		days_since_last_login INTEGER NOT NULL,
		total_watch_time_30d  DOUBLE NOT NULL,
		avg_rating            DOUBLE NOT NULL,
		num_ratings           INTEGER NOT NULL,
		churned               INTEGER,
		churn_probability     DOUBLE NOT NULL,
		predicted_churn       INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS final_user_risk (
		user_id               VARCHAR NOT NULL,
		age                   INTEGER NOT NULL,
		plan_type             VARCHAR NOT NULL,
		signup_date           DATE NOT NULL,
		churned               INTEGER,
		account_age_days      INTEGER,
		days_since_last_login INTEGER,
		total_watch_time_30d  DOUBLE,
		avg_rating            DOUBLE,
		num_ratings           INTEGER,
		churn_probability     DOUBLE,
		predicted_churn       INTEGER
	)`,
}

// initSchema creates all tables if they do not exist.
func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
