// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamlytics/churnpipe/internal/config"
	"github.com/streamlytics/churnpipe/internal/logging"
)

// rawTableSpec is the column contract for one raw input CSV. Required
// columns must exist in the file; optional columns fall back to NULL.
type rawTableSpec struct {
	name     string
	required []string
	optional []string
	// casts maps columns to their target DuckDB type.
	casts map[string]string
}

var rawTableSpecs = []rawTableSpec{
	{
		name:     "users",
		required: []string{"user_id", "age", "plan_type", "signup_date"},
		optional: []string{"churned"},
		casts: map[string]string{
			"user_id": "VARCHAR", "age": "INTEGER", "plan_type": "VARCHAR",
			"signup_date": "DATE", "churned": "INTEGER",
		},
	},
	{
		name:     "logins",
		required: []string{"user_id", "login_date"},
		casts:    map[string]string{"user_id": "VARCHAR", "login_date": "DATE"},
	},
	{
		name:     "watch",
		required: []string{"user_id", "watch_date", "watch_time"},
		casts:    map[string]string{"user_id": "VARCHAR", "watch_date": "DATE", "watch_time": "DOUBLE"},
	},
	{
		name:     "ratings",
		required: []string{"user_id", "rating"},
		casts:    map[string]string{"user_id": "VARCHAR", "rating": "DOUBLE"},
	},
}

// ImportUsers replaces the users table with the contents of a CSV file.
func (db *DB) ImportUsers(ctx context.Context, path string) (int64, error) {
	return db.importCSV(ctx, rawTableSpecs[0], path)
}

// ImportLogins replaces the logins table with the contents of a CSV file.
func (db *DB) ImportLogins(ctx context.Context, path string) (int64, error) {
	return db.importCSV(ctx, rawTableSpecs[1], path)
}

// ImportWatch replaces the watch table with the contents of a CSV file.
func (db *DB) ImportWatch(ctx context.Context, path string) (int64, error) {
	return db.importCSV(ctx, rawTableSpecs[2], path)
}

// ImportRatings replaces the ratings table with the contents of a CSV file.
func (db *DB) ImportRatings(ctx context.Context, path string) (int64, error) {
	return db.importCSV(ctx, rawTableSpecs[3], path)
}

// ImportAll ingests every raw input listed in the data configuration.
func (db *DB) ImportAll(ctx context.Context, data config.DataConfig) error {
	imports := []struct {
		path string
		fn   func(context.Context, string) (int64, error)
	}{
		{data.UsersCSV, db.ImportUsers},
		{data.LoginsCSV, db.ImportLogins},
		{data.WatchCSV, db.ImportWatch},
		{data.RatingsCSV, db.ImportRatings},
	}
	for _, imp := range imports {
		if _, err := imp.fn(ctx, imp.path); err != nil {
			return err
		}
	}
	return nil
}

// importCSV validates the column contract and replaces the target
// table inside a transaction: contract violations surface before
// anything is deleted, and a mid-import failure rolls back to the
// previous contents.
func (db *DB) importCSV(ctx context.Context, spec rawTableSpec, path string) (int64, error) {
	cols, err := db.csvColumns(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	for _, col := range spec.required {
		if !cols[col] {
			return 0, &MissingColumnError{Table: spec.name, Column: col}
		}
	}

	insertCols := make([]string, 0, len(spec.required)+len(spec.optional))
	selectExprs := make([]string, 0, cap(insertCols))
	for _, col := range spec.required {
		insertCols = append(insertCols, col)
		selectExprs = append(selectExprs, fmt.Sprintf("CAST(%s AS %s)", col, spec.casts[col]))
	}
	for _, col := range spec.optional {
		insertCols = append(insertCols, col)
		if cols[col] {
			selectExprs = append(selectExprs, fmt.Sprintf("CAST(%s AS %s)", col, spec.casts[col]))
		} else {
			selectExprs = append(selectExprs, fmt.Sprintf("CAST(NULL AS %s)", spec.casts[col]))
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+spec.name); err != nil {
		return 0, fmt.Errorf("failed to clear table %s: %w", spec.name, err)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM read_csv_auto(%s)",
		spec.name,
		strings.Join(insertCols, ", "),
		strings.Join(selectExprs, ", "),
		quoteLiteral(path),
	)
	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s into %s: %w", path, spec.name, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import of %s: %w", spec.name, err)
	}

	logging.Info().Str("table", spec.name).Str("path", path).Int64("rows", n).Msg("Raw table imported")

	return n, nil
}

// csvColumns returns the set of column names DuckDB detects in a CSV.
func (db *DB) csvColumns(ctx context.Context, path string) (map[string]bool, error) {
	query := "SELECT column_name FROM (DESCRIBE SELECT * FROM read_csv_auto(" + quoteLiteral(path) + "))"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
