// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package database

import "fmt"

// MissingColumnError reports a raw input file that violates its column
// contract. It is fatal for the ingest: nothing is written when it is
// returned.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("database: table %s: required column %q missing from input", e.Table, e.Column)
}
