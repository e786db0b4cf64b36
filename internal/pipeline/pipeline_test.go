// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/streamlytics/churnpipe/internal/config"
	"github.com/streamlytics/churnpipe/internal/database"
)

// writeFixtureCSVs produces a small synthetic dataset: "active" users
// with recent logins and watch activity, "lapsed" users with neither.
// Labels follow the activity so a model trained on it separates the
// classes.
func writeFixtureCSVs(t *testing.T, dir string) config.DataConfig {
	t.Helper()

	var users, logins, watch, ratings strings.Builder
	users.WriteString("user_id,age,plan_type,signup_date,churned\n")
	logins.WriteString("user_id,login_date\n")
	watch.WriteString("user_id,watch_date,watch_time\n")
	ratings.WriteString("user_id,rating\n")

	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("active-%02d", i)
		fmt.Fprintf(&users, "%s,%d,premium,2024-0%d-15,0\n", id, 25+i%30, 1+i%9)
		fmt.Fprintf(&logins, "%s,2025-06-%02d\n", id, 20+i%10)
		fmt.Fprintf(&watch, "%s,2025-06-%02d,%0.1f\n", id, 10+i%20, 5.0+float64(i%10))
		fmt.Fprintf(&ratings, "%s,%0.1f\n", id, 3.0+float64(i%3)*0.5)
	}
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("lapsed-%02d", i)
		fmt.Fprintf(&users, "%s,%d,basic,2023-0%d-10,1\n", id, 30+i%25, 1+i%9)
		fmt.Fprintf(&logins, "%s,2024-12-%02d\n", id, 1+i%28)
	}
	// Unlabeled users: scored but never trained on.
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("new-%02d", i)
		fmt.Fprintf(&users, "%s,%d,standard,2025-05-01,\n", id, 20+i)
		fmt.Fprintf(&logins, "%s,2025-06-2%d\n", id, i)
	}

	data := config.DataConfig{
		UsersCSV:   filepath.Join(dir, "users.csv"),
		LoginsCSV:  filepath.Join(dir, "logins.csv"),
		WatchCSV:   filepath.Join(dir, "watch.csv"),
		RatingsCSV: filepath.Join(dir, "ratings.csv"),
	}
	files := map[string]string{
		data.UsersCSV:   users.String(),
		data.LoginsCSV:  logins.String(),
		data.WatchCSV:   watch.String(),
		data.RatingsCSV: ratings.String(),
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write fixture %s: %v", path, err)
		}
	}
	return data
}

func newTestPipeline(t *testing.T) (*Pipeline, *database.DB) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Data:      writeFixtureCSVs(t, dir),
		Artifacts: config.ArtifactsConfig{Dir: filepath.Join(dir, "models")},
		Training: config.TrainingConfig{
			Seed:               42,
			ValidationFraction: 0.2,
			// Small forest keeps the test fast without changing the
			// pipeline semantics.
			NumTrees:       25,
			MaxDepth:       6,
			NumWorkers:     2,
			ThresholdStart: 0.05,
			ThresholdStep:  0.05,
		},
	}

	db, err := database.New(&config.DatabaseConfig{Path: "", Threads: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return New(db, cfg), db
}

func TestRunFullPipeline(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The bundle and its metadata sidecar exist on disk.
	if _, err := os.Stat(p.cfg.Artifacts.BundlePath()); err != nil {
		t.Errorf("bundle file missing: %v", err)
	}
	if _, err := os.Stat(p.cfg.Artifacts.MetadataPath()); err != nil {
		t.Errorf("metadata sidecar missing: %v", err)
	}

	// Every user appears exactly once in the presentation table.
	merged, err := db.LoadMerged(ctx)
	if err != nil {
		t.Fatalf("LoadMerged() error = %v", err)
	}
	if len(merged) != 65 {
		t.Fatalf("merged rows = %d, want 65", len(merged))
	}

	seen := make(map[string]bool, len(merged))
	for _, m := range merged {
		if seen[m.UserID] {
			t.Errorf("duplicate user %s in merged output", m.UserID)
		}
		seen[m.UserID] = true
		if !m.Scored() {
			t.Errorf("user %s has no score after a full run", m.UserID)
		}
		if m.ChurnProbability == nil || *m.ChurnProbability < 0 || *m.ChurnProbability > 1 {
			t.Errorf("user %s probability out of range: %v", m.UserID, m.ChurnProbability)
		}
	}

	// Probabilities descend down the table.
	for i := 1; i < len(merged); i++ {
		if *merged[i].ChurnProbability > *merged[i-1].ChurnProbability {
			t.Errorf("merged output not sorted at row %d", i)
			break
		}
	}
}

func TestRunSeparatesClasses(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	scores, err := db.LoadScores(ctx)
	if err != nil {
		t.Fatalf("LoadScores() error = %v", err)
	}

	var activeSum, lapsedSum float64
	var activeN, lapsedN int
	for _, s := range scores {
		switch {
		case strings.HasPrefix(s.UserID, "active-"):
			activeSum += s.ChurnProbability
			activeN++
		case strings.HasPrefix(s.UserID, "lapsed-"):
			lapsedSum += s.ChurnProbability
			lapsedN++
		}
	}
	if activeN == 0 || lapsedN == 0 {
		t.Fatalf("score table missing a cohort: active=%d lapsed=%d", activeN, lapsedN)
	}
	if lapsedSum/float64(lapsedN) <= activeSum/float64(activeN) {
		t.Errorf("lapsed users score no higher than active: lapsed=%.3f active=%.3f",
			lapsedSum/float64(lapsedN), activeSum/float64(activeN))
	}
}

func TestStagesRerunIndependently(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	if err := p.Ingest(ctx); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := p.BuildFeatures(ctx); err != nil {
		t.Fatalf("BuildFeatures() error = %v", err)
	}
	if err := p.Train(ctx); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	// Scoring twice from the same bundle and features is idempotent.
	if err := p.Score(ctx); err != nil {
		t.Fatalf("first Score() error = %v", err)
	}
	first, err := db.LoadScores(ctx)
	if err != nil {
		t.Fatalf("LoadScores() error = %v", err)
	}
	if err := p.Score(ctx); err != nil {
		t.Fatalf("second Score() error = %v", err)
	}
	second, err := db.LoadScores(ctx)
	if err != nil {
		t.Fatalf("LoadScores() error = %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("score counts differ across reruns: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].UserID != second[i].UserID || first[i].ChurnProbability != second[i].ChurnProbability {
			t.Errorf("row %d differs across reruns: %+v vs %+v", i, first[i], second[i])
		}
	}

	if err := p.MergeResults(ctx); err != nil {
		t.Fatalf("MergeResults() error = %v", err)
	}
}

func TestScoreWithoutBundleFails(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	if err := p.Ingest(ctx); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := p.BuildFeatures(ctx); err != nil {
		t.Fatalf("BuildFeatures() error = %v", err)
	}
	if err := p.Score(ctx); err == nil {
		t.Error("Score() succeeded without a trained bundle")
	}
}

func TestRunCancelled(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Run(ctx); err == nil {
		t.Error("Run() succeeded with a cancelled context")
	}
}
