// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package trainer

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/streamlytics/churnpipe/internal/model"
	"github.com/streamlytics/churnpipe/internal/models"
)

// labeledRows generates a synthetic labeled feature table where
// churners skew toward stale logins and low watch time, at roughly a
// 25% positive rate.
func labeledRows(n int, seed int64) []models.FeatureRow {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]models.FeatureRow, n)
	plans := []string{"basic", "standard", "premium"}
	for i := range rows {
		churned := 0
		row := models.FeatureRow{
			UserID:             "u" + string(rune('a'+i%26)) + string(rune('0'+i/26%10)) + string(rune('0'+i/260)),
			Age:                20 + rng.Intn(45),
			PlanType:           plans[rng.Intn(len(plans))],
			AccountAgeDays:     30 + rng.Intn(1000),
			DaysSinceLastLogin: rng.Intn(10),
			TotalWatchTime30d:  200 + 400*rng.Float64(),
			AvgRating:          2 + 3*rng.Float64(),
			NumRatings:         rng.Intn(40),
		}
		if i%4 == 0 {
			churned = 1
			row.DaysSinceLastLogin = 60 + rng.Intn(940)
			row.TotalWatchTime30d = 30 * rng.Float64()
		}
		row.Churned = &churned
		rows[i] = row
	}
	return rows
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Forest = model.ForestConfig{
		NumTrees:        30,
		MaxDepth:        6,
		MinSamplesSplit: 4,
		MinSamplesLeaf:  2,
		NumWorkers:      4,
	}
	return cfg
}

func TestThresholdGridCandidates(t *testing.T) {
	tests := []struct {
		name      string
		grid      ThresholdGrid
		wantLen   int
		wantFirst float64
		wantLast  float64
	}{
		{"default grid excludes 0 and 1", DefaultThresholdGrid(), 19, 0.05, 0.95},
		{"include one appends 1.0", ThresholdGrid{Start: 0.05, Step: 0.05, IncludeOne: true}, 20, 0.05, 1.0},
		{"coarse grid", ThresholdGrid{Start: 0.1, Step: 0.1}, 9, 0.1, 0.9},
		{"zero values take defaults", ThresholdGrid{}, 19, 0.05, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.grid.Candidates()
			if len(got) != tt.wantLen {
				t.Fatalf("len(Candidates()) = %d, want %d (%v)", len(got), tt.wantLen, got)
			}
			if math.Abs(got[0]-tt.wantFirst) > 1e-9 {
				t.Errorf("first candidate = %f, want %f", got[0], tt.wantFirst)
			}
			if math.Abs(got[len(got)-1]-tt.wantLast) > 1e-9 {
				t.Errorf("last candidate = %f, want %f", got[len(got)-1], tt.wantLast)
			}
			for i := 1; i < len(got); i++ {
				if got[i] <= got[i-1] {
					t.Errorf("candidates not ascending at %d: %f <= %f", i, got[i], got[i-1])
				}
			}
		})
	}
}

func TestF1Score(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
		want  float64
	}{
		{"perfect", []int{1, 0, 1, 0}, []int{1, 0, 1, 0}, 1},
		{"all wrong", []int{1, 1, 0, 0}, []int{0, 0, 1, 1}, 0},
		{"half precision full recall", []int{1, 0, 0, 0}, []int{1, 1, 0, 0}, 2.0 / 3.0},
		{"no positives anywhere", []int{0, 0}, []int{0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f1Score(tt.yTrue, tt.yPred); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("f1Score() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		probs []float64
		want  float64
	}{
		{"perfect ranking", []int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 1},
		{"inverted ranking", []int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}, 0},
		{"all tied", []int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"single class undefined", []int{1, 1}, []float64{0.2, 0.9}, 0.5},
		{"partial overlap", []int{0, 1, 0, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rocAUC(tt.yTrue, tt.probs); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("rocAUC() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestStratifiedSplitPreservesRatio(t *testing.T) {
	y := make([]int, 200)
	for i := range y {
		if i < 40 {
			y[i] = 1
		}
	}

	trainIdx, valIdx := stratifiedSplit(y, 0.2, 42)

	if len(trainIdx)+len(valIdx) != len(y) {
		t.Fatalf("partitions cover %d rows, want %d", len(trainIdx)+len(valIdx), len(y))
	}

	count := func(idx []int) (pos int) {
		for _, i := range idx {
			pos += y[i]
		}
		return pos
	}

	// 20% of each class: 8 positives and 32 negatives in validation.
	if got := count(valIdx); got != 8 {
		t.Errorf("validation positives = %d, want 8", got)
	}
	if got := count(trainIdx); got != 32 {
		t.Errorf("train positives = %d, want 32", got)
	}

	// No index appears twice.
	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, trainIdx...), valIdx...) {
		if seen[i] {
			t.Fatalf("index %d appears in both partitions", i)
		}
		seen[i] = true
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	y := make([]int, 100)
	for i := range y {
		y[i] = i % 3 % 2
	}

	t1, v1 := stratifiedSplit(y, 0.2, 7)
	t2, v2 := stratifiedSplit(y, 0.2, 7)

	if len(t1) != len(t2) || len(v1) != len(v2) {
		t.Fatal("partition sizes differ across identical calls")
	}
	for i := range t1 {
		if t1[i] != t2[i] {
			t.Fatalf("train index %d differs: %d vs %d", i, t1[i], t2[i])
		}
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("validation index %d differs: %d vs %d", i, v1[i], v2[i])
		}
	}
}

func TestTrainInsufficientData(t *testing.T) {
	churnedOne := 1

	tests := []struct {
		name string
		rows []models.FeatureRow
	}{
		{"no rows", nil},
		{
			"all targets missing",
			[]models.FeatureRow{{UserID: "u1"}, {UserID: "u2"}},
		},
		{
			"single class",
			[]models.FeatureRow{
				{UserID: "u1", Churned: &churnedOne},
				{UserID: "u2", Churned: &churnedOne},
				{UserID: "u3", Churned: &churnedOne},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Train(testConfig(), tt.rows)
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Train() error = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestTrainDropsUnlabeledRows(t *testing.T) {
	rows := labeledRows(120, 1)
	// Add unlabeled rows that must be dropped, not treated as class 0.
	for i := 0; i < 30; i++ {
		rows = append(rows, models.FeatureRow{UserID: "x", Age: 30, PlanType: "basic"})
	}

	res, err := Train(testConfig(), rows)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if got := res.Metrics.TrainRows + res.Metrics.ValidationRows; got != 120 {
		t.Errorf("labeled rows used = %d, want 120", got)
	}
}

func TestTrainSelectsThreshold(t *testing.T) {
	res, err := Train(testConfig(), labeledRows(400, 2))
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	m := res.Metrics
	if m.BestThreshold <= 0 || m.BestThreshold > 1 {
		t.Errorf("BestThreshold = %f, want in (0, 1]", m.BestThreshold)
	}
	// The chosen threshold can never score below the default 0.5,
	// which is itself on the grid.
	if m.BestF1 < m.F1AtDefault {
		t.Errorf("BestF1 = %f below F1 at default threshold %f", m.BestF1, m.F1AtDefault)
	}
	if m.ROCAUC < 0.5 {
		t.Errorf("ROCAUC = %f, expected at least chance level on separable data", m.ROCAUC)
	}
	if res.Bundle.Threshold != m.BestThreshold {
		t.Errorf("bundle threshold %f != metrics threshold %f", res.Bundle.Threshold, m.BestThreshold)
	}
}

func TestTrainDeterministic(t *testing.T) {
	rows := labeledRows(300, 3)

	r1, err := Train(testConfig(), rows)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	r2, err := Train(testConfig(), rows)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if r1.Metrics.BestThreshold != r2.Metrics.BestThreshold {
		t.Errorf("threshold differs across identical runs: %f vs %f",
			r1.Metrics.BestThreshold, r2.Metrics.BestThreshold)
	}
	if r1.Metrics.ROCAUC != r2.Metrics.ROCAUC {
		t.Errorf("AUC differs across identical runs: %f vs %f",
			r1.Metrics.ROCAUC, r2.Metrics.ROCAUC)
	}
}

func TestSearchThresholdTiesBreakLow(t *testing.T) {
	// Two candidates reach the same F1; the lower one must win.
	y := []int{1, 1, 0, 0}
	probs := []float64{0.9, 0.8, 0.3, 0.2}

	threshold, f1 := searchThreshold(ThresholdGrid{Start: 0.05, Step: 0.05}, y, probs)

	// Every candidate in (0.3, 0.8] yields a perfect F1; the first one
	// on the grid is 0.35.
	if math.Abs(threshold-0.35) > 1e-9 {
		t.Errorf("threshold = %f, want 0.35 (lowest maximizer)", threshold)
	}
	if f1 != 1 {
		t.Errorf("f1 = %f, want 1", f1)
	}
}
