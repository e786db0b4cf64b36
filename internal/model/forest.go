// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Classifier is the opaque prediction capability the pipeline depends
// on: a class-1 probability estimate per input row. Any implementation
// satisfying this contract can replace the bundled forest.
type Classifier interface {
	PredictProbability(x *mat.Dense) []float64
}

// ForestConfig contains configuration for the bagged-tree ensemble.
// Hyperparameters are fixed operational configuration; the trainer does
// not auto-tune them.
type ForestConfig struct {
	// NumTrees is the ensemble size.
	NumTrees int

	// MaxDepth limits tree depth.
	MaxDepth int

	// MinSamplesSplit is the minimum number of samples required to
	// split an internal node.
	MinSamplesSplit int

	// MinSamplesLeaf is the minimum number of samples required at each
	// leaf after a split.
	MinSamplesLeaf int

	// NumWorkers bounds parallel tree fitting. If <= 0, defaults to 4.
	// Parallelism never affects results: each tree seeds its own
	// random source from Seed and its tree index.
	NumWorkers int

	// Seed drives all randomness (bootstrap sampling, feature
	// subsampling) for reproducible training runs.
	Seed int64
}

// DefaultForestConfig returns the fixed production hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        400,
		MaxDepth:        12,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		NumWorkers:      4,
		Seed:            42,
	}
}

// TreeNode is one node of a fitted decision tree. Exported for gob
// serialization inside a Bundle.
type TreeNode struct {
	// Leaf marks terminal nodes; only Prob is meaningful on leaves.
	Leaf bool

	// Prob is the weighted class-1 proportion of training samples that
	// reached this leaf.
	Prob float64

	// Feature and Threshold define the split: rows with
	// x[Feature] <= Threshold descend left, the rest right.
	Feature   int
	Threshold float64

	Left  *TreeNode
	Right *TreeNode
}

// Forest is a bagged ensemble of decision trees with inverse-frequency
// class weighting. Class imbalance is handled by reweighting, not by
// resampling, so every training row keeps its chance to appear in each
// bootstrap sample.
type Forest struct {
	Config ForestConfig

	// ClassWeights holds the per-class sample weights, indexed by label.
	ClassWeights [2]float64

	Trees []*TreeNode
}

var _ Classifier = (*Forest)(nil)

// FitForest trains the ensemble on the encoded design matrix x and
// binary labels y. Both classes must be present.
func FitForest(cfg ForestConfig, x *mat.Dense, y []int) (*Forest, error) {
	if cfg.NumTrees <= 0 {
		cfg.NumTrees = 400
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 12
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}

	n, p := x.Dims()
	if n == 0 || len(y) != n {
		return nil, fmt.Errorf("model: design matrix has %d rows but %d labels", n, len(y))
	}

	var counts [2]int
	for _, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("model: label %d out of range, want 0 or 1", label)
		}
		counts[label]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return nil, fmt.Errorf("model: training labels contain a single class")
	}

	f := &Forest{
		Config: cfg,
		Trees:  make([]*TreeNode, cfg.NumTrees),
	}
	// Balanced weighting: w_c = n / (numClasses * n_c), so the rarer
	// class contributes the same total weight as the common one.
	f.ClassWeights[0] = float64(n) / (2 * float64(counts[0]))
	f.ClassWeights[1] = float64(n) / (2 * float64(counts[1]))

	numSplitFeatures := int(math.Round(math.Sqrt(float64(p))))
	if numSplitFeatures < 1 {
		numSplitFeatures = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.NumWorkers)
	for t := 0; t < cfg.NumTrees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(cfg.Seed + int64(t)*7919))
			sample := make([]int, n)
			for i := range sample {
				sample[i] = rng.Intn(n)
			}
			b := &treeBuilder{
				x:           x,
				y:           y,
				weights:     f.ClassWeights,
				cfg:         cfg,
				numFeatures: p,
				splitTries:  numSplitFeatures,
				rng:         rng,
			}
			f.Trees[t] = b.build(sample, 0)
		}(t)
	}
	wg.Wait()

	return f, nil
}

// PredictProbability returns the averaged class-1 probability across
// all trees for each row of x.
func (f *Forest) PredictProbability(x *mat.Dense) []float64 {
	if x == nil {
		return nil
	}
	n, _ := x.Dims()
	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		var sum float64
		for _, tree := range f.Trees {
			sum += tree.predict(row)
		}
		probs[i] = sum / float64(len(f.Trees))
	}
	return probs
}

// predict walks the tree for one encoded row.
func (t *TreeNode) predict(row []float64) float64 {
	node := t
	for !node.Leaf {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Prob
}

// treeBuilder carries the shared state for one tree's recursive fit.
type treeBuilder struct {
	x           *mat.Dense
	y           []int
	weights     [2]float64
	cfg         ForestConfig
	numFeatures int
	splitTries  int
	rng         *rand.Rand
}

// build grows a node from the given sample indices.
func (b *treeBuilder) build(sample []int, depth int) *TreeNode {
	w0, w1 := b.classWeightSums(sample)

	if depth >= b.cfg.MaxDepth || len(sample) < b.cfg.MinSamplesSplit || w0 == 0 || w1 == 0 {
		return leaf(w0, w1)
	}

	feature, threshold, ok := b.bestSplit(sample)
	if !ok {
		return leaf(w0, w1)
	}

	var left, right []int
	for _, i := range sample {
		if b.x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.cfg.MinSamplesLeaf || len(right) < b.cfg.MinSamplesLeaf {
		return leaf(w0, w1)
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// classWeightSums returns the summed class weights over a sample.
func (b *treeBuilder) classWeightSums(sample []int) (w0, w1 float64) {
	for _, i := range sample {
		if b.y[i] == 1 {
			w1 += b.weights[1]
		} else {
			w0 += b.weights[0]
		}
	}
	return w0, w1
}

// leaf builds a terminal node from summed class weights.
func leaf(w0, w1 float64) *TreeNode {
	total := w0 + w1
	prob := 0.5
	if total > 0 {
		prob = w1 / total
	}
	return &TreeNode{Leaf: true, Prob: prob}
}

// bestSplit searches a random feature subset for the split minimizing
// weighted Gini impurity.
func (b *treeBuilder) bestSplit(sample []int) (feature int, threshold float64, ok bool) {
	bestGini := math.Inf(1)

	perm := b.rng.Perm(b.numFeatures)
	for _, fi := range perm[:b.splitTries] {
		values := make([]float64, len(sample))
		for si, i := range sample {
			values[si] = b.x.At(i, fi)
		}
		sort.Float64s(values)

		for vi := 1; vi < len(values); vi++ {
			if values[vi] == values[vi-1] {
				continue
			}
			// Midpoint between distinct consecutive values.
			t := (values[vi] + values[vi-1]) / 2
			gini := b.splitGini(sample, fi, t)
			if gini < bestGini {
				bestGini = gini
				feature = fi
				threshold = t
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

// splitGini computes the weight-averaged Gini impurity of a candidate split.
func (b *treeBuilder) splitGini(sample []int, feature int, threshold float64) float64 {
	var lw0, lw1, rw0, rw1 float64
	for _, i := range sample {
		w := b.weights[b.y[i]]
		if b.x.At(i, feature) <= threshold {
			if b.y[i] == 1 {
				lw1 += w
			} else {
				lw0 += w
			}
		} else {
			if b.y[i] == 1 {
				rw1 += w
			} else {
				rw0 += w
			}
		}
	}

	total := lw0 + lw1 + rw0 + rw1
	if total == 0 {
		return math.Inf(1)
	}
	return (lw0+lw1)/total*gini(lw0, lw1) + (rw0+rw1)/total*gini(rw0, rw1)
}

// gini returns the two-class Gini impurity for summed class weights.
func gini(w0, w1 float64) float64 {
	total := w0 + w1
	if total == 0 {
		return 0
	}
	p0 := w0 / total
	p1 := w1 / total
	return 1 - p0*p0 - p1*p1
}
