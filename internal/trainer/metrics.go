// ChurnPipe - Subscriber Churn Risk Analytics Pipeline
// Copyright 2026 Streamlytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamlytics/churnpipe

package trainer

import "sort"

// f1Score computes the F1 score for the positive class. Returns 0 when
// precision and recall are both undefined (no true or predicted
// positives).
func f1Score(yTrue, yPred []int) float64 {
	var tp, fp, fn int
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			tp++
		case yTrue[i] == 0 && yPred[i] == 1:
			fp++
		case yTrue[i] == 1 && yPred[i] == 0:
			fn++
		}
	}
	denom := 2*tp + fp + fn
	if denom == 0 {
		return 0
	}
	return 2 * float64(tp) / float64(denom)
}

// rocAUC computes the area under the ROC curve with the rank-sum
// (Mann-Whitney U) formulation, assigning average ranks to tied
// probabilities. Returns 0.5 when only one class is present, where the
// curve is undefined.
func rocAUC(yTrue []int, probs []float64) float64 {
	n := len(probs)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] < probs[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[order[j]] == probs[order[i]] {
			j++
		}
		// Ranks are 1-based; ties share the average rank of their run.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var nPos, nNeg int
	var posRankSum float64
	for i, label := range yTrue {
		if label == 1 {
			nPos++
			posRankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	u := posRankSum - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg))
}
