package clustering

import (
	"catcluster/internal/core"
)

// AdjustedRand returns the Hubert-Arabie adjusted Rand index between two
// labelings of the same points. Identical partitions score 1; random ones
// score around 0. Label values are compared as opaque ids, noise included.
func AdjustedRand(truth, pred []int) (float64, error) {
	if len(truth) != len(pred) {
		return 0, core.Validationf("labelings differ in length: %d truth vs %d predicted", len(truth), len(pred))
	}
	n := len(truth)
	if n == 0 {
		return 0, core.Validationf("labelings are empty")
	}

	type pair struct{ t, p int }
	contingency := make(map[pair]int)
	rows := make(map[int]int)
	cols := make(map[int]int)
	for i := range truth {
		contingency[pair{truth[i], pred[i]}]++
		rows[truth[i]]++
		cols[pred[i]]++
	}

	var index, sumRows, sumCols float64
	for _, c := range contingency {
		index += choose2(c)
	}
	for _, c := range rows {
		sumRows += choose2(c)
	}
	for _, c := range cols {
		sumCols += choose2(c)
	}

	var expected float64
	if n > 1 {
		expected = sumRows * sumCols / choose2(n)
	}
	maxIndex := (sumRows + sumCols) / 2
	if maxIndex == expected {
		// both partitions trivial (all-in-one or all-singletons) and equal in form
		return 1.0, nil
	}
	return (index - expected) / (maxIndex - expected), nil
}

func choose2(n int) float64 {
	return float64(n) * float64(n-1) / 2
}
