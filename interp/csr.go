package interp

import "sort"

// compactify collects every value in extCols, sort-uniques them into
// extVars, and rewrites each extCols entry as its index into extVars.
func compactify(extCols []int64) (extVars []int64, extColsCompact []int64) {
	extVars = append([]int64(nil), extCols...)
	sort.Slice(extVars, func(a, b int) bool { return extVars[a] < extVars[b] })
	extVars = uniqueSorted(extVars)

	extColsCompact = make([]int64, len(extCols))
	for i, g := range extCols {
		extColsCompact[i] = int64(binarySearchInt64(extVars, g))
	}
	return
}

func uniqueSorted(s []int64) []int64 {
	if len(s) == 0 {
		return s
	}
	out := s[:1]
	for i := 1; i < len(s); i++ {
		if s[i] != out[len(out)-1] {
			out = append(out, s[i])
		}
	}
	return out
}

// normalize divides every weight in a row by that row's total, unless
// the total is zero, in which case the row is left untouched rather
// than normalized to NaN.
func normalize(N int, rowp []int, weights []float64, extRowp []int, extWeights []float64) {
	for i := 0; i < N; i++ {
		var sum float64
		for j := rowp[i]; j < rowp[i+1]; j++ {
			sum += weights[j]
		}
		for j := extRowp[i]; j < extRowp[i+1]; j++ {
			sum += extWeights[j]
		}
		if sum == 0 {
			continue
		}
		for j := rowp[i]; j < rowp[i+1]; j++ {
			weights[j] /= sum
		}
		for j := extRowp[i]; j < extRowp[i+1]; j++ {
			extWeights[j] /= sum
		}
	}
}
