// Package fit selects ideal functions for training series and classifies test
// points against them.
//
// Columns are passed column-wise with column 0 holding the shared x values.
// Ideal function ids are the 1-based column positions in the ideal table.
package fit

import "math"

// Match is the ideal function selected for one training column.
type Match struct {
	// Column is the 1-based training column.
	Column int
	// IdealID is the selected ideal column. Zero when Found is false.
	IdealID int
	// Found is false when no candidate had the training column's length.
	Found bool
	// SSE is the sum of squared errors of the selected candidate.
	SSE float64
}

// MatchColumn finds the ideal column with the least squared error against t.
// Candidates of a different length, and empty series, never compete. The first
// candidate reaching the minimum wins ties.
func MatchColumn(t []float64, ideal [][]float64) (id int, sse float64, found bool) {
	if len(t) == 0 {
		return 0, 0, false
	}
	best := math.Inf(1)
	for i := 1; i < len(ideal); i++ {
		cost, err := SquaredError(t, ideal[i])
		if err != nil {
			continue
		}
		if cost < best {
			best = cost
			id = i
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	return id, best, true
}

// MatchColumns matches every training column (x skipped) against the ideal
// columns, preserving training column order.
func MatchColumns(training, ideal [][]float64) []Match {
	if len(training) < 2 {
		return []Match{}
	}
	out := make([]Match, 0, len(training)-1)
	for c := 1; c < len(training); c++ {
		out = append(out, matchAt(training, ideal, c))
	}
	return out
}

func matchAt(training, ideal [][]float64, c int) Match {
	id, sse, ok := MatchColumn(training[c], ideal)
	return Match{Column: c, IdealID: id, Found: ok, SSE: sse}
}

// IDs returns the matched ideal ids in training column order, skipping
// unmatched columns.
func IDs(matches []Match) []int {
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		if m.Found {
			out = append(out, m.IdealID)
		}
	}
	return out
}

// Unmatched returns a *NoCandidateError listing unmatched training columns, or
// nil when every column found a candidate.
func Unmatched(matches []Match) error {
	var cols []int
	for _, m := range matches {
		if !m.Found {
			cols = append(cols, m.Column)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	return &NoCandidateError{Columns: cols}
}
