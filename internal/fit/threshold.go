package fit

import "math"

// Threshold returns the tightest worst-case deviation of ideal column id over
// the training columns: the minimum, across training columns of the same
// non-zero length, of the maximum pointwise |training - ideal|.
func Threshold(training, ideal [][]float64, id int) (float64, error) {
	if id < 1 || id >= len(ideal) {
		return 0, &UnknownFunctionError{IdealID: id, Available: max(len(ideal)-1, 0)}
	}
	candidate := ideal[id]
	best := math.Inf(1)
	eligible := 0
	considered := 0
	for c := 1; c < len(training); c++ {
		considered++
		dev, err := MaxAbsDeviation(training[c], candidate)
		if err != nil {
			continue
		}
		eligible++
		if dev < best {
			best = dev
		}
	}
	if eligible == 0 {
		return 0, &UndefinedThresholdError{IdealID: id, Columns: considered}
	}
	return best, nil
}

// Thresholds derives one threshold per distinct matched ideal id.
func Thresholds(training, ideal [][]float64, matches []Match) (map[int]float64, error) {
	out := make(map[int]float64, len(matches))
	for _, m := range matches {
		if !m.Found {
			continue
		}
		if _, done := out[m.IdealID]; done {
			continue
		}
		th, err := Threshold(training, ideal, m.IdealID)
		if err != nil {
			return nil, err
		}
		out[m.IdealID] = th
	}
	return out, nil
}
