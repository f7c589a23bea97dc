package fit

import "math"

// SquaredError returns Σ (a[k] - b[k])² for two series of equal length.
func SquaredError(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	var sum float64
	for k := range a {
		d := a[k] - b[k]
		sum += d * d
	}
	return sum, nil
}

// MaxAbsDeviation returns the largest |a[k] - b[k]| over two series of equal,
// non-zero length.
func MaxAbsDeviation(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	if len(a) == 0 {
		return 0, ErrEmptySeries
	}
	worst := math.Inf(-1)
	for k := range a {
		if d := math.Abs(a[k] - b[k]); d > worst {
			worst = d
		}
	}
	return worst, nil
}
