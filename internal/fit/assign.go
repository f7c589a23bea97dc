package fit

import (
	"fmt"
	"math"

	"github.com/kamusis/fitmatch/internal/series"
)

// Lookup returns the ideal row at exactly x. Index 0 of the row is x and index
// id holds ideal function id.
type Lookup interface {
	RowAt(x float64) ([]float64, bool)
}

// Assignment is an accepted classification of a test point.
type Assignment struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DeltaY        float64 `json:"delta_y"`
	IdealFunction int     `json:"ideal_function"`
}

// LookupMiss records a test point whose x has no row in the ideal table.
type LookupMiss struct {
	Index int
	X     float64
}

// Verdict is the per-point result of an assignment attempt.
type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictRejected
	VerdictLookupMiss
	VerdictNoMatch
)

// Outcome collects the result of assigning a batch of test points.
type Outcome struct {
	Assignments []Assignment
	Misses      []LookupMiss
	Rejected    int
	Points      int
}

// AssignPoint classifies a single point. It returns the best candidate even
// when rejected so callers can report the deviation.
func AssignPoint(ideal Lookup, p series.Point, matches []Match, thresholds map[int]float64) (Assignment, Verdict, error) {
	row, ok := ideal.RowAt(p.X)
	if !ok {
		return Assignment{}, VerdictLookupMiss, nil
	}

	bestID := 0
	best := math.Inf(1)
	for _, m := range matches {
		if !m.Found {
			continue
		}
		if m.IdealID >= len(row) {
			return Assignment{}, VerdictNoMatch, &UnknownFunctionError{IdealID: m.IdealID, Available: len(row) - 1}
		}
		if dev := math.Abs(p.Y - row[m.IdealID]); dev < best {
			best = dev
			bestID = m.IdealID
		}
	}
	if bestID == 0 {
		return Assignment{}, VerdictNoMatch, nil
	}

	th, ok := thresholds[bestID]
	if !ok {
		return Assignment{}, VerdictNoMatch, &UndefinedThresholdError{IdealID: bestID}
	}
	a := Assignment{X: p.X, Y: p.Y, DeltaY: best, IdealFunction: bestID}
	if best <= th*math.Sqrt2 {
		return a, VerdictAccepted, nil
	}
	return a, VerdictRejected, nil
}

// Assign classifies every test point against the matched ideal functions. A
// point is accepted iff its smallest deviation does not exceed the threshold
// of that function scaled by √2. Points without an ideal row at their x are
// reported in Outcome.Misses.
func Assign(ideal Lookup, points []series.Point, matches []Match, thresholds map[int]float64) (*Outcome, error) {
	out := &Outcome{Points: len(points)}
	for i, p := range points {
		a, v, err := AssignPoint(ideal, p, matches, thresholds)
		if err != nil {
			return nil, fmt.Errorf("test point %d (x=%g): %w", i, p.X, err)
		}
		out.record(i, p, a, v)
	}
	return out, nil
}

func (o *Outcome) record(i int, p series.Point, a Assignment, v Verdict) {
	switch v {
	case VerdictAccepted:
		o.Assignments = append(o.Assignments, a)
	case VerdictLookupMiss:
		o.Misses = append(o.Misses, LookupMiss{Index: i, X: p.X})
	default:
		o.Rejected++
	}
}
