package pipeline

import (
	"sort"

	"github.com/kamusis/fitmatch/internal/fit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses an assignment outcome for display.
type Summary struct {
	Points   int
	Accepted int
	Rejected int
	Misses   int

	// Deviation statistics over accepted points. Zero when none were accepted.
	MeanDeltaY   float64
	StdDevDeltaY float64
	MaxDeltaY    float64

	// PerFunction counts accepted points by ideal function, ordered by id.
	PerFunction []FunctionCount
}

// FunctionCount is the number of accepted points of one ideal function.
type FunctionCount struct {
	IdealID int
	Count   int
}

// AcceptanceRate is the share of points accepted, or 0 for an empty run.
func (s Summary) AcceptanceRate() float64 {
	if s.Points == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Points)
}

// Summarize computes a Summary from out.
func Summarize(out *fit.Outcome) Summary {
	s := Summary{
		Points:   out.Points,
		Accepted: len(out.Assignments),
		Rejected: out.Rejected,
		Misses:   len(out.Misses),
	}
	if len(out.Assignments) == 0 {
		return s
	}

	deltas := make([]float64, len(out.Assignments))
	counts := map[int]int{}
	for i, a := range out.Assignments {
		deltas[i] = a.DeltaY
		counts[a.IdealFunction]++
	}
	s.MeanDeltaY, s.StdDevDeltaY = stat.MeanStdDev(deltas, nil)
	if len(deltas) == 1 {
		s.StdDevDeltaY = 0
	}
	s.MaxDeltaY = floats.Max(deltas)

	for id, n := range counts {
		s.PerFunction = append(s.PerFunction, FunctionCount{IdealID: id, Count: n})
	}
	sort.Slice(s.PerFunction, func(i, j int) bool { return s.PerFunction[i].IdealID < s.PerFunction[j].IdealID })
	return s
}
