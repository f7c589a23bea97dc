package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kamusis/fitmatch/internal/series"
	"github.com/kamusis/fitmatch/internal/store"
)

// ErrNoRun is returned when the destination holds no committed run.
var ErrNoRun = errors.New("no committed run")

// ErrStaleRun is returned when the ideal table was reloaded with different
// contents after the run was committed.
var ErrStaleRun = errors.New("ideal table changed since the run")

// Source is the part of the store a bundle is built from.
type Source interface {
	Run(ctx context.Context, dest store.Destination) (*store.RunMeta, error)
	Results(ctx context.Context, dest store.Destination) ([]store.Record, error)
	Table(ctx context.Context, name string) (*series.Table, error)
	TableMeta(ctx context.Context, name string) (*store.TableMeta, error)
}

// Build assembles the bundle of the run stored in dest. The caller writes it
// with Write and is responsible for an atomic swap into place.
func Build(ctx context.Context, src Source, dest store.Destination) (*Bundle, error) {
	run, err := src.Run(ctx, dest)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w in %s", ErrNoRun, dest)
	}
	recs, err := src.Results(ctx, dest)
	if err != nil {
		return nil, err
	}
	meta, err := src.TableMeta(ctx, run.Tables.Ideal)
	if err != nil {
		return nil, fmt.Errorf("ideal table of run %s: %w", run.RunID, err)
	}
	if meta.Digest != run.IdealDigest {
		return nil, fmt.Errorf("%w: run %s in %s read a different %s table (clear the destination and run again)",
			ErrStaleRun, run.RunID, dest, meta.Name)
	}
	ideal, err := src.Table(ctx, run.Tables.Ideal)
	if err != nil {
		return nil, fmt.Errorf("ideal table of run %s: %w", run.RunID, err)
	}

	// One curve column per distinct matched function, in match order.
	var funcs []Function
	cols := []int{0}
	seen := map[int]bool{}
	for _, m := range run.Matches {
		if !m.Found || seen[m.IdealID] {
			continue
		}
		if m.IdealID >= ideal.Width() {
			return nil, fmt.Errorf("run %s references ideal function %d, table %s has %d", run.RunID, m.IdealID, ideal.Name, ideal.Width()-1)
		}
		seen[m.IdealID] = true
		funcs = append(funcs, Function{
			IdealID:     m.IdealID,
			Column:      m.Column,
			SSE:         m.SSE,
			Threshold:   run.Thresholds[m.IdealID],
			CurveColumn: len(cols),
		})
		cols = append(cols, m.IdealID)
	}

	curves := make([]float64, 0, len(ideal.Rows)*len(cols))
	for _, row := range ideal.Rows {
		for _, c := range cols {
			curves = append(curves, row[c])
		}
	}

	return &Bundle{
		Manifest: Manifest{
			BundleVersion:   BundleVersion,
			CreatedAt:       time.Now().UTC().Format(time.RFC3339),
			RunID:           run.RunID,
			Destination:     dest.String(),
			Tables:          run.Tables,
			Functions:       funcs,
			Points:          run.Points,
			Accepted:        run.Accepted,
			Rejected:        run.Rejected,
			LookupMisses:    run.Misses,
			CurveRows:       len(ideal.Rows),
			CurveCols:       len(cols),
			CurvesFile:      curvesFile,
			AssignmentsFile: assignmentsFile,
		},
		Assignments: recs,
		Curves:      curves,
	}, nil
}
