// Package pipeline wires the store, the matching engine and the result
// persister into a single run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kamusis/fitmatch/internal/fit"
	"github.com/kamusis/fitmatch/internal/logging"
	"github.com/kamusis/fitmatch/internal/metrics"
	"github.com/kamusis/fitmatch/internal/series"
	"github.com/kamusis/fitmatch/internal/store"
)

// Store is what a run reads tables from and commits results to.
type Store interface {
	Table(ctx context.Context, name string) (*series.Table, error)
	TableMeta(ctx context.Context, name string) (*store.TableMeta, error)
	Begin(dest store.Destination, run store.RunMeta) *store.Batch
}

// Options configures a run.
type Options struct {
	Tables      store.RunTables
	Destination store.Destination
	// Save commits accepted assignments. When false the run is evaluated only.
	Save        bool
	Parallelism int
	Strict      bool
}

// Selection is the outcome of matching and threshold derivation.
type Selection struct {
	Matches    []fit.Match
	Thresholds map[int]float64

	// Column headers of the training and ideal tables, x first.
	TrainingHeader []string
	IdealHeader    []string
}

func headerName(header []string, i int) string {
	if i > 0 && i < len(header) && header[i] != "" {
		return header[i]
	}
	return fmt.Sprintf("y%d", i)
}

// ColumnName returns the header of training column c.
func (s *Selection) ColumnName(c int) string {
	return headerName(s.TrainingHeader, c)
}

// FunctionName returns the header of ideal function id.
func (s *Selection) FunctionName(id int) string {
	return headerName(s.IdealHeader, id)
}

// Report is the outcome of a run.
type Report struct {
	RunID       string
	Destination store.Destination
	Selection
	Outcome   *fit.Outcome
	Summary   Summary
	Saved     bool
	Committed int
	Duration  time.Duration
}

// Runner executes runs against a store.
type Runner struct {
	store    Store
	logger   *logging.Logger
	recorder *metrics.Recorder
}

// NewRunner returns a Runner. logger and recorder may be nil.
func NewRunner(st Store, logger *logging.Logger, recorder *metrics.Recorder) *Runner {
	return &Runner{store: st, logger: logging.OrNoop(logger), recorder: recorder}
}

func (r *Runner) engine(opts Options, logger *logging.Logger) *fit.Engine {
	return fit.NewEngine(
		fit.WithParallelism(opts.Parallelism),
		fit.WithStrict(opts.Strict),
		fit.WithLogger(logger),
	)
}

func (r *Runner) table(ctx context.Context, name string, role series.Role) (*series.Table, error) {
	t, err := r.store.Table(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s table: %w", role, err)
	}
	if t.Role != role {
		return nil, fmt.Errorf("table %s was loaded as %s data, want %s", name, t.Role, role)
	}
	return t, nil
}

// Select matches every training column and derives the thresholds of the
// selected ideal functions.
func (r *Runner) Select(ctx context.Context, opts Options) (*Selection, error) {
	training, err := r.table(ctx, opts.Tables.Training, series.RoleTraining)
	if err != nil {
		return nil, err
	}
	ideal, err := r.table(ctx, opts.Tables.Ideal, series.RoleIdeal)
	if err != nil {
		return nil, err
	}
	return r.selectFunctions(ctx, r.engine(opts, r.logger), training, ideal)
}

func (r *Runner) selectFunctions(ctx context.Context, e *fit.Engine, trainingTable, idealTable *series.Table) (*Selection, error) {
	training, ideal := trainingTable.Columns(), idealTable.Columns()
	done := r.recorder.Time("match")
	matches, err := e.Match(ctx, training, ideal)
	done()
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		r.recorder.ObserveMatch(m.Found)
	}

	done = r.recorder.Time("threshold")
	thresholds, err := e.Thresholds(ctx, training, ideal, matches)
	done()
	if err != nil {
		return nil, err
	}
	for id, th := range thresholds {
		r.recorder.SetThreshold(id, th)
	}
	return &Selection{
		Matches:        matches,
		Thresholds:     thresholds,
		TrainingHeader: trainingTable.Header,
		IdealHeader:    idealTable.Header,
	}, nil
}

// Run selects ideal functions, assigns every test point and, when opts.Save
// is set, commits the accepted assignments to opts.Destination.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.WithRun(runID)
	dest := opts.Destination
	if dest == "" {
		dest = store.Production
	}

	training, err := r.table(ctx, opts.Tables.Training, series.RoleTraining)
	if err != nil {
		return nil, err
	}
	ideal, err := r.table(ctx, opts.Tables.Ideal, series.RoleIdeal)
	if err != nil {
		return nil, err
	}
	idealMeta, err := r.store.TableMeta(ctx, opts.Tables.Ideal)
	if err != nil {
		return nil, fmt.Errorf("%s table: %w", series.RoleIdeal, err)
	}
	test, err := r.table(ctx, opts.Tables.Test, series.RoleTest)
	if err != nil {
		return nil, err
	}
	points, err := test.Points()
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "run started",
		"training_columns", training.Width()-1,
		"ideal_functions", ideal.Width()-1,
		"test_points", len(points),
		"destination", dest.String(),
		"save", opts.Save,
	)

	e := r.engine(opts, logger)
	sel, err := r.selectFunctions(ctx, e, training, ideal)
	if err != nil {
		return nil, err
	}

	done := r.recorder.Time("assign")
	out, err := e.Assign(ctx, ideal, points, sel.Matches, sel.Thresholds)
	done()
	if err != nil {
		return nil, err
	}
	r.recorder.ObservePoints(len(out.Assignments), out.Rejected, len(out.Misses))

	rep := &Report{
		RunID:       runID,
		Destination: dest,
		Selection:   *sel,
		Outcome:     out,
		Summary:     Summarize(out),
	}

	if opts.Save {
		meta := store.RunMeta{
			RunID:       runID,
			CreatedAt:   start.UTC().Format(time.RFC3339),
			Tables:      opts.Tables,
			IdealDigest: idealMeta.Digest,
			Matches:     sel.Matches,
			Thresholds:  sel.Thresholds,
			Points:      out.Points,
			Accepted:    len(out.Assignments),
			Rejected:    out.Rejected,
			Misses:      len(out.Misses),
		}
		b := r.store.Begin(dest, meta)
		for _, a := range out.Assignments {
			b.Append(a)
		}
		pending := b.Len()
		done := r.recorder.Time("commit")
		n, err := b.Commit(ctx)
		done()
		logger.LogCommit(ctx, dest.String(), pending, err)
		if err != nil {
			return nil, err
		}
		r.recorder.ObserveCommit(dest.String(), n)
		rep.Saved = true
		rep.Committed = n
	}

	rep.Duration = time.Since(start)
	return rep, nil
}
