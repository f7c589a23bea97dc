package fit

import (
	"context"
	"errors"
	"fmt"

	"github.com/kamusis/fitmatch/internal/logging"
	"github.com/kamusis/fitmatch/internal/series"
	"golang.org/x/sync/errgroup"
)

// Engine runs the matcher and assigner with optional fan-out and logging.
// The results are identical to MatchColumns and Assign.
type Engine struct {
	parallelism int
	strict      bool
	logger      *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism bounds the number of goroutines used per stage. Values
// below 2 run sequentially.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.parallelism = n
	}
}

// WithStrict makes Match fail on unmatched training columns and Assign fail on
// lookup misses instead of reporting them.
func WithStrict(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{parallelism: 1}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNoop(e.logger)
	return e
}

func (e *Engine) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.parallelism, 1))
	return g, gctx
}

// Match runs MatchColumns, fanning the training columns out over the worker
// limit when parallelism is above 1.
func (e *Engine) Match(ctx context.Context, training, ideal [][]float64) ([]Match, error) {
	out, err := e.matchColumns(ctx, training, ideal)
	if err != nil {
		return nil, err
	}

	for _, m := range out {
		e.logger.LogMatch(ctx, m.Column, m.IdealID, m.Found, m.SSE)
	}
	if e.strict {
		if err := Unmatched(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Engine) matchColumns(ctx context.Context, training, ideal [][]float64) ([]Match, error) {
	if e.parallelism < 2 || len(training) < 3 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return MatchColumns(training, ideal), nil
	}
	out := make([]Match, len(training)-1)
	g, gctx := e.group(ctx)
	for c := 1; c < len(training); c++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[c-1] = matchAt(training, ideal, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Thresholds runs Thresholds and logs the threshold of every matched
// function, or the failure.
func (e *Engine) Thresholds(ctx context.Context, training, ideal [][]float64, matches []Match) (map[int]float64, error) {
	out, err := Thresholds(training, ideal, matches)
	if err != nil {
		var ut *UndefinedThresholdError
		var uf *UnknownFunctionError
		switch {
		case errors.As(err, &ut):
			e.logger.LogThreshold(ctx, ut.IdealID, 0, err)
		case errors.As(err, &uf):
			e.logger.LogThreshold(ctx, uf.IdealID, 0, err)
		}
		return nil, err
	}
	logged := make(map[int]bool, len(out))
	for _, id := range IDs(matches) {
		if !logged[id] {
			logged[id] = true
			e.logger.LogThreshold(ctx, id, out[id], nil)
		}
	}
	return out, nil
}

// Assign classifies every test point. Lookup misses are logged and reported
// in the outcome, or returned as *LookupMissError in strict mode.
func (e *Engine) Assign(ctx context.Context, ideal Lookup, points []series.Point, matches []Match, thresholds map[int]float64) (*Outcome, error) {
	type slot struct {
		a Assignment
		v Verdict
	}
	slots := make([]slot, len(points))

	if e.parallelism > 1 {
		// Table lookups build their index lazily; warm it before fanning out.
		if len(points) > 0 {
			ideal.RowAt(points[0].X)
		}
	}

	g, gctx := e.group(ctx)
	for i, p := range points {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, v, err := AssignPoint(ideal, p, matches, thresholds)
			if err != nil {
				return fmt.Errorf("test point %d (x=%g): %w", i, p.X, err)
			}
			slots[i] = slot{a: a, v: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Outcome{Points: len(points)}
	for i, s := range slots {
		out.record(i, points[i], s.a, s.v)
		if s.v == VerdictLookupMiss {
			e.logger.LogLookupMiss(ctx, i, points[i].X)
		}
	}
	e.logger.LogAssign(ctx, out.Points, len(out.Assignments), out.Rejected, len(out.Misses))

	if e.strict && len(out.Misses) > 0 {
		return nil, &LookupMissError{Misses: out.Misses}
	}
	return out, nil
}
