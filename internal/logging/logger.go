// Package logging wraps slog with the field names used across fitmatch.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with fitmatch-specific helpers.
type Logger struct {
	*slog.Logger
}

// Format selects the handler used by New.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel maps debug/info/warn/error to an slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a Logger writing to w. A nil w means stderr.
func New(w io.Writer, format Format, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// Noop returns a Logger that discards everything.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

// OrNoop returns l, or a discarding logger when l is nil.
func OrNoop(l *Logger) *Logger {
	if l == nil {
		return Noop()
	}
	return l
}

// WithRun tags every record with the run id.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.Logger.With("run_id", runID)}
}

// WithTable tags every record with a table name.
func (l *Logger) WithTable(name string) *Logger {
	return &Logger{Logger: l.Logger.With("table", name)}
}

// LogMatch logs the outcome of matching one training column.
func (l *Logger) LogMatch(ctx context.Context, column, idealID int, found bool, sse float64) {
	if !found {
		l.WarnContext(ctx, "no ideal function matched",
			"column", column,
		)
		return
	}
	l.DebugContext(ctx, "training column matched",
		"column", column,
		"ideal_function", idealID,
		"sse", sse,
	)
}

// LogThreshold logs a derived threshold.
func (l *Logger) LogThreshold(ctx context.Context, idealID int, threshold float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "threshold undefined",
			"ideal_function", idealID,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "threshold derived",
		"ideal_function", idealID,
		"threshold", threshold,
	)
}

// LogLookupMiss logs a test point whose x has no ideal row.
func (l *Logger) LogLookupMiss(ctx context.Context, index int, x float64) {
	l.WarnContext(ctx, "no ideal row at x, test point skipped",
		"point", index,
		"x", x,
	)
}

// LogAssign logs the result of assigning all test points.
func (l *Logger) LogAssign(ctx context.Context, points, accepted, rejected, misses int) {
	if misses > 0 {
		l.WarnContext(ctx, "assignment completed with lookup misses",
			"points", points,
			"accepted", accepted,
			"rejected", rejected,
			"lookup_misses", misses,
		)
		return
	}
	l.InfoContext(ctx, "assignment completed",
		"points", points,
		"accepted", accepted,
		"rejected", rejected,
	)
}

// LogCommit logs a result commit.
func (l *Logger) LogCommit(ctx context.Context, destination string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"destination", destination,
			"count", count,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "results committed",
		"destination", destination,
		"count", count,
	)
}
