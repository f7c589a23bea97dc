// Package metrics records run statistics in a Prometheus registry that can be
// dumped to a node_exporter textfile after each run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fitmatch"

// Recorder holds the metrics of one process. Each Recorder owns its registry,
// so tests and repeated runs never collide on the default one.
type Recorder struct {
	reg *prometheus.Registry

	// Points counts test points by outcome (accepted, rejected, lookup_miss).
	Points *prometheus.CounterVec

	// Matches counts training columns by result (matched, unmatched).
	Matches *prometheus.CounterVec

	// Thresholds holds the last threshold per ideal function.
	Thresholds *prometheus.GaugeVec

	// Committed counts records written by destination.
	Committed *prometheus.CounterVec

	// RunDuration measures each pipeline stage.
	RunDuration *prometheus.HistogramVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		Points: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_points_total",
			Help:      "Test points processed by outcome",
		}, []string{"outcome"}),
		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_columns_total",
			Help:      "Training columns by match result",
		}, []string{"result"}),
		Thresholds: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold",
			Help:      "Acceptance threshold per ideal function (before the sqrt(2) factor)",
		}, []string{"ideal_function"}),
		Committed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_records_total",
			Help:      "Assignment records committed by destination",
		}, []string{"destination"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),
	}
}

// ObserveMatch counts one training column.
func (r *Recorder) ObserveMatch(found bool) {
	if r == nil {
		return
	}
	if found {
		r.Matches.WithLabelValues("matched").Inc()
		return
	}
	r.Matches.WithLabelValues("unmatched").Inc()
}

// SetThreshold records the threshold of an ideal function.
func (r *Recorder) SetThreshold(idealID int, th float64) {
	if r == nil {
		return
	}
	r.Thresholds.WithLabelValues(strconv.Itoa(idealID)).Set(th)
}

// ObservePoints adds the per-outcome point counts of a run.
func (r *Recorder) ObservePoints(accepted, rejected, misses int) {
	if r == nil {
		return
	}
	r.Points.WithLabelValues("accepted").Add(float64(accepted))
	r.Points.WithLabelValues("rejected").Add(float64(rejected))
	r.Points.WithLabelValues("lookup_miss").Add(float64(misses))
}

// ObserveCommit counts committed records.
func (r *Recorder) ObserveCommit(destination string, n int) {
	if r == nil {
		return
	}
	r.Committed.WithLabelValues(destination).Add(float64(n))
}

// Time returns a func that records the time elapsed since Time was called
// under stage.
func (r *Recorder) Time(stage string) func() {
	if r == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		r.RunDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// WriteTextfile writes every metric in the Prometheus text format to path.
// The file is written next to path and renamed into place.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("cannot write metrics file %s: %w", path, err)
	}
	return nil
}
