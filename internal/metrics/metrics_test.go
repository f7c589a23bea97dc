package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.ObserveMatch(true)
	r.ObserveMatch(true)
	r.ObserveMatch(false)
	r.ObservePoints(2, 1, 1)
	r.SetThreshold(3, 0.5)
	r.ObserveCommit("production", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Matches.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Matches.WithLabelValues("unmatched")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Points.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Points.WithLabelValues("lookup_miss")))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.Thresholds.WithLabelValues("3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Committed.WithLabelValues("production")))
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveMatch(true)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Matches.WithLabelValues("matched")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveMatch(true)
	r.ObservePoints(1, 1, 1)
	r.SetThreshold(1, 1)
	r.ObserveCommit("production", 1)
	r.Time("match")()
	assert.NoError(t, r.WriteTextfile("/nonexistent/x.prom"))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	done := r.Time("assign")
	done()
	r.ObservePoints(3, 0, 0)

	path := filepath.Join(t.TempDir(), "nested", "fitmatch.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.True(t, strings.Contains(text, `fitmatch_test_points_total{outcome="accepted"} 3`), text)
	assert.Contains(t, text, `fitmatch_stage_duration_seconds_count{stage="assign"} 1`)
}
