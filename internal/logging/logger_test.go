package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FormatJSON, slog.LevelDebug).WithRun("run-1")

	l.LogMatch(context.Background(), 2, 7, true, 0.25)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "training column matched", rec["msg"])
	assert.Equal(t, "run-1", rec["run_id"])
	assert.EqualValues(t, 7, rec["ideal_function"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FormatText, slog.LevelInfo)

	l.LogThreshold(context.Background(), 1, 0.5, nil)
	assert.Empty(t, buf.String(), "debug record should be filtered")

	l.LogCommit(context.Background(), "validation", 0, errors.New("boom"))
	assert.True(t, strings.Contains(buf.String(), "commit failed"))
}

func TestNoop(t *testing.T) {
	l := OrNoop(nil)
	require.NotNil(t, l)
	l.LogLookupMiss(context.Background(), 0, 4)
}
