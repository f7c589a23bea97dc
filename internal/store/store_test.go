package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kamusis/fitmatch/internal/fit"
	"github.com/kamusis/fitmatch/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func idealTable() *series.Table {
	return &series.Table{
		Name:   "ideal",
		Role:   series.RoleIdeal,
		Header: []string{"x", "y1", "y2", "y3"},
		Rows:   [][]float64{{1, 1, 2, 3}, {2, 4, 5, 6}, {3, 7, 8, 9}, {2, -1, -1, -1}},
	}
}

func TestPutTable_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	meta, err := s.PutTable(ctx, idealTable(), "abc", "ideal.csv")
	require.NoError(t, err)
	assert.Equal(t, 4, meta.Rows)
	assert.Equal(t, "abc", meta.Checksum)

	got, err := s.Table(ctx, "ideal")
	require.NoError(t, err)
	assert.Equal(t, idealTable().Rows, got.Rows)
	assert.Equal(t, series.RoleIdeal, got.Role)
	assert.Equal(t, []string{"x", "y1", "y2", "y3"}, got.Header)

	cols, err := s.Columns(ctx, "ideal")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 2}, cols[0])
	assert.Equal(t, []float64{3, 6, 9, -1}, cols[3])

	rows, err := s.Rows(ctx, "ideal")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestRow_ExactLookupFirstWins(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.PutTable(ctx, idealTable(), "", "")
	require.NoError(t, err)

	row, err := s.Row(ctx, "ideal", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 5, 6}, row)

	_, err = s.Row(ctx, "ideal", 2.5)
	assert.ErrorIs(t, err, ErrRowNotFound)

	_, err = s.Row(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestPutTable_Replaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	first, err := s.PutTable(ctx, idealTable(), "v1", "")
	require.NoError(t, err)
	again, err := s.PutTable(ctx, idealTable(), "v1-copy", "")
	require.NoError(t, err)
	assert.Equal(t, first.Digest, again.Digest, "digest depends on contents only")

	smaller := &series.Table{
		Name:   "ideal",
		Role:   series.RoleIdeal,
		Header: []string{"x", "y1"},
		Rows:   [][]float64{{10, 100}},
	}
	_, err = s.PutTable(ctx, smaller, "v2", "")
	require.NoError(t, err)

	got, err := s.Table(ctx, "ideal")
	require.NoError(t, err)
	assert.Equal(t, smaller.Rows, got.Rows)
	_, err = s.Row(ctx, "ideal", 1)
	assert.ErrorIs(t, err, ErrRowNotFound)

	meta, err := s.TableMeta(ctx, "ideal")
	require.NoError(t, err)
	assert.Equal(t, "v2", meta.Checksum)
	assert.NotEqual(t, first.Digest, meta.Digest)
}

func TestPutTable_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	bad := idealTable()
	bad.Name = "a/b"
	_, err := s.PutTable(ctx, bad, "", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	ragged := idealTable()
	ragged.Rows[1] = []float64{2, 4}
	_, err = s.PutTable(ctx, ragged, "", "")
	assert.Error(t, err)
}

func TestTables_ListAndDrop(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	train := &series.Table{Name: "train", Role: series.RoleTraining, Header: []string{"x", "y1"}, Rows: [][]float64{{1, 1}}}
	_, err := s.PutTable(ctx, train, "", "")
	require.NoError(t, err)
	_, err = s.PutTable(ctx, idealTable(), "", "")
	require.NoError(t, err)

	metas, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "ideal", metas[0].Name)
	assert.Equal(t, "train", metas[1].Name)

	require.NoError(t, s.DropTable(ctx, "train"))
	require.NoError(t, s.DropTable(ctx, "train"))
	metas, err = s.Tables(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestBatch_CommitAndRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	run := RunMeta{RunID: "r1", Points: 3, Accepted: 2, Thresholds: map[int]float64{1: 0.1}}
	b := s.Begin(Production, run)
	b.Append(fit.Assignment{X: 1, Y: 2.4, DeltaY: 0.6, IdealFunction: 3})
	b.Append(fit.Assignment{X: 3, Y: 7.1, DeltaY: 0.1, IdealFunction: 1})
	require.Equal(t, 2, b.Len())

	n, err := b.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.Results(ctx, Production)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Seq)
	assert.Equal(t, "r1", recs[0].RunID)
	assert.Equal(t, 3, recs[0].IdealFunction)
	assert.Equal(t, 7.1, recs[1].Y)

	got, err := s.Run(ctx, Production)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.1, got.Thresholds[1])

	other, err := s.Run(ctx, Validation)
	require.NoError(t, err)
	assert.Nil(t, other)
	cnt, err := s.CountResults(ctx, Validation)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestBatch_Conflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := s.Begin(Validation, RunMeta{RunID: "a"})
	first.Append(fit.Assignment{X: 1, Y: 1, IdealFunction: 1})
	_, err := first.Commit(ctx)
	require.NoError(t, err)

	second := s.Begin(Validation, RunMeta{RunID: "b"})
	second.Append(fit.Assignment{X: 2, Y: 2, IdealFunction: 1})
	second.Append(fit.Assignment{X: 3, Y: 3, IdealFunction: 1})
	_, err = second.Commit(ctx)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Validation, ce.Destination)
	assert.Equal(t, 2, ce.Expected)
	assert.Equal(t, 3, ce.Observed)

	recs, err := s.Results(ctx, Validation)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "a conflicting commit must not write")

	n, err := s.ClearResults(ctx, Validation)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = second.Commit(ctx)
	require.NoError(t, err)
	run, err := s.Run(ctx, Validation)
	require.NoError(t, err)
	assert.Equal(t, "b", run.RunID)
}

func TestBatch_EmptyRunStillConflicts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Begin(Production, RunMeta{RunID: "empty"}).Commit(ctx)
	require.NoError(t, err)

	_, err = s.Begin(Production, RunMeta{RunID: "next"}).Commit(ctx)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Observed)
}

func TestParseDestination(t *testing.T) {
	d, err := ParseDestination("")
	require.NoError(t, err)
	assert.Equal(t, Production, d)

	d, err = ParseDestination("Validation")
	require.NoError(t, err)
	assert.Equal(t, Validation, d)

	_, err = ParseDestination("staging")
	assert.Error(t, err)
}

func TestOpen_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	_, err = s.PutTable(ctx, idealTable(), "", "")
	require.NoError(t, err)
	require.NoError(t, s.Compact())
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, dir, s.Path())
	row, err := s.Row(ctx, "ideal", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7, 8, 9}, row)

	_, err = Open(Config{})
	assert.Error(t, err)
}

func TestLock_SecondHolderTimesOut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	unlock, err := Lock(dir, time.Second)
	require.NoError(t, err)

	_, err = Lock(dir, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	unlock2, err := Lock(dir, time.Second)
	require.NoError(t, err)
	unlock2()

	noop, err := Lock("", 0)
	require.NoError(t, err)
	noop()
}
