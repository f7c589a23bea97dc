package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kamusis/fitmatch/internal/fit"
	"github.com/kamusis/fitmatch/internal/series"
	"github.com/kamusis/fitmatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	meta, err := s.PutTable(ctx, &series.Table{
		Name:   "ideal",
		Role:   series.RoleIdeal,
		Header: []string{"x", "y1", "y2", "y3"},
		Rows:   [][]float64{{1, 1, 2, 3}, {2, 4, 5, 6}, {3, 7, 8, 9}},
	}, "", "")
	require.NoError(t, err)

	b := s.Begin(store.Validation, store.RunMeta{
		RunID:       "run-1",
		Tables:      store.RunTables{Training: "training", Ideal: "ideal", Test: "test"},
		IdealDigest: meta.Digest,
		Matches:     []fit.Match{{Column: 1, IdealID: 3, Found: true, SSE: 0.25}, {Column: 2, IdealID: 1, Found: true, SSE: 0.02}, {Column: 3}},
		Thresholds:  map[int]float64{1: 0.1, 3: 0.5},
		Points:      4,
		Accepted:    2,
		Rejected:    1,
		Misses:      1,
	})
	b.Append(fit.Assignment{X: 1, Y: 2.4, DeltaY: 0.6, IdealFunction: 3})
	b.Append(fit.Assignment{X: 3, Y: 7.1, DeltaY: 0.1, IdealFunction: 1})
	_, err = b.Commit(ctx)
	require.NoError(t, err)
	return s
}

func TestBuildWriteLoad(t *testing.T) {
	s := seededStore(t)
	b, err := Build(context.Background(), s, store.Validation)
	require.NoError(t, err)

	require.Len(t, b.Manifest.Functions, 2)
	assert.Equal(t, 3, b.Manifest.Functions[0].IdealID)
	assert.Equal(t, 0.5, b.Manifest.Functions[0].Threshold)
	assert.Equal(t, 3, b.Manifest.CurveCols)
	assert.Equal(t, []float64{1, 3, 1, 2, 6, 4, 3, 9, 7}, b.Curves)

	dir := filepath.Join(t.TempDir(), "bundle")
	require.NoError(t, Write(dir, b))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, b.Manifest, got.Manifest)
	assert.Equal(t, b.Assignments, got.Assignments)
	assert.Equal(t, []float64{3, 6, 9}, got.Curve(1))
	assert.Equal(t, []float64{1, 4, 7}, got.Curve(2))
	assert.Nil(t, got.Curve(3))
}

func TestBuild_IdealReloadedAfterRun(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	// Same width, different values: the old assignments must not be paired
	// with the new curves.
	_, err := s.PutTable(ctx, &series.Table{
		Name:   "ideal",
		Role:   series.RoleIdeal,
		Header: []string{"x", "y1", "y2", "y3"},
		Rows:   [][]float64{{1, 10, 20, 30}, {2, 40, 50, 60}, {3, 70, 80, 90}},
	}, "", "")
	require.NoError(t, err)
	_, err = Build(ctx, s, store.Validation)
	assert.ErrorIs(t, err, ErrStaleRun)

	// Narrower table.
	_, err = s.PutTable(ctx, &series.Table{
		Name:   "ideal",
		Role:   series.RoleIdeal,
		Header: []string{"x", "y1"},
		Rows:   [][]float64{{1, 1}},
	}, "", "")
	require.NoError(t, err)
	_, err = Build(ctx, s, store.Validation)
	assert.ErrorIs(t, err, ErrStaleRun)
}

func TestBuild_NoRun(t *testing.T) {
	s := seededStore(t)
	_, err := Build(context.Background(), s, store.Production)
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestLoad_SizeMismatch(t *testing.T) {
	s := seededStore(t)
	b, err := Build(context.Background(), s, store.Validation)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, Write(dir, b))
	require.NoError(t, os.WriteFile(filepath.Join(dir, curvesFile), []byte{1, 2, 3}, 0o644))

	_, err = Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}

func TestAtomicSwap_ReplacesExisting(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "old"), []byte("x"), 0o644))

	src := filepath.Join(root, "tmp")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "new"), []byte("y"), 0o644))

	require.NoError(t, AtomicSwap(src, dest))
	assert.FileExists(t, filepath.Join(dest, "new"))
	assert.NoFileExists(t, filepath.Join(dest, "old"))
	assert.NoDirExists(t, dest+".bak")
	assert.NoDirExists(t, src)
}
