package export

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kamusis/fitmatch/internal/store"
)

// Load reads a bundle written by Write.
func Load(dir string) (*Bundle, error) {
	manifestPath := filepath.Join(dir, manifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON %s: %w", manifestPath, err)
	}
	if m.BundleVersion > BundleVersion {
		return nil, fmt.Errorf("bundle version %d is newer than supported (%d)", m.BundleVersion, BundleVersion)
	}
	if m.CurveCols <= 0 || m.CurveRows < 0 {
		return nil, fmt.Errorf("invalid curve shape in manifest: %dx%d", m.CurveRows, m.CurveCols)
	}
	if m.CurvesFile == "" {
		m.CurvesFile = curvesFile
	}
	if m.AssignmentsFile == "" {
		m.AssignmentsFile = assignmentsFile
	}

	recs, err := loadAssignments(filepath.Join(dir, m.AssignmentsFile))
	if err != nil {
		return nil, err
	}
	curves, err := loadCurves(filepath.Join(dir, m.CurvesFile), m.CurveRows, m.CurveCols)
	if err != nil {
		return nil, err
	}
	return &Bundle{Manifest: m, Assignments: recs, Curves: curves}, nil
}

func loadAssignments(path string) ([]store.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open assignments file %s: %w", path, err)
	}
	defer f.Close()

	var out []store.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r store.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("invalid assignments JSONL %s: %w", path, err)
		}
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read assignments file %s: %w", path, err)
	}
	return out, nil
}

func loadCurves(path string, rows, cols int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open curves file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat curves file %s: %w", path, err)
	}
	expected := int64(rows * cols * 8)
	if expected != st.Size() {
		return nil, fmt.Errorf("curves file size mismatch: got %d want %d (rows=%d cols=%d)", st.Size(), expected, rows, cols)
	}

	out := make([]float64, rows*cols)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot read curves from %s: %w", path, err)
	}
	return out, nil
}

// Curve returns column c of the curves matrix.
func (b *Bundle) Curve(c int) []float64 {
	m := b.Manifest
	if c < 0 || c >= m.CurveCols {
		return nil
	}
	out := make([]float64, m.CurveRows)
	for r := range out {
		out[r] = b.Curves[r*m.CurveCols+c]
	}
	return out
}
