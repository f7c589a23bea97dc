// Package export writes a self-contained bundle of one stored run for plotting
// and offline review: a manifest, the accepted assignments as JSONL and the
// matched ideal curves as a little-endian float64 matrix.
package export

import "github.com/kamusis/fitmatch/internal/store"

// BundleVersion is bumped when the file layout changes.
const BundleVersion = 1

const (
	manifestFile    = "manifest.json"
	assignmentsFile = "assignments.jsonl"
	curvesFile      = "curves.f64"
)

// Function describes one matched ideal function in the bundle.
type Function struct {
	IdealID   int     `json:"ideal_function"`
	Column    int     `json:"training_column"`
	SSE       float64 `json:"sse"`
	Threshold float64 `json:"threshold"`
	// CurveColumn is the column of this function in the curves matrix.
	CurveColumn int `json:"curve_column"`
}

// Manifest describes a bundle and how to interpret its files.
type Manifest struct {
	BundleVersion   int             `json:"bundle_version"`
	CreatedAt       string          `json:"created_at"`
	RunID           string          `json:"run_id"`
	Destination     string          `json:"destination"`
	Tables          store.RunTables `json:"tables"`
	Functions       []Function      `json:"functions"`
	Points          int             `json:"points"`
	Accepted        int             `json:"accepted"`
	Rejected        int             `json:"rejected"`
	LookupMisses    int             `json:"lookup_misses"`
	CurveRows       int             `json:"curve_rows"`
	CurveCols       int             `json:"curve_cols"`
	CurvesFile      string          `json:"curves_file"`
	AssignmentsFile string          `json:"assignments_file"`
}

// Bundle is a loaded or freshly built export.
type Bundle struct {
	Manifest    Manifest
	Assignments []store.Record
	// Curves is row-major, CurveRows x CurveCols. Column 0 is x.
	Curves []float64
}
