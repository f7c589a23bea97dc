// Package series holds the tabular model shared by training, ideal and test data.
//
// A Table is a set of rows (x, y1..yN). The role tag only decides which table a
// dataset feeds into; every role is stored and queried the same way.
package series

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidName reports whether name can be used as a table name: letters,
// digits, '_', '.' and '-' only.
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// Role tags what a table is used for in a matching run.
type Role int

const (
	RoleUnknown Role = iota
	RoleTraining
	RoleIdeal
	RoleTest
)

func (r Role) String() string {
	switch r {
	case RoleTraining:
		return "training"
	case RoleIdeal:
		return "ideal"
	case RoleTest:
		return "test"
	default:
		return "unknown"
	}
}

// ParseRole parses the textual form used in config files.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "training", "train":
		return RoleTraining, nil
	case "ideal":
		return RoleIdeal, nil
	case "test":
		return RoleTest, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown series role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Table is a named, role-tagged set of aligned rows. Column 0 is x.
type Table struct {
	Name   string
	Role   Role
	Header []string
	Rows   [][]float64

	index map[uint64]int
}

// Width returns the number of columns including x.
func (t *Table) Width() int {
	if len(t.Header) > 0 {
		return len(t.Header)
	}
	if len(t.Rows) > 0 {
		return len(t.Rows[0])
	}
	return 0
}

// Validate checks that the table is rectangular, finite and has at least one
// series column next to x.
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	w := t.Width()
	if w < 2 {
		return fmt.Errorf("table %s: need an x column and at least one series column, got %d column(s)", t.Name, w)
	}
	if t.Role == RoleTest && w != 2 {
		return fmt.Errorf("table %s: test data must have exactly 2 columns (x, y), got %d", t.Name, w)
	}
	for i, row := range t.Rows {
		if len(row) != w {
			return fmt.Errorf("table %s: row %d has %d values, want %d", t.Name, i+1, len(row), w)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("table %s: row %d column %d is not finite", t.Name, i+1, j)
			}
		}
	}
	return nil
}

// Columns returns the data column-wise; element 0 is the x column.
func (t *Table) Columns() [][]float64 {
	w := t.Width()
	cols := make([][]float64, w)
	for j := range cols {
		cols[j] = make([]float64, 0, len(t.Rows))
	}
	for _, row := range t.Rows {
		for j := 0; j < w && j < len(row); j++ {
			cols[j] = append(cols[j], row[j])
		}
	}
	return cols
}

// RowAt returns the first row whose x equals x exactly.
func (t *Table) RowAt(x float64) ([]float64, bool) {
	if t.index == nil {
		t.index = make(map[uint64]int, len(t.Rows))
		for i, row := range t.Rows {
			if len(row) == 0 {
				continue
			}
			k := XKey(row[0])
			if _, dup := t.index[k]; !dup {
				t.index[k] = i
			}
		}
	}
	i, ok := t.index[XKey(x)]
	if !ok {
		return nil, false
	}
	return t.Rows[i], true
}

// XKey maps an x value to the key used for exact lookup. -0 and +0 share a key.
func XKey(x float64) uint64 {
	if x == 0 {
		x = 0
	}
	return math.Float64bits(x)
}

// Point is a single (x, y) observation, typically one row of a test table.
type Point struct {
	X float64
	Y float64
}

// Points returns the (x, y) pairs of a two-column table in row order.
func (t *Table) Points() ([]Point, error) {
	if t.Width() != 2 {
		return nil, fmt.Errorf("table %s: points need exactly 2 columns, got %d", t.Name, t.Width())
	}
	out := make([]Point, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, Point{X: row[0], Y: row[1]})
	}
	return out, nil
}
