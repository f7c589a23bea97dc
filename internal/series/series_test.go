package series

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idealCSV = "x,y1,y2,y3\n1,1,2,3\n2,4,5,6\n3,7,8,9\n"

func TestReadCSV_RowsAndColumns(t *testing.T) {
	tbl, err := ReadCSV("ideal_functions", RoleIdeal, strings.NewReader(idealCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y1", "y2", "y3"}, tbl.Header)
	assert.Equal(t, [][]float64{{1, 1, 2, 3}, {2, 4, 5, 6}, {3, 7, 8, 9}}, tbl.Rows)
	assert.Equal(t, [][]float64{{1, 2, 3}, {1, 4, 7}, {2, 5, 8}, {3, 6, 9}}, tbl.Columns())
}

func TestReadCSV_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		role Role
		want string
	}{
		{"empty", "", RoleIdeal, "header row required"},
		{"bad cell", "x,y1\n1,abc\n", RoleTraining, "line 2 column y1"},
		{"ragged", "x,y1\n1,2,3\n", RoleTraining, "wrong number of fields"},
		{"x only", "x\n1\n", RoleIdeal, "at least one series column"},
		{"test too wide", "x,y,z\n1,2,3\n", RoleTest, "exactly 2 columns"},
		{"not finite", "x,y\n1,NaN\n", RoleTest, "not finite"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ReadCSV("t", c.role, strings.NewReader(c.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestRowAt_ExactMatchFirstWins(t *testing.T) {
	tbl := &Table{
		Name:   "ideal",
		Role:   RoleIdeal,
		Header: []string{"x", "y1"},
		Rows:   [][]float64{{0, 10}, {1.5, 20}, {1.5, 30}},
	}

	row, ok := tbl.RowAt(1.5)
	require.True(t, ok)
	assert.Equal(t, []float64{1.5, 20}, row)

	row, ok = tbl.RowAt(math.Copysign(0, -1))
	require.True(t, ok)
	assert.Equal(t, 10.0, row[1])

	_, ok = tbl.RowAt(1.5000001)
	assert.False(t, ok)
}

func TestPoints(t *testing.T) {
	tbl, err := ReadCSV("test_data", RoleTest, strings.NewReader("x,y\n1,2.4\n3,7.1\n"))
	require.NoError(t, err)

	pts, err := tbl.Points()
	require.NoError(t, err)
	assert.Equal(t, []Point{{X: 1, Y: 2.4}, {X: 3, Y: 7.1}}, pts)

	wide := &Table{Name: "w", Header: []string{"x", "a", "b"}}
	_, err = wide.Points()
	assert.Error(t, err)
}

func TestWriteCSV_RoundTripsValues(t *testing.T) {
	tbl, err := ReadCSV("ideal", RoleIdeal, strings.NewReader(idealCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, idealCSV, buf.String())
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"training": RoleTraining, "Train": RoleTraining, "ideal": RoleIdeal, " test ": RoleTest} {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRole("bogus")
	assert.Error(t, err)

	var r Role
	require.NoError(t, r.UnmarshalText([]byte("ideal")))
	assert.Equal(t, RoleIdeal, r)
	b, _ := r.MarshalText()
	assert.Equal(t, "ideal", string(b))
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"ideal", "train_2024", "test-v1.0"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", "a/b", "train data", "ideal:v2", "ü"} {
		assert.False(t, ValidName(name), name)
	}
}
