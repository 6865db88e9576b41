package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/internal"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDataReader_CSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "preliminary.csv",
		"Table, Candidate ,party,votes\n"+
			"t1,A,red,60\n"+
			"t1,B,,40.0\n"+
			",,,\n"+
			"t2,A,red,10\n")

	table, err := NewDataReader(path, DefaultExcelConfig(), internal.Discard()).ReadTable()
	require.NoError(t, err)

	assert.Equal(t, []string{tally.ColumnTable, tally.ColumnCandidate, tally.ColumnParty, tally.ColumnVotes}, table.Columns)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, tally.Row{Table: "t1", Candidate: "B", Party: "", Votes: 40}, table.Rows[1])
	assert.Equal(t, tally.Count{"A": 70, "B": 40}, table.SumBy(tally.ColumnCandidate))
}

func TestDataReader_WithoutPartyColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.csv", "table,candidate,votes\nt1,A,5\n")

	table, err := NewDataReader(path, DefaultExcelConfig(), internal.Discard()).ReadTable()
	require.NoError(t, err)
	assert.False(t, table.HasColumn(tally.ColumnParty))
	assert.Equal(t, "", table.Rows[0].Party)
}

func TestDataReader_InvalidVotes(t *testing.T) {
	tests := []struct {
		name  string
		votes string
	}{
		{"negative", "-3"},
		{"fractional", "2.5"},
		{"text", "many"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.csv", "table,candidate,votes\nt1,A,1\nt1,B,"+tt.votes+"\n")

			_, err := NewDataReader(path, DefaultExcelConfig(), internal.Discard()).ReadTable()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidTable)
			assert.Contains(t, err.Error(), "line 3")
		})
	}
}

func TestDataReader_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.csv"), DefaultExcelConfig(), internal.Discard()).ReadTable()
	assert.Error(t, err)
}

func TestDataReader_HeaderOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", "table,candidate,votes\n")

	table, err := NewDataReader(path, DefaultExcelConfig(), internal.Discard()).ReadTable()
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestXLSXRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := tally.NewTable([]string{tally.ColumnTable, tally.ColumnParty, tally.ColumnCandidate, tally.ColumnVotes},
		tally.Row{Table: "t1", Party: "X", Candidate: "x1", Votes: 350},
		tally.Row{Table: "t1", Party: "Y", Candidate: "y1", Votes: 250},
	)
	path := filepath.Join(dir, "preliminary.xlsx")
	require.NoError(t, WriteTable(path, want))

	got, err := NewDataReader(path, ExcelConfig{Sheet: "Votes"}, internal.Discard()).ReadTable()
	require.NoError(t, err)
	assert.Equal(t, want.Columns, got.Columns)
	assert.Equal(t, want.Rows, got.Rows)
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "table,candidate,votes\nt2,A,6\n")
	writeFile(t, dir, "a.csv", "table,candidate,votes\nt1,A,5\n")
	writeFile(t, dir, "notes.txt", "ignore me")
	writeFile(t, dir, ".hidden.csv", "table,candidate,votes\nt9,A,1\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))
	require.NoError(t, WriteTable(filepath.Join(dir, "c.xlsx"), tally.NewTable(
		[]string{tally.ColumnTable, tally.ColumnCandidate, tally.ColumnVotes},
		tally.Row{Table: "t3", Candidate: "B", Votes: 7},
	)))

	tables, err := ReadDir(context.Background(), dir, DefaultExcelConfig(), internal.Discard())
	require.NoError(t, err)

	require.Len(t, tables, 3)
	assert.Equal(t, "a.csv", tables[0].Name)
	assert.Equal(t, "b.csv", tables[1].Name)
	assert.Equal(t, "c.xlsx", tables[2].Name)

	var all []*tally.Table
	for _, nt := range tables {
		all = append(all, nt.Table)
	}
	merged := tally.Concat(all...)
	assert.Equal(t, []string{"t1", "t2", "t3"}, merged.TableIDs())
	assert.Equal(t, tally.Count{"A": 11, "B": 7}, merged.SumBy(tally.ColumnCandidate))
}

func TestReadDir_Missing(t *testing.T) {
	_, err := ReadDir(context.Background(), filepath.Join(t.TempDir(), "none"), DefaultExcelConfig(), internal.Discard())
	assert.Error(t, err)
}
