package tally

import (
	"slices"
	"sort"
)

// Column names recognised in vote tables
const (
	ColumnTable     = "table"
	ColumnCandidate = "candidate"
	ColumnParty     = "party"
	ColumnVotes     = "votes"
)

// Row is a single (table, candidate, party, votes) record
type Row struct {
	Table     string `json:"table"`
	Candidate string `json:"candidate"`
	Party     string `json:"party,omitempty"`
	Votes     int64  `json:"votes"`
}

// Key returns the value of the given grouping column
func (r Row) Key(column string) string {
	switch column {
	case ColumnTable:
		return r.Table
	case ColumnParty:
		return r.Party
	default:
		return r.Candidate
	}
}

// Table is an in-memory vote table, either a preliminary count or a recount
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable creates a table with the given header
func NewTable(columns []string, rows ...Row) *Table {
	return &Table{Columns: slices.Clone(columns), Rows: rows}
}

// HasColumn reports whether the header contains column
func (t *Table) HasColumn(column string) bool {
	return slices.Contains(t.Columns, column)
}

// MissingColumns returns the required columns absent from the header
func (t *Table) MissingColumns(required ...string) []string {
	var missing []string
	for _, column := range required {
		if !t.HasColumn(column) {
			missing = append(missing, column)
		}
	}
	return missing
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// SumBy groups rows by column and sums their votes
func (t *Table) SumBy(column string) Count {
	count := make(Count)
	for _, row := range t.Rows {
		count[row.Key(column)] += row.Votes
	}
	return count
}

// Where returns the rows matching pred, sharing the header
func (t *Table) Where(pred func(Row) bool) *Table {
	out := &Table{Columns: slices.Clone(t.Columns)}
	for _, row := range t.Rows {
		if pred(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// ForTable returns the rows belonging to a single batch
func (t *Table) ForTable(id string) *Table {
	return t.Where(func(r Row) bool { return r.Table == id })
}

// ForParty returns the rows of a single party
func (t *Table) ForParty(party string) *Table {
	return t.Where(func(r Row) bool { return r.Party == party })
}

// TableIDs returns the distinct batch ids in sorted order
func (t *Table) TableIDs() []string {
	return t.distinct(ColumnTable)
}

// Candidates returns the distinct candidate ids in sorted order
func (t *Table) Candidates() []string {
	return t.distinct(ColumnCandidate)
}

// Parties returns the distinct party ids in sorted order, including ""
func (t *Table) Parties() []string {
	return t.distinct(ColumnParty)
}

// RowsFor counts the rows recorded for a batch
func (t *Table) RowsFor(id string) int {
	n := 0
	for _, row := range t.Rows {
		if row.Table == id {
			n++
		}
	}
	return n
}

// TableTotals sums votes per batch
func (t *Table) TableTotals() map[string]int64 {
	return t.SumBy(ColumnTable)
}

// NamedTable is a vote table together with the source it was read from
type NamedTable struct {
	Name  string
	Table *Table
}

// Concat appends the rows of the given tables in order. The header is the
// union of all headers, in first-seen order.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, column := range t.Columns {
			if !slices.Contains(out.Columns, column) {
				out.Columns = append(out.Columns, column)
			}
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}

func (t *Table) distinct(column string) []string {
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		seen[row.Key(column)] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
