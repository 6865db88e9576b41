package core

import (
	"testing"

	"gorla/domain/tally"
)

func TestComputeTableHash_OrderIndependent(t *testing.T) {
	cols := []string{tally.ColumnTable, tally.ColumnCandidate, tally.ColumnVotes}
	a := tally.NewTable(cols,
		tally.Row{Table: "t1", Candidate: "x", Votes: 4},
		tally.Row{Table: "t2", Candidate: "y", Votes: 7},
	)
	b := tally.NewTable(cols,
		tally.Row{Table: "t2", Candidate: "y", Votes: 7},
		tally.Row{Table: "t1", Candidate: "x", Votes: 4},
	)

	if ComputeTableHash(a) != ComputeTableHash(b) {
		t.Errorf("Hashes differ for permuted rows: %s vs %s", ComputeTableHash(a), ComputeTableHash(b))
	}

	b.Rows[0].Votes = 8
	if ComputeTableHash(a) == ComputeTableHash(b) {
		t.Error("Expected different hashes after changing a vote count")
	}
}

func TestHash_Short(t *testing.T) {
	h := NewHash([]byte("gorla"))
	if len(h.Short()) != 12 {
		t.Errorf("Expected 12 characters, got %q", h.Short())
	}
	if Hash("abc").Short() != "abc" {
		t.Errorf("Short hash should not pad")
	}
}
