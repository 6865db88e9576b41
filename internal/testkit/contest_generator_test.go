package testkit

import (
	"testing"

	"gorla/domain/tally"
)

func TestContestGenerator_Preliminary(t *testing.T) {
	config := DefaultContestConfig()
	config.Tables = 5
	config.BallotsPerTable = 50

	prelim := NewContestGenerator(config).Preliminary()

	if got, want := prelim.Len(), 5*len(config.Candidates); got != want {
		t.Fatalf("Expected %d rows, got %d", want, got)
	}
	for id, total := range prelim.TableTotals() {
		if total != 50 {
			t.Errorf("Table %s has %d ballots, want 50", id, total)
		}
	}
	if prelim.HasColumn(tally.ColumnParty) {
		t.Error("Expected no party column for party-less candidates")
	}
}

func TestContestGenerator_Deterministic(t *testing.T) {
	a := NewContestGenerator(DefaultContestConfig()).Preliminary()
	b := NewContestGenerator(DefaultContestConfig()).Preliminary()

	for i := range a.Rows {
		if a.Rows[i] != b.Rows[i] {
			t.Fatalf("Row %d differs between runs with the same seed: %+v vs %+v", i, a.Rows[i], b.Rows[i])
		}
	}
}

func TestContestGenerator_BallotSample(t *testing.T) {
	g := NewContestGenerator(DefaultContestConfig())
	prelim := g.Preliminary()

	sample := g.BallotSample(prelim, 300)

	if got := sample.SumBy(tally.ColumnCandidate).Total(); got != 300 {
		t.Errorf("Expected 300 sampled ballots, got %d", got)
	}
}

func TestContestGenerator_BatchSample(t *testing.T) {
	g := NewContestGenerator(DefaultContestConfig())
	prelim := g.Preliminary()

	sample := g.BatchSample(prelim, 7)

	if got, want := sample.Len(), 7*len(prelim.Candidates()); got != want {
		t.Errorf("Expected %d rows, got %d", want, got)
	}
	for _, id := range sample.TableIDs() {
		draws := sample.RowsFor(id) / len(prelim.Candidates())
		want := prelim.ForTable(id).SumBy(tally.ColumnCandidate)
		got := sample.ForTable(id).SumBy(tally.ColumnCandidate)
		for candidate, v := range want {
			if got[candidate] != v*int64(draws) {
				t.Errorf("Table %s candidate %s: got %d, want %d", id, candidate, got[candidate], v*int64(draws))
			}
		}
	}
}

func TestShiftVotes(t *testing.T) {
	prelim := tally.NewTable([]string{tally.ColumnTable, tally.ColumnCandidate, tally.ColumnVotes},
		tally.Row{Table: "t1", Candidate: "A", Votes: 60},
		tally.Row{Table: "t1", Candidate: "B", Votes: 40},
	)

	shifted := ShiftVotes(prelim, "t1", "A", "B", 10)

	if got := shifted.SumBy(tally.ColumnCandidate); got["A"] != 50 || got["B"] != 50 {
		t.Errorf("Unexpected shifted counts %v", got)
	}
	if prelim.Rows[0].Votes != 60 {
		t.Error("ShiftVotes modified its input")
	}
}
