package testkit

import (
	"fmt"
	"math/rand"

	"gorla/domain/tally"
)

// CandidateSpec describes one synthetic candidate
type CandidateSpec struct {
	ID    string  `json:"id"`
	Party string  `json:"party,omitempty"`
	Share float64 `json:"share"`
}

// ContestGeneratorConfig configures the contest generator
type ContestGeneratorConfig struct {
	Tables          int             `json:"tables"`
	BallotsPerTable int             `json:"ballots_per_table"`
	Candidates      []CandidateSpec `json:"candidates"`
	Seed            int64           `json:"seed"`
}

// DefaultContestConfig returns a two-candidate 60/40 contest over 20 tables
func DefaultContestConfig() ContestGeneratorConfig {
	return ContestGeneratorConfig{
		Tables:          20,
		BallotsPerTable: 200,
		Candidates: []CandidateSpec{
			{ID: "A", Share: 0.6},
			{ID: "B", Share: 0.4},
		},
		Seed: 42,
	}
}

// ContestGenerator produces preliminary counts and faithful recount samples
type ContestGenerator struct {
	config ContestGeneratorConfig
	rng    *rand.Rand
}

// NewContestGenerator creates a new contest generator
func NewContestGenerator(config ContestGeneratorConfig) *ContestGenerator {
	return &ContestGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Columns returns the header of generated tables
func (g *ContestGenerator) Columns() []string {
	columns := []string{tally.ColumnTable, tally.ColumnCandidate, tally.ColumnVotes}
	for _, c := range g.config.Candidates {
		if c.Party != "" {
			return append(columns, tally.ColumnParty)
		}
	}
	return columns
}

// TableID names the i-th table
func TableID(i int) string {
	return fmt.Sprintf("table_%03d", i+1)
}

// Preliminary draws every ballot of every table from the candidate shares.
// Each table carries one row per candidate, zero votes included.
func (g *ContestGenerator) Preliminary() *tally.Table {
	out := tally.NewTable(g.Columns())
	for i := 0; i < g.config.Tables; i++ {
		votes := make([]int64, len(g.config.Candidates))
		for b := 0; b < g.config.BallotsPerTable; b++ {
			votes[g.drawCandidate()]++
		}
		for j, c := range g.config.Candidates {
			out.Rows = append(out.Rows, tally.Row{Table: TableID(i), Candidate: c.ID, Party: c.Party, Votes: votes[j]})
		}
	}
	return out
}

// BallotSample draws n ballots, with replacement, from the reported totals of
// preliminary and returns them as a ballot-polling recount.
func (g *ContestGenerator) BallotSample(preliminary *tally.Table, n int) *tally.Table {
	count := preliminary.SumBy(tally.ColumnCandidate)
	ids := count.IDs()
	total := count.Total()

	drawn := make(tally.Count, len(ids))
	for i := 0; i < n && total > 0; i++ {
		pick := g.rng.Int63n(total)
		for _, id := range ids {
			if pick < count[id] {
				drawn[id]++
				break
			}
			pick -= count[id]
		}
	}

	out := tally.NewTable(preliminary.Columns)
	party := partyIndex(preliminary)
	for _, id := range ids {
		out.Rows = append(out.Rows, tally.Row{Table: "sample", Candidate: id, Party: party[id], Votes: drawn[id]})
	}
	return out
}

// BatchSample draws k tables uniformly with replacement and recounts each one
// exactly. A table drawn twice contributes its rows twice.
func (g *ContestGenerator) BatchSample(preliminary *tally.Table, k int) *tally.Table {
	ids := preliminary.TableIDs()
	out := tally.NewTable(preliminary.Columns)
	if len(ids) == 0 {
		return out
	}
	for i := 0; i < k; i++ {
		id := ids[g.rng.Intn(len(ids))]
		out.Rows = append(out.Rows, preliminary.ForTable(id).Rows...)
	}
	return out
}

// ShiftVotes moves up to k votes from one candidate to another inside a single
// table of t, simulating a miscount. t is not modified.
func ShiftVotes(t *tally.Table, table, from, to string, k int64) *tally.Table {
	out := tally.NewTable(t.Columns, append([]tally.Row(nil), t.Rows...)...)
	for i := range out.Rows {
		row := &out.Rows[i]
		if row.Table != table || row.Candidate != from {
			continue
		}
		moved := min(k, row.Votes)
		row.Votes -= moved
		for j := range out.Rows {
			if out.Rows[j].Table == table && out.Rows[j].Candidate == to {
				out.Rows[j].Votes += moved
				break
			}
		}
		break
	}
	return out
}

func (g *ContestGenerator) drawCandidate() int {
	x := g.rng.Float64()
	acc := 0.0
	for i, c := range g.config.Candidates {
		acc += c.Share
		if x < acc {
			return i
		}
	}
	return len(g.config.Candidates) - 1
}

func partyIndex(t *tally.Table) map[string]string {
	out := make(map[string]string)
	for _, row := range t.Rows {
		out[row.Candidate] = row.Party
	}
	return out
}
