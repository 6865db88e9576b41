package sprt

import (
	"gorla/domain/tally"
)

// BallotPolling is Wald's SPRT over individually sampled ballots
type BallotPolling struct {
	RiskLimit float64
	Sw        Divisors
	Sl        Divisors
}

// Update folds a recount into m and returns the new matrix together with the
// largest p-value over all pairs. m itself is left untouched.
//
// A pair whose statistic has already reached 1/RiskLimit is frozen: its null
// hypothesis is rejected and further evidence is not applied.
func (e BallotPolling) Update(m *Matrix, reported, recount tally.Count) (*Matrix, float64, error) {
	threshold := Threshold(e.RiskLimit)
	next := m.Clone()

	for _, pair := range next.pairs {
		t := next.cells[pair]
		if t.Cmp(threshold) >= 0 {
			continue
		}

		g1, err := Gamma(pair.Winner, pair.Loser, reported, e.Sw, e.Sl)
		if err != nil {
			return nil, 0, err
		}
		g2, err := Gamma(pair.Loser, pair.Winner, reported, e.Sl, e.Sw)
		if err != nil {
			return nil, 0, err
		}

		t.Mul(t, PowInt(g1, recount.Get(pair.Winner)))
		t.Mul(t, PowInt(g2, recount.Get(pair.Loser)))
	}

	return next, next.MaxPValue(), nil
}
