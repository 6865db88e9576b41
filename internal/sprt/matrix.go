package sprt

import (
	"math/big"
)

// Pair is one null hypothesis: the reported winner does not beat the loser
type Pair struct {
	Winner string
	Loser  string
}

// Matrix holds the inverse p-value of every (winner, loser) hypothesis
type Matrix struct {
	pairs []Pair
	cells map[Pair]*big.Float
}

// NewMatrix creates a matrix with a unit statistic for every pair of distinct
// ids, in winner-major order.
func NewMatrix(winners, losers []string) *Matrix {
	m := &Matrix{cells: make(map[Pair]*big.Float)}
	for _, w := range winners {
		for _, l := range losers {
			if w == l {
				continue
			}
			pair := Pair{Winner: w, Loser: l}
			if _, ok := m.cells[pair]; ok {
				continue
			}
			m.pairs = append(m.pairs, pair)
			m.cells[pair] = One()
		}
	}
	return m
}

// Len returns the number of hypotheses
func (m *Matrix) Len() int {
	return len(m.pairs)
}

// Pairs returns the hypotheses in construction order
func (m *Matrix) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// At returns a copy of the statistic for (winner, loser)
func (m *Matrix) At(winner, loser string) (*big.Float, bool) {
	cell, ok := m.cells[Pair{Winner: winner, Loser: loser}]
	if !ok {
		return nil, false
	}
	return Clone(cell), true
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{
		pairs: m.Pairs(),
		cells: make(map[Pair]*big.Float, len(m.cells)),
	}
	for pair, cell := range m.cells {
		out.cells[pair] = Clone(cell)
	}
	return out
}

// MaxPValue returns the largest 1/T over all pairs, or 0 for an empty matrix
func (m *Matrix) MaxPValue() float64 {
	maxP := 0.0
	for _, pair := range m.pairs {
		if p := Inverse(m.cells[pair]); p > maxP {
			maxP = p
		}
	}
	return maxP
}

// Crossed reports whether every statistic has reached 1/riskLimit
func (m *Matrix) Crossed(riskLimit float64) bool {
	threshold := Threshold(riskLimit)
	for _, pair := range m.pairs {
		if m.cells[pair].Cmp(threshold) < 0 {
			return false
		}
	}
	return true
}
