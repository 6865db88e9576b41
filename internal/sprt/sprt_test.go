package sprt

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorla/domain/core"
	"gorla/domain/tally"
)

func toFloat(x *big.Float) float64 {
	f, _ := x.Float64()
	return f
}

func TestGamma(t *testing.T) {
	count := tally.Count{"a": 600, "b": 400}
	zero := ZeroDivisors([]string{"a", "b"})

	g, err := Gamma("a", "b", count, zero, zero)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, toFloat(g), 1e-15)

	g, err = Gamma("b", "a", count, zero, zero)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, toFloat(g), 1e-15)
}

func TestGamma_SeatDivisors(t *testing.T) {
	count := tally.Count{"X": 600, "Y": 390}
	sw := Divisors{"X": 1}
	sl := Divisors{"Y": 1}

	// 600/990 * (2+2)/2
	g, err := Gamma("X", "Y", count, sw, sl)
	require.NoError(t, err)
	assert.InDelta(t, 1200.0/990.0, toFloat(g), 1e-15)

	// 390/990 * (2+2)/2
	g, err = Gamma("Y", "X", count, sl, sw)
	require.NoError(t, err)
	assert.InDelta(t, 780.0/990.0, toFloat(g), 1e-15)
}

func TestGamma_NoVotesIsDegenerate(t *testing.T) {
	_, err := Gamma("a", "b", tally.Count{}, Divisors{}, Divisors{})
	assert.ErrorIs(t, err, core.ErrDegenerateContest)
}

func TestPowInt(t *testing.T) {
	assert.Equal(t, 0, PowInt(NewDecimal(1.5), 10).Cmp(NewDecimal(57.6650390625)))
	assert.Equal(t, 0, PowInt(NewDecimal(7), 0).Cmp(One()))
	assert.Equal(t, 0, PowInt(NewDecimal(2), 1).Cmp(NewDecimal(2)))
}

func TestPow_Fractional(t *testing.T) {
	assert.InDelta(t, 32.0, toFloat(Pow(NewDecimal(4), 2.5)), 1e-12)
	assert.Equal(t, 0, Pow(NewDecimal(3), 3).Cmp(NewDecimal(27)))
}

func TestInverse(t *testing.T) {
	assert.InDelta(t, 0.25, Inverse(NewDecimal(4)), 1e-15)
	assert.True(t, Inverse(NewDecimal(0)) > 1e308)
}

func TestMatrix_SkipsDiagonal(t *testing.T) {
	m := NewMatrix([]string{"X", "Y"}, []string{"X", "Y", "Z"})

	assert.Equal(t, []Pair{
		{Winner: "X", Loser: "Y"},
		{Winner: "X", Loser: "Z"},
		{Winner: "Y", Loser: "X"},
		{Winner: "Y", Loser: "Z"},
	}, m.Pairs())
	_, ok := m.At("X", "X")
	assert.False(t, ok)
	assert.Equal(t, 1.0, m.MaxPValue())
	assert.False(t, m.Crossed(0.1))
}

func TestMatrix_Empty(t *testing.T) {
	m := NewMatrix([]string{"a"}, nil)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0.0, m.MaxPValue())
	assert.True(t, m.Crossed(0.05))
}

func newPluralityEngine(alpha float64) BallotPolling {
	return BallotPolling{
		RiskLimit: alpha,
		Sw:        ZeroDivisors([]string{"a"}),
		Sl:        ZeroDivisors([]string{"b"}),
	}
}

func TestBallotPolling_ProportionalSample(t *testing.T) {
	reported := tally.Count{"a": 600, "b": 400}
	engine := newPluralityEngine(0.1)
	m := NewMatrix([]string{"a"}, []string{"b"})

	// T = 1.2^60 * 0.8^40
	next, maxP, err := engine.Update(m, reported, tally.Count{"a": 60, "b": 40})
	require.NoError(t, err)
	assert.InDelta(t, 0.1335136772513166, maxP, 1e-12)
	assert.False(t, next.Crossed(0.1))

	// T = 1.2^120 * 0.8^80
	_, maxP, err = engine.Update(m, reported, tally.Count{"a": 120, "b": 80})
	require.NoError(t, err)
	assert.InDelta(t, 0.017825902013168735, maxP, 1e-12)
}

func TestBallotPolling_DoesNotMutateInput(t *testing.T) {
	reported := tally.Count{"a": 600, "b": 400}
	m := NewMatrix([]string{"a"}, []string{"b"})

	_, _, err := newPluralityEngine(0.1).Update(m, reported, tally.Count{"a": 60, "b": 40})
	require.NoError(t, err)

	cell, ok := m.At("a", "b")
	require.True(t, ok)
	assert.Equal(t, 0, cell.Cmp(One()))
}

func TestBallotPolling_EmptyRecountAccruesNothing(t *testing.T) {
	reported := tally.Count{"a": 600, "b": 400}
	m := NewMatrix([]string{"a"}, []string{"b"})

	next, maxP, err := newPluralityEngine(0.1).Update(m, reported, tally.Count{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, maxP)

	cell, _ := next.At("a", "b")
	assert.Equal(t, 0, cell.Cmp(One()))
}

func TestBallotPolling_FreezesCrossedPairs(t *testing.T) {
	reported := tally.Count{"a": 600, "b": 400}
	engine := newPluralityEngine(0.1)

	crossed, _, err := engine.Update(NewMatrix([]string{"a"}, []string{"b"}), reported, tally.Count{"a": 120, "b": 80})
	require.NoError(t, err)
	require.True(t, crossed.Crossed(0.1))
	before, _ := crossed.At("a", "b")

	// A reversal would drag T down if it were applied
	after, _, err := engine.Update(crossed, reported, tally.Count{"a": 10, "b": 90})
	require.NoError(t, err)
	cell, _ := after.At("a", "b")
	assert.Equal(t, 0, cell.Cmp(before))
}

func TestBallotPolling_Reversal(t *testing.T) {
	reported := tally.Count{"a": 600, "b": 400}

	_, maxP, err := newPluralityEngine(0.1).Update(NewMatrix([]string{"a"}, []string{"b"}), reported, tally.Count{"a": 45, "b": 55})
	require.NoError(t, err)
	assert.InDelta(t, 58.4648235506334, maxP, 1e-9)
}

func TestTableMICRO(t *testing.T) {
	reported := tally.Count{"a": 600, "b": 400}
	sw := ZeroDivisors([]string{"a"})
	sl := ZeroDivisors([]string{"b"})
	table := tally.Count{"a": 60, "b": 40}

	tests := []struct {
		name    string
		recount tally.Count
		want    float64
	}{
		{"exact recount", tally.Count{"a": 60, "b": 40}, 0},
		{"overstated winner", tally.Count{"a": 50, "b": 50}, 0.1},
		{"understated winner floors at zero", tally.Count{"a": 70, "b": 30}, 0},
		{"missing candidate counts as zero", tally.Count{"a": 60}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			micro, err := TableMICRO(reported, table, tt.recount, sw, sl)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, micro, 1e-15)
		})
	}
}

func TestMICROUpperBound(t *testing.T) {
	u, err := MICROUpperBound(tally.Count{"a": 600, "b": 400}, ZeroDivisors([]string{"a"}), ZeroDivisors([]string{"b"}))
	require.NoError(t, err)
	assert.InDelta(t, 0.01, u, 1e-15)

	// D'Hondt: X won seats 0-1 and lost seat 2; Y won seat 0 and lost seat 1
	reported := tally.Count{"X": 600, "Y": 390}
	sw := Divisors{"X": 1, "Y": 0}
	sl := Divisors{"X": 2, "Y": 1}
	u, err = MICROUpperBound(reported, sw, sl)
	require.NoError(t, err)
	// pairs: X>Y: (2+2)/(2*600-2*390) = 4/420, Y>X: (3+1)/(3*390-1*600) = 4/570
	assert.InDelta(t, 4.0/420.0, u, 1e-15)
}

func TestMICROUpperBound_FailsOnNonPositiveMargin(t *testing.T) {
	tests := []struct {
		name     string
		reported tally.Count
	}{
		{"tie", tally.Count{"a": 500, "b": 500}},
		{"winner trails", tally.Count{"a": 400, "b": 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MICROUpperBound(tt.reported, ZeroDivisors([]string{"a"}), ZeroDivisors([]string{"b"}))
			assert.ErrorIs(t, err, core.ErrDegenerateContest)
		})
	}
}

func newTenTableEngine(t *testing.T) *BatchComparison {
	t.Helper()
	e, err := NewBatchComparison(
		tally.Count{"a": 600, "b": 400},
		ZeroDivisors([]string{"a"}),
		ZeroDivisors([]string{"b"}),
		100, 10,
		WithWorkers(3),
	)
	require.NoError(t, err)
	return e
}

func TestBatchComparison_Bounds(t *testing.T) {
	u, um, contest := newTenTableEngine(t).Bounds()
	assert.InDelta(t, 0.01, u, 1e-15)
	assert.InDelta(t, 1.0, um, 1e-12)
	assert.InDelta(t, 10.0, contest, 1e-12)
}

func TestBatchComparison_Factor(t *testing.T) {
	e := newTenTableEngine(t)
	reported := tally.Count{"a": 60, "b": 40}

	exact, err := e.Factor(TableSample{ID: "t1", Reported: reported, Recount: reported, Multiplicity: 1})
	require.NoError(t, err)
	// Dm = 0
	assert.InDelta(t, 0.95/0.9+0.05, exact, 1e-12)

	off, err := e.Factor(TableSample{ID: "t1", Reported: reported, Recount: tally.Count{"a": 50, "b": 50}, Multiplicity: 1})
	require.NoError(t, err)
	// Dm = 0.1
	assert.InDelta(t, 1.0, off, 1e-12)
}

func TestBatchComparison_UpdateIsOrderIndependent(t *testing.T) {
	e := newTenTableEngine(t)
	samples := []TableSample{
		{ID: "t1", Reported: tally.Count{"a": 60, "b": 40}, Recount: tally.Count{"a": 60, "b": 40}, Multiplicity: 1},
		{ID: "t2", Reported: tally.Count{"a": 55, "b": 45}, Recount: tally.Count{"a": 52, "b": 48}, Multiplicity: 2},
		{ID: "t3", Reported: tally.Count{"a": 70, "b": 30}, Recount: tally.Count{"a": 71, "b": 29}, Multiplicity: 1},
	}
	reversed := []TableSample{samples[2], samples[0], samples[1]}

	a, err := e.Update(context.Background(), One(), samples)
	require.NoError(t, err)
	b, err := e.Update(context.Background(), One(), reversed)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Cmp(b))
	assert.Greater(t, toFloat(a), 1.0)
}

func TestBatchComparison_UpdateDoesNotMutateBeta(t *testing.T) {
	e := newTenTableEngine(t)
	beta := One()
	sample := TableSample{ID: "t1", Reported: tally.Count{"a": 60, "b": 40}, Recount: tally.Count{"a": 60, "b": 40}, Multiplicity: 3}

	next, err := e.Update(context.Background(), beta, []TableSample{sample})
	require.NoError(t, err)
	assert.Equal(t, 0, beta.Cmp(One()))

	want := 0.95/0.9 + 0.05
	assert.InDelta(t, want*want*want, toFloat(next), 1e-12)
}

func TestBatchComparison_Trivial(t *testing.T) {
	e, err := NewBatchComparison(tally.Count{"a": 10}, ZeroDivisors([]string{"a"}), Divisors{}, 10, 1)
	require.NoError(t, err)
	assert.True(t, e.Trivial())

	f, err := e.Factor(TableSample{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
}

func TestBatchComparison_PropagatesDegenerateMargin(t *testing.T) {
	_, err := NewBatchComparison(tally.Count{"a": 400, "b": 600}, ZeroDivisors([]string{"a"}), ZeroDivisors([]string{"b"}), 100, 10)
	assert.ErrorIs(t, err, core.ErrDegenerateContest)
}
