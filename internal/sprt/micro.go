package sprt

import (
	"github.com/montanaflynn/stats"

	"gorla/domain/core"
	"gorla/domain/tally"
)

// TableMICRO returns the Maximum In-Contest Relative Overstatement caused by
// one batch: the worst relative loss of margin over every (winner, loser)
// pair, floored at zero. Winners are the keys of sw and losers the keys of sl.
//
// reported holds contest-wide reported totals; tableReported and tableRecount
// are scoped to the batch.
func TableMICRO(reported, tableReported, tableRecount tally.Count, sw, sl Divisors) (float64, error) {
	ratios := []float64{0}
	for _, w := range sw.IDs() {
		for _, l := range sl.IDs() {
			if w == l {
				continue
			}
			dw, dl := float64(D(sw[w])), float64(D(sl[l]))

			x := dl*float64(tableReported.Get(w)-tableRecount.Get(w)) - dw*float64(tableReported.Get(l)-tableRecount.Get(l))
			y := dl*float64(reported.Get(w)) - dw*float64(reported.Get(l))
			if y <= 0 {
				return 0, core.NewDegenerateMarginError(w, l, y)
			}
			ratios = append(ratios, x/y)
		}
	}
	return stats.Max(ratios)
}

// MICROUpperBound returns u, the largest overstatement a single ballot can
// cause across all (winner, loser) pairs. It is zero when there are no pairs.
// Every pair must have a positive margin at its divisors.
func MICROUpperBound(reported tally.Count, sw, sl Divisors) (float64, error) {
	bounds := []float64{0}
	for _, w := range sw.IDs() {
		for _, l := range sl.IDs() {
			if w == l {
				continue
			}
			dw, dl := float64(D(sw[w])), float64(D(sl[l]))

			margin := dl*float64(reported.Get(w)) - dw*float64(reported.Get(l))
			if margin <= 0 {
				return 0, core.NewDegenerateMarginError(w, l, margin)
			}
			bounds = append(bounds, (dl+dw)/margin)
		}
	}
	return stats.Max(bounds)
}
