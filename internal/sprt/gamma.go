package sprt

import (
	"fmt"
	"math/big"

	"gorla/domain/core"
	"gorla/domain/tally"
)

// Gamma is the likelihood ratio for a ballot showing p when p is reported
// ahead of q:
//
//	count[p]/(count[p]+count[q]) * (D(sp[p])+D(sq[q]))/D(sp[p])
//
// It is evaluated exactly from the integer counts.
func Gamma(p, q string, count tally.Count, sp, sq Divisors) (*big.Float, error) {
	tp, tq := count.Get(p), count.Get(q)
	if tp+tq <= 0 {
		return nil, fmt.Errorf("%w: %s and %s have no reported votes", core.ErrDegenerateContest, p, q)
	}
	dp, dq := D(sp[p]), D(sq[q])

	num := NewDecimalInt(tp)
	num.Mul(num, NewDecimalInt(dp+dq))
	den := NewDecimalInt(tp + tq)
	den.Mul(den, NewDecimalInt(dp))

	return num.Quo(num, den), nil
}
