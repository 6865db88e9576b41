package sprt

import (
	"slices"
)

// Divisors maps a contestant to a 0-based D'Hondt column. For a winner it is
// the largest seat won, for a loser the smallest seat lost.
type Divisors map[string]int

// D is the divisor of column s
func D(s int) int64 {
	return int64(s) + 1
}

// ZeroDivisors assigns column 0 to every id
func ZeroDivisors(ids []string) Divisors {
	out := make(Divisors, len(ids))
	for _, id := range ids {
		out[id] = 0
	}
	return out
}

// IDs returns the contestants in sorted order
func (d Divisors) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
