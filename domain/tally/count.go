package tally

import (
	"cmp"
	"fmt"
	"slices"
)

// Count maps a candidate, party or pseudo-candidate id to its votes
type Count map[string]int64

// Get returns the votes for id, treating an absent id as zero
func (c Count) Get(id string) int64 {
	return c[id]
}

// Total sums every entry
func (c Count) Total() int64 {
	var total int64
	for _, v := range c {
		total += v
	}
	return total
}

// IDs returns the ids in sorted order
func (c Count) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Clone returns an independent copy
func (c Count) Clone() Count {
	out := make(Count, len(c))
	for id, v := range c {
		out[id] = v
	}
	return out
}

// Ranked returns ids by votes descending; equal votes order by ascending id
func (c Count) Ranked() []string {
	ids := c.IDs()
	slices.SortStableFunc(ids, func(a, b string) int {
		return cmp.Compare(c[b], c[a])
	})
	return ids
}

// Partition splits the ids of count into the n highest-ranked winners and the
// remaining losers.
func Partition(count Count, n int) (winners, losers []string, err error) {
	return PartitionBy(count.IDs(), func(a, b string) int {
		if c := cmp.Compare(count[b], count[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}, n)
}

// PartitionBy sorts ids with compare and splits off the first n as winners.
// compare must order the strongest id first.
func PartitionBy[K any](ids []K, compare func(a, b K) int, n int) (winners, losers []K, err error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("winner count must be positive, got %d", n)
	}
	if n > len(ids) {
		return nil, nil, fmt.Errorf("winner count %d exceeds the %d contestants", n, len(ids))
	}

	sorted := slices.Clone(ids)
	slices.SortStableFunc(sorted, compare)

	return sorted[:n:n], sorted[n:], nil
}
