package audit

import (
	"fmt"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/internal/sprt"
)

// Bucket ids of the two-sided super-majority view
const (
	BucketWinner = "w"
	BucketLoser  = "l"
)

// SuperMajority elects the leading candidate only when they hold more than
// half of the votes. Every count is collapsed into a winner bucket and a
// loser bucket before any statistic is computed.
type SuperMajority struct {
	*Core
	ranking []string
}

// NewSuperMajority builds a super-majority audit; Winners is forced to 1.
// A leader holding no more than half of the votes is rejected as a
// degenerate contest rather than audited.
func NewSuperMajority(params Params, preliminary, recount *tally.Table, opts ...Option) (*SuperMajority, error) {
	params.Winners = 1
	c := newCore(params, preliminary, recount, buildOptions(opts))
	if err := c.SanityCheck(); err != nil {
		return nil, err
	}

	c.count = c.preliminary.SumBy(tally.ColumnCandidate)
	c.candidates = c.count.IDs()

	winners, losers, err := tally.Partition(c.count, c.params.Winners)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPrecondition, err)
	}
	c.winners, c.losers = winners, losers

	s := &SuperMajority{Core: c, ranking: c.count.Ranked()}
	c.sw = sprt.Divisors{BucketWinner: 0}
	c.sl = sprt.Divisors{BucketLoser: 0}
	c.view = contestView{
		reported: s.Buckets,
		recount: func(count tally.Count) (tally.Count, error) {
			return s.Buckets(count), nil
		},
	}

	buckets := s.Buckets(c.count)
	if buckets[BucketWinner] <= buckets[BucketLoser] {
		return nil, fmt.Errorf("%w: leading candidate %s holds %d of %d votes",
			core.ErrDegenerateContest, winners[0], buckets[BucketWinner], c.count.Total())
	}

	if err := c.initScheme([]string{BucketWinner}, []string{BucketLoser}); err != nil {
		return nil, err
	}

	c.logger.Debug("super-majority audit ready", "winner", winners[0], "w", buckets[BucketWinner], "l", buckets[BucketLoser])
	return s, nil
}

// Buckets collapses count into the votes of the preliminary winners and the
// votes of everyone else. Ids absent from the preliminary count are dropped.
func (s *SuperMajority) Buckets(count tally.Count) tally.Count {
	out := tally.Count{BucketWinner: 0, BucketLoser: 0}
	for i, id := range s.ranking {
		if i < s.params.Winners {
			out[BucketWinner] += count.Get(id)
		} else {
			out[BucketLoser] += count.Get(id)
		}
	}
	return out
}
