package audit

import (
	"fmt"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/internal/sprt"
)

// Plurality elects the Winners candidates with the most votes. With a single
// winner it is a simple majority contest.
type Plurality struct {
	*Core
}

// NewPlurality builds a plurality audit over the candidate column
func NewPlurality(params Params, preliminary, recount *tally.Table, opts ...Option) (*Plurality, error) {
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
	c.sw = sprt.ZeroDivisors(winners)
	c.sl = sprt.ZeroDivisors(losers)

	if err := c.initScheme(winners, losers); err != nil {
		return nil, err
	}

	c.logger.Debug("plurality audit ready", "winners", winners, "losers", len(losers), "audit_type", c.params.Type)
	return &Plurality{Core: c}, nil
}
