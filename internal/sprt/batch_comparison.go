package sprt

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"gorla/domain/core"
	"gorla/domain/tally"
)

// DefaultSecurityFactor is the share of each update driven by the observed
// overstatement; the rest guards against escalating on small errors.
const DefaultSecurityFactor = 0.95

// TableSample is one recounted batch
type TableSample struct {
	ID       string
	Reported tally.Count
	Recount  tally.Count
	// Multiplicity is how many times the batch was drawn
	Multiplicity float64
}

// BatchComparison is the SPRT over sampled batches, bounded by MICRO
type BatchComparison struct {
	reported tally.Count
	sw, sl   Divisors
	u        float64
	um       float64
	bound    float64
	gamma    float64
	workers  int
}

// Option configures a BatchComparison
type Option func(*BatchComparison)

// WithSecurityFactor overrides DefaultSecurityFactor
func WithSecurityFactor(gamma float64) Option {
	return func(e *BatchComparison) {
		if gamma > 0 && gamma <= 1 {
			e.gamma = gamma
		}
	}
}

// WithWorkers bounds the number of batches evaluated concurrently
func WithWorkers(n int) Option {
	return func(e *BatchComparison) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewBatchComparison derives the overstatement bounds of a contest.
// maxTableVotes is the largest reported batch total and tables the number of
// batches in the preliminary count.
func NewBatchComparison(reported tally.Count, sw, sl Divisors, maxTableVotes float64, tables int, opts ...Option) (*BatchComparison, error) {
	u, err := MICROUpperBound(reported, sw, sl)
	if err != nil {
		return nil, err
	}

	e := &BatchComparison{
		reported: reported,
		sw:       sw,
		sl:       sl,
		u:        u,
		um:       u * maxTableVotes,
		gamma:    DefaultSecurityFactor,
		workers:  runtime.GOMAXPROCS(0),
	}
	e.bound = e.um * float64(tables)
	for _, opt := range opts {
		opt(e)
	}

	if !e.Trivial() && e.bound <= 1 {
		return nil, fmt.Errorf("%w: contest overstatement bound %g must exceed 1", core.ErrDegenerateContest, e.bound)
	}
	return e, nil
}

// Trivial reports whether there is no (winner, loser) pair to test
func (e *BatchComparison) Trivial() bool {
	return e.u == 0
}

// Bounds returns u, um and U
func (e *BatchComparison) Bounds() (u, um, contest float64) {
	return e.u, e.um, e.bound
}

// Factor returns the SPRT multiplier contributed by one draw of a batch
func (e *BatchComparison) Factor(s TableSample) (float64, error) {
	if e.Trivial() {
		return 1, nil
	}

	micro, err := TableMICRO(e.reported, s.Reported, s.Recount, e.sw, e.sl)
	if err != nil {
		return 0, fmt.Errorf("table %s: %w", s.ID, err)
	}

	dm := micro / e.um
	factor := e.gamma*(1-dm)/(1-1/e.bound) + 1 - e.gamma
	if math.IsNaN(factor) || factor <= 0 {
		return 0, fmt.Errorf("%w: table %s overstates the margin beyond its bound (factor %g)", core.ErrDegenerateContest, s.ID, factor)
	}
	return factor, nil
}

// Update multiplies each batch's factor, raised to its multiplicity, into a
// copy of beta. Factors are evaluated concurrently and combined in batch id
// order, so the result does not depend on the order of samples.
func (e *BatchComparison) Update(ctx context.Context, beta *big.Float, samples []TableSample) (*big.Float, error) {
	factors := make([]float64, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, sample := range samples {
		i, sample := i, sample
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := e.Factor(sample)
			if err != nil {
				return err
			}
			factors[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return strings.Compare(samples[a].ID, samples[b].ID)
	})

	next := Clone(beta)
	for _, i := range order {
		next.Mul(next, Pow(NewDecimal(factors[i]), samples[i].Multiplicity))
	}
	return next, nil
}
