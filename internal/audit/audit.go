package audit

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"runtime"
	"slices"

	"gonum.org/v1/gonum/floats"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/internal"
	"gorla/internal/sprt"
)

// Option configures audit construction
type Option func(*options)

type options struct {
	logger *internal.Logger
}

// WithLogger routes audit logging to logger
func WithLogger(logger *internal.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// contestView maps raw counts onto the ids the statistics are kept over.
// reported applies to preliminary counts, recount to recounted ones.
type contestView struct {
	reported func(tally.Count) tally.Count
	recount  func(tally.Count) (tally.Count, error)
}

func identityView() contestView {
	return contestView{
		reported: func(c tally.Count) tally.Count { return c },
		recount:  func(c tally.Count) (tally.Count, error) { return c, nil },
	}
}

// scheme is the sampling strategy, resolved once from the audit type. It owns
// the test statistic and replaces it on every update.
type scheme interface {
	update(ctx context.Context, c *Core, recount *tally.Table) (float64, error)
	validated() bool
}

// Core holds the state shared by every social choice function: the reported
// count, the winner and loser sets, the seat divisors and the statistic.
// A Core is not safe for concurrent use.
type Core struct {
	params      Params
	preliminary *tally.Table
	recount     *tally.Table
	required    []string
	primary     string

	count      tally.Count
	candidates []string
	winners    []string
	losers     []string
	sw, sl     sprt.Divisors

	view      contestView
	scheme    scheme
	maxPValue float64
	logger    *internal.Logger
}

func newCore(params Params, preliminary, recount *tally.Table, o options) *Core {
	if preliminary == nil {
		preliminary = tally.NewTable(nil)
	}
	if recount == nil {
		recount = tally.NewTable(nil)
	}
	if params.Workers <= 0 {
		params.Workers = runtime.GOMAXPROCS(0)
	}
	return &Core{
		params:      params,
		preliminary: preliminary,
		recount:     recount,
		required:    []string{tally.ColumnTable, tally.ColumnCandidate, tally.ColumnVotes},
		primary:     tally.ColumnCandidate,
		view:        identityView(),
		maxPValue:   1,
		logger:      o.logger,
	}
}

// SanityCheck fails fast on a malformed risk limit, winner count, audit type
// or preliminary header.
func (c *Core) SanityCheck() error {
	if !(c.params.RiskLimit > 0 && c.params.RiskLimit < 1) {
		return fmt.Errorf("%w, got %g", core.ErrRiskLimit, c.params.RiskLimit)
	}
	if c.params.Winners <= 0 {
		return fmt.Errorf("%w, got %d", core.ErrWinnerCount, c.params.Winners)
	}
	if c.params.Type != BallotPolling && c.params.Type != BatchComparison {
		return fmt.Errorf("%w: unknown audit type %q", core.ErrPrecondition, c.params.Type)
	}
	if missing := c.preliminary.MissingColumns(c.required...); len(missing) > 0 {
		return core.NewMissingColumnError(missing)
	}
	return nil
}

// initScheme builds the statistic over the given sides once count, divisors
// and view are in place.
func (c *Core) initScheme(winners, losers []string) error {
	switch c.params.Type {
	case BallotPolling:
		c.scheme = &ballotPollingScheme{
			engine: sprt.BallotPolling{RiskLimit: c.params.RiskLimit, Sw: c.sw, Sl: c.sl},
			matrix: sprt.NewMatrix(winners, losers),
		}
		return nil

	case BatchComparison:
		totals := c.preliminary.TableTotals()
		sizes := make([]float64, 0, len(totals))
		for _, v := range totals {
			sizes = append(sizes, float64(v))
		}
		maxVotes := 0.0
		if len(sizes) > 0 {
			maxVotes = floats.Max(sizes)
		}

		opts := []sprt.Option{sprt.WithWorkers(c.params.Workers)}
		if c.params.SecurityFactor > 0 {
			opts = append(opts, sprt.WithSecurityFactor(c.params.SecurityFactor))
		}
		engine, err := sprt.NewBatchComparison(c.view.reported(c.count), c.sw, c.sl, maxVotes, len(totals), opts...)
		if err != nil {
			return err
		}

		u, um, bound := engine.Bounds()
		c.logger.Debug("batch comparison bounds", "u", u, "um", um, "U", bound, "max_table_votes", maxVotes, "tables", len(totals))
		c.scheme = &batchScheme{engine: engine, beta: sprt.One(), riskLimit: c.params.RiskLimit}
		return nil
	}
	return fmt.Errorf("%w: unknown audit type %q", core.ErrPrecondition, c.params.Type)
}

// Verify folds the recount supplied at construction
func (c *Core) Verify(ctx context.Context) error {
	return c.VerifyRound(ctx, c.recount)
}

// VerifyRound folds recount into the statistic and refreshes the max p-value
func (c *Core) VerifyRound(ctx context.Context, recount *tally.Table) error {
	if recount == nil {
		recount = tally.NewTable(nil)
	}
	if err := c.checkRecount(recount); err != nil {
		return err
	}

	maxP, err := c.scheme.update(ctx, c, recount)
	if err != nil {
		return err
	}
	c.maxPValue = maxP

	c.logger.Debug("recount folded",
		"audit_type", c.params.Type,
		"rows", recount.Len(),
		"max_p_value", maxP,
		"validated", c.scheme.validated())
	return nil
}

func (c *Core) checkRecount(recount *tally.Table) error {
	if recount.Len() == 0 {
		return nil
	}
	required := []string{tally.ColumnCandidate, tally.ColumnVotes}
	if c.params.Type == BatchComparison {
		required = append(required, tally.ColumnTable)
	}
	if missing := recount.MissingColumns(required...); len(missing) > 0 {
		return fmt.Errorf("recount: %w", core.NewMissingColumnError(missing))
	}
	return nil
}

// MaxPValue is the largest p-value over every null hypothesis. It is 1 before
// any recount is folded and 0 when there is nothing to test.
func (c *Core) MaxPValue() float64 {
	return c.maxPValue
}

// Validated reports whether the statistic has crossed 1/risk limit
func (c *Core) Validated() bool {
	return c.scheme.validated()
}

// Winners returns the reported winners in rank order
func (c *Core) Winners() []string {
	return slices.Clone(c.winners)
}

// Losers returns the reported losers in rank order
func (c *Core) Losers() []string {
	return slices.Clone(c.losers)
}

// Count returns a copy of the reported count over the primary column
func (c *Core) Count() tally.Count {
	return c.count.Clone()
}

// Params returns the parameters the audit was built with
func (c *Core) Params() Params {
	return c.params
}

type ballotPollingScheme struct {
	engine sprt.BallotPolling
	matrix *sprt.Matrix
}

func (s *ballotPollingScheme) update(_ context.Context, c *Core, recount *tally.Table) (float64, error) {
	counted, err := c.view.recount(recount.SumBy(tally.ColumnCandidate))
	if err != nil {
		return 0, err
	}

	next, maxP, err := s.engine.Update(s.matrix, c.view.reported(c.count), counted)
	if err != nil {
		return 0, err
	}
	s.matrix = next
	return maxP, nil
}

func (s *ballotPollingScheme) validated() bool {
	return s.matrix.Crossed(s.engine.RiskLimit)
}

type batchScheme struct {
	engine    *sprt.BatchComparison
	beta      *big.Float
	riskLimit float64
}

func (s *batchScheme) update(ctx context.Context, c *Core, recount *tally.Table) (float64, error) {
	if s.engine.Trivial() {
		return 0, nil
	}

	samples, err := c.tableSamples(recount)
	if err != nil {
		return 0, err
	}

	beta, err := s.engine.Update(ctx, s.beta, samples)
	if err != nil {
		return 0, err
	}
	s.beta = beta
	return sprt.Inverse(beta), nil
}

func (s *batchScheme) validated() bool {
	return s.engine.Trivial() || s.beta.Cmp(sprt.Threshold(s.riskLimit)) >= 0
}

// tableSamples groups a recount by batch. Every ballot contributes one row per
// candidate, so a batch drawn k times holds k*len(candidates) rows; its
// recounted votes are the per-draw average, floored.
func (c *Core) tableSamples(recount *tally.Table) ([]sprt.TableSample, error) {
	ids := recount.TableIDs()
	samples := make([]sprt.TableSample, 0, len(ids))

	for _, id := range ids {
		rows := recount.ForTable(id)
		n := float64(rows.Len()) / float64(len(c.candidates))

		sums := rows.SumBy(tally.ColumnCandidate)
		votes := make(tally.Count, len(sums))
		for candidate, v := range sums {
			votes[candidate] = int64(math.Floor(float64(v) / n))
		}
		recounted, err := c.view.recount(votes)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", id, err)
		}

		samples = append(samples, sprt.TableSample{
			ID:           id,
			Reported:     c.view.reported(c.preliminary.ForTable(id).SumBy(c.primary)),
			Recount:      recounted,
			Multiplicity: n,
		})
	}
	return samples, nil
}
