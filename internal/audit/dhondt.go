package audit

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/internal/sprt"
)

// Seat is a D'Hondt pseudo-candidate: the Index-th seat (0-based) of Party.
// Its value is the party's votes divided by Index+1.
type Seat struct {
	Party string
	Index int
}

func (s Seat) String() string {
	return fmt.Sprintf("%s#%d", s.Party, s.Index)
}

// DHondt allocates Winners seats among parties by the D'Hondt divisor method
// and audits both the allocation between parties and, through one Plurality
// child per winning party, which members fill each party's seats. Children
// are scoped to their party's preliminary rows but read the whole recount, so
// a batch's multiplicity counts every row recounted for it.
type DHondt struct {
	*Core

	members  map[string][]string
	partyOf  map[string]string
	seatWon  []Seat
	seatLost []Seat
	seats    map[string]int
	children map[string]*Plurality
	elected  []string
}

// NewDHondt builds a D'Hondt audit; the preliminary table must carry a party
// column. Rows with an empty party never win seats.
func NewDHondt(params Params, preliminary, recount *tally.Table, opts ...Option) (*DHondt, error) {
	o := buildOptions(opts)
	c := newCore(params, preliminary, recount, o)
	c.required = append(c.required, tally.ColumnParty)
	c.primary = tally.ColumnParty
	if err := c.SanityCheck(); err != nil {
		return nil, err
	}

	d := &DHondt{
		Core:     c,
		members:  make(map[string][]string),
		partyOf:  make(map[string]string),
		seats:    make(map[string]int),
		children: make(map[string]*Plurality),
	}

	c.count = c.preliminary.SumBy(tally.ColumnParty)
	c.candidates = c.preliminary.Candidates()
	for _, row := range c.preliminary.Rows {
		d.partyOf[row.Candidate] = row.Party
	}
	for _, party := range c.count.IDs() {
		d.members[party] = c.preliminary.ForParty(party).SumBy(tally.ColumnCandidate).Ranked()
	}

	if err := d.allocate(); err != nil {
		return nil, err
	}

	c.view = contestView{
		reported: identityView().reported,
		recount:  d.partyVotes,
	}
	if err := c.initScheme(c.winners, c.losers); err != nil {
		return nil, err
	}

	if err := d.spawnChildren(o); err != nil {
		return nil, err
	}

	c.logger.Debug("d'hondt audit ready", "seats", d.seats, "winning_parties", c.winners, "losing_parties", c.losers)
	return d, nil
}

// allocate ranks every pseudo-candidate and derives the seat divisors and the
// party-level winner and loser sets.
func (d *DHondt) allocate() error {
	c := d.Core

	var pseudo []Seat
	for _, party := range c.count.IDs() {
		if party == "" {
			continue
		}
		for i := 0; i < min(c.params.Winners, len(d.members[party])); i++ {
			pseudo = append(pseudo, Seat{Party: party, Index: i})
		}
	}

	won, lost, err := tally.PartitionBy(pseudo, d.compareSeats, c.params.Winners)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPrecondition, err)
	}
	d.seatWon, d.seatLost = won, lost

	c.sw = make(sprt.Divisors)
	for _, s := range won {
		if cur, ok := c.sw[s.Party]; !ok || s.Index > cur {
			c.sw[s.Party] = s.Index
		}
		if !slices.Contains(c.winners, s.Party) {
			c.winners = append(c.winners, s.Party)
		}
	}
	c.sl = make(sprt.Divisors)
	for _, s := range lost {
		if cur, ok := c.sl[s.Party]; !ok || s.Index < cur {
			c.sl[s.Party] = s.Index
		}
		if !slices.Contains(c.losers, s.Party) {
			c.losers = append(c.losers, s.Party)
		}
	}

	for party, top := range c.sw {
		d.seats[party] = top + 1
	}
	for _, party := range c.count.IDs() {
		if n, ok := d.seats[party]; ok {
			d.elected = append(d.elected, d.members[party][:n]...)
		}
	}
	return nil
}

// compareSeats orders pseudo-candidates by value descending, comparing the
// fractions exactly, then by party and seat.
func (d *DHondt) compareSeats(a, b Seat) int {
	va := d.count.Get(a.Party) * sprt.D(b.Index)
	vb := d.count.Get(b.Party) * sprt.D(a.Index)
	if c := cmp.Compare(vb, va); c != 0 {
		return c
	}
	if c := strings.Compare(a.Party, b.Party); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

func (d *DHondt) spawnChildren(o options) error {
	c := d.Core
	for _, party := range c.winners {
		params := c.params
		params.SocialChoice = ChoicePlurality
		params.Winners = d.seats[party]

		child, err := NewPlurality(params, c.preliminary.ForParty(party), c.recount,
			WithLogger(o.logger.With("party", party)))
		if err != nil {
			return fmt.Errorf("party %s: %w", party, err)
		}
		d.children[party] = child
	}
	return nil
}

// partyVotes folds a candidate recount into party totals
func (d *DHondt) partyVotes(recount tally.Count) (tally.Count, error) {
	out := make(tally.Count)
	for _, candidate := range recount.IDs() {
		party, ok := d.partyOf[candidate]
		if !ok {
			return nil, core.NewUnknownCandidateError(candidate)
		}
		out[party] += recount[candidate]
	}
	return out, nil
}

// Verify folds the recount supplied at construction
func (d *DHondt) Verify(ctx context.Context) error {
	return d.VerifyRound(ctx, d.recount)
}

// VerifyRound updates the inter-party statistic, then every party's
// sub-audit. The max p-value is the worst of all of them.
func (d *DHondt) VerifyRound(ctx context.Context, recount *tally.Table) error {
	if recount == nil {
		recount = tally.NewTable(nil)
	}
	if err := d.Core.VerifyRound(ctx, recount); err != nil {
		return err
	}

	parties := d.Parties()
	pvalues := make([]float64, len(parties))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.params.Workers)
	for i, party := range parties {
		i, party := i, party
		g.Go(func() error {
			child := d.children[party]
			if err := child.VerifyRound(gctx, recount); err != nil {
				return fmt.Errorf("party %s: %w", party, err)
			}
			pvalues[i] = child.MaxPValue()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	d.maxPValue = floats.Max(append(pvalues, d.maxPValue))
	return nil
}

// Validated requires the inter-party statistic and every sub-audit to pass
func (d *DHondt) Validated() bool {
	if !d.Core.Validated() {
		return false
	}
	for _, child := range d.children {
		if !child.Validated() {
			return false
		}
	}
	return true
}

// Parties returns the parties that won at least one seat, sorted
func (d *DHondt) Parties() []string {
	parties := make([]string, 0, len(d.seats))
	for party := range d.seats {
		parties = append(parties, party)
	}
	slices.Sort(parties)
	return parties
}

// Seats returns the seats won by each winning party
func (d *DHondt) Seats() map[string]int {
	out := make(map[string]int, len(d.seats))
	for party, n := range d.seats {
		out[party] = n
	}
	return out
}

// SeatWinners returns the winning pseudo-candidates in rank order
func (d *DHondt) SeatWinners() []Seat {
	return slices.Clone(d.seatWon)
}

// SeatLosers returns the losing pseudo-candidates in rank order
func (d *DHondt) SeatLosers() []Seat {
	return slices.Clone(d.seatLost)
}

// Child returns the sub-audit of a winning party, or nil
func (d *DHondt) Child(party string) *Plurality {
	return d.children[party]
}

// WinningCandidates lists the elected members, party by party in party order
func (d *DHondt) WinningCandidates() []string {
	return slices.Clone(d.elected)
}

// Members returns a party's candidates ranked by their votes
func (d *DHondt) Members(party string) []string {
	return slices.Clone(d.members[party])
}
