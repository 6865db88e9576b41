package audit

import (
	"fmt"

	"gorla/domain/core"
	"gorla/domain/tally"
)

// New builds the audit for params.SocialChoice. The sanity check runs before
// anything is derived from the preliminary table.
func New(params Params, preliminary, recount *tally.Table, opts ...Option) (Audit, error) {
	switch params.SocialChoice {
	case ChoicePlurality:
		a, err := NewPlurality(params, preliminary, recount, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil

	case ChoiceSuperMajority:
		a, err := NewSuperMajority(params, preliminary, recount, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil

	case ChoiceDHondt:
		a, err := NewDHondt(params, preliminary, recount, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil

	default:
		return nil, fmt.Errorf("%w: unknown social choice function %q", core.ErrPrecondition, params.SocialChoice)
	}
}
