package audit

import (
	"context"
	"fmt"
	"strings"

	"gorla/domain/tally"
)

// AuditType selects the sampling scheme
type AuditType string

const (
	BallotPolling   AuditType = "ballot-polling"
	BatchComparison AuditType = "batch-comparison"
)

// ParseAuditType rejects anything but the two supported schemes
func ParseAuditType(s string) (AuditType, error) {
	switch t := AuditType(strings.ToLower(strings.TrimSpace(s))); t {
	case BallotPolling, BatchComparison:
		return t, nil
	}
	return "", fmt.Errorf("unknown audit type %q (want %s or %s)", s, BallotPolling, BatchComparison)
}

// SocialChoice is the rule that turns votes into winners
type SocialChoice string

const (
	ChoicePlurality     SocialChoice = "plurality"
	ChoiceSuperMajority SocialChoice = "super"
	ChoiceDHondt        SocialChoice = "dhondt"
)

// ParseSocialChoice accepts plurality, super (or super-majority) and dhondt
func ParseSocialChoice(s string) (SocialChoice, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "plurality":
		return ChoicePlurality, nil
	case "super", "super-majority", "supermajority":
		return ChoiceSuperMajority, nil
	case "dhondt", "d'hondt":
		return ChoiceDHondt, nil
	}
	return "", fmt.Errorf("unknown social choice function %q (want %s, %s or %s)", s, ChoicePlurality, ChoiceSuperMajority, ChoiceDHondt)
}

// Params are the audit construction parameters
type Params struct {
	RiskLimit    float64
	Type         AuditType
	SocialChoice SocialChoice
	Winners      int

	// SecurityFactor overrides the batch-comparison default when in (0, 1]
	SecurityFactor float64
	// Workers bounds concurrent table and sub-audit evaluation
	Workers int
}

// Audit is a constructed contest ready to fold recount evidence
type Audit interface {
	// SanityCheck validates the parameters and the preliminary header
	SanityCheck() error
	// Verify folds the recount supplied at construction
	Verify(ctx context.Context) error
	// VerifyRound folds an additional recount sample
	VerifyRound(ctx context.Context, recount *tally.Table) error
	// MaxPValue is the largest p-value over every null hypothesis
	MaxPValue() float64
	// Validated reports whether every null hypothesis is rejected at the risk limit
	Validated() bool
	Winners() []string
	Losers() []string
}
