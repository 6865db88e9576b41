package verdict

import (
	"math"
	"strconv"
	"time"

	"gorla/domain/core"
)

// VerdictStatus is the outcome of an audit at its risk limit
type VerdictStatus string

const (
	StatusValidated    VerdictStatus = "validated"
	StatusNotValidated VerdictStatus = "not_validated"
)

// Verdict is the externally visible result of a verification run
type Verdict struct {
	Status    VerdictStatus
	MaxPValue float64
	RiskLimit float64
	// Expected is the p-value the audit reported
	Expected float64
	// Matches is true when MaxPValue and Expected agree at three decimals
	Matches bool
}

// NewVerdict compares a computed max p-value against the reported one
func NewVerdict(maxPValue, expected, riskLimit float64, validated bool) Verdict {
	status := StatusNotValidated
	if validated {
		status = StatusValidated
	}
	return Verdict{
		Status:    status,
		MaxPValue: maxPValue,
		RiskLimit: riskLimit,
		Expected:  expected,
		Matches:   Matches(maxPValue, expected),
	}
}

// Round3 rounds x to three decimals. The exact binary value of x is rounded
// to the nearest decimal, ties to even, so 2.0625 gives 2.062 and 1.0005
// (stored just below the tie) gives 1.
func Round3(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 3, 64), 64)
	if err != nil {
		return x
	}
	return r
}

// Matches reports whether got and expected agree at three decimals
func Matches(got, expected float64) bool {
	return Round3(got) == Round3(expected)
}

// AuditRecord is one verification run as kept in the audit ledger
type AuditRecord struct {
	RunID           core.RunID    `db:"run_id" json:"run_id"`
	Round           int           `db:"round" json:"round"`
	AuditType       string        `db:"audit_type" json:"audit_type"`
	SocialChoice    string        `db:"social_choice" json:"social_choice"`
	RiskLimit       float64       `db:"risk_limit" json:"risk_limit"`
	Winners         int           `db:"winners" json:"winners"`
	MaxPValue       float64       `db:"max_p_value" json:"max_p_value"`
	ExpectedPValue  float64       `db:"expected_p_value" json:"expected_p_value"`
	Status          VerdictStatus `db:"status" json:"status"`
	Matches         bool          `db:"matches" json:"matches"`
	PreliminaryHash core.Hash     `db:"preliminary_hash" json:"preliminary_hash"`
	RecountHash     core.Hash     `db:"recount_hash" json:"recount_hash"`
	CreatedAt       time.Time     `db:"-" json:"created_at"`
}
