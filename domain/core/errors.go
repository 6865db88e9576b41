package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Precondition errors
	ErrPrecondition  = errors.New("audit precondition violated")
	ErrRiskLimit     = fmt.Errorf("%w: risk limit must lie in (0, 1)", ErrPrecondition)
	ErrWinnerCount   = fmt.Errorf("%w: winner count must be positive", ErrPrecondition)
	ErrMissingColumn = fmt.Errorf("%w: missing column", ErrPrecondition)

	// Contest errors
	ErrDegenerateContest = errors.New("degenerate contest")
	ErrUnknownCandidate  = errors.New("candidate not in preliminary count")

	// Input errors
	ErrInvalidTable = errors.New("invalid vote table")
)

// Error constructors with context
func NewMissingColumnError(columns []string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(columns, ", "))
}

func NewDegenerateMarginError(winner, loser string, denominator float64) error {
	return fmt.Errorf("%w: margin of %s over %s is %g", ErrDegenerateContest, winner, loser, denominator)
}

func NewUnknownCandidateError(candidate string) error {
	return fmt.Errorf("%w: %s", ErrUnknownCandidate, candidate)
}

func NewInvalidTableError(source string, line int, reason string) error {
	return fmt.Errorf("%w: %s line %d: %s", ErrInvalidTable, source, line, reason)
}

// Error checking helpers
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

func IsDegenerateError(err error) bool {
	return errors.Is(err, ErrDegenerateContest) || errors.Is(err, ErrUnknownCandidate)
}
