package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"gorla/domain/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"nil", nil, "", 0},
		{"risk limit", core.ErrRiskLimit, CodePreconditionFailed, 3},
		{"missing column", core.NewMissingColumnError([]string{"votes"}), CodePreconditionFailed, 3},
		{"degenerate", core.NewDegenerateMarginError("A", "B", 0), CodeDegenerateContest, 4},
		{"unknown candidate", core.NewUnknownCandidateError("z"), CodeDegenerateContest, 4},
		{"invalid table", core.NewInvalidTableError("p.csv", 3, "bad votes"), CodeInvalidInput, 2},
		{"config", ConfigInvalid("risk limit missing"), CodeConfigInvalid, 2},
		{"io", IOError("read recount", fmt.Errorf("boom")), CodeIOError, 5},
		{"database", DatabaseError("ledger", fmt.Errorf("boom")), CodeDatabaseError, 6},
		{"plain", fmt.Errorf("boom"), CodeInternalError, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.code {
				t.Errorf("Classify() = %q, want %q", got, tt.code)
			}
			if got := ExitCode(tt.err); got != tt.exit {
				t.Errorf("ExitCode() = %d, want %d", got, tt.exit)
			}
		})
	}
}

func TestWrap_KeepsCodeAndCause(t *testing.T) {
	err := Wrapf(core.ErrRiskLimit, "audit %d", 1)

	if GetCode(err) != CodePreconditionFailed {
		t.Errorf("Expected %s, got %s", CodePreconditionFailed, GetCode(err))
	}
	if !stderrors.Is(err, core.ErrPrecondition) {
		t.Error("Wrapped error should match the precondition sentinel")
	}

	outer := Wrap(fmt.Errorf("cli: %w", err), "verify")
	if GetCode(outer) != CodePreconditionFailed {
		t.Errorf("Expected nested code to survive, got %s", GetCode(outer))
	}
	if Wrap(nil, "nothing") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeIOError, fmt.Errorf("disk full"))
	if GetCode(err) != CodeIOError {
		t.Errorf("Expected %s, got %s", CodeIOError, GetCode(err))
	}
	if !IsAppError(err) {
		t.Error("Expected an AppError")
	}
	if GetCode(fmt.Errorf("plain")) != "UNKNOWN" {
		t.Error("Plain errors have no code")
	}
}
