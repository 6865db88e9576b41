package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/domain/verdict"
	"gorla/internal"
	"gorla/internal/audit"
	"gorla/internal/errors"
	"gorla/ports"
)

// AuditService verifies a reported audit p-value against the vote tables
type AuditService struct {
	tables ports.TableSource
	ledger ports.LedgerWriterPort
	logger *internal.Logger
}

// VerifyRequest defines the inputs of one verification run
type VerifyRequest struct {
	Params          audit.Params
	ExpectedPValue  float64
	PreliminaryPath string
	RecountDir      string
	// Rounds verifies each recount file as its own round, in file name order
	Rounds bool
	RunID  core.RunID // optional, generated if empty
}

// RoundResult is the state of the audit after one round
type RoundResult struct {
	Round   int             `json:"round"`
	Sources []string        `json:"sources"`
	Rows    int             `json:"rows"`
	Verdict verdict.Verdict `json:"verdict"`
}

// VerifyResult contains the complete output of a verification run
type VerifyResult struct {
	RunID           core.RunID      `json:"run_id"`
	Audit           audit.Audit     `json:"-"`
	Rounds          []RoundResult   `json:"rounds"`
	Verdict         verdict.Verdict `json:"verdict"`
	PreliminaryHash core.Hash       `json:"preliminary_hash"`
	Runtime         time.Duration   `json:"runtime"`
}

// NewAuditService creates an audit service. ledger may be nil.
func NewAuditService(tables ports.TableSource, ledger ports.LedgerWriterPort, logger *internal.Logger) *AuditService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &AuditService{tables: tables, ledger: ledger, logger: logger}
}

// Verify loads the tables, replays the audit and compares its max p-value
// with the reported one. Every round is recorded when a ledger is attached.
func (s *AuditService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	start := time.Now()

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	logger := s.logger.With("run_id", runID.String())

	preliminary, err := s.tables.LoadPreliminary(ctx, req.PreliminaryPath)
	if err != nil {
		return nil, loadError(err, "failed to load preliminary count %s", req.PreliminaryPath)
	}
	recounts, err := s.tables.LoadRecounts(ctx, req.RecountDir)
	if err != nil {
		return nil, loadError(err, "failed to load recount files from %s", req.RecountDir)
	}
	if len(recounts) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("no recount files in %s", req.RecountDir))
	}

	prelimHash := core.ComputeTableHash(preliminary)
	logger.Info("tables loaded",
		"preliminary_rows", preliminary.Len(),
		"preliminary_hash", prelimHash.Short(),
		"recount_files", len(recounts))

	var initial *tally.Table
	if !req.Rounds {
		initial = concat(recounts)
	}

	a, err := audit.New(req.Params, preliminary, initial, audit.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audit")
	}
	if err := a.SanityCheck(); err != nil {
		return nil, errors.Wrap(err, "sanity check failed")
	}

	result := &VerifyResult{
		RunID:           runID,
		Audit:           a,
		PreliminaryHash: prelimHash,
	}

	batches := [][]tally.NamedTable{recounts}
	if req.Rounds {
		batches = batches[:0]
		for _, nt := range recounts {
			batches = append(batches, []tally.NamedTable{nt})
		}
	}

	for i, batch := range batches {
		round := i + 1
		recount := concat(batch)

		if req.Rounds {
			err = a.VerifyRound(ctx, recount)
		} else {
			err = a.Verify(ctx)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "round %d failed", round)
		}

		v := verdict.NewVerdict(a.MaxPValue(), req.ExpectedPValue, req.Params.RiskLimit, a.Validated())
		result.Rounds = append(result.Rounds, RoundResult{
			Round:   round,
			Sources: names(batch),
			Rows:    recount.Len(),
			Verdict: v,
		})
		logger.Info("round verified",
			"round", round,
			"rows", recount.Len(),
			"max_p_value", v.MaxPValue,
			"status", v.Status)

		if err := s.record(ctx, runID, round, req, v, prelimHash, core.ComputeTableHash(recount)); err != nil {
			return nil, err
		}
	}

	result.Verdict = result.Rounds[len(result.Rounds)-1].Verdict
	result.Runtime = time.Since(start)

	logger.Info("audit verified",
		"max_p_value", result.Verdict.MaxPValue,
		"expected", req.ExpectedPValue,
		"matches", result.Verdict.Matches,
		"status", result.Verdict.Status,
		"runtime", result.Runtime)
	return result, nil
}

func (s *AuditService) record(ctx context.Context, runID core.RunID, round int, req VerifyRequest, v verdict.Verdict, prelimHash, recountHash core.Hash) error {
	if s.ledger == nil {
		return nil
	}
	rec := &verdict.AuditRecord{
		RunID:           runID,
		Round:           round,
		AuditType:       string(req.Params.Type),
		SocialChoice:    string(req.Params.SocialChoice),
		RiskLimit:       req.Params.RiskLimit,
		Winners:         req.Params.Winners,
		MaxPValue:       v.MaxPValue,
		ExpectedPValue:  v.Expected,
		Status:          v.Status,
		Matches:         v.Matches,
		PreliminaryHash: prelimHash,
		RecountHash:     recountHash,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.ledger.RecordAudit(ctx, rec); err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to record round %d", round), err)
	}
	return nil
}

func concat(tables []tally.NamedTable) *tally.Table {
	parts := make([]*tally.Table, 0, len(tables))
	for _, nt := range tables {
		parts = append(parts, nt.Table)
	}
	return tally.Concat(parts...)
}

func names(tables []tally.NamedTable) []string {
	out := make([]string, 0, len(tables))
	for _, nt := range tables {
		out = append(out, nt.Name)
	}
	return out
}

// loadError keeps table format errors as invalid input and reports
// everything else as an I/O failure.
func loadError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.IsAppError(err), stderrors.Is(err, core.ErrInvalidTable):
		return errors.Wrap(err, msg)
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, msg)
	default:
		return errors.IOError(msg, err)
	}
}

// Summary is a one-line description of the run, for logs and reports
func (r *VerifyResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d round(s), max p-value %g (%s)", r.RunID, len(r.Rounds), r.Verdict.MaxPValue, r.Verdict.Status)
	if !r.Verdict.Matches {
		fmt.Fprintf(&b, ", expected %g", r.Verdict.Expected)
	}
	return b.String()
}
