package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gorla/domain/core"
	"gorla/domain/verdict"
	"gorla/ports"
)

// timeLayout is fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// auditRow is the storage shape of an audit record. Timestamps are kept as
// RFC3339 text and booleans as integers so the same schema runs on sqlite.
type auditRow struct {
	RunID           string  `db:"run_id"`
	Round           int     `db:"round"`
	AuditType       string  `db:"audit_type"`
	SocialChoice    string  `db:"social_choice"`
	RiskLimit       float64 `db:"risk_limit"`
	Winners         int     `db:"winners"`
	MaxPValue       float64 `db:"max_p_value"`
	ExpectedPValue  float64 `db:"expected_p_value"`
	Status          string  `db:"status"`
	Matches         int     `db:"matches"`
	PreliminaryHash string  `db:"preliminary_hash"`
	RecountHash     string  `db:"recount_hash"`
	CreatedAt       string  `db:"created_at"`
}

func toRow(rec *verdict.AuditRecord) auditRow {
	matches := 0
	if rec.Matches {
		matches = 1
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return auditRow{
		RunID:           rec.RunID.String(),
		Round:           rec.Round,
		AuditType:       rec.AuditType,
		SocialChoice:    rec.SocialChoice,
		RiskLimit:       rec.RiskLimit,
		Winners:         rec.Winners,
		MaxPValue:       rec.MaxPValue,
		ExpectedPValue:  rec.ExpectedPValue,
		Status:          string(rec.Status),
		Matches:         matches,
		PreliminaryHash: rec.PreliminaryHash.String(),
		RecountHash:     rec.RecountHash.String(),
		CreatedAt:       created.UTC().Format(timeLayout),
	}
}

func (row auditRow) record() (verdict.AuditRecord, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return verdict.AuditRecord{}, fmt.Errorf("bad created_at %q for run %s: %w", row.CreatedAt, row.RunID, err)
	}
	return verdict.AuditRecord{
		RunID:           core.RunID(row.RunID),
		Round:           row.Round,
		AuditType:       row.AuditType,
		SocialChoice:    row.SocialChoice,
		RiskLimit:       row.RiskLimit,
		Winners:         row.Winners,
		MaxPValue:       row.MaxPValue,
		ExpectedPValue:  row.ExpectedPValue,
		Status:          verdict.VerdictStatus(row.Status),
		Matches:         row.Matches != 0,
		PreliminaryHash: core.Hash(row.PreliminaryHash),
		RecountHash:     core.Hash(row.RecountHash),
		CreatedAt:       created,
	}, nil
}

const auditColumns = `run_id, round, audit_type, social_choice, risk_limit, winners,
	max_p_value, expected_p_value, status, matches, preliminary_hash, recount_hash, created_at`

// AuditRepository implements ports.LedgerPort on postgres or sqlite
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ ports.LedgerPort = (*AuditRepository)(nil)

// RecordAudit stores one verification round. Recording the same run and
// round twice is an error.
func (r *AuditRepository) RecordAudit(ctx context.Context, rec *verdict.AuditRecord) error {
	if rec == nil {
		return fmt.Errorf("audit record is nil")
	}
	if rec.RunID == "" {
		return fmt.Errorf("audit record has no run ID")
	}

	query := `INSERT INTO audit_runs (` + auditColumns + `) VALUES (
		:run_id, :round, :audit_type, :social_choice, :risk_limit, :winners,
		:max_p_value, :expected_p_value, :status, :matches, :preliminary_hash, :recount_hash, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, toRow(rec)); err != nil {
		return fmt.Errorf("failed to record audit %s round %d: %w", rec.RunID, rec.Round, err)
	}
	return nil
}

// GetRun returns every round of a run, in round order
func (r *AuditRepository) GetRun(ctx context.Context, runID core.RunID) ([]verdict.AuditRecord, error) {
	query := r.db.Rebind(`SELECT ` + auditColumns + ` FROM audit_runs WHERE run_id = ? ORDER BY round ASC`)

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, runID.String()); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return records(rows)
}

// ListAudits lists audit rounds, newest first
func (r *AuditRepository) ListAudits(ctx context.Context, filters ports.AuditFilters) ([]verdict.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_runs`
	var args []any

	if filters.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filters.Status))
	}
	query += ` ORDER BY created_at DESC, round DESC`

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, max(filters.Offset, 0))

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	return records(rows)
}

func records(rows []auditRow) ([]verdict.AuditRecord, error) {
	out := make([]verdict.AuditRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
