package ports

import (
	"context"

	"gorla/domain/core"
	"gorla/domain/verdict"
)

// LedgerWriterPort provides append-only write access to audit records
type LedgerWriterPort interface {
	RecordAudit(ctx context.Context, record *verdict.AuditRecord) error
}

// LedgerReaderPort provides read-only access to stored audit records
type LedgerReaderPort interface {
	// GetRun returns every round of a run, in round order
	GetRun(ctx context.Context, runID core.RunID) ([]verdict.AuditRecord, error)
	ListAudits(ctx context.Context, filters AuditFilters) ([]verdict.AuditRecord, error)
}

// AuditFilters for querying audit records
type AuditFilters struct {
	Status *verdict.VerdictStatus
	Limit  int
	Offset int
}

// LedgerPort combines read and write access
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
