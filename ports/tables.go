package ports

import (
	"context"

	"gorla/domain/tally"
)

// TableSource loads the vote tables an audit is verified against
type TableSource interface {
	LoadPreliminary(ctx context.Context, path string) (*tally.Table, error)
	// LoadRecounts returns every recount file of dir in a stable order
	LoadRecounts(ctx context.Context, dir string) ([]tally.NamedTable, error)
}
