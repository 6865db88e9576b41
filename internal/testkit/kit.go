package testkit

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"gorla/domain/core"
	"gorla/domain/tally"
	"gorla/domain/verdict"
	"gorla/ports"
)

// TestKit bundles in-memory adapters for service tests
type TestKit struct {
	ledger *InMemoryLedgerAdapter
	tables *StaticTableSource
}

// NewTestKit creates a test kit with an empty ledger and no tables
func NewTestKit() *TestKit {
	return &TestKit{
		ledger: NewInMemoryLedgerAdapter(),
		tables: NewStaticTableSource(),
	}
}

// NewTestKitWithContest creates a test kit serving a generated contest as
// preliminary.csv, with recount files split one table per file.
func NewTestKitWithContest(cfg ContestGeneratorConfig, sampled int) *TestKit {
	kit := NewTestKit()
	gen := NewContestGenerator(cfg)
	prelim := gen.Preliminary()
	kit.tables.SetPreliminary("preliminary.csv", prelim)

	sample := gen.BatchSample(prelim, sampled)
	for _, id := range sample.TableIDs() {
		kit.tables.AddRecount("recount", id+".csv", sample.ForTable(id))
	}
	return kit
}

// Ledger returns the in-memory ledger
func (k *TestKit) Ledger() *InMemoryLedgerAdapter {
	return k.ledger
}

// Tables returns the in-memory table source
func (k *TestKit) Tables() *StaticTableSource {
	return k.tables
}

// StaticTableSource implements ports.TableSource over tables held in memory
type StaticTableSource struct {
	mu          sync.RWMutex
	preliminary map[string]*tally.Table
	recounts    map[string][]tally.NamedTable
}

var _ ports.TableSource = (*StaticTableSource)(nil)

func NewStaticTableSource() *StaticTableSource {
	return &StaticTableSource{
		preliminary: make(map[string]*tally.Table),
		recounts:    make(map[string][]tally.NamedTable),
	}
}

// SetPreliminary serves t at path
func (s *StaticTableSource) SetPreliminary(path string, t *tally.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preliminary[path] = t
}

// AddRecount adds a recount file to dir
func (s *StaticTableSource) AddRecount(dir, name string, t *tally.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recounts[dir] = append(s.recounts[dir], tally.NamedTable{Name: name, Table: t})
}

// AddRecountDir registers dir with no files
func (s *StaticTableSource) AddRecountDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recounts[dir]; !ok {
		s.recounts[dir] = []tally.NamedTable{}
	}
}

func (s *StaticTableSource) LoadPreliminary(ctx context.Context, path string) (*tally.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.preliminary[path]
	if !ok {
		return nil, fmt.Errorf("preliminary file not found: %s", path)
	}
	return t, nil
}

// LoadRecounts returns the files of dir in name order, like a directory read
func (s *StaticTableSource) LoadRecounts(ctx context.Context, dir string) ([]tally.NamedTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, ok := s.recounts[dir]
	if !ok {
		return nil, fmt.Errorf("recount directory not found: %s", dir)
	}
	out := slices.Clone(files)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage
type InMemoryLedgerAdapter struct {
	records []verdict.AuditRecord
	mu      sync.RWMutex
}

var _ ports.LedgerPort = (*InMemoryLedgerAdapter)(nil)

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{}
}

func (s *InMemoryLedgerAdapter) RecordAudit(ctx context.Context, record *verdict.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.RunID == record.RunID && r.Round == record.Round {
			return fmt.Errorf("round %d of run %s already recorded", record.Round, record.RunID)
		}
	}
	s.records = append(s.records, *record)
	return nil
}

func (s *InMemoryLedgerAdapter) GetRun(ctx context.Context, runID core.RunID) ([]verdict.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []verdict.AuditRecord
	for _, r := range s.records {
		if r.RunID == runID {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Round < results[j].Round })
	return results, nil
}

func (s *InMemoryLedgerAdapter) ListAudits(ctx context.Context, filters ports.AuditFilters) ([]verdict.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []verdict.AuditRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if filters.Status != nil && r.Status != *filters.Status {
			continue
		}
		results = append(results, r)
	}

	if filters.Offset > 0 {
		if filters.Offset >= len(results) {
			return nil, nil
		}
		results = results[filters.Offset:]
	}
	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results, nil
}

// Len returns the number of stored records
func (s *InMemoryLedgerAdapter) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
