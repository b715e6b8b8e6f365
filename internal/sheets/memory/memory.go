package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetintel/internal/core"
	ports "budgetintel/internal/sheets"
)

// Store is an in-process stand-in for a spreadsheet: exports are kept per
// ledger and month, and named ranges can be seeded with rows to import.
type Store struct {
	mu      sync.Mutex
	exports map[string]core.MonthExport
	ranges  map[string][][]string
	writes  int
}

var (
	_ ports.Exporter  = (*Store)(nil)
	_ ports.RowSource = (*Store)(nil)
)

func New() *Store {
	return &Store{exports: map[string]core.MonthExport{}, ranges: map[string][][]string{}}
}

func (s *Store) ExportMonth(_ context.Context, ledgerKey string, exp core.MonthExport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := fmt.Sprintf("mem:%s/%s", ledgerKey, exp.Summary.Month)
	s.exports[ref] = exp
	s.writes++
	return ref, nil
}

// Export returns what was last exported under ref.
func (s *Store) Export(ref string) (core.MonthExport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.exports[ref]
	return exp, ok
}

// SetRows seeds a named range.
func (s *Store) SetRows(rangeName string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	s.ranges[rangeName] = cp
}

func (s *Store) ReadRows(_ context.Context, rangeName string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.ranges[rangeName]
	if !ok {
		return nil, fmt.Errorf("range %q not found", rangeName)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}
