package storage

import (
	"context"
	"sort"
	"sync"

	"budgetintel/internal/alert"
	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
)

// MemoryRepository keeps everything in process memory. Ledgers are cloned on
// the way in and out so callers never share maps with the store.
type MemoryRepository struct {
	mu        sync.RWMutex
	ledgers   map[string]core.Ledger
	revisions map[string]int64
	alerts    map[string]*alert.MemoryStore
	history   map[string]*dedup.MemoryHistory
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		ledgers:   map[string]core.Ledger{},
		revisions: map[string]int64{},
		alerts:    map[string]*alert.MemoryStore{},
		history:   map[string]*dedup.MemoryHistory{},
	}
}

func (r *MemoryRepository) LoadLedger(_ context.Context, key string) (core.Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.ledgers[key]
	if !ok {
		return core.Ledger{}, ErrNotFound
	}
	return l.Clone(), nil
}

func (r *MemoryRepository) SaveLedger(_ context.Context, key string, l core.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[key] = l.Clone()
	r.revisions[key]++
	return nil
}

func (r *MemoryRepository) ListLedgerKeys(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.ledgers))
	for k := range r.ledgers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *MemoryRepository) Revision(_ context.Context, key string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revisions[key], nil
}

func (r *MemoryRepository) AlertStates(key string) alert.StateStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.alerts[key]
	if !ok {
		s = alert.NewMemoryStore()
		r.alerts[key] = s
	}
	return s
}

func (r *MemoryRepository) ImportHistory(key string) dedup.ImportHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.history[key]
	if !ok {
		h = dedup.NewMemoryHistory()
		r.history[key] = h
	}
	return h
}

func (r *MemoryRepository) Close() error { return nil }
