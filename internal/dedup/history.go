package dedup

import (
	"context"
	"sync"
)

// ImportHistory remembers dataset digests of files already imported.
type ImportHistory interface {
	Contains(ctx context.Context, digest string) (bool, error)
	Record(ctx context.Context, digest string, rows int) error
}

// MemoryHistory keeps digests in memory.
type MemoryHistory struct {
	mu      sync.Mutex
	digests map[string]int
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{digests: map[string]int{}}
}

func (h *MemoryHistory) Contains(_ context.Context, digest string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.digests[digest]
	return ok, nil
}

func (h *MemoryHistory) Record(_ context.Context, digest string, rows int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.digests[digest] = rows
	return nil
}
