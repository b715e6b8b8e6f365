// Package alert decides when a budget threshold crossing deserves a
// notification. State is latched per scope so repeated evaluation of an
// unchanged ledger never fires twice.
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"budgetintel/internal/core"
)

// Level is the latched tier of a scope.
type Level string

const (
	LevelNone Level = "none"
	// Overall ladder below the over-budget boundary.
	LevelT70 Level = "t70"
	LevelT80 Level = "t80"
	// Category tiers.
	LevelNear Level = "near"
	LevelOver Level = "over"
)

func (l Level) rank() int {
	switch l {
	case LevelT70, LevelNear:
		return 1
	case LevelT80, LevelOver:
		return 2
	default:
		return 0
	}
}

const overallKind = "overall"

// Scope is the unit alert state is kept for.
type Scope struct {
	Month core.MonthKey
	Kind  string // "overall" or "category:<key>"
}

func Overall(m core.MonthKey) Scope { return Scope{Month: m, Kind: overallKind} }

func ForCategory(m core.MonthKey, categoryKey string) Scope {
	return Scope{Month: m, Kind: "category:" + categoryKey}
}

func (s Scope) IsOverall() bool { return s.Kind == overallKind }

// CategoryKey returns the category storage key of a category scope.
func (s Scope) CategoryKey() string {
	return strings.TrimPrefix(s.Kind, "category:")
}

// String is the persisted key, e.g. "2025-01|overall".
func (s Scope) String() string { return string(s.Month) + "|" + s.Kind }

func ParseScope(key string) (Scope, error) {
	month, kind, ok := strings.Cut(key, "|")
	if !ok || (kind != overallKind && !strings.HasPrefix(kind, "category:")) {
		return Scope{}, fmt.Errorf("invalid alert scope %q", key)
	}
	m, err := core.ParseMonthKey(month)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Month: m, Kind: kind}, nil
}

// State is what is persisted for a scope. OverNotified is only used by the
// overall scope, whose over-budget latch is independent of the ladder.
type State struct {
	Level        Level
	OverNotified bool
}

func (s State) normalized() State {
	if s.Level == "" {
		s.Level = LevelNone
	}
	return s
}

// StateStore persists alert state independently of the ledger. Get returns
// the zero State for an unknown scope.
type StateStore interface {
	Get(ctx context.Context, scope Scope) (State, error)
	Set(ctx context.Context, scope Scope, state State) error
}

// AtomicStore applies a read-modify-write of one scope atomically, also
// against other processes sharing the backing store. fn sees the current
// state and returns the state to keep.
type AtomicStore interface {
	StateStore
	Update(ctx context.Context, scope Scope, fn func(State) State) error
}

// MemoryStore is a StateStore kept in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]State{}}
}

func (m *MemoryStore) Get(_ context.Context, scope Scope) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[scope.String()].normalized(), nil
}

func (m *MemoryStore) Set(_ context.Context, scope Scope, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[scope.String()] = state
	return nil
}

func (m *MemoryStore) Update(_ context.Context, scope Scope, fn func(State) State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scope.String()
	m.states[key] = fn(m.states[key].normalized())
	return nil
}
