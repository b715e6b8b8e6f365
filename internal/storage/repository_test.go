package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetintel/internal/alert"
	"budgetintel/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleLedger(t *testing.T) core.Ledger {
	t.Helper()
	l := core.NewLedger()
	l.SelectedMonth = "2025-03"
	require.NoError(t, l.SetBudget("2025-03", 150000))
	require.NoError(t, l.SetBudget("2025-04", 0))
	pets, err := l.AddCustomCategory("Pets")
	require.NoError(t, err)
	require.NoError(t, l.SetCategoryBudget(pets, "2025-03", 20000))
	require.NoError(t, l.SetCategoryBudget(core.Builtin(core.Dining), "2025-03", 15000))

	day := time.Date(2025, time.March, 4, 12, 30, 0, 0, time.UTC)
	require.NoError(t, l.Add(core.NewTransaction(4200, day, pets, "vet", core.Card, core.Expense)))
	require.NoError(t, l.Add(core.NewTransaction(250000, day, core.Builtin(core.Other), "salary", core.Card, core.Income)))
	gone := core.NewTransaction(99, day, core.Builtin(core.Dining), "", core.Cash, core.Expense)
	require.NoError(t, l.Add(gone))
	require.NoError(t, l.Delete(gone.ID))
	return l
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	want := sampleLedger(t)

	require.NoError(t, repo.SaveLedger(ctx, "home", want))

	got, err := repo.LoadLedger(ctx, "home")
	require.NoError(t, err)

	assert.Equal(t, want.SelectedMonth, got.SelectedMonth)
	assert.Equal(t, want.BudgetsByMonth, got.BudgetsByMonth)
	assert.Equal(t, want.CategoryBudgetsByMonth, got.CategoryBudgetsByMonth)
	assert.Equal(t, want.CustomCategoryNames, got.CustomCategoryNames)
	assert.Equal(t, want.DeletedTransactionIDs, got.DeletedTransactionIDs)
	require.Len(t, got.Transactions, len(want.Transactions))
	for i := range want.Transactions {
		assert.Equal(t, want.Transactions[i].ID, got.Transactions[i].ID)
		assert.Equal(t, want.Transactions[i].Category.Key(), got.Transactions[i].Category.Key())
		assert.True(t, want.Transactions[i].Date.Equal(got.Transactions[i].Date))
		assert.Equal(t, want.Transactions[i].Amount, got.Transactions[i].Amount)
		assert.Equal(t, want.Transactions[i].Type, got.Transactions[i].Type)
	}
}

func TestSQLiteSaveReplacesPreviousContent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	l := sampleLedger(t)
	require.NoError(t, repo.SaveLedger(ctx, "home", l))

	l.ClearMonthData("2025-03")
	require.NoError(t, repo.SaveLedger(ctx, "home", l))

	got, err := repo.LoadLedger(ctx, "home")
	require.NoError(t, err)
	assert.Empty(t, got.Transactions)
	assert.Zero(t, got.Budget("2025-03"))
	assert.Empty(t, got.CategoryCaps("2025-03"))

	rev, err := repo.Revision(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
}

func TestSQLiteLoadMissingLedger(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.LoadLedger(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteLedgersAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.SaveLedger(ctx, "a", sampleLedger(t)))
	require.NoError(t, repo.SaveLedger(ctx, "b", core.NewLedger()))

	keys, err := repo.ListLedgerKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	b, err := repo.LoadLedger(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b.Transactions)
}

func TestSQLiteAlertStates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	store := repo.AlertStates("home")
	scope := alert.Overall("2025-03")

	st, err := store.Get(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, alert.State{Level: alert.LevelNone}, st)

	require.NoError(t, store.Set(ctx, scope, alert.State{Level: alert.LevelT80, OverNotified: true}))
	st, err = store.Get(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, alert.State{Level: alert.LevelT80, OverNotified: true}, st)

	other, err := repo.AlertStates("elsewhere").Get(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, alert.LevelNone, other.Level)
}

func TestSQLiteAlertStatesSharedByTwoProcesses(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budget.db")
	var repos []*SQLiteRepository
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		repos = append(repos, repo)
	}

	in := alert.Input{Month: "2025-03", Spent: 105000, Budget: 100000}
	var (
		mu    sync.Mutex
		fired []string
		wg    sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		repo := repos[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqs, err := alert.NewEvaluator(repo.AlertStates("home")).Evaluate(ctx, in)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, r := range reqs {
				fired = append(fired, r.Identifier)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"budget-2025-03-overall-over"}, fired)
	st, err := repos[1].AlertStates("home").Get(ctx, alert.Overall("2025-03"))
	require.NoError(t, err)
	assert.True(t, st.OverNotified)
}

func TestSQLiteImportHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	h := repo.ImportHistory("home")

	seen, err := h.Contains(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, h.Record(ctx, "abc", 3))
	require.NoError(t, h.Record(ctx, "abc", 3))
	seen, err = h.Contains(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	require.NoError(t, RunMigrations(path))

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestMemoryRepositoryClones(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	l := sampleLedger(t)
	require.NoError(t, repo.SaveLedger(ctx, "home", l))

	require.NoError(t, l.SetBudget("2025-03", 1))
	got, err := repo.LoadLedger(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), got.Budget("2025-03"))

	_, err = repo.LoadLedger(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Same(t, repo.AlertStates("home"), repo.AlertStates("home"))
}
