package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetintel/internal/backup"
	"budgetintel/internal/cache"
	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
	sheetsmem "budgetintel/internal/sheets/memory"
	"budgetintel/internal/storage"
)

var testNow = time.Date(2025, time.March, 15, 18, 0, 0, 0, time.UTC)

const march = core.MonthKey("2025-03")

type recordingNotifier struct {
	mu   sync.Mutex
	sent []core.NotificationRequest
}

func (n *recordingNotifier) Deliver(_ context.Context, _ string, req core.NotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return nil
}

func (n *recordingNotifier) identifiers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, r := range n.sent {
		ids = append(ids, r.Identifier)
	}
	return ids
}

type stubPublisher struct {
	err    error
	months [][]core.MonthKey
}

func (p *stubPublisher) PublishLedgerCommitted(_ context.Context, _ string, months []core.MonthKey, _ int64) error {
	p.months = append(p.months, months)
	return p.err
}

func newTestService(t *testing.T, opts ...Option) (*BudgetService, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	opts = append([]Option{WithNotifier(n), WithClock(func() time.Time { return testNow })}, opts...)
	return NewBudgetService(storage.NewMemoryRepository(), opts...), n
}

func expense(cents int64, day int, cat core.Category) core.Transaction {
	return core.NewTransaction(cents, time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC), cat, "", core.Card, core.Expense)
}

func TestCommitEvaluatesAlertsInline(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestService(t)

	require.NoError(t, svc.SetBudget(ctx, "home", march, 100000))
	_, err := svc.AddTransaction(ctx, "home", expense(75000, 3, core.Builtin(core.Rent)))
	require.NoError(t, err)
	_, err = svc.AddTransaction(ctx, "home", expense(6000, 4, core.Builtin(core.Groceries)))
	require.NoError(t, err)
	_, err = svc.AddCustomCategory(ctx, "home", "Pets")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"budget-2025-03-overall-t70",
		"budget-2025-03-overall-t80",
	}, notifier.identifiers())

	fired, err := svc.EvaluateAlerts(ctx, "home", march)
	require.NoError(t, err)
	assert.Empty(t, fired, "latched state must not fire twice")
}

func TestCommitFailureLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.SetBudget(ctx, "home", march, 5000))

	err := svc.SetBudget(ctx, "home", march, -1)
	assert.ErrorIs(t, err, core.ErrNegativeBudget)

	_, err = svc.AddTransaction(ctx, "home", expense(100, 2, core.Custom("Unknown")))
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	l, err := svc.Ledger(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), l.Budget(march))
	assert.Empty(t, l.Transactions)
}

func TestCommitPublishesWhenBrokerConfigured(t *testing.T) {
	ctx := context.Background()
	pub := &stubPublisher{}
	svc, notifier := newTestService(t, WithPublisher(pub))

	require.NoError(t, svc.SetBudget(ctx, "home", march, 1000))
	_, err := svc.AddTransaction(ctx, "home", expense(2000, 2, core.Builtin(core.Bills)))
	require.NoError(t, err)

	require.Len(t, pub.months, 2)
	assert.Equal(t, []core.MonthKey{march}, pub.months[1])
	assert.Empty(t, notifier.identifiers(), "evaluation is left to the consumer")

	pub.err = errors.New("broker down")
	_, err = svc.AddTransaction(ctx, "home", expense(10, 3, core.Builtin(core.Bills)))
	require.NoError(t, err)
	assert.Equal(t, []string{"budget-2025-03-overall-over"}, notifier.identifiers())
}

func TestChangedMonthsIgnoresUnrelatedEdits(t *testing.T) {
	before := core.NewLedger()
	require.NoError(t, before.Add(expense(100, 2, core.Builtin(core.Dining))))

	after := before.Clone()
	_, err := after.AddCustomCategory("Pets")
	require.NoError(t, err)
	assert.Empty(t, changedMonths(before, after))

	require.NoError(t, after.SetBudget("2025-04", 500))
	assert.Equal(t, []core.MonthKey{"2025-04"}, changedMonths(before, after))
}

func TestReportIsCachedUntilCommit(t *testing.T) {
	ctx := context.Background()
	reports := cache.NewLRUCache[Report](8, time.Hour)
	svc, _ := newTestService(t, WithReportCache(reports))
	require.NoError(t, svc.SetBudget(ctx, "home", march, 100000))

	first, err := svc.Report(ctx, "home", march)
	require.NoError(t, err)
	_, err = svc.Report(ctx, "home", march)
	require.NoError(t, err)
	hits, _ := reports.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), first.Summary.TotalSpent.Cents)

	_, err = svc.AddTransaction(ctx, "home", expense(1500, 1, core.Builtin(core.Dining)))
	require.NoError(t, err)
	assert.Zero(t, reports.Size())

	second, err := svc.Report(ctx, "home", march)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), second.Summary.TotalSpent.Cents)
	require.Len(t, second.Categories, 1)

	_, err = svc.Report(ctx, "home", "2025-3")
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	rows := [][]string{
		{"date", "amount", "category", "type", "payment", "note"},
		{"2025-03-02", "12.50", "dining", "expense", "card", "pizza"},
		{"2025-03-03", "40", "Pets", "expense", "cash", "food"},
		{"not a date", "1", "dining", "", "", ""},
	}

	first, err := svc.Import(ctx, "home", rows, dedup.DefaultMapping())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 1, first.Skipped)
	assert.False(t, first.AlreadyImported)

	second, err := svc.Import(ctx, "home", rows, dedup.DefaultMapping())
	require.NoError(t, err)
	assert.Zero(t, second.Added)
	assert.Equal(t, 2, second.Duplicates)
	assert.True(t, second.AlreadyImported)
	assert.Equal(t, first.Digest, second.Digest)

	l, err := svc.Ledger(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, l.Transactions, 2)
	assert.True(t, l.HasCustomCategory("pets"))

	_, err = svc.Import(ctx, "home", rows[3:], dedup.ColumnMapping{Date: 0, Amount: 1, Category: 2, Type: -1, Payment: -1, Note: -1})
	assert.ErrorIs(t, err, dedup.ErrNoValidRows)
}

func TestImportFromSheet(t *testing.T) {
	ctx := context.Background()
	src := sheetsmem.New()
	src.SetRows("Import!A:F", [][]string{
		{"date", "amount", "category", "type", "payment", "note"},
		{"2025-03-05", "9.90", "transport", "", "", "bus"},
	})
	svc, _ := newTestService(t, WithRowSource(src))

	out, err := svc.ImportFromSheet(ctx, "home", "Import!A:F", dedup.DefaultMapping())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Added)

	bare, _ := newTestService(t)
	_, err = bare.ImportFromSheet(ctx, "home", "Import!A:F", dedup.DefaultMapping())
	assert.ErrorIs(t, err, ErrNoRowSource)
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.SetBudget(ctx, "phone", march, 90000))
	_, err := svc.AddTransaction(ctx, "phone", expense(1200, 2, core.Builtin(core.Health)))
	require.NoError(t, err)

	data, err := svc.Backup(ctx, "phone")
	require.NoError(t, err)

	res, err := svc.Restore(ctx, "tablet", data, backup.ModeReplace)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.Added)

	res, err = svc.Restore(ctx, "tablet", data, backup.ModeMerge)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 1, res.Duplicates)

	tablet, err := svc.Ledger(ctx, "tablet")
	require.NoError(t, err)
	assert.Equal(t, int64(90000), tablet.Budget(march))
	assert.Len(t, tablet.Transactions, 1)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.SetBudget(ctx, "home", march, 100))

	res, err := svc.Restore(ctx, "home", []byte("{not json"), backup.ModeReplace)
	assert.ErrorIs(t, err, backup.ErrInvalidFormat)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Reason)

	l, err := svc.Ledger(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, int64(100), l.Budget(march))
}

func TestSyncReplicaAppliesRemoteDeletes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	tx, err := svc.AddTransaction(ctx, "laptop", expense(700, 5, core.Builtin(core.Shopping)))
	require.NoError(t, err)

	remote := core.NewLedger()
	require.NoError(t, remote.Add(tx))
	require.NoError(t, remote.Delete(tx.ID))
	require.NoError(t, remote.Add(expense(300, 6, core.Builtin(core.Dining))))
	data, err := backup.Encode(remote, testNow)
	require.NoError(t, err)

	res, err := svc.SyncReplica(ctx, "laptop", data)
	require.NoError(t, err)
	assert.Equal(t, dedup.ReplicaResult{Added: 1, Removed: 1}, res)

	l, err := svc.Ledger(ctx, "laptop")
	require.NoError(t, err)
	require.Len(t, l.Transactions, 1)
	assert.Equal(t, int64(300), l.Transactions[0].Amount.Cents)
}

func TestDeleteCustomCategoryRemaps(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	pets, err := svc.AddCustomCategory(ctx, "home", "Pets")
	require.NoError(t, err)
	_, err = svc.AddTransaction(ctx, "home", expense(500, 2, pets))
	require.NoError(t, err)
	require.NoError(t, svc.SetCategoryBudget(ctx, "home", core.Custom("pets"), march, 1000))

	moved, err := svc.DeleteCustomCategory(ctx, "home", "PETS")
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	_, err = svc.DeleteCustomCategory(ctx, "home", "Pets")
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	l, err := svc.Ledger(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, core.Builtin(core.Other).Key(), l.Transactions[0].Category.Key())
	assert.Empty(t, l.CategoryCaps(march))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	out := sheetsmem.New()
	svc, _ := newTestService(t, WithExporter(out))
	_, err := svc.AddTransaction(ctx, "home", expense(800, 9, core.Builtin(core.Education)))
	require.NoError(t, err)

	ref, err := svc.Export(ctx, "home", march)
	require.NoError(t, err)
	exp, ok := out.Export(ref)
	require.True(t, ok)
	assert.Equal(t, int64(800), exp.Summary.TotalSpent.Cents)
	assert.Len(t, exp.Transactions, 1)

	bare, _ := newTestService(t)
	_, err = bare.Export(ctx, "home", march)
	assert.ErrorIs(t, err, ErrExportDisabled)
}

func TestEvaluateAlertsUnknownLedger(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.EvaluateAlerts(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestReadViewsOfUnknownLedger(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithExporter(sheetsmem.New()))

	_, err := svc.Report(ctx, "ghost", march)
	assert.ErrorIs(t, err, ErrLedgerNotFound)
	_, err = svc.Backup(ctx, "ghost")
	assert.ErrorIs(t, err, ErrLedgerNotFound)
	_, err = svc.Export(ctx, "ghost", march)
	assert.ErrorIs(t, err, ErrLedgerNotFound)

	l, err := svc.Ledger(ctx, "ghost")
	require.NoError(t, err, "writers still start from an empty ledger")
	assert.Empty(t, l.Transactions)
}

func TestImportSkipsKnownDatasetAfterDeletes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	rows := [][]string{
		{"date", "amount", "category", "type", "payment", "note"},
		{"2025-03-02", "12.50", "dining", "expense", "card", "pizza"},
		{"2025-03-03", "40", "groceries", "expense", "cash", "market"},
	}

	first, err := svc.Import(ctx, "home", rows, dedup.DefaultMapping())
	require.NoError(t, err)
	require.Equal(t, 2, first.Added)

	l, err := svc.Ledger(ctx, "home")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransaction(ctx, "home", l.Transactions[0].ID))

	second, err := svc.Import(ctx, "home", rows, dedup.DefaultMapping())
	require.NoError(t, err)
	assert.True(t, second.AlreadyImported)
	assert.Zero(t, second.Added)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, first.Digest, second.Digest)

	l, err = svc.Ledger(ctx, "home")
	require.NoError(t, err)
	assert.Len(t, l.Transactions, 1, "the deleted row stays deleted")
}

// gatedRepository holds the next LoadLedger, after reading, until released.
type gatedRepository struct {
	*storage.MemoryRepository
	mu      sync.Mutex
	pending *loadGate
}

type loadGate struct {
	loaded  chan struct{}
	release chan struct{}
}

func (r *gatedRepository) holdNextLoad() *loadGate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &loadGate{loaded: make(chan struct{}), release: make(chan struct{})}
	return r.pending
}

func (r *gatedRepository) LoadLedger(ctx context.Context, key string) (core.Ledger, error) {
	r.mu.Lock()
	g := r.pending
	r.pending = nil
	r.mu.Unlock()

	l, err := r.MemoryRepository.LoadLedger(ctx, key)
	if g != nil {
		close(g.loaded)
		<-g.release
	}
	return l, err
}

func TestEvaluateAlertsIsSerializedWithCommits(t *testing.T) {
	ctx := context.Background()
	repo := &gatedRepository{MemoryRepository: storage.NewMemoryRepository()}
	notifier := &recordingNotifier{}
	svc := NewBudgetService(repo, WithNotifier(notifier), WithClock(func() time.Time { return testNow }))

	require.NoError(t, svc.SetBudget(ctx, "home", march, 100000))
	big, err := svc.AddTransaction(ctx, "home", expense(105000, 3, core.Builtin(core.Rent)))
	require.NoError(t, err)
	require.Equal(t, []string{"budget-2025-03-overall-over"}, notifier.identifiers())

	gate := repo.holdNextLoad()
	evaluated := make(chan error, 1)
	go func() {
		_, err := svc.EvaluateAlerts(ctx, "home", march)
		evaluated <- err
	}()
	<-gate.loaded

	deleted := make(chan error, 1)
	go func() { deleted <- svc.DeleteTransaction(ctx, "home", big.ID) }()
	select {
	case err := <-deleted:
		close(gate.release)
		t.Fatalf("delete committed while an evaluation was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-evaluated)
	require.NoError(t, <-deleted)

	assert.Equal(t, []string{"budget-2025-03-overall-over"}, notifier.identifiers())
	l, err := svc.Ledger(ctx, "home")
	require.NoError(t, err)
	assert.Zero(t, l.Spent(march))
}
