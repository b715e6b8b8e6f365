package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetintel/internal/alert"
	"budgetintel/internal/analytics"
	"budgetintel/internal/backup"
	"budgetintel/internal/cache"
	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
	"budgetintel/internal/forecast"
	"budgetintel/internal/insight"
	blog "budgetintel/internal/log"
	"budgetintel/internal/sheets"
	"budgetintel/internal/storage"
)

var (
	ErrLedgerNotFound  = errors.New("ledger not found")
	ErrExportDisabled  = errors.New("no exporter configured")
	ErrNoRowSource     = errors.New("no row source configured")
	ErrEmptyLedgerKey  = errors.New("ledger key is empty")
	errNothingToCommit = errors.New("nothing to commit")
)

// Report is everything the month view shows.
type Report struct {
	Month        core.MonthKey
	Summary      core.MonthSummary
	Forecast     forecast.Forecast
	Advisories   []core.Advisory
	Pressure     core.Severity
	QuickActions []string
	Categories   []core.CategoryRow
	Payments     []core.PaymentRow
	Days         []core.DayPoint
	Saved        core.Money
	TotalSaved   core.Money
}

// ImportOutcome extends the merge result with whether the same dataset was
// imported before.
type ImportOutcome struct {
	dedup.ImportResult
	AlreadyImported bool
}

// BudgetService is the single writer of ledgers. Every mutation goes through
// Commit, which clones the stored ledger, applies the change, saves the whole
// value and then triggers alert evaluation.
type BudgetService struct {
	repo      Repository
	publisher EventPublisher
	notifier  Notifier
	reports   cache.Cache[Report]
	exporter  sheets.Exporter
	rows      sheets.RowSource
	events    *blog.StructuredLogger
	now       func() time.Time

	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	evaluators map[string]*alert.Evaluator
}

type Option func(*BudgetService)

// WithPublisher moves alert evaluation out of process: commits publish an
// event instead of evaluating inline.
func WithPublisher(p EventPublisher) Option { return func(s *BudgetService) { s.publisher = p } }

func WithNotifier(n Notifier) Option { return func(s *BudgetService) { s.notifier = n } }

func WithReportCache(c cache.Cache[Report]) Option { return func(s *BudgetService) { s.reports = c } }

func WithExporter(e sheets.Exporter) Option { return func(s *BudgetService) { s.exporter = e } }

func WithRowSource(r sheets.RowSource) Option { return func(s *BudgetService) { s.rows = r } }

func WithLogger(l *blog.Logger) Option {
	return func(s *BudgetService) { s.events = blog.NewStructuredLogger(l) }
}

func WithClock(now func() time.Time) Option { return func(s *BudgetService) { s.now = now } }

func NewBudgetService(repo Repository, opts ...Option) *BudgetService {
	s := &BudgetService{
		repo:       repo,
		notifier:   LogNotifier{},
		reports:    cache.NewLRUCache[Report](64, 5*time.Minute),
		now:        time.Now,
		locks:      map[string]*sync.Mutex{},
		evaluators: map[string]*alert.Evaluator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = blog.NewStructuredLogger(blog.New(blog.Config{
			Handler:   slog.Default().Handler(),
			Component: blog.ComponentService,
		}))
	}
	return s
}

func (s *BudgetService) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// evaluatorFor returns the one Evaluator allowed to write key's alert state.
func (s *BudgetService) evaluatorFor(key string) *alert.Evaluator {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evaluators[key]
	if !ok {
		e = alert.NewEvaluator(s.repo.AlertStates(key))
		s.evaluators[key] = e
	}
	return e
}

// Ledger loads the ledger stored under key. A missing ledger is an empty one;
// so is a stored ledger that can no longer be decoded, which is logged.
func (s *BudgetService) Ledger(ctx context.Context, key string) (core.Ledger, error) {
	return s.load(ctx, key, true)
}

// stored is Ledger for read-only views, which report a key that was never
// written as ErrLedgerNotFound instead of showing an empty ledger.
func (s *BudgetService) stored(ctx context.Context, key string) (core.Ledger, error) {
	return s.load(ctx, key, false)
}

func (s *BudgetService) load(ctx context.Context, key string, emptyIfMissing bool) (core.Ledger, error) {
	if key == "" {
		return core.Ledger{}, ErrEmptyLedgerKey
	}
	l, err := s.repo.LoadLedger(ctx, key)
	switch {
	case err == nil:
		return l, nil
	case errors.Is(err, storage.ErrNotFound):
		if !emptyIfMissing {
			return core.Ledger{}, fmt.Errorf("%w: %s", ErrLedgerNotFound, key)
		}
		return core.NewLedger(), nil
	case errors.Is(err, storage.ErrCorrupt):
		slog.WarnContext(ctx, "Stored ledger is unreadable, starting from an empty ledger",
			"ledger_key", key, "error", err)
		return core.NewLedger(), nil
	default:
		return core.Ledger{}, fmt.Errorf("load ledger %s: %w", key, err)
	}
}

func (s *BudgetService) ListLedgers(ctx context.Context) ([]string, error) {
	return s.repo.ListLedgerKeys(ctx)
}

// Commit applies mutate to a copy of the stored ledger and saves the result
// as a whole. If mutate fails nothing is saved. Alerts are evaluated for the
// months whose totals, budget or caps changed.
func (s *BudgetService) Commit(ctx context.Context, key string, mutate func(*core.Ledger) error) (core.Ledger, error) {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	before, err := s.Ledger(ctx, key)
	if err != nil {
		return core.Ledger{}, err
	}
	after := before.Clone()
	if err := mutate(&after); err != nil {
		if errors.Is(err, errNothingToCommit) {
			return before, nil
		}
		return before, err
	}

	if err := s.repo.SaveLedger(ctx, key, after); err != nil {
		s.events.LogError(ctx, "Failed to save ledger", err, blog.OpCommit, blog.ErrorTypeDatabase,
			blog.NewFields().WithLedger(key))
		return before, fmt.Errorf("save ledger %s: %w", key, err)
	}
	s.reports.DeletePrefix(key + "|")

	revision, err := s.repo.Revision(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read ledger revision", "ledger_key", key, "error", err)
	}
	s.events.LogCommit(ctx, key, revision, len(after.Transactions))

	if months := changedMonths(before, after); len(months) > 0 {
		s.afterCommit(ctx, key, after, months, revision)
	}
	return after, nil
}

func (s *BudgetService) afterCommit(ctx context.Context, key string, l core.Ledger, months []core.MonthKey, revision int64) {
	if s.publisher != nil {
		err := s.publisher.PublishLedgerCommitted(ctx, key, months, revision)
		if err == nil {
			return
		}
		slog.WarnContext(ctx, "Failed to publish ledger commit, evaluating inline",
			"ledger_key", key, "error", err)
	}
	if _, err := s.evaluate(ctx, key, l, months); err != nil {
		s.events.LogError(ctx, "Alert evaluation failed", err, blog.OpEvaluate, blog.ErrorTypeInternal,
			blog.NewFields().WithLedger(key))
	}
}

// changedMonths lists the months whose spending, budget or caps differ.
func changedMonths(before, after core.Ledger) []core.MonthKey {
	seen := map[core.MonthKey]bool{}
	var out []core.MonthKey
	for _, l := range []core.Ledger{before, after} {
		for _, m := range l.Months() {
			if seen[m] {
				continue
			}
			seen[m] = true
			if monthFingerprint(before, m) != monthFingerprint(after, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

func monthFingerprint(l core.Ledger, m core.MonthKey) string {
	return fmt.Sprintf("%s|%d|%d|%v",
		dedup.DatasetDigest(l.TransactionsIn(m)), l.Spent(m), l.Budget(m), l.CategoryCaps(m))
}

// EvaluateAlerts runs the alert machines for months of the stored ledger and
// delivers every notification that fired.
func (s *BudgetService) EvaluateAlerts(ctx context.Context, key string, months ...core.MonthKey) ([]core.NotificationRequest, error) {
	// Held across load and evaluation so a commit cannot land in between.
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	l, err := s.repo.LoadLedger(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLedgerNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", key, err)
	}
	if len(months) == 0 {
		months = []core.MonthKey{core.MonthOf(s.now())}
	}
	return s.evaluate(ctx, key, l, months)
}

func (s *BudgetService) evaluate(ctx context.Context, key string, l core.Ledger, months []core.MonthKey) ([]core.NotificationRequest, error) {
	ev := s.evaluatorFor(key)
	var fired []core.NotificationRequest
	var errs []error
	for _, m := range months {
		reqs, err := ev.Evaluate(ctx, alert.InputFromLedger(l, m))
		if err != nil {
			errs = append(errs, fmt.Errorf("evaluate %s: %w", m, err))
			continue
		}
		for _, req := range reqs {
			s.events.LogAlertFired(ctx, key, string(m), req.Identifier)
			if err := s.notifier.Deliver(ctx, key, req); err != nil {
				errs = append(errs, fmt.Errorf("deliver %s: %w", req.Identifier, err))
			}
		}
		fired = append(fired, reqs...)
	}
	return fired, errors.Join(errs...)
}

// Report computes the month view, cached per ledger revision and day.
func (s *BudgetService) Report(ctx context.Context, key string, m core.MonthKey) (Report, error) {
	if !m.Valid() {
		return Report{}, fmt.Errorf("%w: %q", core.ErrInvalidMonth, m)
	}
	now := s.now()
	revision, err := s.repo.Revision(ctx, key)
	if err != nil {
		return Report{}, fmt.Errorf("read revision: %w", err)
	}
	cacheKey := fmt.Sprintf("%s|%s|%s|%d", key, m, dedup.DayString(now), revision)
	if r, ok := s.reports.Get(cacheKey); ok {
		return r, nil
	}

	l, err := s.stored(ctx, key)
	if err != nil {
		return Report{}, err
	}
	r := BuildReport(l, m, now)
	s.reports.Set(cacheKey, r)
	return r, nil
}

// BuildReport assembles a Report without touching storage.
func BuildReport(l core.Ledger, m core.MonthKey, now time.Time) Report {
	in := insight.Input{
		Month:    m,
		Ledger:   l,
		Summary:  analytics.Summarize(l, m, now),
		Forecast: forecast.Project(l, m, now),
	}
	advisories := insight.Classify(in)
	return Report{
		Month:        m,
		Summary:      in.Summary,
		Forecast:     in.Forecast,
		Advisories:   advisories,
		Pressure:     insight.Pressure(advisories),
		QuickActions: insight.QuickActions(in),
		Categories:   analytics.CategoryBreakdown(l, m),
		Payments:     analytics.PaymentBreakdown(l, m),
		Days:         analytics.DailySpendPoints(l, m),
		Saved:        core.Money{Cents: l.Saved(m, now)},
		TotalSaved:   core.Money{Cents: l.TotalSaved(now)},
	}
}

func (s *BudgetService) AddTransaction(ctx context.Context, key string, t core.Transaction) (core.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		if name := t.Category.CustomName(); name != "" {
			stored, ok := l.ResolveCustom(name)
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownCategory, name)
			}
			t.Category = core.Custom(stored)
		}
		return l.Add(t)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *BudgetService) UpdateTransaction(ctx context.Context, key string, t core.Transaction) error {
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		return l.Update(t, s.now())
	})
	return err
}

func (s *BudgetService) DeleteTransaction(ctx context.Context, key string, id uuid.UUID) error {
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		return l.Delete(id)
	})
	return err
}

func (s *BudgetService) SetBudget(ctx context.Context, key string, m core.MonthKey, cents int64) error {
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		return l.SetBudget(m, cents)
	})
	return err
}

func (s *BudgetService) SetCategoryBudget(ctx context.Context, key string, c core.Category, m core.MonthKey, cents int64) error {
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		if name := c.CustomName(); name != "" {
			stored, ok := l.ResolveCustom(name)
			if !ok {
				return fmt.Errorf("%w: %s", core.ErrUnknownCategory, name)
			}
			c = core.Custom(stored)
		}
		return l.SetCategoryBudget(c, m, cents)
	})
	return err
}

func (s *BudgetService) AddCustomCategory(ctx context.Context, key, name string) (core.Category, error) {
	var added core.Category
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		c, err := l.AddCustomCategory(name)
		added = c
		return err
	})
	return added, err
}

// DeleteCustomCategory removes a custom category and reports how many
// transactions were moved to other.
func (s *BudgetService) DeleteCustomCategory(ctx context.Context, key, name string) (int, error) {
	moved := 0
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		if !l.HasCustomCategory(name) {
			return fmt.Errorf("%w: %s", core.ErrUnknownCategory, name)
		}
		moved = l.DeleteCustomCategory(name)
		return nil
	})
	return moved, err
}

func (s *BudgetService) ClearMonth(ctx context.Context, key string, m core.MonthKey) error {
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		l.ClearMonthData(m)
		return nil
	})
	return err
}

func (s *BudgetService) SelectMonth(ctx context.Context, key string, m core.MonthKey) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidMonth, m)
	}
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		l.SelectedMonth = m
		return nil
	})
	return err
}

// Import merges CSV-style rows into the ledger. A dataset whose digest is
// already in the import history is not processed again and is reported
// through AlreadyImported; otherwise rows are deduplicated by signature.
func (s *BudgetService) Import(ctx context.Context, key string, rows [][]string, mapping dedup.ColumnMapping) (ImportOutcome, error) {
	var out ImportOutcome
	history := s.repo.ImportHistory(key)
	valid := 0
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		batch, err := dedup.ParseRows(*l, rows, mapping, s.now())
		if err != nil {
			return err
		}
		valid = len(batch.Transactions)
		out.Skipped = len(batch.Skipped)
		out.Errors = batch.Skipped
		out.Digest = dedup.DatasetDigest(batch.Transactions)
		if valid == 0 {
			if out.Skipped > 0 {
				return dedup.ErrNoValidRows
			}
			return errNothingToCommit
		}

		seen, err := history.Contains(ctx, out.Digest)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read import history", "ledger_key", key, "error", err)
		}
		if seen {
			out.AlreadyImported = true
			out.Duplicates = valid
			return errNothingToCommit
		}

		merged, res := dedup.ImportMerge(*l, batch.Transactions)
		out.Added, out.Duplicates = res.Added, res.Duplicates
		if res.Added == 0 {
			return errNothingToCommit
		}
		*l = merged
		return nil
	})
	if err != nil {
		return out, err
	}

	if valid > 0 && !out.AlreadyImported {
		if err := history.Record(ctx, out.Digest, valid); err != nil {
			slog.WarnContext(ctx, "Failed to record import", "ledger_key", key, "error", err)
		}
	}
	s.events.LogImport(ctx, key, blog.OpImport, out.Added, out.Skipped, out.Duplicates, out.Digest)
	return out, nil
}

// ImportFromSheet reads rangeName from the configured row source and imports it.
func (s *BudgetService) ImportFromSheet(ctx context.Context, key, rangeName string, mapping dedup.ColumnMapping) (ImportOutcome, error) {
	if s.rows == nil {
		return ImportOutcome{}, ErrNoRowSource
	}
	rows, err := s.rows.ReadRows(ctx, rangeName)
	if err != nil {
		return ImportOutcome{}, fmt.Errorf("read rows: %w", err)
	}
	return s.Import(ctx, key, rows, mapping)
}

// Backup encodes the whole stored ledger.
func (s *BudgetService) Backup(ctx context.Context, key string) ([]byte, error) {
	l, err := s.stored(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := backup.Encode(l, s.now())
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	slog.InfoContext(ctx, "Backup created", "ledger_key", key, "bytes", len(data), "transactions", len(l.Transactions))
	return data, nil
}

// Restore applies a backup in merge or replace mode. A backup that fails to
// decode leaves the stored ledger untouched.
func (s *BudgetService) Restore(ctx context.Context, key string, data []byte, mode backup.Mode) (backup.RestoreResult, error) {
	var res backup.RestoreResult
	_, err := s.Commit(ctx, key, func(l *core.Ledger) error {
		restored, r, err := backup.Restore(*l, data, mode)
		res = r
		if err != nil {
			return err
		}
		*l = restored
		return nil
	})
	if err != nil {
		return res, err
	}
	s.events.LogImport(ctx, key, blog.OpRestore, res.Added, 0, res.Duplicates, "")
	return res, nil
}

// SyncReplica merges a backup produced by another device of the same user.
func (s *BudgetService) SyncReplica(ctx context.Context, key string, data []byte) (dedup.ReplicaResult, error) {
	remote, err := backup.Decode(data)
	if err != nil {
		return dedup.ReplicaResult{}, err
	}
	var res dedup.ReplicaResult
	_, err = s.Commit(ctx, key, func(l *core.Ledger) error {
		merged, r := dedup.MergeReplica(*l, remote)
		res = r
		*l = merged
		return nil
	})
	if err != nil {
		return res, err
	}
	slog.InfoContext(ctx, "Replica merged",
		"ledger_key", key,
		"added", res.Added,
		"updated", res.Updated,
		"removed", res.Removed,
		"duplicates", res.Duplicates)
	return res, nil
}

// Export writes the month report through the configured exporter.
func (s *BudgetService) Export(ctx context.Context, key string, m core.MonthKey) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidMonth, m)
	}
	l, err := s.stored(ctx, key)
	if err != nil {
		return "", err
	}
	ref, err := s.exporter.ExportMonth(ctx, key, analytics.Export(l, m, s.now()))
	if err != nil {
		s.events.LogError(ctx, "Export failed", err, blog.OpExport, blog.ErrorTypeNetwork,
			blog.NewFields().WithLedger(key).WithMonth(string(m)))
		return "", fmt.Errorf("export %s: %w", m, err)
	}
	return ref, nil
}

// Close releases the repository.
func (s *BudgetService) Close() error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close repository: %w", err)
	}
	return nil
}
