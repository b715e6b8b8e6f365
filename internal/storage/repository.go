package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"budgetintel/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no ledger is stored under a key.
	ErrNotFound = errors.New("ledger not found")
	// ErrCorrupt is returned when stored rows cannot be decoded into a ledger.
	ErrCorrupt = errors.New("stored ledger is corrupt")
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository persists ledgers, alert state and import history.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SaveLedger transactions from interleaving.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadLedger reads the ledger stored under key. A missing key yields
// ErrNotFound; undecodable rows yield ErrCorrupt and no partial ledger.
func (r *SQLiteRepository) LoadLedger(ctx context.Context, key string) (core.Ledger, error) {
	l := core.NewLedger()

	var selected string
	err := r.db.QueryRowContext(ctx, `SELECT selected_month FROM ledgers WHERE ledger_key = ?`, key).Scan(&selected)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ledger{}, ErrNotFound
	}
	if err != nil {
		return core.Ledger{}, fmt.Errorf("query ledger: %w", err)
	}
	l.SelectedMonth = core.MonthKey(selected)

	if err := r.loadBudgets(ctx, key, &l); err != nil {
		return core.Ledger{}, err
	}
	if err := r.loadCategoryBudgets(ctx, key, &l); err != nil {
		return core.Ledger{}, err
	}
	if err := r.loadTransactions(ctx, key, &l); err != nil {
		return core.Ledger{}, err
	}
	if err := r.loadStrings(ctx, `SELECT name FROM custom_categories WHERE ledger_key = ? ORDER BY name COLLATE NOCASE`, key, &l.CustomCategoryNames); err != nil {
		return core.Ledger{}, err
	}
	if err := r.loadStrings(ctx, `SELECT transaction_id FROM tombstones WHERE ledger_key = ? ORDER BY transaction_id`, key, &l.DeletedTransactionIDs); err != nil {
		return core.Ledger{}, err
	}
	return l, nil
}

func (r *SQLiteRepository) loadBudgets(ctx context.Context, key string, l *core.Ledger) error {
	rows, err := r.db.QueryContext(ctx, `SELECT month, amount_cents FROM budgets WHERE ledger_key = ?`, key)
	if err != nil {
		return fmt.Errorf("query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var month string
		var cents int64
		if err := rows.Scan(&month, &cents); err != nil {
			return fmt.Errorf("scan budget: %w", err)
		}
		m, err := core.ParseMonthKey(month)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		l.BudgetsByMonth[m] = cents
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadCategoryBudgets(ctx context.Context, key string, l *core.Ledger) error {
	rows, err := r.db.QueryContext(ctx, `SELECT month, category_key, amount_cents FROM category_budgets WHERE ledger_key = ?`, key)
	if err != nil {
		return fmt.Errorf("query category budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var month, catKey string
		var cents int64
		if err := rows.Scan(&month, &catKey, &cents); err != nil {
			return fmt.Errorf("scan category budget: %w", err)
		}
		m, err := core.ParseMonthKey(month)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		cat, err := core.ParseCategoryKey(catKey)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if err := l.SetCategoryBudget(cat, m, cents); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadTransactions(ctx context.Context, key string, l *core.Ledger) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, amount_cents, occurred_at, category_key, note, payment_method, type, last_modified
		FROM transactions WHERE ledger_key = ? ORDER BY position`, key)
	if err != nil {
		return fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, occurred, catKey, note, method, typ, modified string
		var cents int64
		if err := rows.Scan(&id, &cents, &occurred, &catKey, &note, &method, &typ, &modified); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		t, err := decodeTransaction(id, cents, occurred, catKey, note, method, typ, modified)
		if err != nil {
			return fmt.Errorf("%w: transaction %s: %v", ErrCorrupt, id, err)
		}
		l.Transactions = append(l.Transactions, t)
	}
	return rows.Err()
}

func decodeTransaction(id string, cents int64, occurred, catKey, note, method, typ, modified string) (core.Transaction, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := time.Parse(timeLayout, occurred)
	if err != nil {
		return core.Transaction{}, err
	}
	lastModified, err := time.Parse(timeLayout, modified)
	if err != nil {
		return core.Transaction{}, err
	}
	cat, err := core.ParseCategoryKey(catKey)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		ID:            uid,
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Category:      cat,
		Note:          note,
		PaymentMethod: core.PaymentMethod(method),
		Type:          core.TransactionType(typ),
		LastModified:  lastModified,
	}
	return t, t.Validate()
}

func (r *SQLiteRepository) loadStrings(ctx context.Context, query, key string, dst *[]string) error {
	rows, err := r.db.QueryContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		*dst = append(*dst, s)
	}
	return rows.Err()
}

// SaveLedger replaces everything stored under key in one transaction, so a
// failed save leaves the previous ledger intact.
func (r *SQLiteRepository) SaveLedger(ctx context.Context, key string, l core.Ledger) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, `INSERT INTO ledgers (ledger_key, selected_month, revision, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(ledger_key) DO UPDATE SET selected_month = excluded.selected_month,
			revision = ledgers.revision + 1, updated_at = excluded.updated_at`,
		key, string(l.SelectedMonth), now); err != nil {
		return fmt.Errorf("upsert ledger: %w", err)
	}

	for _, table := range []string{"budgets", "category_budgets", "transactions", "custom_categories", "tombstones"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE ledger_key = ?", key); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for m, cents := range l.BudgetsByMonth {
		if _, err := tx.ExecContext(ctx, `INSERT INTO budgets (ledger_key, month, amount_cents) VALUES (?, ?, ?)`,
			key, string(m), cents); err != nil {
			return fmt.Errorf("insert budget %s: %w", m, err)
		}
	}
	for m, caps := range l.CategoryBudgetsByMonth {
		for catKey, cents := range caps {
			if cents <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO category_budgets (ledger_key, month, category_key, amount_cents) VALUES (?, ?, ?, ?)`,
				key, string(m), catKey, cents); err != nil {
				return fmt.Errorf("insert category budget %s/%s: %w", m, catKey, err)
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions
		(ledger_key, id, position, amount_cents, occurred_at, category_key, note, payment_method, type, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer stmt.Close()
	for i, t := range l.Transactions {
		if _, err := stmt.ExecContext(ctx, key, t.ID.String(), i, t.Amount.Cents,
			t.Date.Format(timeLayout), t.Category.Key(), t.Note,
			string(t.PaymentMethod), string(t.Type), t.LastModified.Format(timeLayout)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	for _, name := range l.CustomCategoryNames {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO custom_categories (ledger_key, name) VALUES (?, ?)`, key, name); err != nil {
			return fmt.Errorf("insert custom category %q: %w", name, err)
		}
	}
	for _, id := range l.DeletedTransactionIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO tombstones (ledger_key, transaction_id) VALUES (?, ?)`, key, id); err != nil {
			return fmt.Errorf("insert tombstone %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Ledger saved to SQLite",
		"ledger_key", key,
		"transactions", len(l.Transactions),
		"budgets", len(l.BudgetsByMonth))
	return nil
}

// ListLedgerKeys returns every stored ledger key.
func (r *SQLiteRepository) ListLedgerKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := r.loadStringsNoArg(ctx, `SELECT ledger_key FROM ledgers ORDER BY ledger_key`, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *SQLiteRepository) loadStringsNoArg(ctx context.Context, query string, dst *[]string) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		*dst = append(*dst, s)
	}
	return rows.Err()
}

// Revision returns how many times the ledger under key has been saved.
func (r *SQLiteRepository) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := r.db.QueryRowContext(ctx, `SELECT revision FROM ledgers WHERE ledger_key = ?`, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}
