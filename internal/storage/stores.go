package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetintel/internal/alert"
	"budgetintel/internal/dedup"
)

// AlertStates returns the alert latch store of one ledger.
func (r *SQLiteRepository) AlertStates(ledgerKey string) alert.StateStore {
	return &sqliteAlertStore{db: r.db, key: ledgerKey}
}

// ImportHistory returns the import digest history of one ledger.
func (r *SQLiteRepository) ImportHistory(ledgerKey string) dedup.ImportHistory {
	return &sqliteImportHistory{db: r.db, key: ledgerKey}
}

type sqliteAlertStore struct {
	db  *sql.DB
	key string
}

func (s *sqliteAlertStore) Get(ctx context.Context, scope alert.Scope) (alert.State, error) {
	var level string
	var over int
	err := s.db.QueryRowContext(ctx,
		`SELECT level, over_notified FROM alert_states WHERE ledger_key = ? AND scope = ?`,
		s.key, scope.String()).Scan(&level, &over)
	if errors.Is(err, sql.ErrNoRows) {
		return alert.State{Level: alert.LevelNone}, nil
	}
	if err != nil {
		return alert.State{}, fmt.Errorf("query alert state %s: %w", scope, err)
	}
	return alert.State{Level: alert.Level(level), OverNotified: over != 0}, nil
}

func (s *sqliteAlertStore) Set(ctx context.Context, scope alert.Scope, state alert.State) error {
	level := state.Level
	if level == "" {
		level = alert.LevelNone
	}
	over := 0
	if state.OverNotified {
		over = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO alert_states (ledger_key, scope, level, over_notified, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ledger_key, scope) DO UPDATE SET level = excluded.level,
			over_notified = excluded.over_notified, updated_at = excluded.updated_at`,
		s.key, scope.String(), string(level), over, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("store alert state %s: %w", scope, err)
	}
	return nil
}

// Update runs the read-modify-write of one scope in a transaction whose
// first statement is a write. SQLite grants the write lock up front, so a
// second process updating the same store waits instead of interleaving.
func (s *sqliteAlertStore) Update(ctx context.Context, scope alert.Scope, fn func(alert.State) alert.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alert state update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx, `INSERT INTO alert_states (ledger_key, scope, level, over_notified, updated_at)
		VALUES (?, ?, ?, 0, ?) ON CONFLICT(ledger_key, scope) DO NOTHING`,
		s.key, scope.String(), string(alert.LevelNone), now); err != nil {
		return fmt.Errorf("lock alert state %s: %w", scope, err)
	}

	var level string
	var over int
	if err := tx.QueryRowContext(ctx,
		`SELECT level, over_notified FROM alert_states WHERE ledger_key = ? AND scope = ?`,
		s.key, scope.String()).Scan(&level, &over); err != nil {
		return fmt.Errorf("query alert state %s: %w", scope, err)
	}
	prev := alert.State{Level: alert.Level(level), OverNotified: over != 0}

	if next := fn(prev); next != prev {
		if next.Level == "" {
			next.Level = alert.LevelNone
		}
		over = 0
		if next.OverNotified {
			over = 1
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE alert_states SET level = ?, over_notified = ?, updated_at = ? WHERE ledger_key = ? AND scope = ?`,
			string(next.Level), over, now, s.key, scope.String()); err != nil {
			return fmt.Errorf("store alert state %s: %w", scope, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert state %s: %w", scope, err)
	}
	return nil
}

type sqliteImportHistory struct {
	db  *sql.DB
	key string
}

func (h *sqliteImportHistory) Contains(ctx context.Context, digest string) (bool, error) {
	var n int
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_history WHERE ledger_key = ? AND digest = ?`, h.key, digest).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query import history: %w", err)
	}
	return n > 0, nil
}

func (h *sqliteImportHistory) Record(ctx context.Context, digest string, rows int) error {
	_, err := h.db.ExecContext(ctx, `INSERT INTO import_history (ledger_key, digest, row_count, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ledger_key, digest) DO UPDATE SET row_count = excluded.row_count, imported_at = excluded.imported_at`,
		h.key, digest, rows, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return nil
}
