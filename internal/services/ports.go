package services

import (
	"context"

	"budgetintel/internal/alert"
	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
)

// Repository persists ledgers and the per-ledger alert and import state.
// storage.SQLiteRepository and storage.MemoryRepository implement it.
type Repository interface {
	LoadLedger(ctx context.Context, key string) (core.Ledger, error)
	SaveLedger(ctx context.Context, key string, l core.Ledger) error
	ListLedgerKeys(ctx context.Context) ([]string, error)
	Revision(ctx context.Context, key string) (int64, error)
	AlertStates(key string) alert.StateStore
	ImportHistory(key string) dedup.ImportHistory
	Close() error
}

// Notifier hands a notification request to whatever delivers it.
type Notifier interface {
	Deliver(ctx context.Context, ledgerKey string, req core.NotificationRequest) error
}

// EventPublisher announces committed ledgers to out-of-process evaluators.
type EventPublisher interface {
	PublishLedgerCommitted(ctx context.Context, ledgerKey string, months []core.MonthKey, revision int64) error
}
