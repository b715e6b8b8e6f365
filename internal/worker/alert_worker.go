package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetintel/internal/amqp"
	"budgetintel/internal/core"
	"budgetintel/internal/services"
)

// LedgerService is what the worker needs from the budget service.
type LedgerService interface {
	ListLedgers(ctx context.Context) ([]string, error)
	EvaluateAlerts(ctx context.Context, key string, months ...core.MonthKey) ([]core.NotificationRequest, error)
	Export(ctx context.Context, key string, m core.MonthKey) (string, error)
}

// AlertWorker consumes ledger commit events: it runs the alert machines for
// the committed months and, when enabled, refreshes their spreadsheet report.
type AlertWorker struct {
	svc          LedgerService
	exportOnSync bool
}

func NewAlertWorker(svc LedgerService, exportOnSync bool) *AlertWorker {
	return &AlertWorker{svc: svc, exportOnSync: exportOnSync}
}

// HandleLedgerCommitted processes one commit event. A ledger that no longer
// exists is acknowledged and dropped.
func (w *AlertWorker) HandleLedgerCommitted(ctx context.Context, msg *amqp.LedgerCommittedMessage) error {
	slog.InfoContext(ctx, "Processing ledger commit",
		"ledger_key", msg.LedgerKey,
		"revision", msg.Revision,
		"months", msg.Months)

	months := msg.MonthKeys()
	fired, err := w.svc.EvaluateAlerts(ctx, msg.LedgerKey, months...)
	if errors.Is(err, services.ErrLedgerNotFound) {
		slog.WarnContext(ctx, "Ledger gone, dropping commit event", "ledger_key", msg.LedgerKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("evaluate alerts: %w", err)
	}
	if len(fired) > 0 {
		slog.InfoContext(ctx, "Alerts fired", "ledger_key", msg.LedgerKey, "count", len(fired))
	}

	if !w.exportOnSync {
		return nil
	}
	for _, m := range months {
		ref, err := w.svc.Export(ctx, msg.LedgerKey, m)
		if errors.Is(err, services.ErrExportDisabled) {
			return nil
		}
		if err != nil {
			// Report refresh is best effort; alerts were already delivered.
			slog.ErrorContext(ctx, "Failed to refresh report", "ledger_key", msg.LedgerKey, "month", m, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Report refreshed", "ledger_key", msg.LedgerKey, "month", m, "ref", ref)
	}
	return nil
}

// StartupCheck evaluates the current month of every ledger once, recovering
// from commit events lost while the worker was down.
func (w *AlertWorker) StartupCheck(ctx context.Context, now core.MonthKey) error {
	keys, err := w.svc.ListLedgers(ctx)
	if err != nil {
		return fmt.Errorf("list ledgers for startup check: %w", err)
	}
	if len(keys) == 0 {
		slog.InfoContext(ctx, "No ledgers found on startup")
		return nil
	}

	fired, failed := 0, 0
	for _, key := range keys {
		reqs, err := w.svc.EvaluateAlerts(ctx, key, now)
		fired += len(reqs)
		if err != nil {
			slog.ErrorContext(ctx, "Startup evaluation failed", "ledger_key", key, "error", err)
			failed++
		}
	}

	slog.InfoContext(ctx, "Startup check completed",
		"ledgers", len(keys),
		"fired", fired,
		"errors", failed)
	return nil
}
