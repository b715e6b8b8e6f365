package services

import (
	"context"
	"log/slog"

	"budgetintel/internal/core"
)

// LogNotifier delivers notifications by logging them. It backs the CLI and
// tests when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Deliver(ctx context.Context, ledgerKey string, req core.NotificationRequest) error {
	attrs := []any{
		"ledger_key", ledgerKey,
		"identifier", req.Identifier,
		"title", req.Title,
		"body", req.Body,
	}
	if !req.DeliverAt.Immediate {
		attrs = append(attrs, "deliver_at", req.DeliverAt.At)
	}
	slog.InfoContext(ctx, "Notification requested", attrs...)
	return nil
}
