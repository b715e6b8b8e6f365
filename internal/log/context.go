package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// IntoContext returns a context carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or one around slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// StructuredLogger emits the service events with a fixed field layout.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogCommit records a saved ledger mutation.
func (sl *StructuredLogger) LogCommit(ctx context.Context, ledgerKey string, revision int64, transactions int) {
	fields := NewFields().
		WithLedger(ledgerKey).
		WithOperation(OpCommit).
		With(FieldRevision, revision).
		With(FieldTransactions, transactions)
	sl.logger.InfoContext(ctx, "Ledger committed", fields.ToSlice()...)
}

// LogAlertFired records one notification request produced by evaluation.
func (sl *StructuredLogger) LogAlertFired(ctx context.Context, ledgerKey, month, identifier string) {
	fields := NewFields().
		WithLedger(ledgerKey).
		WithMonth(month).
		WithOperation(OpEvaluate).
		With(FieldIdentifier, identifier)
	sl.logger.InfoContext(ctx, "Budget alert fired", fields.ToSlice()...)
}

// LogImport records the outcome of a CSV or backup merge.
func (sl *StructuredLogger) LogImport(ctx context.Context, ledgerKey, op string, added, skipped, duplicates int, digest string) {
	fields := NewFields().
		WithLedger(ledgerKey).
		WithOperation(op).
		WithImport(added, skipped, duplicates, digest)
	sl.logger.InfoContext(ctx, "Transactions merged", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation, errorType string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithErrorType(errorType)
	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
