package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: component, Output: buf})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentWorker)
	logger.Info("hello", "k", 1)

	rec := lastRecord(t, &buf)
	assert.Equal(t, ComponentWorker, rec[FieldComponent])
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, ComponentWorker, logger.Component())
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, ComponentService)
	ctx := IntoContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, ComponentService))
	ctx := context.Background()

	sl.LogImport(ctx, "home", OpImport, 3, 1, 2, "abc")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "home", rec[FieldLedgerKey])
	assert.Equal(t, float64(3), rec[FieldAdded])
	assert.Equal(t, float64(2), rec[FieldDuplicates])
	assert.Equal(t, "abc", rec[FieldDigest])

	sl.LogAlertFired(ctx, "home", "2025-03", "budget-2025-03-overall-t70")
	rec = lastRecord(t, &buf)
	assert.Equal(t, "budget-2025-03-overall-t70", rec[FieldIdentifier])

	sl.LogError(ctx, "save failed", errors.New("disk full"), OpCommit, ErrorTypeDatabase, nil)
	rec = lastRecord(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "disk full", rec[FieldError])
	assert.Equal(t, ErrorTypeDatabase, rec[FieldErrorType])
}
