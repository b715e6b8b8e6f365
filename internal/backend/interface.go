package backend

import (
	"context"
	"time"

	"budgetintel/internal/amqp"
	"budgetintel/internal/services"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// Result is a fully wired budget service plus the broker client, which is nil
// when AMQP is disabled or unreachable.
type Result struct {
	Service *services.BudgetService
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds everything needed to assemble a backend.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP is optional for every backend type.
	AMQPURL                string
	AMQPExchange           string
	AMQPEventsQueue        string
	AMQPNotificationsQueue string

	// Google Sheets export is optional too.
	GoogleSpreadsheetID string
	GoogleSheetName     string

	ReportCacheSize int
	ReportCacheTTL  time.Duration
}

// BackendType selects where ledgers are stored.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
