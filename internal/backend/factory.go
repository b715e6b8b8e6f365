package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetintel/internal/amqp"
	"budgetintel/internal/cache"
	blog "budgetintel/internal/log"
	"budgetintel/internal/services"
	gsheet "budgetintel/internal/sheets/google"
	"budgetintel/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *blog.Logger
}

func NewFactory(logger *blog.Logger) Factory {
	if logger == nil {
		logger = blog.New(blog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(blog.ComponentBackend)}
}

// CreateBackend opens the repository and attaches the optional broker,
// spreadsheet and report cache. A broker or spreadsheet that cannot be
// reached is logged and left out rather than failing startup.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.openRepository(config)
	if err != nil {
		return nil, err
	}

	size, ttl := config.ReportCacheSize, config.ReportCacheTTL
	if size < 1 {
		size = 64
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	reports := cache.NewLRUCache[services.Report](size, ttl)
	caches := cache.NewManager()
	caches.Register(reports)
	caches.StartCleanup(ttl)

	opts := []services.Option{
		services.WithLogger(f.logger),
		services.WithReportCache(reports),
		services.WithNotifier(services.LogNotifier{}),
	}

	var broker *amqp.Client
	if config.AMQPURL != "" {
		broker, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPEventsQueue, config.AMQPNotificationsQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, evaluating alerts inline", "error", err)
			broker = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"events_queue", config.AMQPEventsQueue,
				"notifications_queue", config.AMQPNotificationsQueue)
			opts = append(opts, services.WithPublisher(broker), services.WithNotifier(broker))
		}
	}

	if config.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets client, export disabled", "error", err)
		} else {
			opts = append(opts, services.WithExporter(sheetsClient), services.WithRowSource(sheetsClient))
		}
	}

	svc := services.NewBudgetService(repo, opts...)

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", broker != nil,
		"sheets_enabled", config.GoogleSpreadsheetID != "")

	return &Result{
		Service: svc,
		Broker:  broker,
		Cleanup: func() error {
			caches.Stop()
			var errs []error
			if broker != nil {
				errs = append(errs, broker.Close())
			}
			errs = append(errs, svc.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) openRepository(config Config) (services.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite repository", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory repository, ledgers are lost on exit")
		return storage.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
