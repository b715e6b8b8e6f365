package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetintel/internal/core"
)

// LedgerEvaluator is the part of BudgetService the processor drives.
type LedgerEvaluator interface {
	ListLedgers(ctx context.Context) ([]string, error)
	EvaluateAlerts(ctx context.Context, key string, months ...core.MonthKey) ([]core.NotificationRequest, error)
}

type EvaluationProcessorConfig struct {
	// Interval between sweeps over every stored ledger (default: 15m).
	Interval time.Duration
	// IncludePreviousMonth also re-evaluates last month, so spending
	// back-dated after a month change still raises alerts.
	IncludePreviousMonth bool
}

func DefaultEvaluationProcessorConfig() EvaluationProcessorConfig {
	return EvaluationProcessorConfig{Interval: 15 * time.Minute}
}

// EvaluationProcessor periodically re-evaluates alerts for the current month
// of every ledger. Latched alert state makes repeated sweeps silent unless a
// threshold was crossed since the last one.
type EvaluationProcessor struct {
	svc    LedgerEvaluator
	config EvaluationProcessorConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewEvaluationProcessor(svc LedgerEvaluator, config EvaluationProcessorConfig) *EvaluationProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultEvaluationProcessorConfig().Interval
	}
	return &EvaluationProcessor{svc: svc, config: config, now: time.Now}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *EvaluationProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("evaluation processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Evaluation processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (p *EvaluationProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Evaluation processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Evaluation processor stop timed out")
		return ctx.Err()
	}
}

func (p *EvaluationProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *EvaluationProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.Sweep(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep evaluates every ledger once and returns how many notifications fired.
func (p *EvaluationProcessor) Sweep(ctx context.Context) int {
	keys, err := p.svc.ListLedgers(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list ledgers", "error", err)
		return 0
	}

	current := core.MonthOf(p.now())
	months := []core.MonthKey{current}
	if p.config.IncludePreviousMonth {
		months = append(months, current.Prev())
	}

	fired := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			return fired
		}
		reqs, err := p.svc.EvaluateAlerts(ctx, key, months...)
		fired += len(reqs)
		if err != nil {
			slog.ErrorContext(ctx, "Alert evaluation failed", "ledger_key", key, "error", err)
		}
	}
	if fired > 0 {
		slog.InfoContext(ctx, "Evaluation sweep fired alerts", "ledgers", len(keys), "fired", fired)
	}
	return fired
}
