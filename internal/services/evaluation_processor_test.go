package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetintel/internal/core"
)

func TestSweepFiresOnceThenStaysQuiet(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestService(t, WithPublisher(&stubPublisher{}))
	require.NoError(t, svc.SetBudget(ctx, "home", march, 10000))
	_, err := svc.AddTransaction(ctx, "home", expense(8500, 2, core.Builtin(core.Groceries)))
	require.NoError(t, err)
	require.Empty(t, notifier.identifiers())

	p := NewEvaluationProcessor(svc, DefaultEvaluationProcessorConfig())
	p.now = func() time.Time { return testNow }

	assert.Equal(t, 1, p.Sweep(ctx))
	assert.Equal(t, []string{"budget-2025-03-overall-t80"}, notifier.identifiers())
	assert.Zero(t, p.Sweep(ctx))
}

func TestSweepIncludesPreviousMonth(t *testing.T) {
	ctx := context.Background()
	svc, notifier := newTestService(t, WithPublisher(&stubPublisher{}))
	require.NoError(t, svc.SetBudget(ctx, "home", "2025-02", 1000))
	_, err := svc.AddTransaction(ctx, "home", core.NewTransaction(1200,
		time.Date(2025, time.February, 27, 9, 0, 0, 0, time.UTC), core.Builtin(core.Bills), "", core.Card, core.Expense))
	require.NoError(t, err)

	p := NewEvaluationProcessor(svc, EvaluationProcessorConfig{IncludePreviousMonth: true})
	p.now = func() time.Time { return testNow }

	assert.Equal(t, 1, p.Sweep(ctx))
	assert.Equal(t, []string{"budget-2025-02-overall-over"}, notifier.identifiers())
}

type failingEvaluator struct {
	calls int
}

func (f *failingEvaluator) ListLedgers(context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

func (f *failingEvaluator) EvaluateAlerts(context.Context, string, ...core.MonthKey) ([]core.NotificationRequest, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestSweepContinuesPastErrors(t *testing.T) {
	ev := &failingEvaluator{}
	p := NewEvaluationProcessor(ev, EvaluationProcessorConfig{})
	assert.Zero(t, p.Sweep(context.Background()))
	assert.Equal(t, 2, ev.calls)
}

func TestProcessorStartStop(t *testing.T) {
	ev := &failingEvaluator{}
	p := NewEvaluationProcessor(ev, EvaluationProcessorConfig{Interval: time.Hour})
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx))
}
