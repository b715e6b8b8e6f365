package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetintel/internal/amqp"
	"budgetintel/internal/core"
	"budgetintel/internal/services"
)

type fakeService struct {
	ledgers   []string
	evalErr   error
	exportErr error
	evaluated map[string][]core.MonthKey
	exported  []core.MonthKey
}

func newFakeService() *fakeService {
	return &fakeService{evaluated: map[string][]core.MonthKey{}}
}

func (f *fakeService) ListLedgers(context.Context) ([]string, error) { return f.ledgers, nil }

func (f *fakeService) EvaluateAlerts(_ context.Context, key string, months ...core.MonthKey) ([]core.NotificationRequest, error) {
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	f.evaluated[key] = append(f.evaluated[key], months...)
	return []core.NotificationRequest{{Identifier: "budget-" + string(months[0]) + "-overall-t70"}}, nil
}

func (f *fakeService) Export(_ context.Context, _ string, m core.MonthKey) (string, error) {
	if f.exportErr != nil {
		return "", f.exportErr
	}
	f.exported = append(f.exported, m)
	return "ref", nil
}

func commitMsg(months ...core.MonthKey) *amqp.LedgerCommittedMessage {
	return amqp.NewLedgerCommittedMessage("home", months, 3)
}

func TestHandleLedgerCommittedEvaluatesMonths(t *testing.T) {
	svc := newFakeService()
	w := NewAlertWorker(svc, false)

	require.NoError(t, w.HandleLedgerCommitted(context.Background(), commitMsg("2025-02", "2025-03")))
	assert.Equal(t, []core.MonthKey{"2025-02", "2025-03"}, svc.evaluated["home"])
	assert.Empty(t, svc.exported)
}

func TestHandleLedgerCommittedExports(t *testing.T) {
	svc := newFakeService()
	w := NewAlertWorker(svc, true)

	require.NoError(t, w.HandleLedgerCommitted(context.Background(), commitMsg("2025-03")))
	assert.Equal(t, []core.MonthKey{"2025-03"}, svc.exported)

	svc.exportErr = services.ErrExportDisabled
	assert.NoError(t, w.HandleLedgerCommitted(context.Background(), commitMsg("2025-03")))

	svc.exportErr = errors.New("quota exceeded")
	assert.NoError(t, w.HandleLedgerCommitted(context.Background(), commitMsg("2025-03")))
}

func TestHandleLedgerCommittedMissingLedgerIsAcked(t *testing.T) {
	svc := newFakeService()
	svc.evalErr = services.ErrLedgerNotFound
	w := NewAlertWorker(svc, false)
	assert.NoError(t, w.HandleLedgerCommitted(context.Background(), commitMsg("2025-03")))
}

func TestHandleLedgerCommittedRequeuesOnFailure(t *testing.T) {
	svc := newFakeService()
	svc.evalErr = errors.New("database is locked")
	w := NewAlertWorker(svc, false)
	assert.Error(t, w.HandleLedgerCommitted(context.Background(), commitMsg("2025-03")))
}

func TestStartupCheck(t *testing.T) {
	svc := newFakeService()
	svc.ledgers = []string{"home", "work"}
	w := NewAlertWorker(svc, false)

	now := core.MonthOf(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, w.StartupCheck(context.Background(), now))
	assert.Equal(t, []core.MonthKey{"2025-03"}, svc.evaluated["home"])
	assert.Equal(t, []core.MonthKey{"2025-03"}, svc.evaluated["work"])
}
