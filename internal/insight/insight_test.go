package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetintel/internal/analytics"
	"budgetintel/internal/core"
	"budgetintel/internal/forecast"
)

var now = time.Date(2025, time.April, 10, 21, 0, 0, 0, time.UTC)

const april = core.MonthKey("2025-04")

func spend(t *testing.T, l *core.Ledger, d int, cents int64, cat core.Category) {
	t.Helper()
	when := time.Date(2025, time.April, d, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Add(core.NewTransaction(cents, when, cat, "", core.Card, core.Expense)))
}

func inputFor(l core.Ledger) Input {
	return Input{
		Month:    april,
		Ledger:   l,
		Summary:  analytics.Summarize(l, april, now),
		Forecast: forecast.Project(l, april, now),
	}
}

func titles(advisories []core.Advisory) []string {
	out := make([]string, len(advisories))
	for i, a := range advisories {
		out[i] = a.Title
	}
	return out
}

func TestClassifyEmptyMonth(t *testing.T) {
	l := core.NewLedger()
	require.NoError(t, l.SetBudget(april, 100000))
	in := inputFor(l)

	assert.Empty(t, Classify(in))
	assert.Empty(t, QuickActions(in))
	assert.Equal(t, core.SeverityOK, Pressure(nil))
}

func TestClassifyCapsOnSparseMonth(t *testing.T) {
	l := core.NewLedger()
	require.NoError(t, l.SetBudget(april, 100000))
	require.NoError(t, l.SetCategoryBudget(core.Builtin(core.Dining), april, 10000))
	require.NoError(t, l.SetCategoryBudget(core.Builtin(core.Groceries), april, 20000))
	spend(t, &l, 2, 12000, core.Builtin(core.Dining))
	spend(t, &l, 3, 18500, core.Builtin(core.Groceries))
	in := inputFor(l)

	got := Classify(in)

	assert.Equal(t, []string{
		"Over budget in Dining",
		"Near the cap for Groceries",
		"Discretionary spending is high",
	}, titles(got))
	assert.Equal(t, core.SeverityRisk, got[0].Level)
	assert.Contains(t, got[0].Detail, "20.00 over")
	assert.Equal(t, core.SeverityRisk, Pressure(got))

	assert.Equal(t, []string{
		"Pause spending on Dining",
		"Slow down on Groceries",
		"Set a cap for dining and other",
	}, QuickActions(in))
}

func TestClassifyForecastAndConcentration(t *testing.T) {
	l := core.NewLedger()
	require.NoError(t, l.SetBudget(april, 100000))
	spend(t, &l, 1, 50000, core.Builtin(core.Shopping))
	for _, d := range []int{2, 4, 6, 8} {
		spend(t, &l, d, 7500, core.Builtin(core.Shopping))
	}
	in := inputFor(l)

	got := Classify(in)

	require.Len(t, got, 2)
	assert.Equal(t, "Projected to exceed budget", got[0].Title)
	assert.Equal(t, core.SeverityRisk, got[0].Level)
	assert.Equal(t, "Spending concentrated in Shopping", got[1].Title)
	assert.Equal(t, []string{
		"Keep daily spending under 10.00",
		"Review spending in Shopping",
	}, QuickActions(in))
}

func TestClassifySmallExpensesAndStableOrder(t *testing.T) {
	l := core.NewLedger()
	require.NoError(t, l.SetBudget(april, 100000))
	for d := 1; d <= 8; d++ {
		spend(t, &l, d, 1000, core.Builtin(core.Groceries))
	}

	got := Classify(inputFor(l))

	assert.Equal(t, []string{
		"Spending concentrated in Groceries",
		"Small expenses add up",
		"Good control",
	}, titles(got))
	assert.Equal(t, "8 small expenses total 80.00 this month.", got[1].Detail)
	assert.Equal(t, core.SeverityOK, got[2].Level)
}

func TestClassifyOverBudget(t *testing.T) {
	l := core.NewLedger()
	require.NoError(t, l.SetBudget(april, 1000))
	spend(t, &l, 2, 5000, core.Builtin(core.Rent))
	in := inputFor(l)

	got := Classify(in)

	require.Len(t, got, 1)
	assert.Equal(t, "Over budget", got[0].Title)
	assert.Equal(t, core.SeverityRisk, got[0].Level)
	assert.Equal(t, []string{"Avoid non-essential purchases this month"}, QuickActions(in))
}

func TestQuickActionsCappedAtThree(t *testing.T) {
	l := core.NewLedger()
	require.NoError(t, l.SetBudget(april, 1000))
	for _, tag := range []core.BuiltinCategory{core.Dining, core.Health, core.Rent, core.Transport} {
		require.NoError(t, l.SetCategoryBudget(core.Builtin(tag), april, 100))
		spend(t, &l, 3, 500, core.Builtin(tag))
	}

	actions := QuickActions(inputFor(l))

	assert.Equal(t, []string{
		"Pause spending on Dining",
		"Pause spending on Health",
		"Pause spending on Rent",
	}, actions)
}
