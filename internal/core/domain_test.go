package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func expense(cents int64, at time.Time, cat Category) Transaction {
	return NewTransaction(cents, at, cat, "", Card, Expense)
}

func income(cents int64, at time.Time) Transaction {
	return NewTransaction(cents, at, Builtin(Other), "", Card, Income)
}

func TestTransactionValidate(t *testing.T) {
	good := expense(100, day(2025, 1, 1), Builtin(Groceries))
	require.NoError(t, good.Validate())

	bads := map[string]func(tx *Transaction){
		"zero date":    func(tx *Transaction) { tx.Date = time.Time{} },
		"zero amount":  func(tx *Transaction) { tx.Amount = Money{} },
		"unknown tag":  func(tx *Transaction) { tx.Category = Builtin("pets") },
		"blank custom": func(tx *Transaction) { tx.Category = Custom("  ") },
		"bad method":   func(tx *Transaction) { tx.PaymentMethod = "cheque" },
		"bad type":     func(tx *Transaction) { tx.Type = "transfer" },
	}
	for name, mutate := range bads {
		t.Run(name, func(t *testing.T) {
			tx := good
			mutate(&tx)
			assert.Error(t, tx.Validate())
		})
	}
}

func TestCategoryKeys(t *testing.T) {
	assert.Equal(t, "dining", Builtin(Dining).Key())
	assert.Equal(t, "custom:Pets", Custom("Pets").Key())
	assert.Equal(t, "Pets", Custom("Pets").DisplayName())
	assert.Equal(t, "Groceries", Builtin(Groceries).DisplayName())

	for _, key := range []string{"rent", "custom:Pets", "custom:a b"} {
		c, err := ParseCategoryKey(key)
		require.NoError(t, err)
		assert.Equal(t, key, c.Key())
	}

	_, err := ParseCategoryKey("pets")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	_, err = ParseCategoryKey("custom:")
	assert.ErrorIs(t, err, ErrEmptyCategoryName)

	tag, ok := LookupBuiltin(" Transport ")
	require.True(t, ok)
	assert.Equal(t, Transport, tag)
}

func TestMonthKey(t *testing.T) {
	m, err := ParseMonthKey("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 29, m.Days())
	assert.Equal(t, MonthKey("2024-03"), m.Next())
	assert.Equal(t, MonthKey("2024-01"), m.Prev())
	assert.Equal(t, MonthKey("2023-12"), MonthKey("2024-01").Prev())
	assert.True(t, m.Contains(day(2024, 2, 29)))
	assert.False(t, m.Contains(day(2024, 3, 1)))
	assert.True(t, MonthKey("2023-12").Before(m))

	_, err = ParseMonthKey("2024-13")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}

func TestLedgerAccessors(t *testing.T) {
	jan := MonthKey("2025-01")
	l := NewLedger()
	require.NoError(t, l.SetBudget(jan, 100000))
	require.NoError(t, l.Add(expense(30000, day(2025, 1, 3), Builtin(Groceries))))
	require.NoError(t, l.Add(expense(20000, day(2025, 1, 9), Builtin(Dining))))
	require.NoError(t, l.Add(income(15000, day(2025, 1, 15))))
	require.NoError(t, l.Add(expense(999, day(2025, 2, 1), Builtin(Dining))))

	assert.Equal(t, int64(100000), l.Budget(jan))
	assert.Equal(t, int64(50000), l.Spent(jan))
	assert.Equal(t, int64(15000), l.Income(jan))
	assert.Equal(t, int64(65000), l.Remaining(jan), "income offsets the budget")
	assert.Equal(t, int64(20000), l.SpentInCategory(Builtin(Dining), jan))
	assert.Equal(t, []MonthKey{"2025-01", "2025-02"}, l.Months())
}

func TestLedgerSaved(t *testing.T) {
	dec, jan, feb := MonthKey("2024-12"), MonthKey("2025-01"), MonthKey("2025-02")
	now := day(2025, 1, 20)

	l := NewLedger()
	require.NoError(t, l.SetBudget(dec, 50000))
	require.NoError(t, l.SetBudget(jan, 50000))
	require.NoError(t, l.SetBudget(feb, 50000))
	require.NoError(t, l.Add(expense(20000, day(2024, 12, 5), Builtin(Rent))))
	require.NoError(t, l.Add(income(5000, day(2024, 12, 6))))
	require.NoError(t, l.Add(expense(1000, day(2025, 1, 5), Builtin(Rent))))

	assert.Equal(t, int64(35000), l.Saved(dec, now))
	assert.Zero(t, l.Saved(jan, now), "current month never reports savings")
	assert.Zero(t, l.Saved(feb, now), "future month never reports savings")
	assert.Equal(t, int64(35000), l.TotalSaved(now))

	require.NoError(t, l.Add(expense(90000, day(2024, 12, 7), Builtin(Rent))))
	assert.Zero(t, l.Saved(dec, now), "overspent month clamps at zero")
}

func TestLedgerDeleteRecordsTombstone(t *testing.T) {
	l := NewLedger()
	tx := expense(500, day(2025, 1, 1), Builtin(Bills))
	require.NoError(t, l.Add(tx))

	require.NoError(t, l.Delete(tx.ID))
	assert.Empty(t, l.Transactions)
	assert.Equal(t, []string{tx.ID.String()}, l.DeletedTransactionIDs)
	assert.ErrorIs(t, l.Delete(uuid.New()), ErrTransactionNotFound)
}

func TestLedgerUpdateBumpsLastModified(t *testing.T) {
	l := NewLedger()
	tx := expense(500, day(2025, 1, 1), Builtin(Bills))
	require.NoError(t, l.Add(tx))

	edited := tx
	edited.Amount = Money{Cents: 700}
	now := day(2025, 1, 2)
	require.NoError(t, l.Update(edited, now))

	got, ok := l.Find(tx.ID)
	require.True(t, ok)
	assert.Equal(t, int64(700), got.Amount.Cents)
	assert.Equal(t, now, got.LastModified)
}

func TestLedgerClearMonthData(t *testing.T) {
	jan, feb := MonthKey("2025-01"), MonthKey("2025-02")
	l := NewLedger()
	require.NoError(t, l.SetBudget(jan, 1000))
	require.NoError(t, l.SetBudget(feb, 1000))
	require.NoError(t, l.SetCategoryBudget(Builtin(Dining), jan, 300))
	require.NoError(t, l.Add(expense(100, day(2025, 1, 2), Builtin(Dining))))
	require.NoError(t, l.Add(expense(100, day(2025, 2, 2), Builtin(Dining))))

	l.ClearMonthData(jan)

	assert.Len(t, l.Transactions, 1)
	assert.Zero(t, l.Budget(jan))
	assert.Equal(t, int64(1000), l.Budget(feb))
	assert.Zero(t, l.TotalCategoryBudgets(jan))
}

func TestCategoryBudgets(t *testing.T) {
	jan := MonthKey("2025-01")
	l := NewLedger()
	require.NoError(t, l.SetCategoryBudget(Builtin(Dining), jan, 300))
	require.NoError(t, l.SetCategoryBudget(Builtin(Groceries), jan, 700))
	assert.Equal(t, int64(1000), l.TotalCategoryBudgets(jan))

	require.NoError(t, l.SetCategoryBudget(Builtin(Dining), jan, 0))
	assert.Zero(t, l.CategoryBudget(Builtin(Dining), jan))
	assert.Equal(t, int64(700), l.TotalCategoryBudgets(jan))

	assert.ErrorIs(t, l.SetCategoryBudget(Builtin(Dining), jan, -1), ErrNegativeBudget)
	assert.ErrorIs(t, l.SetBudget(jan, -1), ErrNegativeBudget)
}

func TestAddCustomCategory(t *testing.T) {
	l := NewLedger()
	_, err := l.AddCustomCategory("pets")
	require.NoError(t, err)
	_, err = l.AddCustomCategory("Books")
	require.NoError(t, err)
	c, err := l.AddCustomCategory("PETS")
	require.NoError(t, err)

	assert.Equal(t, "custom:pets", c.Key(), "existing spelling wins")
	assert.Equal(t, []string{"Books", "pets"}, l.CustomCategoryNames)

	_, err = l.AddCustomCategory("   ")
	assert.ErrorIs(t, err, ErrEmptyCategoryName)
}

func TestDeleteCustomCategoryRemapsToOther(t *testing.T) {
	jan, feb := MonthKey("2025-01"), MonthKey("2025-02")
	l := NewLedger()
	pets, err := l.AddCustomCategory("Pets")
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, l.Add(expense(int64(i*100), day(2025, 1, i), pets)))
	}
	require.NoError(t, l.Add(expense(100, day(2025, 1, 4), Builtin(Dining))))
	require.NoError(t, l.SetCategoryBudget(pets, jan, 5000))
	require.NoError(t, l.SetCategoryBudget(pets, feb, 5000))
	require.NoError(t, l.SetCategoryBudget(Builtin(Dining), feb, 100))

	moved := l.DeleteCustomCategory("pets")

	assert.Equal(t, 3, moved)
	assert.Empty(t, l.CustomCategoryNames)
	others := 0
	for _, tx := range l.Transactions {
		if tx.Category.Key() == "other" {
			others++
		}
	}
	assert.Equal(t, 3, others)
	for m, caps := range l.CategoryBudgetsByMonth {
		_, ok := caps["custom:Pets"]
		assert.False(t, ok, "residual cap in %s", m)
	}
	assert.Equal(t, int64(100), l.CategoryBudget(Builtin(Dining), feb))
}

func TestCloneIsDeep(t *testing.T) {
	jan := MonthKey("2025-01")
	l := NewLedger()
	require.NoError(t, l.SetCategoryBudget(Builtin(Dining), jan, 300))
	cp := l.Clone()
	require.NoError(t, cp.SetCategoryBudget(Builtin(Dining), jan, 900))
	assert.Equal(t, int64(300), l.CategoryBudget(Builtin(Dining), jan))
}
