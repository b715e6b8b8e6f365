package core

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ledger is the root value holding every transaction, budget and custom
// category of one user. Accessors never mutate; callers that share a ledger
// across goroutines pass a Clone.
type Ledger struct {
	SelectedMonth          MonthKey
	BudgetsByMonth         map[MonthKey]int64
	CategoryBudgetsByMonth map[MonthKey]map[string]int64
	Transactions           []Transaction
	CustomCategoryNames    []string
	// DeletedTransactionIDs only feeds replica merges; it is never consulted for display.
	DeletedTransactionIDs []string
}

func NewLedger() Ledger {
	return Ledger{
		BudgetsByMonth:         map[MonthKey]int64{},
		CategoryBudgetsByMonth: map[MonthKey]map[string]int64{},
	}
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := Ledger{
		SelectedMonth:          l.SelectedMonth,
		BudgetsByMonth:         make(map[MonthKey]int64, len(l.BudgetsByMonth)),
		CategoryBudgetsByMonth: make(map[MonthKey]map[string]int64, len(l.CategoryBudgetsByMonth)),
		Transactions:           append([]Transaction(nil), l.Transactions...),
		CustomCategoryNames:    append([]string(nil), l.CustomCategoryNames...),
		DeletedTransactionIDs:  append([]string(nil), l.DeletedTransactionIDs...),
	}
	for m, v := range l.BudgetsByMonth {
		out.BudgetsByMonth[m] = v
	}
	for m, caps := range l.CategoryBudgetsByMonth {
		cp := make(map[string]int64, len(caps))
		for k, v := range caps {
			cp[k] = v
		}
		out.CategoryBudgetsByMonth[m] = cp
	}
	return out
}

func (l Ledger) Budget(m MonthKey) int64 {
	return l.BudgetsByMonth[m]
}

func (l Ledger) CategoryBudget(c Category, m MonthKey) int64 {
	return l.CategoryBudgetsByMonth[m][c.Key()]
}

// TotalCategoryBudgets sums every non-zero cap of the month.
func (l Ledger) TotalCategoryBudgets(m MonthKey) int64 {
	var total int64
	for _, v := range l.CategoryBudgetsByMonth[m] {
		if v > 0 {
			total += v
		}
	}
	return total
}

// CategoryCaps returns the non-zero caps of the month keyed by category key.
func (l Ledger) CategoryCaps(m MonthKey) map[string]int64 {
	out := map[string]int64{}
	for k, v := range l.CategoryBudgetsByMonth[m] {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}

func (l Ledger) Spent(m MonthKey) int64 {
	return l.sum(m, Expense)
}

func (l Ledger) Income(m MonthKey) int64 {
	return l.sum(m, Income)
}

func (l Ledger) sum(m MonthKey, typ TransactionType) int64 {
	var total int64
	for _, t := range l.Transactions {
		if t.Type == typ && m.Contains(t.Date) {
			total += t.Amount.Cents
		}
	}
	return total
}

// SpentInCategory sums expenses of one category in the month.
func (l Ledger) SpentInCategory(c Category, m MonthKey) int64 {
	key := c.Key()
	var total int64
	for _, t := range l.Transactions {
		if t.Type == Expense && t.Category.Key() == key && m.Contains(t.Date) {
			total += t.Amount.Cents
		}
	}
	return total
}

// Remaining is budget plus income minus spent; income raises the headroom.
func (l Ledger) Remaining(m MonthKey) int64 {
	return l.Budget(m) + l.Income(m) - l.Spent(m)
}

// Saved is the surplus of a closed month. The current month and any future
// month report 0 because they have not produced a final surplus yet.
func (l Ledger) Saved(m MonthKey, now time.Time) int64 {
	if !m.Before(MonthOf(now)) {
		return 0
	}
	return max(0, l.Remaining(m))
}

// TotalSaved sums Saved over every month with a budget entry.
func (l Ledger) TotalSaved(now time.Time) int64 {
	var total int64
	for m := range l.BudgetsByMonth {
		total += l.Saved(m, now)
	}
	return total
}

// TransactionsIn returns the month's transactions in date order.
func (l Ledger) TransactionsIn(m MonthKey) []Transaction {
	var out []Transaction
	for _, t := range l.Transactions {
		if m.Contains(t.Date) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Months returns every month referenced by a budget, a cap or a transaction, ascending.
func (l Ledger) Months() []MonthKey {
	seen := map[MonthKey]bool{}
	for m := range l.BudgetsByMonth {
		seen[m] = true
	}
	for m := range l.CategoryBudgetsByMonth {
		seen[m] = true
	}
	for _, t := range l.Transactions {
		seen[t.Month()] = true
	}
	out := make([]MonthKey, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l Ledger) Find(id uuid.UUID) (Transaction, bool) {
	for _, t := range l.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// HasCustomCategory matches case-insensitively.
func (l Ledger) HasCustomCategory(name string) bool {
	_, ok := l.customIndex(name)
	return ok
}

// ResolveCustom returns the stored spelling of a custom name.
func (l Ledger) ResolveCustom(name string) (string, bool) {
	i, ok := l.customIndex(name)
	if !ok {
		return "", false
	}
	return l.CustomCategoryNames[i], true
}

func (l Ledger) customIndex(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, n := range l.CustomCategoryNames {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return -1, false
}

// Add appends a validated transaction.
func (l *Ledger) Add(t Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.LastModified.IsZero() {
		t.LastModified = t.Date
	}
	l.Transactions = append(l.Transactions, t)
	return nil
}

// Update replaces the transaction with the same ID and bumps LastModified.
func (l *Ledger) Update(t Transaction, now time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for i := range l.Transactions {
		if l.Transactions[i].ID == t.ID {
			t.LastModified = now
			l.Transactions[i] = t
			return nil
		}
	}
	return ErrTransactionNotFound
}

// Delete removes the transaction and records a tombstone.
func (l *Ledger) Delete(id uuid.UUID) error {
	for i, t := range l.Transactions {
		if t.ID == id {
			l.Transactions = append(l.Transactions[:i:i], l.Transactions[i+1:]...)
			l.DeletedTransactionIDs = append(l.DeletedTransactionIDs, id.String())
			return nil
		}
	}
	return ErrTransactionNotFound
}

// ClearMonthData drops the month's transactions, budget and caps.
func (l *Ledger) ClearMonthData(m MonthKey) {
	kept := l.Transactions[:0:0]
	for _, t := range l.Transactions {
		if !m.Contains(t.Date) {
			kept = append(kept, t)
		}
	}
	l.Transactions = kept
	delete(l.BudgetsByMonth, m)
	delete(l.CategoryBudgetsByMonth, m)
}

func (l *Ledger) SetBudget(m MonthKey, cents int64) error {
	if cents < 0 {
		return ErrNegativeBudget
	}
	if !m.Valid() {
		return ErrInvalidMonth
	}
	if l.BudgetsByMonth == nil {
		l.BudgetsByMonth = map[MonthKey]int64{}
	}
	l.BudgetsByMonth[m] = cents
	return nil
}

// SetCategoryBudget stores a cap; 0 removes it.
func (l *Ledger) SetCategoryBudget(c Category, m MonthKey, cents int64) error {
	if cents < 0 {
		return ErrNegativeBudget
	}
	if !m.Valid() {
		return ErrInvalidMonth
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if cents == 0 {
		if caps, ok := l.CategoryBudgetsByMonth[m]; ok {
			delete(caps, c.Key())
			if len(caps) == 0 {
				delete(l.CategoryBudgetsByMonth, m)
			}
		}
		return nil
	}
	if l.CategoryBudgetsByMonth == nil {
		l.CategoryBudgetsByMonth = map[MonthKey]map[string]int64{}
	}
	if l.CategoryBudgetsByMonth[m] == nil {
		l.CategoryBudgetsByMonth[m] = map[string]int64{}
	}
	l.CategoryBudgetsByMonth[m][c.Key()] = cents
	return nil
}

// AddCustomCategory registers name unless a case-insensitive match exists.
// It returns the category as stored.
func (l *Ledger) AddCustomCategory(name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, ErrEmptyCategoryName
	}
	if existing, ok := l.ResolveCustom(name); ok {
		return Custom(existing), nil
	}
	l.CustomCategoryNames = append(l.CustomCategoryNames, name)
	sortFold(l.CustomCategoryNames)
	return Custom(name), nil
}

// DeleteCustomCategory removes the name, remaps its transactions to other
// and strips its caps from every month. It reports how many transactions moved.
func (l *Ledger) DeleteCustomCategory(name string) int {
	i, ok := l.customIndex(name)
	if !ok {
		return 0
	}
	stored := l.CustomCategoryNames[i]
	l.CustomCategoryNames = append(l.CustomCategoryNames[:i:i], l.CustomCategoryNames[i+1:]...)

	key := Custom(stored).Key()
	moved := 0
	for j := range l.Transactions {
		if l.Transactions[j].Category.Key() == key {
			l.Transactions[j].Category = Builtin(Other)
			moved++
		}
	}
	for m, caps := range l.CategoryBudgetsByMonth {
		delete(caps, key)
		if len(caps) == 0 {
			delete(l.CategoryBudgetsByMonth, m)
		}
	}
	return moved
}
