// Package analytics computes month-scoped summaries and breakdowns from a
// ledger snapshot. Every function is pure and safe for concurrent use on a
// snapshot that is not being mutated.
package analytics

import (
	"sort"
	"time"

	"budgetintel/internal/core"
)

// ElapsedDays is the number of days of m that count as observed at now: the
// current day-of-month for the running month, the full length otherwise.
// The result is never below 1 for a valid month.
func ElapsedDays(m core.MonthKey, now time.Time) int {
	days := m.Days()
	if days == 0 {
		return 1
	}
	if core.MonthOf(now) == m {
		return max(1, min(now.Day(), days))
	}
	return days
}

// Summarize computes the month headline.
func Summarize(l core.Ledger, m core.MonthKey, now time.Time) core.MonthSummary {
	budget := l.Budget(m)
	spent := l.Spent(m)

	s := core.MonthSummary{
		Month:      m,
		Budget:     core.Money{Cents: budget},
		TotalSpent: core.Money{Cents: spent},
		Income:     core.Money{Cents: l.Income(m)},
		Remaining:  core.Money{Cents: l.Remaining(m)},
		DailyAvg:   float64(spent) / float64(ElapsedDays(m, now)),
	}
	if budget > 0 {
		s.SpentRatio = float64(spent) / float64(budget)
	}
	return s
}

// CategoryBreakdown sums raw amounts per category, income and expense alike,
// sorted by total descending. Ties are broken by key for a stable order.
func CategoryBreakdown(l core.Ledger, m core.MonthKey) []core.CategoryRow {
	rows := map[string]*core.CategoryRow{}
	for _, t := range l.Transactions {
		if !m.Contains(t.Date) {
			continue
		}
		key := t.Category.Key()
		r, ok := rows[key]
		if !ok {
			r = &core.CategoryRow{Category: t.Category}
			rows[key] = r
		}
		r.Total.Cents += t.Amount.Cents
		r.Count++
	}
	return sortedRows(rows)
}

// ExpenseByCategory is CategoryBreakdown restricted to expenses.
func ExpenseByCategory(l core.Ledger, m core.MonthKey) []core.CategoryRow {
	rows := map[string]*core.CategoryRow{}
	for _, t := range l.Transactions {
		if t.Type != core.Expense || !m.Contains(t.Date) {
			continue
		}
		key := t.Category.Key()
		r, ok := rows[key]
		if !ok {
			r = &core.CategoryRow{Category: t.Category}
			rows[key] = r
		}
		r.Total.Cents += t.Amount.Cents
		r.Count++
	}
	return sortedRows(rows)
}

func sortedRows(rows map[string]*core.CategoryRow) []core.CategoryRow {
	out := make([]core.CategoryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category.Key() < out[j].Category.Key()
	})
	return out
}

// PaymentBreakdown reports expense totals and shares per payment method.
// Shares sum to 1 across the methods present.
func PaymentBreakdown(l core.Ledger, m core.MonthKey) []core.PaymentRow {
	totals := map[core.PaymentMethod]int64{}
	var all int64
	for _, t := range l.Transactions {
		if t.Type != core.Expense || !m.Contains(t.Date) {
			continue
		}
		totals[t.PaymentMethod] += t.Amount.Cents
		all += t.Amount.Cents
	}
	out := make([]core.PaymentRow, 0, len(totals))
	for method, total := range totals {
		row := core.PaymentRow{Method: method, Total: core.Money{Cents: total}}
		if all > 0 {
			row.Share = float64(total) / float64(all)
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// DailySpendPoints has one point per day with at least one expense, by day
// ascending. Days without expenses are omitted.
func DailySpendPoints(l core.Ledger, m core.MonthKey) []core.DayPoint {
	byDay := map[int]int64{}
	for _, t := range l.Transactions {
		if t.Type == core.Expense && m.Contains(t.Date) {
			byDay[t.Date.Day()] += t.Amount.Cents
		}
	}
	out := make([]core.DayPoint, 0, len(byDay))
	for d, amount := range byDay {
		out = append(out, core.DayPoint{Day: d, Amount: core.Money{Cents: amount}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// DailyExpenseTotals returns expense totals for days 1..elapsed with explicit
// zeros for days without expenses.
func DailyExpenseTotals(l core.Ledger, m core.MonthKey, elapsed int) []int64 {
	if elapsed < 1 {
		return nil
	}
	out := make([]int64, elapsed)
	for _, t := range l.Transactions {
		if t.Type != core.Expense || !m.Contains(t.Date) {
			continue
		}
		if d := t.Date.Day(); d <= elapsed {
			out[d-1] += t.Amount.Cents
		}
	}
	return out
}

// Export bundles the month's value objects for an export encoder.
func Export(l core.Ledger, m core.MonthKey, now time.Time) core.MonthExport {
	return core.MonthExport{
		Summary:      Summarize(l, m, now),
		Categories:   CategoryBreakdown(l, m),
		Payments:     PaymentBreakdown(l, m),
		Days:         DailySpendPoints(l, m),
		Transactions: l.TransactionsIn(m),
	}
}
