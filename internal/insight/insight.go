// Package insight turns a month summary and forecast into ranked advisories
// and a short list of suggested actions.
package insight

import (
	"fmt"
	"sort"

	"budgetintel/internal/analytics"
	"budgetintel/internal/core"
	"budgetintel/internal/forecast"
)

const (
	minTransactionsForTrends = 5
	concentrationShare       = 0.35
	nearCapRatio             = 0.90
	smallExpenseFloor        = 80000
	smallExpenseDivisor      = 500
	smallExpenseCount        = 8
	discretionaryShare       = 0.22
	maxQuickActions          = 3
)

// Input is everything the classifier looks at for one month.
type Input struct {
	Month    core.MonthKey
	Ledger   core.Ledger
	Summary  core.MonthSummary
	Forecast forecast.Forecast
}

type capStatus struct {
	category core.Category
	spent    int64
	cap      int64
}

func (c capStatus) over() bool { return c.spent > c.cap }

func (c capStatus) near() bool {
	return !c.over() && float64(c.spent)/float64(c.cap) >= nearCapRatio
}

// signals holds the facts both Classify and QuickActions derive from.
type signals struct {
	txCount       int
	totalSpent    int64
	top           *core.CategoryRow
	caps          []capStatus
	smallCount    int
	smallSum      int64
	discretionary int64
}

func analyze(in Input) signals {
	var s signals
	txs := in.Ledger.TransactionsIn(in.Month)
	s.txCount = len(txs)

	rows := analytics.ExpenseByCategory(in.Ledger, in.Month)
	for i, r := range rows {
		s.totalSpent += r.Total.Cents
		if i == 0 {
			top := r
			s.top = &top
		}
		if tag, ok := r.Category.Tag(); ok && (tag == core.Dining || tag == core.Other) {
			s.discretionary += r.Total.Cents
		}
	}

	caps := in.Ledger.CategoryCaps(in.Month)
	keys := make([]string, 0, len(caps))
	for k := range caps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cat, err := core.ParseCategoryKey(k)
		if err != nil {
			continue
		}
		s.caps = append(s.caps, capStatus{
			category: cat,
			spent:    in.Ledger.SpentInCategory(cat, in.Month),
			cap:      caps[k],
		})
	}

	threshold := max(int64(smallExpenseFloor), in.Summary.Budget.Cents/smallExpenseDivisor)
	for _, t := range txs {
		if t.Type == core.Expense && t.Amount.Cents <= threshold {
			s.smallCount++
			s.smallSum += t.Amount.Cents
		}
	}
	return s
}

func (s signals) share(cents int64) float64 {
	if s.totalSpent == 0 {
		return 0
	}
	return float64(cents) / float64(s.totalSpent)
}

// Classify returns advisories ordered from most to least severe. A month
// without transactions yields none; trend rules need at least five.
func Classify(in Input) []core.Advisory {
	s := analyze(in)
	if s.txCount == 0 {
		return nil
	}
	var out []core.Advisory
	trends := s.txCount >= minTransactionsForTrends

	if trends {
		out = append(out, forecastAdvisory(in.Forecast))
		if s.top != nil && s.share(s.top.Total.Cents) > concentrationShare {
			out = append(out, core.Advisory{
				Title:  "Spending concentrated in " + s.top.Category.DisplayName(),
				Detail: fmt.Sprintf("%s accounts for %.0f%% of this month's spending.", s.top.Category.DisplayName(), s.share(s.top.Total.Cents)*100),
				Level:  core.SeverityWatch,
			})
		}
	}

	for _, c := range s.caps {
		name := c.category.DisplayName()
		switch {
		case c.over():
			out = append(out, core.Advisory{
				Title:  "Over budget in " + name,
				Detail: fmt.Sprintf("Spent %s against a cap of %s, %s over.", core.FormatCents(c.spent), core.FormatCents(c.cap), core.FormatCents(c.spent-c.cap)),
				Level:  core.SeverityRisk,
			})
		case c.near():
			out = append(out, core.Advisory{
				Title:  "Near the cap for " + name,
				Detail: fmt.Sprintf("%.0f%% of the %s cap is used.", float64(c.spent)/float64(c.cap)*100, core.FormatCents(c.cap)),
				Level:  core.SeverityWatch,
			})
		}
	}

	if s.smallCount >= smallExpenseCount {
		out = append(out, core.Advisory{
			Title:  "Small expenses add up",
			Detail: fmt.Sprintf("%d small expenses total %s this month.", s.smallCount, core.FormatCents(s.smallSum)),
			Level:  core.SeverityWatch,
		})
	}

	if share := s.share(s.discretionary); share > discretionaryShare {
		out = append(out, core.Advisory{
			Title:  "Discretionary spending is high",
			Detail: fmt.Sprintf("Dining and other make up %.0f%% of spending.", share*100),
			Level:  core.SeverityWatch,
		})
	}

	if in.Summary.Remaining.Cents < 0 {
		out = append(out, core.Advisory{
			Title:  "Over budget",
			Detail: fmt.Sprintf("Spending exceeds budget and income by %s.", core.FormatCents(-in.Summary.Remaining.Cents)),
			Level:  core.SeverityRisk,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level.Rank() > out[j].Level.Rank()
	})
	return out
}

func forecastAdvisory(f forecast.Forecast) core.Advisory {
	switch {
	case f.Budget.Cents == 0:
		return core.Advisory{
			Title:  "No monthly budget",
			Detail: fmt.Sprintf("Spent %s so far. Set a budget to get a forecast.", f.Spent),
			Level:  core.SeverityWatch,
		}
	case f.Level == core.SeverityRisk:
		return core.Advisory{
			Title:  "Projected to exceed budget",
			Detail: fmt.Sprintf("At this pace the month closes near %s, %s over budget.", f.ProjectedTotal, f.Delta),
			Level:  core.SeverityRisk,
		}
	case f.Level == core.SeverityWatch:
		return core.Advisory{
			Title:  "Close to the budget limit",
			Detail: fmt.Sprintf("Projected %s against a budget of %s.", f.ProjectedTotal, f.Budget),
			Level:  core.SeverityWatch,
		}
	default:
		return core.Advisory{
			Title:  "Good control",
			Detail: fmt.Sprintf("Projected %s, within the budget of %s.", f.ProjectedTotal, f.Budget),
			Level:  core.SeverityOK,
		}
	}
}

// QuickActions suggests at most three actions. Category caps come first.
func QuickActions(in Input) []string {
	s := analyze(in)
	if s.txCount == 0 {
		return nil
	}
	var out []string
	push := func(a string) {
		for _, existing := range out {
			if existing == a {
				return
			}
		}
		out = append(out, a)
	}

	for _, c := range s.caps {
		if c.over() {
			push("Pause spending on " + c.category.DisplayName())
		}
	}
	for _, c := range s.caps {
		if c.near() {
			push("Slow down on " + c.category.DisplayName())
		}
	}

	f := in.Forecast
	if s.txCount >= minTransactionsForTrends && f.Budget.Cents > 0 && f.Level != core.SeverityOK {
		push(paceAction(f))
	}
	if in.Summary.Remaining.Cents < 0 {
		push("Avoid non-essential purchases this month")
	}
	if s.smallCount >= smallExpenseCount {
		push("Review small recurring purchases")
	}
	if s.share(s.discretionary) > discretionaryShare {
		push("Set a cap for dining and other")
	}
	if s.txCount >= minTransactionsForTrends && s.top != nil && s.share(s.top.Total.Cents) > concentrationShare {
		push("Review spending in " + s.top.Category.DisplayName())
	}

	if len(out) > maxQuickActions {
		out = out[:maxQuickActions]
	}
	return out
}

func paceAction(f forecast.Forecast) string {
	daysLeft := f.DaysInMonth - f.ElapsedDays
	headroom := f.Budget.Cents - f.Spent.Cents
	if daysLeft <= 0 || headroom <= 0 {
		return "Avoid non-essential purchases this month"
	}
	return fmt.Sprintf("Keep daily spending under %s", core.FormatCents(headroom/int64(daysLeft)))
}

// Pressure is the worst level among the advisories, ok when there are none.
func Pressure(advisories []core.Advisory) core.Severity {
	worst := core.SeverityOK
	for _, a := range advisories {
		if a.Level.Rank() > worst.Rank() {
			worst = a.Level
		}
	}
	return worst
}
