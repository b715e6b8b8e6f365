// Package forecast projects month-end spend from a partial month using a
// winsorized daily mean, so a single large day does not dominate.
package forecast

import (
	"math"
	"sort"
	"time"

	"budgetintel/internal/analytics"
	"budgetintel/internal/core"
)

const (
	minTrimSamples = 5
	lowPercentile  = 0.10
	highPercentile = 0.90
)

const (
	MessageOK       = "below monthly budget"
	MessageWatch    = "close to budget limit"
	MessageRisk     = "likely to exceed budget"
	MessageNoBudget = "no monthly budget configured"
)

// Forecast is the projection of one month.
type Forecast struct {
	Month           core.MonthKey
	Budget          core.Money
	Spent           core.Money
	ElapsedDays     int
	DaysInMonth     int
	DailyMean       float64 // winsorized, cents per day
	NaiveProjection core.Money
	ProjectedTotal  core.Money
	Delta           core.Money
	Level           core.Severity
	Message         string
}

// Project builds the forecast of m as observed at now.
func Project(l core.Ledger, m core.MonthKey, now time.Time) Forecast {
	elapsed := analytics.ElapsedDays(m, now)
	daysInMonth := max(1, m.Days())
	budget := l.Budget(m)
	spent := l.Spent(m)

	f := Forecast{
		Month:       m,
		Budget:      core.Money{Cents: budget},
		Spent:       core.Money{Cents: spent},
		ElapsedDays: elapsed,
		DaysInMonth: daysInMonth,
		NaiveProjection: core.Money{
			Cents: int64(math.Round(float64(spent) / float64(elapsed) * float64(daysInMonth))),
		},
	}

	if budget == 0 {
		f.ProjectedTotal = core.Money{Cents: spent}
		f.Delta = core.Money{Cents: spent}
		f.Level = core.SeverityWatch
		f.Message = MessageNoBudget
		return f
	}

	f.DailyMean = WinsorizedMean(analytics.DailyExpenseTotals(l, m, elapsed))
	f.ProjectedTotal = core.Money{Cents: int64(math.Round(f.DailyMean * float64(daysInMonth)))}
	f.Delta = core.Money{Cents: f.ProjectedTotal.Cents - budget}
	f.Level, f.Message = Classify(f.Delta.Cents, budget)
	return f
}

// Classify maps the projected overshoot to a level.
func Classify(delta, budget int64) (core.Severity, string) {
	switch {
	case delta <= 0:
		return core.SeverityOK, MessageOK
	case float64(delta) < float64(budget)/10:
		return core.SeverityWatch, MessageWatch
	default:
		return core.SeverityRisk, MessageRisk
	}
}

// WinsorizedMean clamps values into the [p10, p90) order statistics before
// averaging. Fewer than five samples fall back to the plain mean.
func WinsorizedMean(values []int64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n < minTrimSamples {
		return mean(values)
	}

	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	lowIdx := int(math.Floor(float64(n) * lowPercentile))
	highIdx := max(lowIdx, int(math.Floor(float64(n)*highPercentile))-1)
	lo, hi := sorted[lowIdx], sorted[highIdx]

	clamped := make([]int64, n)
	for i, v := range values {
		clamped[i] = min(max(v, lo), hi)
	}
	return mean(clamped)
}

func mean(values []int64) float64 {
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
