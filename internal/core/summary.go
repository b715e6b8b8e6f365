package core

import "time"

// Severity ranks advisories and forecast levels.
type Severity string

const (
	SeverityOK    Severity = "ok"
	SeverityWatch Severity = "watch"
	SeverityRisk  Severity = "risk"
)

// Rank orders severities so that risk > watch > ok.
func (s Severity) Rank() int {
	switch s {
	case SeverityRisk:
		return 2
	case SeverityWatch:
		return 1
	default:
		return 0
	}
}

// MonthSummary is the headline of one month.
type MonthSummary struct {
	Month      MonthKey
	Budget     Money
	TotalSpent Money
	Income     Money
	Remaining  Money
	DailyAvg   float64 // cents per day
	SpentRatio float64
}

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	Category Category
	Total    Money
	Count    int
}

// PaymentRow is the total and share of one payment method.
type PaymentRow struct {
	Method PaymentMethod
	Total  Money
	Share  float64
}

// DayPoint is the expense total of one day of the month.
type DayPoint struct {
	Day    int
	Amount Money
}

// Advisory is a human readable insight with its severity.
type Advisory struct {
	Title  string
	Detail string
	Level  Severity
}

// Delivery timing for a notification request.
type DeliverAt struct {
	Immediate bool
	At        time.Time
}

func DeliverNow() DeliverAt { return DeliverAt{Immediate: true} }

// NotificationRequest is handed to the delivery collaborator, which decides
// on permissions and the actual channel.
type NotificationRequest struct {
	Identifier string
	Title      string
	Body       string
	DeliverAt  DeliverAt
}

// MonthExport bundles the value objects consumed by export encoders.
type MonthExport struct {
	Summary      MonthSummary
	Categories   []CategoryRow
	Payments     []PaymentRow
	Days         []DayPoint
	Transactions []Transaction
}
