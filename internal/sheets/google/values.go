package google

import (
	"fmt"
	"strconv"
	"strings"

	"budgetintel/internal/core"
)

// Header of the transaction section, readable by the importer's default mapping.
var transactionHeader = []interface{}{"date", "amount", "category", "type", "payment", "note"}

// buildReportValues lays out a month report as sheet rows: summary block,
// category breakdown, payment split and the transactions themselves.
func buildReportValues(exp core.MonthExport) [][]interface{} {
	s := exp.Summary
	rows := [][]interface{}{
		{"Month", string(s.Month)},
		{"Budget", s.Budget.String()},
		{"Spent", s.TotalSpent.String()},
		{"Income", s.Income.String()},
		{"Remaining", s.Remaining.String()},
		{"Daily average", core.FormatCents(int64(s.DailyAvg + 0.5))},
		{"Spent ratio", formatPercent(s.SpentRatio)},
		{},
		{"Category", "Total", "Count"},
	}
	for _, c := range exp.Categories {
		rows = append(rows, []interface{}{c.Category.DisplayName(), c.Total.String(), c.Count})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Payment", "Total", "Share"})
	for _, p := range exp.Payments {
		rows = append(rows, []interface{}{string(p.Method), p.Total.String(), formatPercent(p.Share)})
	}

	rows = append(rows, []interface{}{}, transactionHeader)
	for _, t := range exp.Transactions {
		rows = append(rows, []interface{}{
			t.Date.Format("2006-01-02"),
			t.Amount.String(),
			t.Category.Key(),
			string(t.Type),
			string(t.PaymentMethod),
			t.Note,
		})
	}
	return rows
}

func formatPercent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}

// reportSheetName returns "<base> <YYYY-MM>".
func reportSheetName(base string, m core.MonthKey) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return string(m)
	}
	return base + " " + string(m)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toStringRows(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		out = append(out, toStrings(row))
	}
	return out
}
