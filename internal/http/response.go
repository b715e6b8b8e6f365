package http

import (
	"budgetintel/internal/services"
)

type reportResponse struct {
	Month           string             `json:"month"`
	BudgetCents     int64              `json:"budget_cents"`
	SpentCents      int64              `json:"spent_cents"`
	IncomeCents     int64              `json:"income_cents"`
	RemainingCents  int64              `json:"remaining_cents"`
	SpentRatio      float64            `json:"spent_ratio"`
	DailyAvgCents   float64            `json:"daily_avg_cents"`
	Forecast        forecastResponse   `json:"forecast"`
	Pressure        string             `json:"pressure"`
	Advisories      []advisoryResponse `json:"advisories"`
	QuickActions    []string           `json:"quick_actions"`
	Categories      []categoryResponse `json:"categories"`
	Payments        []paymentResponse  `json:"payments"`
	SavedCents      int64              `json:"saved_cents"`
	TotalSavedCents int64              `json:"total_saved_cents"`
}

type forecastResponse struct {
	ProjectedCents int64   `json:"projected_cents"`
	DeltaCents     int64   `json:"delta_cents"`
	DailyMeanCents float64 `json:"daily_mean_cents"`
	Level          string  `json:"level"`
	Message        string  `json:"message"`
}

type advisoryResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Level  string `json:"level"`
}

type categoryResponse struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

type paymentResponse struct {
	Method     string  `json:"method"`
	TotalCents int64   `json:"total_cents"`
	Share      float64 `json:"share"`
}

type notificationResponse struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

func newReportResponse(r services.Report) reportResponse {
	s := r.Summary
	out := reportResponse{
		Month:          string(r.Month),
		BudgetCents:    s.Budget.Cents,
		SpentCents:     s.TotalSpent.Cents,
		IncomeCents:    s.Income.Cents,
		RemainingCents: s.Remaining.Cents,
		SpentRatio:     s.SpentRatio,
		DailyAvgCents:  s.DailyAvg,
		Forecast: forecastResponse{
			ProjectedCents: r.Forecast.ProjectedTotal.Cents,
			DeltaCents:     r.Forecast.Delta.Cents,
			DailyMeanCents: r.Forecast.DailyMean,
			Level:          string(r.Forecast.Level),
			Message:        r.Forecast.Message,
		},
		Pressure:        string(r.Pressure),
		Advisories:      make([]advisoryResponse, 0, len(r.Advisories)),
		QuickActions:    append([]string{}, r.QuickActions...),
		Categories:      make([]categoryResponse, 0, len(r.Categories)),
		Payments:        make([]paymentResponse, 0, len(r.Payments)),
		SavedCents:      r.Saved.Cents,
		TotalSavedCents: r.TotalSaved.Cents,
	}
	for _, a := range r.Advisories {
		out.Advisories = append(out.Advisories, advisoryResponse{Title: a.Title, Detail: a.Detail, Level: string(a.Level)})
	}
	for _, c := range r.Categories {
		out.Categories = append(out.Categories, categoryResponse{
			Key:        c.Category.Key(),
			Name:       c.Category.DisplayName(),
			TotalCents: c.Total.Cents,
			Count:      c.Count,
		})
	}
	for _, p := range r.Payments {
		out.Payments = append(out.Payments, paymentResponse{Method: string(p.Method), TotalCents: p.Total.Cents, Share: p.Share})
	}
	return out
}
