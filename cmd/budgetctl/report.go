package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"budgetintel/internal/core"
	"budgetintel/internal/services"
)

func reportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report [YYYY-MM]",
		Short: "Show the month summary, forecast and advisories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := monthArg(args, 0)
			if err != nil {
				return err
			}
			r, err := a.svc().Report(cmd.Context(), a.ledger, m)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), r)
		},
	}
}

// monthArg returns args[i] as a month, or the current month when absent.
func monthArg(args []string, i int) (core.MonthKey, error) {
	if len(args) <= i {
		return core.MonthOf(time.Now()), nil
	}
	return core.ParseMonthKey(args[i])
}

func writeReport(out io.Writer, r services.Report) error {
	s := r.Summary
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Month\t%s\n", r.Month)
	fmt.Fprintf(w, "Budget\t%s\n", s.Budget)
	fmt.Fprintf(w, "Spent\t%s (%.0f%%)\n", s.TotalSpent, s.SpentRatio*100)
	fmt.Fprintf(w, "Income\t%s\n", s.Income)
	fmt.Fprintf(w, "Remaining\t%s\n", s.Remaining)
	fmt.Fprintf(w, "Daily average\t%s\n", core.FormatCents(int64(s.DailyAvg+0.5)))
	fmt.Fprintf(w, "Projected\t%s [%s]\n", r.Forecast.ProjectedTotal, r.Forecast.Level)
	fmt.Fprintf(w, "Saved\t%s (all time %s)\n", r.Saved, r.TotalSaved)
	fmt.Fprintf(w, "Pressure\t%s\n", r.Pressure)
	if err := w.Flush(); err != nil {
		return err
	}

	if r.Forecast.Message != "" {
		fmt.Fprintf(out, "\n%s\n", r.Forecast.Message)
	}

	if len(r.Categories) > 0 {
		fmt.Fprintln(out, "\nCategories")
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, c := range r.Categories {
			fmt.Fprintf(w, "  %s\t%s\t%d\n", c.Category.DisplayName(), c.Total, c.Count)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(r.Payments) > 0 {
		fmt.Fprintln(out, "\nPayments")
		for _, p := range r.Payments {
			fmt.Fprintf(out, "  %-6s %s (%.0f%%)\n", p.Method, p.Total, p.Share*100)
		}
	}

	if len(r.Advisories) > 0 {
		fmt.Fprintln(out, "\nAdvisories")
		for _, adv := range r.Advisories {
			fmt.Fprintf(out, "  [%s] %s: %s\n", strings.ToUpper(string(adv.Level)), adv.Title, adv.Detail)
		}
	}
	if len(r.QuickActions) > 0 {
		fmt.Fprintln(out, "\nQuick actions")
		for _, q := range r.QuickActions {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}
