package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
)

// parseCategory accepts a builtin tag, a stored key such as "custom:Pets",
// or a bare custom name.
func parseCategory(s string) (core.Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Category{}, core.ErrEmptyCategoryName
	}
	if tag, ok := core.LookupBuiltin(s); ok {
		return core.Builtin(tag), nil
	}
	if strings.Contains(s, ":") {
		return core.ParseCategoryKey(s)
	}
	return core.Custom(s), nil
}

func budgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "budget", Short: "Manage monthly budgets"}
	cmd.AddCommand(&cobra.Command{
		Use:   "set YYYY-MM AMOUNT",
		Short: "Set the overall budget of a month (0 clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			cents, err := parseBudget(args[1])
			if err != nil {
				return err
			}
			if err := a.svc().SetBudget(cmd.Context(), a.ledger, m, cents); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Budget for %s set to %s\n", m, core.FormatCents(cents))
			return nil
		},
	})
	return cmd
}

func capCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cap", Short: "Manage category caps"}
	cmd.AddCommand(&cobra.Command{
		Use:   "set YYYY-MM CATEGORY AMOUNT",
		Short: "Set a category cap for a month (0 removes it)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			cat, err := parseCategory(args[1])
			if err != nil {
				return err
			}
			cents, err := parseBudget(args[2])
			if err != nil {
				return err
			}
			if err := a.svc().SetCategoryBudget(cmd.Context(), a.ledger, cat, m, cents); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cap for %s in %s set to %s\n", cat.DisplayName(), m, core.FormatCents(cents))
			return nil
		},
	})
	return cmd
}

// parseBudget is ParseAmount with zero allowed.
func parseBudget(s string) (int64, error) {
	if strings.TrimSpace(s) == "0" {
		return 0, nil
	}
	return core.ParseAmount(s)
}

func categoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "category", Short: "Manage custom categories"}
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Register a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc().AddCustomCategory(cmd.Context(), a.ledger, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Category %s ready\n", c.DisplayName())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a custom category, moving its transactions to Other",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moved, err := a.svc().DeleteCustomCategory(cmd.Context(), a.ledger, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s, %d transactions moved to Other\n", args[0], moved)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List builtin and custom categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := a.svc().Ledger(cmd.Context(), a.ledger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, tag := range core.BuiltinCategories() {
				fmt.Fprintln(out, core.Builtin(tag).Key())
			}
			for _, name := range l.CustomCategoryNames {
				fmt.Fprintln(out, core.Custom(name).Key())
			}
			return nil
		},
	})
	return cmd
}

func txCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tx", Short: "Add or remove transactions"}

	var (
		date, category, note, payment, typ string
	)
	add := &cobra.Command{
		Use:   "add AMOUNT",
		Short: "Record an expense or income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cents, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			when := time.Now()
			if date != "" {
				if when, err = dedup.ParseDate(date, time.Local); err != nil {
					return err
				}
			}
			cat, err := parseCategory(category)
			if err != nil {
				return err
			}
			method, err := core.ParsePaymentMethod(payment)
			if err != nil {
				return err
			}
			kind, err := core.ParseTransactionType(typ)
			if err != nil {
				return err
			}
			tx, err := a.svc().AddTransaction(cmd.Context(), a.ledger, core.NewTransaction(cents, when, cat, note, method, kind))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s on %s (%s)\n", tx.Type, tx.Amount, dedup.DayString(tx.Date), tx.ID)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "date (default: today)")
	add.Flags().StringVar(&category, "category", string(core.Other), "builtin tag or custom name")
	add.Flags().StringVar(&note, "note", "", "free text note")
	add.Flags().StringVar(&payment, "payment", string(core.Card), "cash or card")
	add.Flags().StringVar(&typ, "type", string(core.Expense), "expense or income")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id: %w", err)
			}
			if err := a.svc().DeleteTransaction(cmd.Context(), a.ledger, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	})
	return cmd
}

func monthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "month", Short: "Select or clear a month"}
	cmd.AddCommand(&cobra.Command{
		Use:   "select YYYY-MM",
		Short: "Remember the month the views open on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			return a.svc().SelectMonth(cmd.Context(), a.ledger, m)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear YYYY-MM",
		Short: "Drop the transactions, budget and caps of a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			if err := a.svc().ClearMonth(cmd.Context(), a.ledger, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", m)
			return nil
		},
	})
	return cmd
}
