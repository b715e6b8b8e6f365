package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"budgetintel/internal/backup"
	"budgetintel/internal/core"
	"budgetintel/internal/dedup"
	"budgetintel/internal/services"
)

func importCmd(a *app) *cobra.Command {
	var sheetRange string
	cmd := &cobra.Command{
		Use:   "import [FILE.csv]",
		Short: "Import transactions from a CSV file or a spreadsheet range",
		Long: `Import rows laid out as date,amount,category,type,payment,note.

The first row is a header; columns are located by name when it names them.
Rows already present (same day, amount, category and note) are counted as
duplicates, and importing the same dataset twice adds nothing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var rows [][]string
			switch {
			case sheetRange != "" && len(args) == 0:
				out, err := a.svc().ImportFromSheet(ctx, a.ledger, sheetRange, dedup.DefaultMapping())
				if err != nil {
					return err
				}
				return writeImport(cmd.OutOrStdout(), out)
			case len(args) == 1 && sheetRange == "":
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				if rows, err = readCSV(f); err != nil {
					return err
				}
			default:
				return fmt.Errorf("give either a CSV file or --sheet")
			}

			out, err := a.svc().Import(ctx, a.ledger, rows, mappingFor(rows))
			if err != nil {
				return err
			}
			return writeImport(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&sheetRange, "sheet", "", "spreadsheet range to import, e.g. Import!A:F")
	return cmd
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// mappingFor locates columns from the header when possible.
func mappingFor(rows [][]string) dedup.ColumnMapping {
	if len(rows) > 0 {
		if m, err := dedup.MappingFromHeader(rows[0]); err == nil {
			return m
		}
	}
	return dedup.DefaultMapping()
}

func writeImport(out io.Writer, res services.ImportOutcome) error {
	fmt.Fprintf(out, "Added %d, duplicates %d, skipped %d\n", res.Added, res.Duplicates, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  %s\n", e.Error())
	}
	if res.AlreadyImported {
		fmt.Fprintln(out, "This dataset was imported before.")
	}
	return nil
}

func backupCmd(a *app) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a backup document of the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.svc().Backup(cmd.Context(), a.ledger)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func restoreCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Restore a backup by merging it or replacing the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := backup.ParseMode(mode)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read backup: %w", err)
			}
			res, err := a.svc().Restore(cmd.Context(), a.ledger, data, m)
			if err != nil {
				if res.Reason != "" {
					return fmt.Errorf("%s: %w", res.Reason, err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(backup.ModeMerge), "merge or replace")
	return cmd
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync FILE",
		Short: "Merge a backup taken on another device, honouring its deletions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read replica: %w", err)
			}
			res, err := a.svc().SyncReplica(cmd.Context(), a.ledger, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d, updated %d, removed %d, duplicates %d\n",
				res.Added, res.Updated, res.Removed, res.Duplicates)
			return nil
		},
	}
}

func alertsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "alerts", Short: "Budget alerts"}
	cmd.AddCommand(&cobra.Command{
		Use:   "evaluate [YYYY-MM...]",
		Short: "Run the alert machines now (default: current month)",
		RunE: func(cmd *cobra.Command, args []string) error {
			months := make([]core.MonthKey, 0, len(args))
			for _, s := range args {
				m, err := core.ParseMonthKey(s)
				if err != nil {
					return err
				}
				months = append(months, m)
			}
			fired, err := a.svc().EvaluateAlerts(cmd.Context(), a.ledger, months...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(fired) == 0 {
				fmt.Fprintln(out, "No new alerts")
			}
			for _, n := range fired {
				fmt.Fprintf(out, "%s: %s\n", n.Identifier, n.Title)
			}
			return nil
		},
	})
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [YYYY-MM]",
		Short: "Write the month report to the configured spreadsheet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := monthArg(args, 0)
			if err != nil {
				return err
			}
			ref, err := a.svc().Export(cmd.Context(), a.ledger, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", m, ref)
			return nil
		},
	}
}
