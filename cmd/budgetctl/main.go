package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"budgetintel/internal/backend"
	"budgetintel/internal/cli"
	"budgetintel/internal/config"
	"budgetintel/internal/services"
)

// opener wires the backend a command runs against.
type opener func(ctx context.Context) (*backend.Result, *config.Config, error)

// app is shared by every subcommand of one invocation.
type app struct {
	open    opener
	backend *backend.Result
	ledger  string
}

func (a *app) svc() *services.BudgetService { return a.backend.Service }

func openFromEnv(ctx context.Context) (*backend.Result, *config.Config, error) {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, "budgetctl", os.Stderr)
	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return res, cfg, nil
}

func newRootCmd(open opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Inspect and maintain budget ledgers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			res, cfg, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			a.backend = res
			if a.ledger == "" {
				a.ledger = cfg.LedgerKey
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.backend == nil || a.backend.Cleanup == nil {
				return nil
			}
			return a.backend.Cleanup()
		},
	}
	root.PersistentFlags().StringVar(&a.ledger, "ledger", "", "ledger key (default: $LEDGER_KEY)")

	root.AddCommand(reportCmd(a))
	root.AddCommand(budgetCmd(a))
	root.AddCommand(capCmd(a))
	root.AddCommand(categoryCmd(a))
	root.AddCommand(txCmd(a))
	root.AddCommand(monthCmd(a))
	root.AddCommand(importCmd(a))
	root.AddCommand(backupCmd(a))
	root.AddCommand(restoreCmd(a))
	root.AddCommand(syncCmd(a))
	root.AddCommand(alertsCmd(a))
	root.AddCommand(exportCmd(a))
	return root
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd(openFromEnv).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
