package sheets

import (
	"context"

	"budgetintel/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// Exporter writes a month report somewhere a human can read it and
	// returns a reference to where it landed.
	Exporter interface {
		ExportMonth(ctx context.Context, ledgerKey string, exp core.MonthExport) (ref string, err error)
	}

	// RowSource yields raw rows for the CSV importer.
	RowSource interface {
		ReadRows(ctx context.Context, rangeName string) ([][]string, error)
	}
)
