package memory

import (
	"context"
	"testing"

	"budgetintel/internal/core"
)

func TestStoreExportMonth(t *testing.T) {
	s := New()
	exp := core.MonthExport{Summary: core.MonthSummary{Month: "2025-04"}}

	ref, err := s.ExportMonth(context.Background(), "home", exp)
	if err != nil || ref != "mem:home/2025-04" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}
	got, ok := s.Export(ref)
	if !ok || got.Summary.Month != "2025-04" {
		t.Fatalf("export not stored: %+v", got)
	}
}

func TestStoreReadRowsCopies(t *testing.T) {
	s := New()
	s.SetRows("Import!A:F", [][]string{{"date", "amount"}, {"2025-04-01", "3.50"}})

	rows, err := s.ReadRows(context.Background(), "Import!A:F")
	if err != nil || len(rows) != 2 {
		t.Fatalf("unexpected rows: %v err=%v", rows, err)
	}
	rows[1][1] = "999"

	again, _ := s.ReadRows(context.Background(), "Import!A:F")
	if again[1][1] != "3.50" {
		t.Error("ReadRows should return a copy")
	}

	if _, err := s.ReadRows(context.Background(), "Missing!A:A"); err == nil {
		t.Error("expected error for unknown range")
	}
}
