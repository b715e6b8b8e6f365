package dedup

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"budgetintel/internal/core"
)

var (
	ErrInvalidMapping = errors.New("invalid column mapping")
	ErrNoValidRows    = errors.New("no valid rows in import")
)

// ColumnMapping tells which column holds which field. Optional columns use -1.
type ColumnMapping struct {
	Date      int
	Amount    int
	Category  int
	Type      int
	Payment   int
	Note      int
	HasHeader bool
}

// DefaultMapping matches the "date,amount,category,type,payment,note" layout.
func DefaultMapping() ColumnMapping {
	return ColumnMapping{Date: 0, Amount: 1, Category: 2, Type: 3, Payment: 4, Note: 5, HasHeader: true}
}

// MappingFromHeader locates columns by header name, case-insensitively.
func MappingFromHeader(header []string) (ColumnMapping, error) {
	m := ColumnMapping{Date: -1, Amount: -1, Category: -1, Type: -1, Payment: -1, Note: -1, HasHeader: true}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "day", "data":
			m.Date = i
		case "amount", "value", "importo":
			m.Amount = i
		case "category", "categoria":
			m.Category = i
		case "type", "kind", "tipo":
			m.Type = i
		case "payment", "paymentmethod", "payment method", "method":
			m.Payment = i
		case "note", "notes", "description", "descrizione":
			m.Note = i
		}
	}
	return m, m.Validate()
}

func (m ColumnMapping) Validate() error {
	if m.Date < 0 || m.Amount < 0 || m.Category < 0 {
		return fmt.Errorf("%w: date, amount and category columns are required", ErrInvalidMapping)
	}
	seen := map[int]bool{}
	for _, c := range []int{m.Date, m.Amount, m.Category, m.Type, m.Payment, m.Note} {
		if c < 0 {
			continue
		}
		if seen[c] {
			return fmt.Errorf("%w: column %d mapped twice", ErrInvalidMapping, c)
		}
		seen[c] = true
	}
	return nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
}

// ParseDate accepts ISO and common day-first layouts, interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// RowError describes a skipped row; Row is the index in the input slice.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// ParsedBatch is the validated content of an import.
type ParsedBatch struct {
	Transactions []core.Transaction
	Skipped      []RowError
}

// ParseRows validates every data row. Invalid rows are collected in Skipped
// and never abort the batch. Dates are read in now's location.
func ParseRows(l core.Ledger, rows [][]string, m ColumnMapping, now time.Time) (ParsedBatch, error) {
	if err := m.Validate(); err != nil {
		return ParsedBatch{}, err
	}
	var batch ParsedBatch
	for i, row := range rows {
		if i == 0 && m.HasHeader {
			continue
		}
		if isBlank(row) {
			continue
		}
		tx, err := parseRow(l, row, m, now)
		if err != nil {
			batch.Skipped = append(batch.Skipped, RowError{Row: i, Err: err})
			continue
		}
		batch.Transactions = append(batch.Transactions, tx)
	}
	return batch, nil
}

func parseRow(l core.Ledger, row []string, m ColumnMapping, now time.Time) (core.Transaction, error) {
	date, err := ParseDate(cell(row, m.Date), now.Location())
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(cell(row, m.Amount))
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTransactionType(cell(row, m.Type))
	if err != nil {
		return core.Transaction{}, err
	}
	method, err := core.ParsePaymentMethod(cell(row, m.Payment))
	if err != nil {
		return core.Transaction{}, err
	}
	cat := resolveCategory(l, cell(row, m.Category))

	tx := core.NewTransaction(amount, date, cat, strings.TrimSpace(cell(row, m.Note)), method, typ)
	tx.LastModified = now
	return tx, tx.Validate()
}

// resolveCategory maps a cell to a category: storage keys and builtin names
// first, then existing custom names, otherwise a new custom name. Blank
// cells fall back to other.
func resolveCategory(l core.Ledger, raw string) core.Category {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.Builtin(core.Other)
	}
	if c, err := core.ParseCategoryKey(raw); err == nil {
		if name := c.CustomName(); name != "" {
			if stored, ok := l.ResolveCustom(name); ok {
				return core.Custom(stored)
			}
		}
		return c
	}
	if tag, ok := core.LookupBuiltin(raw); ok {
		return core.Builtin(tag)
	}
	if stored, ok := l.ResolveCustom(raw); ok {
		return core.Custom(stored)
	}
	return core.Custom(raw)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ImportResult reports the outcome of an import. Duplicates are a count,
// never an error.
type ImportResult struct {
	Added      int
	Skipped    int
	Duplicates int
	Digest     string
	Errors     []RowError
}

// Import parses rows and merges the valid ones into a copy of l. The input
// ledger is never modified; the returned ledger replaces it as a whole. A
// batch with rows but no valid row fails with ErrNoValidRows.
func Import(l core.Ledger, rows [][]string, m ColumnMapping, now time.Time) (core.Ledger, ImportResult, error) {
	batch, err := ParseRows(l, rows, m, now)
	if err != nil {
		return l, ImportResult{}, err
	}
	res := ImportResult{
		Skipped: len(batch.Skipped),
		Errors:  batch.Skipped,
		Digest:  DatasetDigest(batch.Transactions),
	}
	if len(batch.Transactions) == 0 {
		if res.Skipped > 0 {
			return l, res, ErrNoValidRows
		}
		return l, res, nil
	}

	out, merged := ImportMerge(l, batch.Transactions)
	res.Added, res.Duplicates = merged.Added, merged.Duplicates
	return out, res, nil
}

// MergeResult counts what a merge added and what it recognised as duplicate.
type MergeResult struct {
	Added      int
	Duplicates int
}

// ImportMerge adds incoming transactions whose signature is neither in l nor
// earlier in the same batch. Custom categories used by added transactions
// are registered.
func ImportMerge(l core.Ledger, incoming []core.Transaction) (core.Ledger, MergeResult) {
	out := l.Clone()
	res := appendUnique(&out, incoming)
	return out, res
}

func appendUnique(dst *core.Ledger, incoming []core.Transaction) MergeResult {
	var res MergeResult
	seen := NewSignatureSet(dst.Transactions)
	ids := make(map[uuid.UUID]bool, len(dst.Transactions))
	for _, t := range dst.Transactions {
		ids[t.ID] = true
	}
	for _, t := range incoming {
		if name := t.Category.CustomName(); name != "" {
			if stored, ok := dst.ResolveCustom(name); ok {
				t.Category = core.Custom(stored)
			}
		}
		if seen.Has(t) {
			res.Duplicates++
			continue
		}
		seen.Add(t)
		// A reused or missing ID gets a fresh one so both versions survive.
		if t.ID == uuid.Nil || ids[t.ID] {
			t.ID = uuid.New()
		}
		ids[t.ID] = true
		if name := t.Category.CustomName(); name != "" {
			_, _ = dst.AddCustomCategory(name)
		}
		dst.Transactions = append(dst.Transactions, t)
		res.Added++
	}
	return res
}
