// Package backup encodes a ledger into a versioned JSON document and decodes
// documents written by every released version.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"budgetintel/internal/core"
)

const (
	FormatTag      = "budgetintel-backup"
	CurrentVersion = 2
)

var (
	ErrInvalidFormat      = errors.New("invalid backup format")
	ErrUnsupportedVersion = errors.New("unsupported backup version")
)

type document struct {
	Format     string    `json:"format,omitempty"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Ledger     ledgerDoc `json:"ledger"`
}

type ledgerDoc struct {
	SelectedMonth          string                      `json:"selectedMonth,omitempty"`
	BudgetsByMonth         map[string]int64            `json:"budgetsByMonth"`
	CategoryBudgetsByMonth map[string]map[string]int64 `json:"categoryBudgetsByMonth"`
	Transactions           []transactionDoc            `json:"transactions"`
	CustomCategoryNames    []string                    `json:"customCategoryNames"`
	DeletedTransactionIDs  []string                    `json:"deletedTransactionIds"`
}

// Fields added after version 1 are pointers so that absence is visible to
// the defaulting rules.
type transactionDoc struct {
	ID            *string    `json:"id,omitempty"`
	Amount        int64      `json:"amount"`
	Date          time.Time  `json:"date"`
	Category      string     `json:"category,omitempty"`
	Note          string     `json:"note,omitempty"`
	PaymentMethod *string    `json:"paymentMethod,omitempty"`
	Type          *string    `json:"type,omitempty"`
	LastModified  *time.Time `json:"lastModified,omitempty"`
}

// Encode writes l as a current-version document.
func Encode(l core.Ledger, now time.Time) ([]byte, error) {
	doc := document{
		Format:     FormatTag,
		Version:    CurrentVersion,
		ExportedAt: now.UTC(),
		Ledger: ledgerDoc{
			SelectedMonth:          string(l.SelectedMonth),
			BudgetsByMonth:         map[string]int64{},
			CategoryBudgetsByMonth: map[string]map[string]int64{},
			Transactions:           make([]transactionDoc, 0, len(l.Transactions)),
			CustomCategoryNames:    append([]string{}, l.CustomCategoryNames...),
			DeletedTransactionIDs:  append([]string{}, l.DeletedTransactionIDs...),
		},
	}
	for m, v := range l.BudgetsByMonth {
		doc.Ledger.BudgetsByMonth[string(m)] = v
	}
	for m, caps := range l.CategoryBudgetsByMonth {
		if len(caps) == 0 {
			continue
		}
		cp := make(map[string]int64, len(caps))
		for k, v := range caps {
			cp[k] = v
		}
		doc.Ledger.CategoryBudgetsByMonth[string(m)] = cp
	}
	for _, t := range l.Transactions {
		id := t.ID.String()
		method := string(t.PaymentMethod)
		typ := string(t.Type)
		modified := t.LastModified
		doc.Ledger.Transactions = append(doc.Ledger.Transactions, transactionDoc{
			ID:            &id,
			Amount:        t.Amount.Cents,
			Date:          t.Date,
			Category:      t.Category.Key(),
			Note:          t.Note,
			PaymentMethod: &method,
			Type:          &typ,
			LastModified:  &modified,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode reads a document of any supported version. Failures wrap
// ErrInvalidFormat or ErrUnsupportedVersion; no partial ledger is returned.
func Decode(data []byte) (core.Ledger, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Ledger{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if doc.Version == 0 {
		return core.Ledger{}, fmt.Errorf("%w: missing version", ErrInvalidFormat)
	}
	if doc.Version < 0 || doc.Version > CurrentVersion {
		return core.Ledger{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	// Version 1 files predate the format tag.
	if doc.Format != FormatTag && !(doc.Version == 1 && doc.Format == "") {
		return core.Ledger{}, fmt.Errorf("%w: unexpected format %q", ErrInvalidFormat, doc.Format)
	}

	l, err := doc.Ledger.toLedger()
	if err != nil {
		return core.Ledger{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return l, nil
}

func (d ledgerDoc) toLedger() (core.Ledger, error) {
	l := core.NewLedger()
	if d.SelectedMonth != "" {
		m, err := core.ParseMonthKey(d.SelectedMonth)
		if err != nil {
			return core.Ledger{}, fmt.Errorf("selected month: %w", err)
		}
		l.SelectedMonth = m
	}
	for key, v := range d.BudgetsByMonth {
		m, err := core.ParseMonthKey(key)
		if err != nil {
			return core.Ledger{}, fmt.Errorf("budget: %w", err)
		}
		if err := l.SetBudget(m, v); err != nil {
			return core.Ledger{}, fmt.Errorf("budget %s: %w", key, err)
		}
	}
	for key, caps := range d.CategoryBudgetsByMonth {
		m, err := core.ParseMonthKey(key)
		if err != nil {
			return core.Ledger{}, fmt.Errorf("category budget: %w", err)
		}
		for catKey, v := range caps {
			cat, err := core.ParseCategoryKey(catKey)
			if err != nil {
				return core.Ledger{}, fmt.Errorf("category budget %s: %w", key, err)
			}
			if err := l.SetCategoryBudget(cat, m, v); err != nil {
				return core.Ledger{}, fmt.Errorf("category budget %s/%s: %w", key, catKey, err)
			}
		}
	}
	for i, td := range d.Transactions {
		t, err := td.toTransaction()
		if err != nil {
			return core.Ledger{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		l.Transactions = append(l.Transactions, t)
	}
	for _, name := range d.CustomCategoryNames {
		if _, err := l.AddCustomCategory(name); err != nil {
			return core.Ledger{}, fmt.Errorf("custom category: %w", err)
		}
	}
	l.DeletedTransactionIDs = append([]string(nil), d.DeletedTransactionIDs...)
	sort.Strings(l.DeletedTransactionIDs)
	return l, nil
}

// toTransaction applies the defaulting rules for fields older documents lack:
// id gets a fresh UUID, paymentMethod is card, type is expense, category is
// other and lastModified is the transaction date.
func (td transactionDoc) toTransaction() (core.Transaction, error) {
	t := core.Transaction{
		ID:            uuid.New(),
		Amount:        core.Money{Cents: td.Amount},
		Date:          td.Date,
		Category:      core.Builtin(core.Other),
		Note:          td.Note,
		PaymentMethod: core.Card,
		Type:          core.Expense,
		LastModified:  td.Date,
	}
	if td.ID != nil {
		id, err := uuid.Parse(*td.ID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("id: %w", err)
		}
		t.ID = id
	}
	if td.Category != "" {
		cat, err := core.ParseCategoryKey(td.Category)
		if err != nil {
			return core.Transaction{}, err
		}
		t.Category = cat
	}
	if td.PaymentMethod != nil {
		t.PaymentMethod = core.PaymentMethod(*td.PaymentMethod)
	}
	if td.Type != nil {
		t.Type = core.TransactionType(*td.Type)
	}
	if td.LastModified != nil && !td.LastModified.IsZero() {
		t.LastModified = *td.LastModified
	}
	return t, t.Validate()
}
