package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Cash PaymentMethod = "cash"
	Card PaymentMethod = "card"

	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

type (
	PaymentMethod   string
	TransactionType string

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID            uuid.UUID
		Amount        Money
		Date          time.Time
		Category      Category
		Note          string
		PaymentMethod PaymentMethod
		Type          TransactionType
		LastModified  time.Time
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrEmptyCategoryName    = errors.New("empty category name")
	ErrNegativeBudget       = errors.New("budget cannot be negative")
	ErrNoteTooLong          = errors.New("note too long (max 500 characters)")
	ErrTransactionNotFound  = errors.New("transaction not found")
)

// NewTransaction creates an expense or income entry with a fresh identity.
func NewTransaction(amountCents int64, date time.Time, cat Category, note string, method PaymentMethod, typ TransactionType) Transaction {
	return Transaction{
		ID:            uuid.New(),
		Amount:        Money{Cents: amountCents},
		Date:          date,
		Category:      cat,
		Note:          note,
		PaymentMethod: method,
		Type:          typ,
		LastModified:  date,
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p PaymentMethod) Valid() bool {
	return p == Cash || p == Card
}

// ParsePaymentMethod maps free-form input to a method. Empty input defaults to card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "card", "carta", "credit", "debit":
		return Card, nil
	case "cash", "contanti":
		return Cash, nil
	}
	return "", ErrInvalidPaymentMethod
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

// ParseTransactionType maps free-form input to a type. Empty input defaults to expense.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "expense", "e", "out", "debit", "spesa":
		return Expense, nil
	case "income", "i", "in", "credit", "entrata":
		return Income, nil
	}
	return "", ErrInvalidType
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Category.Validate(); err != nil {
		return err
	}
	if !t.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if len(t.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}

// Month returns the month key the transaction is scoped to.
func (t Transaction) Month() MonthKey {
	return MonthOf(t.Date)
}

func (t Transaction) IsExpense() bool { return t.Type == Expense }
