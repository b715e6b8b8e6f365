// Package core provides money parsing and handling utilities.
//
// Amounts are carried as integer cents; decimal is used only at the text
// boundary (parsing import rows, rendering for humans).
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. When both
// appear, the last one is the decimal separator and the other is treated as a
// thousands separator. Non-positive results are rejected.
//
// Examples:
//
//	ParseAmount("12.34")    -> 1234, nil
//	ParseAmount("1.234,50") -> 123450, nil
//	ParseAmount("12.345")   -> 1235, nil
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "€$£ ")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	s = normalizeSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if cents.GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

func normalizeSeparators(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		return strings.ReplaceAll(s, ",", "")
	default:
		return strings.ReplaceAll(s, ",", ".")
	}
}

// String renders the amount with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// FormatCents renders raw cents the same way Money.String does.
func FormatCents(cents int64) string {
	return Money{Cents: cents}.String()
}
