package core

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

// MonthOf derives the key from the calendar date of t in its own location.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthLayout))
}

func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

func (m MonthKey) String() string { return string(m) }

func (m MonthKey) Valid() bool {
	_, err := time.Parse(monthLayout, string(m))
	return err == nil
}

// Start returns midnight of the first day of the month in loc.
func (m MonthKey) Start(loc *time.Location) time.Time {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// Days returns the number of days in the month, or 0 for an invalid key.
func (m MonthKey) Days() int {
	start := m.Start(time.UTC)
	if start.IsZero() {
		return 0
	}
	return start.AddDate(0, 1, -1).Day()
}

// Contains reports whether t falls inside the month on its own calendar.
func (m MonthKey) Contains(t time.Time) bool {
	return MonthOf(t) == m
}

func (m MonthKey) Next() MonthKey {
	return MonthOf(m.Start(time.UTC).AddDate(0, 1, 0))
}

func (m MonthKey) Prev() MonthKey {
	return MonthOf(m.Start(time.UTC).AddDate(0, -1, 0))
}

// Keys are zero padded so lexical order is chronological.
func (m MonthKey) Before(o MonthKey) bool { return m < o }

func (m MonthKey) After(o MonthKey) bool { return m > o }
