package model

import (
	"fmt"
	"time"
)

// ParseDate parses a strict YYYYMMDD string into a UTC date.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("date %q: want YYYYMMDD", s)
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYYMMDD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month int
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) MonthKey { return MonthKey{Year: t.Year(), Month: int(t.Month())} }

// Prev returns the calendar month before k.
func (k MonthKey) Prev() MonthKey {
	if k.Month <= 1 {
		return MonthKey{Year: k.Year - 1, Month: 12}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

// Before reports whether k is strictly earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// First returns the first day of the month.
func (k MonthKey) First() time.Time {
	return time.Date(k.Year, time.Month(k.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Last returns the last day of the month.
func (k MonthKey) Last() time.Time { return k.First().AddDate(0, 1, -1) }

func (k MonthKey) String() string { return fmt.Sprintf("%04d-%02d", k.Year, k.Month) }
