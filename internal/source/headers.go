package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"monthbars/internal/model"
)

// Field is a canonical bar column.
type Field int

const (
	FieldDate Field = iota
	FieldOpen
	FieldClose
	FieldHigh
	FieldLow
	FieldVolume
	FieldAmount
	FieldPctChg
)

var fieldNames = [...]string{"date", "open", "close", "high", "low", "volume", "amount", "pct_chg"}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Headers maps each canonical field to the header spellings a provider may use.
// Aliases are compared case-insensitively.
type Headers map[Field][]string

// DefaultHeaders covers the English spellings shared by most providers.
var DefaultHeaders = Headers{
	FieldDate:   {"trade_date", "date"},
	FieldOpen:   {"open"},
	FieldClose:  {"close"},
	FieldHigh:   {"high"},
	FieldLow:    {"low"},
	FieldVolume: {"volume", "vol"},
	FieldAmount: {"amount"},
	FieldPctChg: {"pct_chg", "pctchg", "change_percent", "pct"},
}

// With returns a copy of h with extra aliases appended per field.
func (h Headers) With(extra Headers) Headers {
	out := make(Headers, len(h)+len(extra))
	for f, a := range h {
		out[f] = append([]string(nil), a...)
	}
	for f, a := range extra {
		out[f] = append(out[f], a...)
	}
	return out
}

// ColumnMap is the resolved column index per field; -1 when absent.
type ColumnMap map[Field]int

// Index returns the column index of f or -1.
func (m ColumnMap) Index(f Field) int {
	if i, ok := m[f]; ok {
		return i
	}
	return -1
}

var orderedFields = []Field{FieldDate, FieldOpen, FieldClose, FieldHigh, FieldLow, FieldVolume, FieldAmount, FieldPctChg}

// Resolve matches columns against the aliases: exact matches first, then
// substring matches on columns not already claimed. Fails with
// ErrSchemaMismatch when date, open or close cannot be found.
func (h Headers) Resolve(columns []string) (ColumnMap, error) {
	lower := make([]string, len(columns))
	for i, c := range columns {
		lower[i] = strings.ToLower(strings.TrimSpace(c))
	}
	claimed := make(map[int]bool, len(columns))
	m := make(ColumnMap, len(orderedFields))

	for _, f := range orderedFields {
	exact:
		for _, alias := range h[f] {
			a := strings.ToLower(alias)
			for i, c := range lower {
				if !claimed[i] && c == a {
					m[f] = i
					claimed[i] = true
					break exact
				}
			}
		}
	}
	for _, f := range orderedFields {
		if _, ok := m[f]; ok {
			continue
		}
	sub:
		for _, alias := range h[f] {
			a := strings.ToLower(alias)
			for i, c := range lower {
				if !claimed[i] && strings.Contains(c, a) {
					m[f] = i
					claimed[i] = true
					break sub
				}
			}
		}
	}

	var missing []string
	for _, f := range []Field{FieldDate, FieldOpen, FieldClose} {
		if _, ok := m[f]; !ok {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s in %v", ErrSchemaMismatch, strings.Join(missing, ","), columns)
	}
	return m, nil
}

// MapTable converts a provider table into raw bars. Rows whose date cannot
// be parsed are dropped; if every row is dropped the table is a schema mismatch.
func MapTable(t Table, h Headers) ([]model.RawBar, error) {
	if t.Len() == 0 {
		return nil, nil
	}
	cols, err := h.Resolve(t.Columns)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawBar, 0, len(t.Rows))
	for _, row := range t.Rows {
		d, ok := ParseDateCell(cell(row, cols.Index(FieldDate)))
		if !ok {
			continue
		}
		out = append(out, model.RawBar{
			Date:   d,
			Open:   ParseNumber(cell(row, cols.Index(FieldOpen))),
			Close:  ParseNumber(cell(row, cols.Index(FieldClose))),
			High:   ParseNumber(cell(row, cols.Index(FieldHigh))),
			Low:    ParseNumber(cell(row, cols.Index(FieldLow))),
			Volume: ParseNumber(cell(row, cols.Index(FieldVolume))),
			Amount: ParseNumber(cell(row, cols.Index(FieldAmount))),
			PctChg: ParseNumber(cell(row, cols.Index(FieldPctChg))),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no parseable dates in %d rows", ErrSchemaMismatch, t.Len())
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDateCell parses the date spellings providers are known to send.
func ParseDateCell(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a numeric cell. Thousands separators and a trailing
// percent sign are tolerated; blanks and placeholders yield an invalid value.
func ParseNumber(s string) null.Float {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	switch strings.ToLower(s) {
	case "", "-", "--", "none", "null", "nan":
		return null.Float{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(d.InexactFloat64())
}
