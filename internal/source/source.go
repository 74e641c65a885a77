package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

var (
	// ErrUnsupported means the provider does not offer the capability at all.
	// The orchestrator skips that path instead of treating it as a failure.
	ErrUnsupported = errors.New("source: operation not supported by provider")
	// ErrSchemaMismatch means date/open/close could not be resolved from the response.
	ErrSchemaMismatch = errors.New("source: unexpected response schema")
)

// Frequency of a provider request.
type Frequency string

const (
	Monthly Frequency = "monthly"
	Daily   Frequency = "daily"
)

// Table is a raw provider row set. Cells are kept as strings so every
// provider, whatever its wire format, maps through the same parser.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// StringRows converts decoded JSON rows into string cells. Decoders should
// use UseNumber so numeric cells keep the vendor's digits.
func StringRows(items [][]any) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := make([]string, len(item))
		for i, v := range item {
			switch x := v.(type) {
			case nil:
			case string:
				row[i] = x
			case json.Number:
				row[i] = x.String()
			case float64:
				row[i] = strconv.FormatFloat(x, 'f', -1, 64)
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

//go:generate mockgen -package=sourcemock -destination=sourcemock/mock_source.go -source=source.go Adapter ListingSource

// Adapter translates canonical requests into one provider's native calls.
// symbol is always canonical ("000001.SZ"); implementations convert it with ProviderCode.
type Adapter interface {
	Tag() string
	ProviderCode(symbol string) (string, error)
	FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (Table, error)
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) (Table, error)
	// Headers lists the column aliases this provider uses.
	Headers() Headers
}

// ListingSource is implemented by providers that expose listing metadata.
// An unknown listing date is returned as "" with a nil error.
type ListingSource interface {
	ListingDate(ctx context.Context, symbol string) (string, error)
}

// Registry is the closed set of adapters selectable by tag.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter under its tag.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = make(map[string]Adapter)
	}
	r.adapters[a.Tag()] = a
}

// Get returns the adapter for tag.
func (r *Registry) Get(tag string) (Adapter, bool) {
	a, ok := r.adapters[tag]
	return a, ok
}

// MustGet is Get for wiring code where a missing tag is a bug.
func (r *Registry) MustGet(tag string) Adapter {
	a, ok := r.Get(tag)
	if !ok {
		panic(fmt.Sprintf("source: no adapter registered for %q", tag))
	}
	return a
}

// Tags returns registered tags in sorted order.
func (r *Registry) Tags() []string {
	out := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Unwrapper is implemented by adapter decorators.
type Unwrapper interface {
	Unwrap() Adapter
}

// AsListingSource looks through decorators for a ListingSource.
func AsListingSource(a Adapter) (ListingSource, bool) {
	for a != nil {
		if ls, ok := a.(ListingSource); ok {
			return ls, true
		}
		u, ok := a.(Unwrapper)
		if !ok {
			return nil, false
		}
		a = u.Unwrap()
	}
	return nil, false
}
