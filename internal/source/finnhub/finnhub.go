package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"monthbars/internal/source"
)

const Tag = "finnhub"

// Exchange key for plain tickers with no exchange suffix.
const ExchangeUS = "US"

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Tag    string
	URL    string // default https://finnhub.io/api/v1
	APIKey string
	// Exchanges lists the covered exchanges ("US", "SH", "SZ"). Symbols on
	// other exchanges are unsupported. Default: US only.
	Exchanges []string
	Headers   map[string]string
}

// Adapter reads candles from finnhub. A-share coverage depends on the plan.
type Adapter struct {
	cfg     Config
	client  HTTPClient
	covered map[string]bool
}

func New(cfg Config, hc HTTPClient) *Adapter {
	if cfg.Tag == "" {
		cfg.Tag = Tag
	}
	if cfg.URL == "" {
		cfg.URL = "https://finnhub.io/api/v1"
	}
	if len(cfg.Exchanges) == 0 {
		cfg.Exchanges = []string{ExchangeUS}
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	covered := make(map[string]bool, len(cfg.Exchanges))
	for _, e := range cfg.Exchanges {
		covered[strings.ToUpper(strings.TrimSpace(e))] = true
	}
	return &Adapter{cfg: cfg, client: hc, covered: covered}
}

func (a *Adapter) Tag() string { return a.cfg.Tag }

// ProviderCode maps to finnhub symbols: "AAPL", "600000.SS", "000001.SZ".
func (a *Adapter) ProviderCode(symbol string) (string, error) {
	code, ex, err := source.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	key := ex
	if key == "" {
		key = ExchangeUS
	}
	if !a.covered[key] {
		return "", fmt.Errorf("finnhub: exchange %s: %w", key, source.ErrUnsupported)
	}
	switch ex {
	case "":
		return code, nil
	case source.ExchangeSH:
		return code + ".SS", nil
	default:
		return code + "." + ex, nil
	}
}

func (a *Adapter) Headers() source.Headers { return source.DefaultHeaders }

func (a *Adapter) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.candles(ctx, symbol, "M", start, end)
}

func (a *Adapter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.candles(ctx, symbol, "D", start, end)
}

type candleResponse struct {
	Status string        `json:"s"`
	Open   []json.Number `json:"o"`
	High   []json.Number `json:"h"`
	Low    []json.Number `json:"l"`
	Close  []json.Number `json:"c"`
	Volume []json.Number `json:"v"`
	Time   []int64       `json:"t"`
	Error  string        `json:"error"`
}

func (a *Adapter) candles(ctx context.Context, symbol, resolution string, start, end time.Time) (source.Table, error) {
	code, err := a.ProviderCode(symbol)
	if err != nil {
		return source.Table{}, err
	}
	q := url.Values{}
	q.Set("symbol", code)
	q.Set("resolution", resolution)
	q.Set("from", strconv.FormatInt(start.Unix(), 10))
	// end is inclusive: cover the whole last day
	q.Set("to", strconv.FormatInt(end.Add(24*time.Hour-time.Second).Unix(), 10))
	if a.cfg.APIKey != "" {
		q.Set("token", a.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.URL+"/stock/candle?"+q.Encode(), http.NoBody)
	if err != nil {
		return source.Table{}, err
	}
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return source.Table{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// finnhub answers 403 for symbols outside the key's plan
		return source.Table{}, fmt.Errorf("finnhub %s: %w", code, source.ErrUnsupported)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return source.Table{}, fmt.Errorf("GET /stock/candle -> %d: %s", resp.StatusCode, string(b))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var api candleResponse
	if err := dec.Decode(&api); err != nil {
		return source.Table{}, fmt.Errorf("decode: %w", err)
	}
	if api.Error != "" {
		return source.Table{}, fmt.Errorf("provider error: %s", api.Error)
	}
	if api.Status == "no_data" {
		return source.Table{}, nil
	}
	if api.Status != "ok" {
		return source.Table{}, fmt.Errorf("unexpected status %q", api.Status)
	}
	return candleTable(api)
}

func candleTable(api candleResponse) (source.Table, error) {
	n := len(api.Time)
	for _, col := range [][]json.Number{api.Open, api.Close} {
		if len(col) != n {
			return source.Table{}, fmt.Errorf("%w: ragged candle arrays", source.ErrSchemaMismatch)
		}
	}
	t := source.Table{
		Columns: []string{"date", "open", "high", "low", "close", "volume"},
		Rows:    make([][]string, 0, n),
	}
	for i, ts := range api.Time {
		t.Rows = append(t.Rows, []string{
			time.Unix(ts, 0).UTC().Format("2006-01-02"),
			at(api.Open, i),
			at(api.High, i),
			at(api.Low, i),
			at(api.Close, i),
			at(api.Volume, i),
		})
	}
	return t, nil
}

func at(col []json.Number, i int) string {
	if i < len(col) {
		return col[i].String()
	}
	return ""
}

var _ source.Adapter = (*Adapter)(nil)
