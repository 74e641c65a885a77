// Package bridge talks to the Python sidecar that hosts the vendor SDKs
// without an HTTP API of their own (akshare, baostock). The sidecar exposes
// each SDK function as POST {base}/{sdk}/{function} taking the keyword
// arguments as a JSON object and answering {"columns", "rows", "error"}.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"monthbars/internal/source"
)

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls SDK functions through the sidecar.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for sidecar calls.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithHeader adds headers sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

func New(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("bridge: base url is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

type reply struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Error   string   `json:"error"`
}

// Call invokes fn with args. HTTP 501 from the sidecar means the SDK does not
// offer fn and maps to source.ErrUnsupported.
func (c *Client) Call(ctx context.Context, fn string, args map[string]any) (source.Table, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return source.Table{}, fmt.Errorf("encoding %s args: %w", fn, err)
	}
	url := c.baseURL + "/" + strings.TrimLeft(fn, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return source.Table{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return source.Table{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotImplemented:
		return source.Table{}, fmt.Errorf("%s: %w", fn, source.ErrUnsupported)
	default:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return source.Table{}, fmt.Errorf("%s: unexpected status code %d: %s", fn, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out reply
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return source.Table{}, fmt.Errorf("decoding %s reply: %w", fn, err)
	}
	if out.Error != "" {
		return source.Table{}, fmt.Errorf("%s: %s", fn, out.Error)
	}
	return source.Table{Columns: out.Columns, Rows: source.StringRows(out.Rows)}, nil
}
