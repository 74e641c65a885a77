package tushare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"monthbars/internal/source"
)

const baseURL = "https://api.tushare.pro"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=tushare_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the tushare pro API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// token authenticates every call; tushare carries it in the body.
	token string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the tushare client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new tushare client. An empty token is rejected since
// every tushare endpoint requires one.
func NewClient(token string, options ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("tushare: token is required")
	}
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// APIError is a non-zero code in a tushare response envelope.
type APIError struct {
	API  string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tushare %s: code %d: %s", e.API, e.Code, e.Msg)
}

type request struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Fields []string `json:"fields"`
		Items  [][]any  `json:"items"`
	} `json:"data"`
}

// Query calls one tushare API and returns its rows with every cell as a string.
func (c *Client) Query(ctx context.Context, apiName string, params map[string]string, fields []string) (source.Table, error) {
	body, err := json.Marshal(request{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  strings.Join(fields, ","),
	})
	if err != nil {
		return source.Table{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
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
	case http.StatusForbidden, http.StatusUnauthorized:
		return source.Table{}, fmt.Errorf("unauthorized")
	case http.StatusTooManyRequests:
		return source.Table{}, fmt.Errorf("rate limited")
	default:
		return source.Table{}, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var out response
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return source.Table{}, fmt.Errorf("decoding %s response: %w", apiName, err)
	}
	if out.Code != 0 {
		return source.Table{}, &APIError{API: apiName, Code: out.Code, Msg: out.Msg}
	}
	if out.Data == nil {
		return source.Table{}, nil
	}

	return source.Table{Columns: out.Data.Fields, Rows: source.StringRows(out.Data.Items)}, nil
}
