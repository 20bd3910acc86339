// Package financialdatasets is a minimal client for the financialdatasets.ai price API.
package financialdatasets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.financialdatasets.ai"

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("financialdatasets: api key is empty")

// ErrForeignNextPage is returned for continuation URLs outside the API's origin.
var ErrForeignNextPage = errors.New("financialdatasets: next page url points to another host")

// Price is one OHLCV bar.
type Price struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Time   string  `json:"time"`
}

// Snapshot is the latest known price of a ticker.
type Snapshot struct {
	Ticker           string  `json:"ticker"`
	Price            float64 `json:"price"`
	DayChange        float64 `json:"day_change"`
	DayChangePercent float64 `json:"day_change_percent"`
	Time             string  `json:"time"`
}

// PricesQuery selects a price series.
type PricesQuery struct {
	Ticker     string
	Interval   string
	Multiplier int
	StartDate  string
	EndDate    string
	Limit      int
}

// PricesPage is one page of a price series. NextPageURL is empty on the last page.
type PricesPage struct {
	Prices      []Price `json:"prices"`
	NextPageURL string  `json:"next_page_url"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("financialdatasets: %s returned %s", e.URL, e.Status)
}

// IsStatus reports whether err carries a non-success HTTP status.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Client is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default client (20s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Snapshot fetches the latest price of ticker.
func (c *Client) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	q := url.Values{"ticker": {ticker}}
	var out struct {
		Snapshot *Snapshot `json:"snapshot"`
	}
	if err := c.get(ctx, c.baseURL+"/prices/snapshot?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out.Snapshot == nil {
		return nil, fmt.Errorf("financialdatasets: snapshot for %s missing from response", ticker)
	}
	if out.Snapshot.Ticker == "" {
		out.Snapshot.Ticker = ticker
	}
	return out.Snapshot, nil
}

// Prices fetches the first page of a series.
func (c *Client) Prices(ctx context.Context, in PricesQuery) (*PricesPage, error) {
	q := url.Values{
		"ticker":              {in.Ticker},
		"interval":            {in.Interval},
		"interval_multiplier": {strconv.Itoa(in.Multiplier)},
		"start_date":          {in.StartDate},
		"end_date":            {in.EndDate},
	}
	if in.Limit > 0 {
		q.Set("limit", strconv.Itoa(in.Limit))
	}
	var page PricesPage
	if err := c.get(ctx, c.baseURL+"/prices?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// NextPage follows a continuation URL returned by a previous page. Relative URLs resolve
// against the base URL; absolute ones must point at the same scheme and host, since the
// API key is attached to the request.
func (c *Client) NextPage(ctx context.Context, nextURL string) (*PricesPage, error) {
	target, err := c.sameOrigin(nextURL)
	if err != nil {
		return nil, err
	}
	var page PricesPage
	if err := c.get(ctx, target, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) sameOrigin(nextURL string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("financialdatasets: parse base url: %w", err)
	}
	next, err := url.Parse(strings.TrimSpace(nextURL))
	if err != nil {
		return "", fmt.Errorf("financialdatasets: parse next page url: %w", err)
	}
	next = base.ResolveReference(next)
	if !strings.EqualFold(next.Scheme, base.Scheme) || !strings.EqualFold(next.Host, base.Host) {
		return "", fmt.Errorf("%w: %s", ErrForeignNextPage, next.Host)
	}
	return next.String(), nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("financialdatasets: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("financialdatasets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: redact(rawURL)}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(out); err != nil {
		return fmt.Errorf("financialdatasets: decode %s: %w", redact(rawURL), err)
	}
	return nil
}

// redact drops the query string from URLs placed in errors.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.String()
}
