// Package sina is a minimal client for the Sina Finance US daily-kline API,
// used as the fallback history source when the primary US chain yields
// nothing. Tables come back with lowercase English column names.
package sina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quotebot-api/pkg/market"
)

const (
	defaultBaseURL          = "https://stock.finance.sina.com.cn"
	defaultHTTPTimeout      = 15 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond

	dailyKPath = "/usstock/api/json_v2.php/US_MinKService.getDailyK"
)

var dailyColumns = []string{"date", "open", "high", "low", "close", "volume"}

// dailyRecord is one kline of the getDailyK response. All values arrive as
// strings.
type dailyRecord struct {
	Date   string `json:"d"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

// Client wraps access to the Sina US kline endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithMaxRetries adjusts the transport retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a Sina API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// USDaily returns the full daily kline history for a bare US ticker.
func (c *Client) USDaily(ctx context.Context, ticker string) (*market.Table, error) {
	query := url.Values{"symbol": {strings.ToLower(strings.TrimSpace(ticker))}}

	var records []dailyRecord
	if err := c.doRequest(ctx, dailyKPath, query, &records); err != nil {
		return nil, err
	}

	table := &market.Table{Columns: dailyColumns}
	for _, rec := range records {
		table.Rows = append(table.Rows, []string{
			rec.Date, rec.Open, rec.High, rec.Low, rec.Close, rec.Volume,
		})
	}
	return table, nil
}

// statusError carries a non-2xx response so callers can branch on the code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sina: http status %d: %s", e.code, e.body)
}

// doRequest issues a GET and decodes the JSON response into result, retrying
// transport failures and 5xx responses with doubling backoff. 4xx responses
// are not retried.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("sina: build request: %w", err)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("sina: read response: %w", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("sina: decode response: %w", err)
					}
				}
				return nil
			case resp.StatusCode >= 500:
				lastErr = &statusError{code: resp.StatusCode, body: string(body)}
			default:
				return &statusError{code: resp.StatusCode, body: string(body)}
			}
		}

		if attempt < c.maxRetries {
			c.logf("sina: retrying %s after %v: %v", path, backoff, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return errors.New("sina: request failed without error detail")
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
