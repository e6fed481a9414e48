// Package binance is a thin read-only client for the Binance spot REST API:
// 24h tickers, exchange metadata and klines. It carries no credentials; all
// endpoints used here are public.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL          = "https://api.binance.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond
)

// ErrSymbolNotFound indicates that the requested trading pair is not listed.
var ErrSymbolNotFound = errors.New("binance: symbol not found")

// Client wraps access to the Binance spot REST API.
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

// NewClient constructs a Binance API client.
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

// Ticker24h returns the rolling 24h ticker for one trading pair. An unknown
// pair surfaces as ErrSymbolNotFound.
func (c *Client) Ticker24h(ctx context.Context, symbol string) (*Ticker24h, error) {
	var ticker Ticker24h
	query := url.Values{"symbol": {symbol}}
	if err := c.doRequest(ctx, "/api/v3/ticker/24hr", query, &ticker); err != nil {
		var httpErr *statusError
		if errors.As(err, &httpErr) && httpErr.code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, err
	}
	return &ticker, nil
}

// AllTickers24h returns the rolling 24h ticker for every listed pair.
func (c *Client) AllTickers24h(ctx context.Context) ([]Ticker24h, error) {
	var tickers []Ticker24h
	if err := c.doRequest(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// ExchangeInfo returns exchange-wide metadata and the full symbol directory.
func (c *Client) ExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	var info ExchangeInfo
	if err := c.doRequest(ctx, "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Klines returns up to limit candles for symbol at the given native interval
// token ("1d", "1h", "5m", ...), oldest first as Binance serves them.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	query := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var klines []Kline
	if err := c.doRequest(ctx, "/api/v3/klines", query, &klines); err != nil {
		var httpErr *statusError
		if errors.As(err, &httpErr) && httpErr.code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, err
	}
	return klines, nil
}

// statusError carries a non-2xx response so callers can branch on the code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("binance: http status %d: %s", e.code, e.body)
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
			return fmt.Errorf("binance: build request: %w", err)
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
				lastErr = fmt.Errorf("binance: read response: %w", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("binance: decode response: %w", err)
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
			c.logf("binance: retrying %s after %v: %v", path, backoff, lastErr)
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
	return fmt.Errorf("binance: request failed without error detail")
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
