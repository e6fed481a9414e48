// Package eastmoney is a read-only client for the Eastmoney push2 quote API.
// It serves full-market spot snapshots and kline history for A-shares, Hong
// Kong and US listings as raw tables with the site's Chinese column names;
// field resolution happens downstream in pkg/market.
package eastmoney

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
	defaultSpotBaseURL      = "https://82.push2.eastmoney.com"
	defaultHistoryBaseURL   = "https://push2his.eastmoney.com"
	defaultHTTPTimeout      = 15 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond

	spotPath  = "/api/qt/clist/get"
	klinePath = "/api/qt/stock/kline/get"
)

// Market filter expressions for /api/qt/clist/get.
const (
	aSpotFS     = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048"
	hkSpotFS    = "m:128+t:3,m:128+t:4,m:128+t:1,m:128+t:2"
	usSpotFS    = "m:105,m:106,m:107"
	indexSpotFS = "m:1+s:2,m:0+t:5"
)

// spotFields is the f-code list requested from the spot endpoint and
// spotColumns the table header it maps onto. f13 is the market number, used
// only to prefix US codes.
var (
	spotFields  = "f12,f13,f14,f2,f17,f15,f16,f18,f5,f6"
	spotColumns = []string{"代码", "名称", "最新价", "今开", "最高", "最低", "昨收", "成交量", "成交额"}
)

// klineColumns is the header of the comma-joined kline records (fields2
// order: date, open, close, high, low, volume, amount). Open/close precede
// high/low on the wire, so consumers must resolve columns by name.
var klineColumns = []string{"日期", "开盘", "收盘", "最高", "最低", "成交量", "成交额"}

// periodKlt maps history period names onto the klt parameter.
var periodKlt = map[string]string{
	"daily":   "101",
	"weekly":  "102",
	"monthly": "103",
}

// Client wraps access to the Eastmoney push2 endpoints.
type Client struct {
	spotBaseURL    string
	historyBaseURL string
	httpClient     *http.Client
	maxRetries     int
	logger         *log.Logger
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

// WithSpotBaseURL overrides the spot endpoint host.
func WithSpotBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.spotBaseURL = u
		}
	}
}

// WithHistoryBaseURL overrides the kline endpoint host.
func WithHistoryBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.historyBaseURL = u
		}
	}
}

// WithBaseURL points both endpoints at one host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.spotBaseURL = u
			c.historyBaseURL = u
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

// NewClient constructs an Eastmoney API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		spotBaseURL:    defaultSpotBaseURL,
		historyBaseURL: defaultHistoryBaseURL,
		httpClient:     httpClient,
		maxRetries:     defaultMaxRetries,
		logger:         log.Default(),
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

// secid prefixes a bare A-share or index code with its push2 market number:
// 1 for Shanghai (6/9/5-leading), 0 for Shenzhen.
func secid(code string) string {
	if code == "" {
		return code
	}
	switch code[0] {
	case '6', '9', '5':
		return "1." + code
	default:
		return "0." + code
	}
}

// AShareHistory returns kline history for a bare A-share, ETF or index code.
// Period is daily|weekly|monthly; start/end are YYYYMMDD.
func (c *Client) AShareHistory(ctx context.Context, code, period, start, end string) (*market.Table, error) {
	klt, ok := periodKlt[period]
	if !ok {
		klt = periodKlt["daily"]
	}
	return c.klines(ctx, secid(code), klt, start, end, false)
}

// AShareMinute returns intraday klines for a bare A-share code at a minute
// period ("5", "15", "30", "60"). Timestamps are normalised to full
// "YYYY-MM-DD HH:MM:SS" form.
func (c *Client) AShareMinute(ctx context.Context, code, period string) (*market.Table, error) {
	return c.klines(ctx, secid(code), period, "", "", true)
}

// HKHistory returns daily kline history for a bare 5-digit HK code.
func (c *Client) HKHistory(ctx context.Context, code, start, end string) (*market.Table, error) {
	return c.klines(ctx, "116."+code, periodKlt["daily"], start, end, false)
}

// USHistory returns daily kline history for a market-prefixed US code as it
// appears in the US spot table (e.g. "105.AAPL").
func (c *Client) USHistory(ctx context.Context, code, start, end string) (*market.Table, error) {
	return c.klines(ctx, code, periodKlt["daily"], start, end, false)
}

// ASpot returns the full A-share market snapshot.
func (c *Client) ASpot(ctx context.Context) (*market.Table, error) {
	return c.spot(ctx, aSpotFS, false)
}

// HKSpot returns the full Hong Kong market snapshot.
func (c *Client) HKSpot(ctx context.Context) (*market.Table, error) {
	return c.spot(ctx, hkSpotFS, false)
}

// USSpot returns the full US market snapshot. Codes carry the market-number
// prefix ("105.AAPL") so they can be fed back into USHistory.
func (c *Client) USSpot(ctx context.Context) (*market.Table, error) {
	return c.spot(ctx, usSpotFS, true)
}

// IndexSpot returns the snapshot of the major mainland indices.
func (c *Client) IndexSpot(ctx context.Context) (*market.Table, error) {
	return c.spot(ctx, indexSpotFS, false)
}

func (c *Client) spot(ctx context.Context, fs string, prefixCodes bool) (*market.Table, error) {
	query := url.Values{
		"pn":     {"1"},
		"pz":     {"10000"},
		"po":     {"1"},
		"np":     {"1"},
		"fltt":   {"2"},
		"invt":   {"2"},
		"fid":    {"f3"},
		"fs":     {fs},
		"fields": {spotFields},
	}
	var resp spotResponse
	if err := c.doRequest(ctx, c.spotBaseURL+spotPath, query, &resp); err != nil {
		return nil, err
	}

	table := &market.Table{Columns: spotColumns}
	if resp.Data == nil {
		return table, nil
	}
	for _, diff := range resp.Data.Diff {
		code := string(diff["f12"])
		if prefixCodes {
			if m := string(diff["f13"]); m != "" {
				code = m + "." + code
			}
		}
		table.Rows = append(table.Rows, []string{
			code,
			string(diff["f14"]),
			string(diff["f2"]),
			string(diff["f17"]),
			string(diff["f15"]),
			string(diff["f16"]),
			string(diff["f18"]),
			string(diff["f5"]),
			string(diff["f6"]),
		})
	}
	return table, nil
}

func (c *Client) klines(ctx context.Context, sec, klt, start, end string, intraday bool) (*market.Table, error) {
	if start == "" {
		start = "0"
	}
	if end == "" {
		end = "20500101"
	}
	query := url.Values{
		"secid":   {sec},
		"klt":     {klt},
		"fqt":     {"1"},
		"beg":     {start},
		"end":     {end},
		"fields1": {"f1,f2,f3,f4,f5,f6"},
		"fields2": {"f51,f52,f53,f54,f55,f56,f57"},
	}
	var resp klineResponse
	if err := c.doRequest(ctx, c.historyBaseURL+klinePath, query, &resp); err != nil {
		return nil, err
	}

	table := &market.Table{Columns: klineColumns}
	if resp.Data == nil {
		return table, nil
	}
	for _, line := range resp.Data.Klines {
		row := strings.Split(line, ",")
		if len(row) < len(klineColumns) {
			c.logf("eastmoney: short kline record for %s: %q", sec, line)
			continue
		}
		if intraday && len(row[0]) == len("2006-01-02 15:04") {
			row[0] += ":00"
		}
		table.Rows = append(table.Rows, row[:len(klineColumns)])
	}
	return table, nil
}

// statusError carries a non-2xx response so callers can branch on the code.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("eastmoney: http status %d: %s", e.code, e.body)
}

// doRequest issues a GET and decodes the JSON response into result, retrying
// transport failures and 5xx responses with doubling backoff. 4xx responses
// are not retried.
func (c *Client) doRequest(ctx context.Context, endpoint string, query url.Values, result interface{}) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("eastmoney: build request: %w", err)
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
				lastErr = fmt.Errorf("eastmoney: read response: %w", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if result != nil {
					if err := json.Unmarshal(body, result); err != nil {
						return fmt.Errorf("eastmoney: decode response: %w", err)
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
			c.logf("eastmoney: retrying after %v: %v", backoff, lastErr)
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
	return errors.New("eastmoney: request failed without error detail")
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
