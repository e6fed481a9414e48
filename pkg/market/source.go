package market

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/collection"
	"github.com/zeromicro/go-zero/core/logx"

	"quotebot-api/pkg/fetch"
	"quotebot-api/pkg/symbol"
)

// EquityProvider supplies raw spot and history tables for listed equities,
// funds and indices. Implementations return market-local column names; the
// source resolves them through the alias lists in columns.go.
type EquityProvider interface {
	AShareHistory(ctx context.Context, code, period, start, end string) (*Table, error)
	AShareMinute(ctx context.Context, code, period string) (*Table, error)
	HKHistory(ctx context.Context, code, start, end string) (*Table, error)
	USHistory(ctx context.Context, code, start, end string) (*Table, error)
	ASpot(ctx context.Context) (*Table, error)
	HKSpot(ctx context.Context) (*Table, error)
	USSpot(ctx context.Context) (*Table, error)
	IndexSpot(ctx context.Context) (*Table, error)
}

// USDailyProvider is the fallback history source tried when the primary US
// chain yields nothing.
type USDailyProvider interface {
	USDaily(ctx context.Context, ticker string) (*Table, error)
}

const (
	usSpotTimeout = 12 * time.Second
	usMaxRetries  = 1
)

// Source is the uniform market data facade. Every public method swallows
// internal failures: history methods return an empty slice, realtime methods
// return nil or a QuoteError. Full-market spot tables are cached for
// DataCacheTTL seconds; concurrent refreshes race benignly since each writer
// stores an equivalent snapshot.
type Source struct {
	cfg        *Config
	pool       *fetch.Pool
	equity     EquityProvider
	usFallback USDailyProvider
	crypto     CryptoAPI
	cache      *collection.Cache
	now        func() time.Time
}

// NewSource wires a Source over its providers. usFallback and crypto may be
// nil when the corresponding market is disabled.
func NewSource(cfg *Config, pool *fetch.Pool, equity EquityProvider, usFallback USDailyProvider, crypto CryptoAPI) (*Source, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if pool == nil {
		pool = fetch.NewPool(0)
	}
	cache, err := collection.NewCache(cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("market: init cache: %w", err)
	}
	return &Source{
		cfg:        cfg,
		pool:       pool,
		equity:     equity,
		usFallback: usFallback,
		crypto:     crypto,
		cache:      cache,
		now:        time.Now,
	}, nil
}

// normalizeCode runs auto-correction and validates the result. The boolean is
// false when the code cannot be brought to canonical form.
func (s *Source) normalizeCode(code string) (string, bool) {
	if s.cfg.EnableAutoCorrection {
		corrected := symbol.NormalizeEquity(code)
		if corrected != code {
			logx.Infof("market: corrected symbol %s -> %s", code, corrected)
			code = corrected
		}
	}
	if !symbol.IsCanonical(code) {
		logx.Errorf("market: invalid symbol format: %s", code)
		return code, false
	}
	return code, true
}

// GetDaily returns daily bars for an equity, fund or index symbol, oldest
// first, capped at DailyMaxRecords. Dates are YYYYMMDD; zero values default
// the range to [today - DefaultDaysBack, today]. Failures yield an empty
// slice, never an error.
func (s *Source) GetDaily(ctx context.Context, code, start, end string) []Bar {
	code, ok := s.normalizeCode(code)
	if !ok {
		return nil
	}
	if start == "" {
		start = s.now().AddDate(0, 0, -s.cfg.DataLimits.DefaultDaysBack).Format("20060102")
	}
	if end == "" {
		end = s.now().Format("20060102")
	}

	class := classify(code)
	bare := bareCode(code)
	var (
		table *Table
		err   error
	)
	switch class {
	case classAShare, classETF, classIndex:
		table, err = fetch.Retry(ctx, s.pool, usMaxRetries, s.cfg.GeneralTimeout(), func() (*Table, error) {
			return s.equity.AShareHistory(ctx, bare, "daily", start, end)
		})
	case classHK:
		if !s.cfg.Features.EnableHKStock {
			logx.Infof("market: hk lookups disabled, skipping %s", code)
			return nil
		}
		table, err = fetch.Retry(ctx, s.pool, usMaxRetries, s.cfg.GeneralTimeout(), func() (*Table, error) {
			return s.equity.HKHistory(ctx, bare, start, end)
		})
	case classUS:
		if !s.cfg.Features.EnableUSStock {
			logx.Infof("market: us lookups disabled, skipping %s", code)
			return nil
		}
		table = s.usDailyTable(ctx, bare, start, end)
	}
	if err != nil {
		logx.Errorf("market: %s history for %s failed: %v", class, code, err)
		return nil
	}
	if table == nil || len(table.Rows) == 0 {
		logx.Infof("market: no daily rows for %s", code)
		return nil
	}
	return assembleBars(table, code, s.cfg.DataLimits.DailyMaxRecords, s.now)
}

// usDailyTable tries the primary US chain (spot lookup for the provider's
// prefixed code, then its history endpoint) and falls back to the secondary
// daily provider. Both legs failing yields nil.
func (s *Source) usDailyTable(ctx context.Context, ticker, start, end string) *Table {
	upper := strings.ToUpper(ticker)

	spot, err := fetch.Retry(ctx, s.pool, usMaxRetries, usSpotTimeout, func() (*Table, error) {
		return s.equity.USSpot(ctx)
	})
	if err != nil {
		logx.Infof("market: us spot lookup failed: %v", err)
	} else if mapped := matchUSCode(spot, upper); mapped != "" {
		logx.Infof("market: us code mapping %s -> %s", upper, mapped)
		table, err := fetch.Retry(ctx, s.pool, usMaxRetries, s.cfg.USStockTimeout(), func() (*Table, error) {
			return s.equity.USHistory(ctx, mapped, start, end)
		})
		if err != nil {
			logx.Infof("market: primary us history for %s failed: %v", upper, err)
		} else if table != nil && len(table.Rows) > 0 {
			return table
		}
	} else {
		logx.Infof("market: no us code mapping for %s", upper)
	}

	if s.usFallback == nil {
		return nil
	}
	table, err := fetch.Retry(ctx, s.pool, usMaxRetries, s.cfg.USStockTimeout(), func() (*Table, error) {
		return s.usFallback.USDaily(ctx, upper)
	})
	if err != nil {
		logx.Infof("market: fallback us history for %s failed: %v", upper, err)
		return nil
	}
	return table
}

// matchUSCode finds the provider-prefixed US code (e.g. "105.AAPL") whose
// suffix equals the bare ticker.
func matchUSCode(spot *Table, ticker string) string {
	if spot == nil {
		return ""
	}
	suffix := regexp.MustCompile(regexp.QuoteMeta(ticker) + "$")
	for _, row := range spot.Rows {
		code := spot.Cell(row, "代码")
		if suffix.MatchString(code) {
			return code
		}
	}
	return ""
}

// GetRealtime returns the live snapshot for an equity symbol. A nil Quote
// with a nil QuoteError means no data (invalid symbol or no matching row);
// US lookups surface structured errors so the caller can show a hint.
func (s *Source) GetRealtime(ctx context.Context, code string) (*Quote, *QuoteError) {
	code, ok := s.normalizeCode(code)
	if !ok {
		return nil, nil
	}
	bare := bareCode(code)

	switch {
	case strings.HasSuffix(code, ".SH") || strings.HasSuffix(code, ".SZ"):
		table := s.cachedSpot(ctx, "spot:a", s.cfg.GeneralTimeout(), s.equity.ASpot)
		return s.spotQuote(table, code, bare), nil
	case strings.HasSuffix(code, ".HK"):
		if !s.cfg.Features.EnableHKStock {
			return nil, &QuoteError{Message: "HK stock lookups are disabled", Symbol: code}
		}
		table := s.cachedSpot(ctx, "spot:hk", s.cfg.GeneralTimeout(), s.equity.HKSpot)
		return s.spotQuote(table, code, bare), nil
	case strings.HasSuffix(code, ".US"):
		return s.usRealtime(ctx, code, bare)
	}
	return nil, nil
}

// cachedSpot returns the full-market snapshot under key, fetching through the
// pool on a cache miss. Fetch failures are logged and yield nil.
func (s *Source) cachedSpot(ctx context.Context, key string, timeout time.Duration, op func(context.Context) (*Table, error)) *Table {
	if cached, ok := s.cache.Get(key); ok {
		if table, ok := cached.(*Table); ok {
			return table
		}
	}
	table, err := fetch.Retry(ctx, s.pool, usMaxRetries, timeout, func() (*Table, error) {
		return op(ctx)
	})
	if err != nil {
		logx.Errorf("market: spot fetch %s failed: %v", key, err)
		return nil
	}
	if table != nil {
		s.cache.Set(key, table)
	}
	return table
}

// spotQuote filters a spot table by exact numeric code and maps the Chinese
// snapshot columns onto a Quote.
func (s *Source) spotQuote(table *Table, code, bare string) *Quote {
	row := findRowByCode(table, bare)
	if row == nil {
		logx.Infof("market: no spot row for %s", code)
		return nil
	}
	return &Quote{
		Symbol:   code,
		Name:     table.Cell(row, "名称"),
		Price:    cellFloat(table, row, "最新价"),
		Open:     cellFloat(table, row, "今开"),
		High:     cellFloat(table, row, "最高"),
		Low:      cellFloat(table, row, "最低"),
		PreClose: cellFloat(table, row, "昨收"),
		Volume:   cellFloat(table, row, "成交量"),
		Amount:   cellFloat(table, row, "成交额"),
		Time:     s.now().Format("15:04:05"),
	}
}

// usRealtime resolves a US ticker against the cached US spot table, first by
// exact code suffix, then by case-insensitive name substring. Field names on
// the US table drift between mirrors, so each logical field tries a list of
// aliases and defaults to 0.
func (s *Source) usRealtime(ctx context.Context, code, bare string) (*Quote, *QuoteError) {
	if !s.cfg.Features.EnableUSStock {
		logx.Infof("market: us lookups disabled")
		return nil, &QuoteError{Message: "US stock lookups are disabled", Symbol: code}
	}

	table := s.cachedSpot(ctx, "spot:us", usSpotTimeout, s.equity.USSpot)
	if table == nil || len(table.Rows) == 0 {
		return nil, &QuoteError{
			Message:    fmt.Sprintf("US quote for %s is temporarily unavailable", bare),
			Symbol:     code,
			Suggestion: "the upstream feed may be down, try again later",
		}
	}

	upper := strings.ToUpper(bare)
	row := findUSRow(table, upper)
	if row == nil {
		return nil, &QuoteError{
			Message:    fmt.Sprintf("US ticker %s not found", bare),
			Symbol:     code,
			Suggestion: "check the ticker, e.g. AAPL, TSLA, MSFT",
		}
	}

	fieldAliases := map[string][]string{
		"price":      {"最新价", "Price", "price", "last"},
		"open":       {"开盘价", "Open", "open", "今开"},
		"high":       {"最高价", "High", "high", "最高"},
		"low":        {"最低价", "Low", "low", "最低"},
		"pre_close":  {"昨收价", "PreClose", "pre_close", "昨收"},
		"volume":     {"成交量", "Volume", "volume"},
		"market_cap": {"总市值", "MarketCap", "market_cap"},
	}
	value := func(field string) float64 {
		idx := findColumn(table.Columns, fieldAliases[field])
		if idx < 0 || idx >= len(row) {
			return 0
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil {
			return 0
		}
		return v
	}

	q := &Quote{
		Symbol:    code,
		Name:      table.Cell(row, "名称"),
		Price:     value("price"),
		Open:      value("open"),
		High:      value("high"),
		Low:       value("low"),
		PreClose:  value("pre_close"),
		Volume:    value("volume"),
		MarketCap: value("market_cap"),
		Time:      s.now().Format("15:04:05"),
	}
	logx.Infof("market: us quote %s at %v", upper, q.Price)
	return q, nil
}

func findUSRow(table *Table, ticker string) []string {
	suffix := regexp.MustCompile(regexp.QuoteMeta(ticker) + "$")
	codeIdx := findColumn(table.Columns, []string{"代码"})
	if codeIdx >= 0 {
		for _, row := range table.Rows {
			if codeIdx < len(row) && suffix.MatchString(row[codeIdx]) {
				return row
			}
		}
	}
	nameIdx := findColumn(table.Columns, []string{"名称"})
	if nameIdx >= 0 {
		needle := strings.ToLower(ticker)
		for _, row := range table.Rows {
			if nameIdx < len(row) && strings.Contains(strings.ToLower(row[nameIdx]), needle) {
				return row
			}
		}
	}
	return nil
}

// GetHourly returns hourly bars for an A-share symbol, oldest first, capped
// at HourlyMaxRecords. HK and US symbols yield an empty slice.
func (s *Source) GetHourly(ctx context.Context, code string) []Bar {
	return s.minuteBars(ctx, code, "60", s.cfg.DataLimits.HourlyMaxRecords)
}

// minuteFreqs maps semantic frequency tokens onto the provider's minute-bar
// period parameter. Unknown tokens fall back to 5-minute bars.
var minuteFreqs = map[string]string{
	"5min":  "5",
	"15min": "15",
	"30min": "30",
	"60min": "60",
}

// GetMinutely returns intraday bars at the given frequency for an A-share
// symbol, capped at MinutelyMaxRecords.
func (s *Source) GetMinutely(ctx context.Context, code, freq string) []Bar {
	period, ok := minuteFreqs[freq]
	if !ok {
		period = "5"
	}
	return s.minuteBars(ctx, code, period, s.cfg.DataLimits.MinutelyMaxRecords)
}

func (s *Source) minuteBars(ctx context.Context, code, period string, maxRecords int) []Bar {
	code, ok := s.normalizeCode(code)
	if !ok {
		return nil
	}
	if !strings.HasSuffix(code, ".SH") && !strings.HasSuffix(code, ".SZ") {
		return nil
	}

	table, err := fetch.Retry(ctx, s.pool, usMaxRetries, s.cfg.GeneralTimeout(), func() (*Table, error) {
		return s.equity.AShareMinute(ctx, bareCode(code), period)
	})
	if err != nil {
		logx.Errorf("market: minute bars for %s failed: %v", code, err)
		return nil
	}
	if table == nil || len(table.Rows) == 0 {
		logx.Infof("market: no minute rows for %s", code)
		return nil
	}
	return assembleMinuteBars(table, code, maxRecords, s.now)
}

// GetIndexRealtime returns the live snapshot for an index code given in the
// provider's prefixed form ("sh000001"). An unknown code yields nil.
func (s *Source) GetIndexRealtime(ctx context.Context, indexCode string) *Quote {
	query := indexCode
	if strings.HasPrefix(query, "sh") || strings.HasPrefix(query, "sz") {
		query = query[2:]
	}

	table := s.cachedSpot(ctx, "spot:index", s.cfg.GeneralTimeout(), s.equity.IndexSpot)
	row := findRowByCode(table, query)
	if row == nil {
		logx.Infof("market: no index row for %s", indexCode)
		return nil
	}
	return &Quote{
		Symbol:   indexCode,
		Name:     table.Cell(row, "名称"),
		Price:    cellFloat(table, row, "最新价"),
		Open:     cellFloat(table, row, "今开"),
		High:     cellFloat(table, row, "最高"),
		Low:      cellFloat(table, row, "最低"),
		PreClose: cellFloat(table, row, "昨收"),
		Volume:   cellFloat(table, row, "成交量"),
		Amount:   cellFloat(table, row, "成交额"),
		Time:     s.now().Format("15:04:05"),
	}
}

func findRowByCode(table *Table, code string) []string {
	if table == nil {
		return nil
	}
	idx := findColumn(table.Columns, []string{"代码"})
	if idx < 0 {
		return nil
	}
	for _, row := range table.Rows {
		if idx < len(row) && row[idx] == code {
			return row
		}
	}
	return nil
}

func cellFloat(table *Table, row []string, column string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(table.Cell(row, column)), 64)
	if err != nil {
		return 0
	}
	return v
}

// assembleBars turns a daily history table into Bars: keep the most recent
// maxRecords rows (sort descending on the date column, truncate, re-sort
// ascending), resolve columns by alias with positional fallback, then compute
// change/pct_chg against the previous parsed row. A row that fails to parse
// is skipped; the batch survives.
func assembleBars(table *Table, code string, maxRecords int, now func() time.Time) []Bar {
	cols := resolveBarColumns(table.Columns)
	rows := truncateRecent(table.Rows, cols.date, maxRecords)

	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := parseBar(row, cols, code, now)
		if err != nil {
			logx.Infof("market: skipping row for %s: %v", code, err)
			continue
		}
		appendWithChange(&bars, bar)
	}
	logx.Infof("market: assembled %d daily bars for %s", len(bars), code)
	return bars
}

// assembleMinuteBars is the intraday variant: the timestamp column carries
// both date and time; an unparseable timestamp substitutes the current time
// rather than dropping the row.
func assembleMinuteBars(table *Table, code string, maxRecords int, now func() time.Time) []Bar {
	cols := resolveBarColumns(table.Columns)
	rows := truncateRecent(table.Rows, cols.date, maxRecords)

	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := parseBar(row, cols, code, now)
		if err != nil {
			logx.Infof("market: skipping minute row for %s: %v", code, err)
			continue
		}
		ts := cellAt(row, cols.date)
		when, err := time.Parse("2006-01-02 15:04:05", ts)
		if err != nil {
			when = now()
		}
		bar.TradeDate = when.Format("20060102")
		bar.TradeTime = when.Format("2006-01-02 15:04:05")
		bars = append(bars, bar)
	}
	return bars
}

// truncateRecent sorts rows descending by the date column, keeps the first
// maxRecords, then restores ascending order.
func truncateRecent(rows [][]string, dateIdx, maxRecords int) [][]string {
	sorted := make([][]string, len(rows))
	copy(sorted, rows)
	key := func(row []string) string { return cellAt(row, dateIdx) }
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) > key(sorted[j]) })
	if maxRecords > 0 && len(sorted) > maxRecords {
		sorted = sorted[:maxRecords]
	}
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })
	return sorted
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseBar(row []string, cols barColumns, code string, now func() time.Time) (Bar, error) {
	bar := Bar{Symbol: code}

	date := cellAt(row, cols.date)
	if date == "" {
		bar.TradeDate = now().Format("20060102")
	} else {
		bar.TradeDate = strings.ReplaceAll(date, "-", "")
	}

	fields := []struct {
		idx  int
		dest *float64
	}{
		{cols.open, &bar.Open},
		{cols.high, &bar.High},
		{cols.low, &bar.Low},
		{cols.close, &bar.Close},
		{cols.volume, &bar.Volume},
	}
	for _, f := range fields {
		cell := cellAt(row, f.idx)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad numeric cell %q", cell)
		}
		*f.dest = v
	}
	return bar, nil
}

// appendWithChange appends bar with its change fields computed against the
// previous bar's close; the first bar references itself.
func appendWithChange(bars *[]Bar, bar Bar) {
	if len(*bars) > 0 {
		pre := (*bars)[len(*bars)-1].Close
		bar.PreClose = pre
		bar.Change = bar.Close - pre
		if pre != 0 {
			bar.PctChg = bar.Change / pre * 100
		}
	} else {
		bar.PreClose = bar.Close
	}
	*bars = append(*bars, bar)
}
