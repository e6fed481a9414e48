package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quotebot-api/pkg/fetch"
	"quotebot-api/pkg/market/binance"
	"quotebot-api/pkg/symbol"
)

// CryptoAPI is the slice of the Binance client the source depends on.
type CryptoAPI interface {
	Ticker24h(ctx context.Context, symbol string) (*binance.Ticker24h, error)
	AllTickers24h(ctx context.Context) ([]binance.Ticker24h, error)
	ExchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
}

// CryptoQuote is the uniform 24h snapshot for one trading pair.
type CryptoQuote struct {
	Symbol        string
	Name          string
	Pair          string
	Price         float64
	Change        float64
	ChangePercent float64
	High24h       float64
	Low24h        float64
	Volume24h     float64
	QuoteVolume   float64
	VsCurrency    string
	Source        string
}

// CryptoListEntry is one row of the top-volume listing.
type CryptoListEntry struct {
	Name          string
	Pair          string
	Price         float64
	ChangePercent float64
	QuoteVolume   float64
}

// SamplePair is one example trading pair in an exchange summary.
type SamplePair struct {
	Symbol    string
	BaseAsset string
}

// ExchangeSummary is the condensed exchange metadata shown to users.
type ExchangeSummary struct {
	Exchange             string
	TotalSymbols         int
	ActiveUSDTPairsCount int
	ServerTime           int64
	SupportedIntervals   []string
	SamplePairs          []SamplePair
}

// supportedIntervals are the kline periods advertised in the exchange
// summary, in Binance's native tokens.
var supportedIntervals = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// klineIntervals maps the semantic period names used by commands onto
// Binance interval tokens.
var klineIntervals = map[string]string{
	"daily":  "1d",
	"hourly": "1h",
	"1min":   "1m",
	"5min":   "5m",
	"15min":  "15m",
	"30min":  "30m",
	"60min":  "1h",
}

const (
	cryptoKlineMinLimit = 5
	cryptoKlineMaxLimit = 500
)

// cryptoDisabled is the shared short-circuit for every crypto operation.
func (s *Source) cryptoDisabled(code string) *QuoteError {
	if s.cfg.Features.EnableCrypto && s.crypto != nil {
		return nil
	}
	return &QuoteError{Message: "crypto lookups are disabled", Symbol: code}
}

// normalizeCryptoPair expands a bare base asset into a pair against
// vsCurrency (the configured default when empty).
func (s *Source) normalizeCryptoPair(code, vsCurrency string) (pair, vs string) {
	vs = strings.ToUpper(strings.TrimSpace(vsCurrency))
	if vs == "" {
		vs = s.cfg.Crypto.DefaultVsCurrency
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	return symbol.NormalizeCrypto(code, vs, s.cfg.Crypto.SupportedVsCurrencies), vs
}

// GetCryptoPrice returns the 24h snapshot for a crypto symbol, expanding a
// bare base asset against vsCurrency. Failures come back as a QuoteError.
func (s *Source) GetCryptoPrice(ctx context.Context, code, vsCurrency string) (*CryptoQuote, *QuoteError) {
	if qe := s.cryptoDisabled(code); qe != nil {
		return nil, qe
	}
	pair, vs := s.normalizeCryptoPair(code, vsCurrency)

	ticker, err := fetch.Retry(ctx, s.pool, s.cfg.TimeoutSettings.MaxRetries, s.cfg.CryptoTimeout(), func() (*binance.Ticker24h, error) {
		return s.crypto.Ticker24h(ctx, pair)
	})
	if err != nil {
		logx.Errorf("market: crypto price for %s failed: %v", pair, err)
		return nil, &QuoteError{
			Message:    fmt.Sprintf("no price data for %s", pair),
			Symbol:     pair,
			Suggestion: "check that the trading pair exists, e.g. BTC, ETH",
		}
	}

	base := strings.TrimSuffix(pair, vs)
	if base == "" {
		base = pair
	}
	return &CryptoQuote{
		Symbol:        base,
		Name:          base,
		Pair:          pair,
		Price:         ticker.Last(),
		Change:        ticker.Change(),
		ChangePercent: ticker.ChangePercent(),
		High24h:       ticker.High(),
		Low24h:        ticker.Low(),
		Volume24h:     ticker.BaseVolume(),
		QuoteVolume:   ticker.QuoteVol(),
		VsCurrency:    vs,
		Source:        "binance",
	}, nil
}

// GetCryptoList returns the top pairs quoted in the default settlement
// currency, sorted descending by 24h quote volume. Pairs with zero quote
// volume are dropped.
func (s *Source) GetCryptoList(ctx context.Context, limit int) []CryptoListEntry {
	if s.cryptoDisabled("") != nil {
		return nil
	}
	tickers, err := fetch.Retry(ctx, s.pool, s.cfg.TimeoutSettings.MaxRetries, s.cfg.CryptoTimeout(), func() ([]binance.Ticker24h, error) {
		return s.crypto.AllTickers24h(ctx)
	})
	if err != nil {
		logx.Errorf("market: crypto list failed: %v", err)
		return nil
	}

	vs := s.cfg.Crypto.DefaultVsCurrency
	entries := make([]CryptoListEntry, 0, limit)
	for i := range tickers {
		t := &tickers[i]
		if !strings.HasSuffix(t.Symbol, vs) || len(t.Symbol) <= len(vs) {
			continue
		}
		if t.QuoteVol() <= 0 {
			continue
		}
		entries = append(entries, CryptoListEntry{
			Name:          strings.TrimSuffix(t.Symbol, vs),
			Pair:          t.Symbol,
			Price:         t.Last(),
			ChangePercent: t.ChangePercent(),
			QuoteVolume:   t.QuoteVol(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].QuoteVolume > entries[j].QuoteVolume })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// GetExchangeInfo returns condensed exchange metadata. Failures yield nil.
func (s *Source) GetExchangeInfo(ctx context.Context) *ExchangeSummary {
	if s.cryptoDisabled("") != nil {
		return nil
	}
	info, err := fetch.Retry(ctx, s.pool, s.cfg.TimeoutSettings.MaxRetries, s.cfg.CryptoTimeout(), func() (*binance.ExchangeInfo, error) {
		return s.crypto.ExchangeInfo(ctx)
	})
	if err != nil {
		logx.Errorf("market: exchange info failed: %v", err)
		return nil
	}

	summary := &ExchangeSummary{
		Exchange:           "Binance",
		TotalSymbols:       len(info.Symbols),
		ServerTime:         info.ServerTime,
		SupportedIntervals: supportedIntervals,
	}
	for _, sym := range info.Symbols {
		if sym.Status != "TRADING" || sym.QuoteAsset != "USDT" {
			continue
		}
		summary.ActiveUSDTPairsCount++
		if len(summary.SamplePairs) < 10 {
			summary.SamplePairs = append(summary.SamplePairs, SamplePair{
				Symbol:    sym.Symbol,
				BaseAsset: sym.BaseAsset,
			})
		}
	}
	return summary
}

// GetCryptoKlines returns candles for a crypto symbol at a semantic interval
// name ("daily", "hourly", "1min", ...). The limit is clamped to [5,500].
// Change fields are computed in fetch order (oldest first) and the slice is
// then reversed, so callers receive newest-first. This is the opposite of the
// equity history ordering; chart callers re-sort by trade date.
func (s *Source) GetCryptoKlines(ctx context.Context, code, interval string, limit int, vsCurrency string) []Bar {
	if s.cryptoDisabled(code) != nil {
		return nil
	}
	token, ok := klineIntervals[interval]
	if !ok {
		logx.Errorf("market: unsupported crypto interval: %s", interval)
		return nil
	}
	if limit < cryptoKlineMinLimit {
		limit = cryptoKlineMinLimit
	}
	if limit > cryptoKlineMaxLimit {
		limit = cryptoKlineMaxLimit
	}
	pair, _ := s.normalizeCryptoPair(code, vsCurrency)

	klines, err := fetch.Retry(ctx, s.pool, s.cfg.TimeoutSettings.MaxRetries, s.cfg.CryptoTimeout(), func() ([]binance.Kline, error) {
		return s.crypto.Klines(ctx, pair, token, limit)
	})
	if err != nil {
		logx.Errorf("market: crypto klines for %s failed: %v", pair, err)
		return nil
	}

	subDaily := token != "1d"
	bars := make([]Bar, 0, len(klines))
	for _, k := range klines {
		when := time.UnixMilli(k.OpenTime)
		bar := Bar{
			Symbol:    pair,
			TradeDate: when.Format("20060102"),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		}
		if subDaily {
			bar.TradeTime = when.Format("2006-01-02 15:04:05")
		}
		appendWithChange(&bars, bar)
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	logx.Infof("market: assembled %d %s klines for %s", len(bars), interval, pair)
	return bars
}

// GetCryptoDaily returns the most recent limit daily candles, newest first.
func (s *Source) GetCryptoDaily(ctx context.Context, code string, limit int, vsCurrency string) []Bar {
	return s.GetCryptoKlines(ctx, code, "daily", limit, vsCurrency)
}

// GetCryptoHourly returns the most recent limit hourly candles, newest first.
func (s *Source) GetCryptoHourly(ctx context.Context, code string, limit int, vsCurrency string) []Bar {
	return s.GetCryptoKlines(ctx, code, "hourly", limit, vsCurrency)
}

// GetCryptoMinutely returns intraday candles at a minute-level frequency,
// newest first.
func (s *Source) GetCryptoMinutely(ctx context.Context, code, freq string, limit int, vsCurrency string) []Bar {
	return s.GetCryptoKlines(ctx, code, freq, limit, vsCurrency)
}

// CryptoPair exposes pair normalization for reply formatting.
func (s *Source) CryptoPair(code, vsCurrency string) string {
	pair, _ := s.normalizeCryptoPair(code, vsCurrency)
	return pair
}

// CryptoEnabled reports whether crypto lookups are configured and wired.
func (s *Source) CryptoEnabled() bool {
	return s.cryptoDisabled("") == nil
}
