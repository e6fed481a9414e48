// Package command implements the chat commands as pure handler methods:
// each takes parsed arguments and returns either a text reply or the path of
// a rendered chart image. Handlers never return errors; every failure is
// formatted into a user-facing message.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"quotebot-api/pkg/chart"
	"quotebot-api/pkg/market"
	"quotebot-api/pkg/symbol"
)

// Reply is a command result: plain text or a chart image the dispatcher
// should send and then delete.
type Reply struct {
	Text      string
	ImagePath string
}

func textReply(format string, args ...interface{}) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

// Handler binds the data source and chart composer to the command surface.
type Handler struct {
	source       *market.Source
	composer     *chart.Composer
	marketCfg    *market.Config
	defaultLimit int
}

// NewHandler builds the command surface. defaultLimit is clamped to [5,60].
func NewHandler(source *market.Source, composer *chart.Composer, marketCfg *market.Config, defaultLimit int) *Handler {
	return &Handler{
		source:       source,
		composer:     composer,
		marketCfg:    marketCfg,
		defaultLimit: clamp(defaultLimit, 5, 60),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// chartLimit resolves an optional chart record count: [5,120] when given,
// the handler default otherwise.
func (h *Handler) chartLimit(limit int) int {
	if limit <= 0 {
		return h.defaultLimit
	}
	return clamp(limit, 5, 120)
}

const invalidSymbolFormat = "⚠️ invalid stock symbol: %s\n" +
	"supported formats:\n" +
	"• A-share: 000001.SZ/SH\n" +
	"• HK: 00700.HK\n" +
	"• US: AAPL.US"

// validateEquity normalizes a raw symbol and reports whether it is usable.
func (h *Handler) validateEquity(raw string) (string, bool) {
	if symbol.IsCanonical(raw) {
		return raw, true
	}
	if h.marketCfg.EnableAutoCorrection {
		corrected := symbol.NormalizeEquity(raw)
		if corrected != raw && symbol.IsCanonical(corrected) {
			return corrected, true
		}
	}
	return raw, false
}

var indexNames = map[string]string{
	"000001.SH": "上证指数",
	"399001.SZ": "深证成指",
	"000300.SH": "沪深300",
	"000905.SH": "中证500",
	"399006.SZ": "创业板指",
	"399005.SZ": "中小板指",
}

func indexName(code string) string {
	if name, ok := indexNames[code]; ok {
		return name
	}
	return code
}

func changeArrow(change float64) string {
	switch {
	case change > 0:
		return "↑"
	case change < 0:
		return "↓"
	default:
		return "-"
	}
}

// Price renders recent daily history as text. Start/end are optional
// YYYYMMDD bounds.
func (h *Handler) Price(ctx context.Context, raw, start, end string) Reply {
	code, ok := h.validateEquity(raw)
	if !ok {
		return textReply(invalidSymbolFormat, raw)
	}
	if symbol.IsIndex(code) {
		return textReply("⚠️ %s is an index, use /index %s instead", code, code)
	}

	bars := h.source.GetDaily(ctx, code, start, end)
	if len(bars) == 0 {
		return h.noHistoryReply(code)
	}
	slice := firstN(bars, h.defaultLimit)

	lines := make([]string, 0, len(slice)+1)
	lines = append(lines, fmt.Sprintf("📈 %s history (last %d records):", code, len(slice)))
	for _, bar := range slice {
		lines = append(lines, fmt.Sprintf("%s: open %.2f close %.2f %s (%+.2f%%)",
			bar.TradeDate, bar.Open, bar.Close, changeArrow(bar.Change), bar.PctChg))
	}
	return Reply{Text: strings.Join(lines, "\n")}
}

func (h *Handler) noHistoryReply(code string) Reply {
	if strings.HasSuffix(code, ".US") {
		return textReply("⚠️ no US history for %s\n"+
			"💡 the ticker may not exist or the history feed may be down\n"+
			"🔄 try the realtime quote instead: /price_now %s", code, code)
	}
	return textReply("⚠️ no history for %s, check the symbol", code)
}

// PriceNow renders the realtime quote for an equity symbol.
func (h *Handler) PriceNow(ctx context.Context, raw string) Reply {
	code, ok := h.validateEquity(raw)
	if !ok {
		return textReply(invalidSymbolFormat, raw)
	}
	if symbol.IsIndex(code) {
		return textReply("⚠️ %s is an index, use /index %s instead", code, code)
	}

	quote, qerr := h.source.GetRealtime(ctx, code)
	if qerr != nil {
		if qerr.Suggestion != "" {
			return textReply("⚠️ %s\n💡 %s", qerr.Message, qerr.Suggestion)
		}
		return textReply("⚠️ %s", qerr.Message)
	}
	if quote == nil {
		return textReply("⚠️ no realtime quote for %s, check the symbol", code)
	}

	change := quote.Change()
	emoji := "⚪"
	if change > 0 {
		emoji = "🔴"
	} else if change < 0 {
		emoji = "🟢"
	}
	return textReply("📈 %s realtime (%s)\n"+
		"%s now: %.2f %s %+.2f (%+.2f%%)\n"+
		"📊 open: %.2f  prev close: %.2f\n"+
		"📈 high: %.2f  📉 low: %.2f",
		code, quote.Time,
		emoji, quote.Price, changeArrow(change), change, quote.PctChg(),
		quote.Open, quote.PreClose,
		quote.High, quote.Low)
}

// PriceChart renders a candlestick chart for an equity symbol. Period is
// daily|hourly|5min|15min|30min|60min; limit applies when no explicit range
// was given.
func (h *Handler) PriceChart(ctx context.Context, raw, period string, limit int, start, end string) Reply {
	if !h.marketCfg.Features.EnableChartGeneration {
		return textReply("⚠️ chart generation is disabled")
	}
	code, ok := h.validateEquity(raw)
	if !ok {
		return textReply(invalidSymbolFormat, raw)
	}
	if symbol.IsIndex(code) {
		return textReply("⚠️ %s is an index, use /index_chart %s instead", code, code)
	}

	var bars []market.Bar
	switch period {
	case "daily", "":
		bars = h.source.GetDaily(ctx, code, start, end)
	case "hourly":
		bars = h.source.GetHourly(ctx, code)
	case "5min", "15min", "30min", "60min":
		bars = h.source.GetMinutely(ctx, code, period)
	default:
		return textReply("⚠️ unsupported period: %s", period)
	}
	if len(bars) == 0 {
		return h.noHistoryReply(code)
	}
	if start == "" && end == "" {
		bars = firstN(bars, h.chartLimit(limit))
	}
	sortByTradeDate(bars)

	latest := bars[len(bars)-1]
	var title string
	if latest.TradeTime != "" {
		title = fmt.Sprintf("%s %s close: %.2f", code, latest.TradeTime, latest.Close)
	} else {
		title = fmt.Sprintf("%s %s close: %.2f chg: %+.2f (%+.2f%%)",
			code, latest.TradeDate, latest.Close, latest.Change, latest.PctChg)
	}
	return h.renderReply(bars, title)
}

// Index renders the realtime snapshot of an index.
func (h *Handler) Index(ctx context.Context, raw string) Reply {
	code := symbol.NormalizeIndex(raw)
	if !symbol.IsIndex(code) {
		return textReply("⚠️ %s is not a known index\n"+
			"supported: 000001.SH (上证指数), 399001.SZ (深证成指), 399006.SZ (创业板指), ...", code)
	}

	quote := h.source.GetIndexRealtime(ctx, prefixedIndexCode(code))
	if quote == nil {
		return textReply("⚠️ no index data for %s", code)
	}

	change := quote.Change()
	return textReply("📊 %s (%s) %s\n"+
		"now: %.2f %s %+.2f (%+.2f%%)\n"+
		"open: %.2f  prev close: %.2f\n"+
		"high: %.2f  low: %.2f",
		indexName(code), code, quote.Time,
		quote.Price, changeArrow(change), change, quote.PctChg(),
		quote.Open, quote.PreClose,
		quote.High, quote.Low)
}

// IndexChart renders a daily candlestick chart for an index.
func (h *Handler) IndexChart(ctx context.Context, raw string, limit int, start, end string) Reply {
	if !h.marketCfg.Features.EnableChartGeneration {
		return textReply("⚠️ chart generation is disabled")
	}
	code := symbol.NormalizeIndex(raw)
	if !symbol.IsIndex(code) {
		return textReply("⚠️ %s is not a known index\n"+
			"supported: 000001.SH (上证指数), 399001.SZ (深证成指), 399006.SZ (创业板指), ...", code)
	}

	bars := h.source.GetDaily(ctx, code, start, end)
	if len(bars) == 0 {
		return textReply("⚠️ no index history for %s", code)
	}
	if start == "" && end == "" {
		bars = firstN(bars, h.chartLimit(limit))
	}
	sortByTradeDate(bars)

	latest := bars[len(bars)-1]
	title := fmt.Sprintf("%s (%s) %s close: %.2f chg: %+.2f (%+.2f%%)",
		indexName(code), code, latest.TradeDate, latest.Close, latest.Change, latest.PctChg)
	return h.renderReply(bars, title)
}

// prefixedIndexCode converts a canonical index code into the provider's
// prefixed form ("000001.SH" -> "sh000001").
func prefixedIndexCode(code string) string {
	bare := code
	if i := strings.IndexByte(code, '.'); i >= 0 {
		bare = code[:i]
	}
	switch {
	case strings.HasSuffix(code, ".SH"):
		return "sh" + bare
	case strings.HasSuffix(code, ".SZ"):
		return "sz" + bare
	}
	return code
}

// renderReply runs the composer and wraps the result. The composer holds the
// global render lock for the duration of the draw.
func (h *Handler) renderReply(bars []market.Bar, title string) Reply {
	path := h.composer.Render(bars, title)
	if path == "" {
		logx.Errorf("command: chart render failed for %q", title)
		return textReply("🔧 chart generation failed, try again later")
	}
	return Reply{ImagePath: path}
}

// firstN keeps the leading n records in the order the source returned them:
// the oldest rows for equity history, the newest for crypto klines.
func firstN(bars []market.Bar, n int) []market.Bar {
	if n > 0 && len(bars) > n {
		return bars[:n]
	}
	return bars
}

// sortByTradeDate orders bars oldest-first for plotting, regardless of the
// source ordering.
func sortByTradeDate(bars []market.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].TradeDate != bars[j].TradeDate {
			return bars[i].TradeDate < bars[j].TradeDate
		}
		return bars[i].TradeTime < bars[j].TradeTime
	})
}
