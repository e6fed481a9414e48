package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"quotebot-api/pkg/market"
)

const cryptoDisabledText = "⚠️ crypto lookups are disabled"

// formatCryptoPrice trims a crypto price to 6 decimals (8 below 1.0) and
// strips trailing zeros.
func formatCryptoPrice(price float64) string {
	precision := 6
	if price < 1 {
		precision = 8
	}
	s := fmt.Sprintf("%.*f", precision, price)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func trendIcon(change float64) string {
	if change >= 0 {
		return "📈"
	}
	return "📉"
}

// Crypto renders the 24h snapshot for one crypto symbol.
func (h *Handler) Crypto(ctx context.Context, raw, vsCurrency string) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	code := strings.ToUpper(strings.TrimSpace(raw))

	quote, qerr := h.source.GetCryptoPrice(ctx, code, vsCurrency)
	if qerr != nil {
		return textReply("⚠️ %s", qerr.Message)
	}

	sign := ""
	if quote.Change >= 0 {
		sign = "+"
	}
	return textReply("🪙 %s (%s) 24h snapshot\n\n"+
		"💰 price: %s %s\n"+
		"%s 24h change: %s%.6f (%+.2f%%)\n"+
		"📊 24h high: %.6f %s\n"+
		"📊 24h low: %.6f %s\n"+
		"📈 24h volume: %.2f %s\n\n"+
		"🔄 source: %s",
		quote.Name, quote.Symbol,
		formatCryptoPrice(quote.Price), quote.VsCurrency,
		trendIcon(quote.Change), sign, quote.Change, quote.ChangePercent,
		quote.High24h, quote.VsCurrency,
		quote.Low24h, quote.VsCurrency,
		quote.Volume24h, quote.Symbol,
		titleCase(quote.Source))
}

// CryptoList renders the top pairs by 24h quote volume. Out-of-range limits
// fall back to 10.
func (h *Handler) CryptoList(ctx context.Context, limit int) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	entries := h.source.GetCryptoList(ctx, limit)
	if len(entries) == 0 {
		return textReply("⚠️ could not fetch the crypto listing")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🪙 top crypto pairs (Top %d)\n\n", len(entries))
	for i, e := range entries {
		sign := ""
		if e.ChangePercent >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%2d. %s %-8s %12s USDT (%s%.2f%%)\n",
			i+1, trendIcon(e.ChangePercent), e.Name, formatCryptoPrice(e.Price), sign, e.ChangePercent)
	}
	b.WriteString("\n🔄 source: Binance")
	return Reply{Text: b.String()}
}

// CryptoInfo renders exchange metadata.
func (h *Handler) CryptoInfo(ctx context.Context) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	info := h.source.GetExchangeInfo(ctx)
	if info == nil {
		return textReply("⚠️ could not fetch exchange info")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏦 %s exchange info\n\n", info.Exchange)
	fmt.Fprintf(&b, "📊 trading pairs: %d\n", info.TotalSymbols)
	fmt.Fprintf(&b, "💰 active USDT pairs: %d\n", info.ActiveUSDTPairsCount)
	fmt.Fprintf(&b, "⏰ server time: %s\n\n", time.UnixMilli(info.ServerTime).Format("2006-01-02 15:04:05"))
	b.WriteString("📈 kline intervals:\n")
	for i := 0; i < len(info.SupportedIntervals); i += 4 {
		row := info.SupportedIntervals[i:min(i+4, len(info.SupportedIntervals))]
		b.WriteString("   " + strings.Join(row, "  ") + "\n")
	}
	if len(info.SamplePairs) > 0 {
		b.WriteString("\n💡 sample pairs:\n")
		for i, pair := range info.SamplePairs {
			fmt.Fprintf(&b, "   %2d. %-12s (%s/USDT)\n", i+1, pair.Symbol, pair.BaseAsset)
		}
	}
	return Reply{Text: b.String()}
}

// CryptoHistory renders recent daily candles as text. The limit is clamped
// to [5,100].
func (h *Handler) CryptoHistory(ctx context.Context, raw, vsCurrency string, limit int) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	code := strings.ToUpper(strings.TrimSpace(raw))
	if limit <= 0 {
		limit = h.defaultLimit
	}
	limit = clamp(limit, 5, 100)

	bars := h.source.GetCryptoDaily(ctx, code, limit, vsCurrency)
	if len(bars) == 0 {
		return textReply("⚠️ no history for %s, check that the pair exists", code)
	}

	pair := h.source.CryptoPair(code, vsCurrency)
	lines := make([]string, 0, len(bars)+1)
	lines = append(lines, fmt.Sprintf("📈 %s history (last %d records):\n", pair, len(bars)))
	for _, bar := range bars {
		lines = append(lines, fmt.Sprintf("%s: close %s %s (%+.2f%%)",
			bar.TradeDate, formatCryptoPrice(bar.Close), trendIcon(bar.Change), bar.PctChg))
	}
	return Reply{Text: strings.Join(lines, "\n")}
}

// CryptoChart renders a candlestick chart for a crypto pair. Default limits
// are the handler default for daily, 48 for hourly and 96 for minute data.
func (h *Handler) CryptoChart(ctx context.Context, raw, period string, limit int, vsCurrency string) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	if !h.marketCfg.Features.EnableChartGeneration {
		return textReply("⚠️ chart generation is disabled")
	}
	code := strings.ToUpper(strings.TrimSpace(raw))

	var bars []market.Bar
	switch period {
	case "daily", "":
		bars = h.source.GetCryptoDaily(ctx, code, pick(limit, h.defaultLimit), vsCurrency)
	case "hourly":
		bars = h.source.GetCryptoHourly(ctx, code, pick(limit, 48), vsCurrency)
	case "1min", "5min", "15min", "30min", "60min":
		bars = h.source.GetCryptoMinutely(ctx, code, period, pick(limit, 96), vsCurrency)
	default:
		return textReply("⚠️ unsupported period: %s\nsupported: daily, hourly, 1min, 5min, 15min, 30min, 60min", period)
	}
	if len(bars) == 0 {
		return textReply("⚠️ no kline data for %s, check that the pair exists", code)
	}
	sortByTradeDate(bars)

	pair := h.source.CryptoPair(code, vsCurrency)
	vs := bars[len(bars)-1]
	var title string
	if vs.TradeTime != "" {
		title = fmt.Sprintf("%s %s %s close: %.6f", pair, vs.TradeDate, vs.TradeTime, vs.Close)
	} else {
		title = fmt.Sprintf("%s %s close: %.6f chg: %+.6f (%+.2f%%)",
			pair, vs.TradeDate, vs.Close, vs.Change, vs.PctChg)
	}
	return h.renderReply(bars, title)
}

func pick(limit, fallback int) int {
	if limit > 0 {
		return limit
	}
	return fallback
}

// CryptoCompare renders a side-by-side comparison of up to ten symbols,
// sorted by 24h change.
func (h *Handler) CryptoCompare(ctx context.Context, symbols []string, vsCurrency string) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	if len(symbols) == 0 {
		return textReply("⚠️ provide at least one symbol\nexample: /crypto_compare BTC ETH BNB")
	}
	if len(symbols) > 10 {
		symbols = symbols[:10]
	}

	quotes := make([]*market.CryptoQuote, 0, len(symbols))
	for _, raw := range symbols {
		quote, qerr := h.source.GetCryptoPrice(ctx, strings.ToUpper(strings.TrimSpace(raw)), vsCurrency)
		if qerr != nil {
			continue
		}
		quotes = append(quotes, quote)
	}
	if len(quotes) == 0 {
		return textReply("⚠️ no price data for any of the requested symbols")
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].ChangePercent > quotes[j].ChangePercent })

	var b strings.Builder
	fmt.Fprintf(&b, "🪙 crypto comparison (vs %s)\n\n", quotes[0].VsCurrency)
	for i, q := range quotes {
		sign := ""
		if q.ChangePercent >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%2d. %s %-8s %14s (%s%.2f%%)\n",
			i+1, trendIcon(q.ChangePercent), q.Name, formatCryptoPrice(q.Price), sign, q.ChangePercent)
	}
	b.WriteString("\n🔄 source: Binance")
	return Reply{Text: b.String()}
}

// CryptoMarket renders a market overview built from the top pairs: breadth,
// extremes, average move and a sentiment bucket.
func (h *Handler) CryptoMarket(ctx context.Context) Reply {
	if !h.source.CryptoEnabled() {
		return textReply(cryptoDisabledText)
	}
	entries := h.source.GetCryptoList(ctx, 8)
	if len(entries) == 0 {
		return textReply("⚠️ could not fetch market data")
	}

	rising := 0
	maxGainer, maxLoser := entries[0], entries[0]
	sum := 0.0
	for _, e := range entries {
		if e.ChangePercent > 0 {
			rising++
		}
		if e.ChangePercent > maxGainer.ChangePercent {
			maxGainer = e
		}
		if e.ChangePercent < maxLoser.ChangePercent {
			maxLoser = e
		}
		sum += e.ChangePercent
	}
	avg := sum / float64(len(entries))

	sentiment := "🔴 strong selloff"
	switch {
	case avg > 2:
		sentiment = "🟢 strong rally"
	case avg > 0:
		sentiment = "📈 mild upside"
	case avg > -2:
		sentiment = "📉 mild downside"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌍 crypto market overview (Top %d)\n\n", len(entries))
	fmt.Fprintf(&b, "📊 sentiment: %s (avg %+.2f%%)\n", sentiment, avg)
	fmt.Fprintf(&b, "📈 rising: %d | 📉 falling: %d\n\n", rising, len(entries)-rising)
	fmt.Fprintf(&b, "🏆 top gainer: %s %+.2f%%\n", maxGainer.Name, maxGainer.ChangePercent)
	fmt.Fprintf(&b, "💔 top loser: %s %+.2f%%\n\n", maxLoser.Name, maxLoser.ChangePercent)
	b.WriteString("💰 majors:\n")
	for _, e := range entries {
		sign := ""
		if e.ChangePercent >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "   %s %-8s $%12s (%s%.2f%%)\n",
			trendIcon(e.ChangePercent), e.Name, formatCryptoPrice(e.Price), sign, e.ChangePercent)
	}
	b.WriteString("\n🔄 source: Binance")
	return Reply{Text: b.String()}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
