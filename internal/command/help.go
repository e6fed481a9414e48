package command

// Help returns the command reference.
func (h *Handler) Help() Reply {
	return Reply{Text: `📖 quotebot commands

equities and funds:
  /price <symbol> [start] [end]      daily history (600519, 00700.HK, AAPL.US)
  /price_now <symbol>                realtime quote
  /price_chart <symbol> [period] [limit]  candlestick chart
                                     period: daily|hourly|5min|15min|30min|60min

indices:
  /index <code>                      realtime index quote (sh, sz, cyb, hs300, ...)
  /index_chart <code> [limit]        daily index chart

crypto:
  /crypto <symbol> [quote]           24h snapshot (BTC, ETH ...)
  /crypto_list [limit]               top pairs by volume
  /crypto_info                       exchange metadata
  /crypto_history <symbol> [limit]   recent daily candles
  /crypto_chart <symbol> [period] [limit]  candlestick chart
  /crypto_compare <symbols...>       side-by-side comparison
  /crypto_market                     market overview

dates are YYYYMMDD; symbols are auto-corrected when possible.`}
}
