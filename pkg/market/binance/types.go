package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Ticker24h is one row of /api/v3/ticker/24hr. Binance serialises numeric
// fields as strings; the accessors parse on demand and return 0 on garbage.
type Ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

func (t *Ticker24h) Last() float64          { return parseFloat(t.LastPrice) }
func (t *Ticker24h) Change() float64        { return parseFloat(t.PriceChange) }
func (t *Ticker24h) ChangePercent() float64 { return parseFloat(t.PriceChangePercent) }
func (t *Ticker24h) High() float64          { return parseFloat(t.HighPrice) }
func (t *Ticker24h) Low() float64           { return parseFloat(t.LowPrice) }
func (t *Ticker24h) BaseVolume() float64    { return parseFloat(t.Volume) }
func (t *Ticker24h) QuoteVol() float64      { return parseFloat(t.QuoteVolume) }

// SymbolInfo is one entry of the exchangeInfo symbols array.
type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`
}

// ExchangeInfo is the /api/v3/exchangeInfo response.
type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

// Kline is one decoded /api/v3/klines row. The wire format is a heterogeneous
// array: [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...],
// timestamps in milliseconds, prices as strings.
type Kline struct {
	OpenTime    int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	CloseTime   int64
	QuoteVolume float64
}

// UnmarshalJSON decodes the positional kline array.
func (k *Kline) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("binance: decode kline row: %w", err)
	}
	if len(raw) < 7 {
		return fmt.Errorf("binance: kline row too short: %d fields", len(raw))
	}

	if err := json.Unmarshal(raw[0], &k.OpenTime); err != nil {
		return fmt.Errorf("binance: kline open time: %w", err)
	}
	if err := json.Unmarshal(raw[6], &k.CloseTime); err != nil {
		return fmt.Errorf("binance: kline close time: %w", err)
	}

	numeric := []struct {
		idx  int
		dest *float64
	}{
		{1, &k.Open},
		{2, &k.High},
		{3, &k.Low},
		{4, &k.Close},
		{5, &k.Volume},
	}
	if len(raw) > 7 {
		numeric = append(numeric, struct {
			idx  int
			dest *float64
		}{7, &k.QuoteVolume})
	}
	for _, f := range numeric {
		var s string
		if err := json.Unmarshal(raw[f.idx], &s); err != nil {
			return fmt.Errorf("binance: kline field %d: %w", f.idx, err)
		}
		*f.dest = parseFloat(s)
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
