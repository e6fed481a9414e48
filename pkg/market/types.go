// Package market assembles uniform OHLCV records and quote snapshots from
// heterogeneous upstream providers: Eastmoney-style spot/history tables for
// A-share, Hong Kong and US equities, and the Binance REST API for crypto
// pairs. All public operations convert internal failures into empty results
// or structured errors; nothing escapes to the command layer as a raised
// error.
package market

import "strings"

// Bar is one OHLCV record. PreClose/Change/PctChg are computed against the
// immediately preceding record of the same fetched series, not the true
// market previous close; the first record of a fetch uses its own close,
// yielding a zero change.
type Bar struct {
	Symbol    string
	TradeDate string // YYYYMMDD
	TradeTime string // optional, sub-daily bars only ("2006-01-02 15:04:05")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	PreClose  float64
	Change    float64
	PctChg    float64
}

// Quote is a single latest-point snapshot, not part of a series.
type Quote struct {
	Symbol    string
	Name      string
	Price     float64
	Open      float64
	High      float64
	Low       float64
	PreClose  float64
	Volume    float64
	Amount    float64
	MarketCap float64
	Time      string // HH:MM:SS
}

// Change returns the price move against the previous close.
func (q *Quote) Change() float64 {
	return q.Price - q.PreClose
}

// PctChg returns the percentage move against the previous close, zero when
// the previous close is unavailable.
func (q *Quote) PctChg() float64 {
	if q.PreClose == 0 {
		return 0
	}
	return q.Change() / q.PreClose * 100
}

// QuoteError is the structured miss returned by realtime lookups so the
// command layer can render a user-facing hint. It is a value, not an error:
// callers branch on it instead of unwinding.
type QuoteError struct {
	Message    string
	Symbol     string
	Suggestion string
}

// Table is a raw provider result: ordered market-local column names plus
// string cells. Column names vary in language and casing across providers,
// so consumers resolve logical fields through alias lists.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the row value under the named column, or "" when absent.
func (t *Table) Cell(row []string, column string) string {
	for i, name := range t.Columns {
		if name == column && i < len(row) {
			return row[i]
		}
	}
	return ""
}

// marketClass is the provider-routing classification of a canonical symbol.
type marketClass int

const (
	classAShare marketClass = iota
	classETF
	classIndex
	classHK
	classUS
)

func (c marketClass) String() string {
	switch c {
	case classETF:
		return "etf"
	case classIndex:
		return "index"
	case classHK:
		return "hk"
	case classUS:
		return "us"
	default:
		return "a-share"
	}
}

// classify routes a canonical code to its market. ETFs and indices still use
// the A-share history endpoint; the distinction only affects logging.
func classify(code string) marketClass {
	switch {
	case strings.HasSuffix(code, ".HK"):
		return classHK
	case strings.HasSuffix(code, ".US"):
		return classUS
	case (strings.HasPrefix(code, "1") || strings.HasPrefix(code, "5")) &&
		(strings.HasSuffix(code, ".SH") || strings.HasSuffix(code, ".SZ")):
		return classETF
	case (strings.HasPrefix(code, "000") || strings.HasPrefix(code, "399")) &&
		(strings.HasSuffix(code, ".SH") || strings.HasSuffix(code, ".SZ")):
		return classIndex
	default:
		return classAShare
	}
}

// bareCode strips the exchange suffix from a canonical symbol.
func bareCode(code string) string {
	if i := strings.IndexByte(code, '.'); i >= 0 {
		return code[:i]
	}
	return code
}
