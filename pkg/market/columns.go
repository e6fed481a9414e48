package market

// Alias lists for the logical OHLCV fields, in priority order. Eastmoney
// endpoints label columns in Chinese, the Sina fallback in lowercase English,
// and a few mirrors use capitalized English, so each field carries every
// spelling observed in the wild.
var (
	dateAliases   = []string{"日期", "date", "Date", "trade_date"}
	openAliases   = []string{"开盘", "open", "Open"}
	highAliases   = []string{"最高", "high", "High"}
	lowAliases    = []string{"最低", "low", "Low"}
	closeAliases  = []string{"收盘", "close", "Close"}
	volumeAliases = []string{"成交量", "volume", "Volume", "vol"}
)

// barColumns holds the resolved column index for each logical OHLCV field,
// -1 when the table carries no usable column at all.
type barColumns struct {
	date   int
	open   int
	high   int
	low    int
	close  int
	volume int
}

// findColumn returns the index of the first alias present in columns, or -1.
func findColumn(columns []string, aliases []string) int {
	for _, alias := range aliases {
		for i, name := range columns {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

// resolveBarColumns maps a provider table's columns onto the logical OHLCV
// fields. Fields with no alias match fall back to positions 0-5, which is the
// layout every known provider uses when it renames its headers.
func resolveBarColumns(columns []string) barColumns {
	cols := barColumns{
		date:   findColumn(columns, dateAliases),
		open:   findColumn(columns, openAliases),
		high:   findColumn(columns, highAliases),
		low:    findColumn(columns, lowAliases),
		close:  findColumn(columns, closeAliases),
		volume: findColumn(columns, volumeAliases),
	}
	positional := []*int{&cols.date, &cols.open, &cols.high, &cols.low, &cols.close, &cols.volume}
	for i, col := range positional {
		if *col < 0 && i < len(columns) {
			*col = i
		}
	}
	return cols
}
