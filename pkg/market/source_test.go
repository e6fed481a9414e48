package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotebot-api/pkg/fetch"
)

// fakeEquity serves canned tables and counts calls per endpoint.
type fakeEquity struct {
	ashareHistory *Table
	ashareMinute  *Table
	hkHistory     *Table
	usHistory     *Table
	aSpot         *Table
	hkSpot        *Table
	usSpot        *Table
	indexSpot     *Table

	calls map[string]int
}

func newFakeEquity() *fakeEquity {
	return &fakeEquity{calls: make(map[string]int)}
}

func (f *fakeEquity) AShareHistory(_ context.Context, _, _, _, _ string) (*Table, error) {
	f.calls["ashare_history"]++
	return f.ashareHistory, nil
}

func (f *fakeEquity) AShareMinute(_ context.Context, _, period string) (*Table, error) {
	f.calls["ashare_minute_"+period]++
	return f.ashareMinute, nil
}

func (f *fakeEquity) HKHistory(_ context.Context, _, _, _ string) (*Table, error) {
	f.calls["hk_history"]++
	return f.hkHistory, nil
}

func (f *fakeEquity) USHistory(_ context.Context, _, _, _ string) (*Table, error) {
	f.calls["us_history"]++
	return f.usHistory, nil
}

func (f *fakeEquity) ASpot(_ context.Context) (*Table, error) {
	f.calls["a_spot"]++
	return f.aSpot, nil
}

func (f *fakeEquity) HKSpot(_ context.Context) (*Table, error) {
	f.calls["hk_spot"]++
	return f.hkSpot, nil
}

func (f *fakeEquity) USSpot(_ context.Context) (*Table, error) {
	f.calls["us_spot"]++
	return f.usSpot, nil
}

func (f *fakeEquity) IndexSpot(_ context.Context) (*Table, error) {
	f.calls["index_spot"]++
	return f.indexSpot, nil
}

type fakeUSDaily struct {
	table *Table
	calls int
}

func (f *fakeUSDaily) USDaily(_ context.Context, _ string) (*Table, error) {
	f.calls++
	return f.table, nil
}

func newTestSource(t *testing.T, cfg *Config, equity EquityProvider, usFallback USDailyProvider) *Source {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	src, err := NewSource(cfg, fetch.NewPool(1), equity, usFallback, nil)
	require.NoError(t, err)
	src.now = func() time.Time { return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC) }
	return src
}

func dailyTable(rows ...[]string) *Table {
	return &Table{
		Columns: []string{"日期", "开盘", "最高", "最低", "收盘", "成交量"},
		Rows:    rows,
	}
}

func TestGetDailySequentialChange(t *testing.T) {
	equity := newFakeEquity()
	equity.ashareHistory = dailyTable(
		[]string{"2024-05-28", "9.8", "10.2", "9.5", "10", "1000"},
		[]string{"2024-05-29", "10.1", "12.3", "10.0", "12", "1100"},
		[]string{"2024-05-30", "11.9", "12.0", "8.9", "9", "1200"},
	)
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetDaily(context.Background(), "600519.SH", "", "")
	require.Len(t, bars, 3)

	assert.Equal(t, "20240528", bars[0].TradeDate)
	assert.InDelta(t, 10, bars[0].PreClose, 1e-9)
	assert.InDelta(t, 0, bars[0].Change, 1e-9)
	assert.InDelta(t, 0, bars[0].PctChg, 1e-9)

	assert.InDelta(t, 10, bars[1].PreClose, 1e-9)
	assert.InDelta(t, 2, bars[1].Change, 1e-9)
	assert.InDelta(t, 20.0, bars[1].PctChg, 1e-9)

	assert.InDelta(t, 12, bars[2].PreClose, 1e-9)
	assert.InDelta(t, -3, bars[2].Change, 1e-9)
	assert.InDelta(t, -25.0, bars[2].PctChg, 1e-9)
}

func TestGetDailyKeepsMostRecentOldestFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataLimits.DailyMaxRecords = 2
	equity := newFakeEquity()
	equity.ashareHistory = dailyTable(
		[]string{"2024-05-30", "1", "1", "1", "1", "1"},
		[]string{"2024-05-28", "1", "1", "1", "1", "1"},
		[]string{"2024-05-29", "1", "1", "1", "1", "1"},
	)
	src := newTestSource(t, cfg, equity, nil)

	bars := src.GetDaily(context.Background(), "600519.SH", "", "")
	require.Len(t, bars, 2)
	assert.Equal(t, "20240529", bars[0].TradeDate)
	assert.Equal(t, "20240530", bars[1].TradeDate)
}

func TestGetDailySkipsMalformedRow(t *testing.T) {
	equity := newFakeEquity()
	equity.ashareHistory = dailyTable(
		[]string{"2024-05-28", "9.8", "10.2", "9.5", "10", "1000"},
		[]string{"2024-05-29", "not-a-number", "12.3", "10.0", "12", "1100"},
		[]string{"2024-05-30", "11.9", "12.0", "8.9", "9", "1200"},
	)
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetDaily(context.Background(), "600519.SH", "", "")
	require.Len(t, bars, 2)
	assert.Equal(t, "20240528", bars[0].TradeDate)
	assert.Equal(t, "20240530", bars[1].TradeDate)
	// Change chains across the skipped row.
	assert.InDelta(t, 10, bars[1].PreClose, 1e-9)
}

func TestGetDailyPositionalFallback(t *testing.T) {
	equity := newFakeEquity()
	equity.ashareHistory = &Table{
		Columns: []string{"c0", "c1", "c2", "c3", "c4", "c5"},
		Rows: [][]string{
			{"2024-05-28", "9.8", "10.2", "9.5", "10", "1000"},
		},
	}
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetDaily(context.Background(), "600519.SH", "", "")
	require.Len(t, bars, 1)
	assert.Equal(t, "20240528", bars[0].TradeDate)
	assert.InDelta(t, 9.8, bars[0].Open, 1e-9)
	assert.InDelta(t, 10, bars[0].Close, 1e-9)
	assert.InDelta(t, 1000, bars[0].Volume, 1e-9)
}

func TestGetDailyInvalidSymbol(t *testing.T) {
	equity := newFakeEquity()
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetDaily(context.Background(), "no-such-symbol!", "", "")
	assert.Empty(t, bars)
	assert.Empty(t, equity.calls, "invalid symbols must not reach the provider")
}

func TestGetDailyAutoCorrectsBareCode(t *testing.T) {
	equity := newFakeEquity()
	equity.ashareHistory = dailyTable(
		[]string{"2024-05-28", "9.8", "10.2", "9.5", "10", "1000"},
	)
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetDaily(context.Background(), "600519", "", "")
	require.Len(t, bars, 1)
	assert.Equal(t, "600519.SH", bars[0].Symbol)
}

func TestGetDailyHKDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features.EnableHKStock = false
	equity := newFakeEquity()
	src := newTestSource(t, cfg, equity, nil)

	bars := src.GetDaily(context.Background(), "00700.HK", "", "")
	assert.Empty(t, bars)
	assert.Empty(t, equity.calls)
}

func TestGetDailyUSPrimaryChain(t *testing.T) {
	equity := newFakeEquity()
	equity.usSpot = &Table{
		Columns: []string{"代码", "名称"},
		Rows:    [][]string{{"105.AAPL", "苹果"}, {"106.TSLA", "特斯拉"}},
	}
	equity.usHistory = dailyTable(
		[]string{"2024-05-28", "180", "182", "178", "181", "9000"},
	)
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetDaily(context.Background(), "AAPL.US", "", "")
	require.Len(t, bars, 1)
	assert.Equal(t, 1, equity.calls["us_history"])
}

func TestGetDailyUSFallsBackToSecondary(t *testing.T) {
	equity := newFakeEquity()
	// Spot table has no mapping for the ticker, so the primary leg is skipped.
	equity.usSpot = &Table{Columns: []string{"代码"}, Rows: [][]string{{"105.MSFT"}}}
	fallback := &fakeUSDaily{table: &Table{
		Columns: []string{"date", "open", "high", "low", "close", "volume"},
		Rows: [][]string{
			{"2024-05-28", "180", "182", "178", "181", "9000"},
		},
	}}
	src := newTestSource(t, nil, equity, fallback)

	bars := src.GetDaily(context.Background(), "AAPL.US", "", "")
	require.Len(t, bars, 1)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, 0, equity.calls["us_history"])
	assert.InDelta(t, 181, bars[0].Close, 1e-9)
}

func TestGetDailyUSDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features.EnableUSStock = false
	equity := newFakeEquity()
	src := newTestSource(t, cfg, equity, nil)

	bars := src.GetDaily(context.Background(), "AAPL.US", "", "")
	assert.Empty(t, bars)
	assert.Empty(t, equity.calls)
}

func spotTable(code string) *Table {
	return &Table{
		Columns: []string{"代码", "名称", "最新价", "今开", "最高", "最低", "昨收", "成交量", "成交额"},
		Rows: [][]string{
			{code, "测试股份", "10.5", "10.0", "10.8", "9.9", "10.2", "123456", "1296288"},
		},
	}
}

func TestGetRealtimeAShare(t *testing.T) {
	equity := newFakeEquity()
	equity.aSpot = spotTable("600519")
	src := newTestSource(t, nil, equity, nil)

	quote, qerr := src.GetRealtime(context.Background(), "600519.SH")
	require.Nil(t, qerr)
	require.NotNil(t, quote)
	assert.Equal(t, "测试股份", quote.Name)
	assert.InDelta(t, 10.5, quote.Price, 1e-9)
	assert.InDelta(t, 10.2, quote.PreClose, 1e-9)
	assert.InDelta(t, 0.3, quote.Change(), 1e-9)
	assert.Equal(t, "10:30:00", quote.Time)
}

func TestGetRealtimeUsesSpotCache(t *testing.T) {
	equity := newFakeEquity()
	equity.aSpot = spotTable("600519")
	src := newTestSource(t, nil, equity, nil)

	src.GetRealtime(context.Background(), "600519.SH")
	src.GetRealtime(context.Background(), "600519.SH")
	assert.Equal(t, 1, equity.calls["a_spot"], "second lookup should hit the cache")
}

func TestGetRealtimeNoMatch(t *testing.T) {
	equity := newFakeEquity()
	equity.aSpot = spotTable("600519")
	src := newTestSource(t, nil, equity, nil)

	quote, qerr := src.GetRealtime(context.Background(), "600000.SH")
	assert.Nil(t, quote)
	assert.Nil(t, qerr)
}

func TestGetRealtimeUSDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features.EnableUSStock = false
	equity := newFakeEquity()
	src := newTestSource(t, cfg, equity, nil)

	quote, qerr := src.GetRealtime(context.Background(), "AAPL.US")
	assert.Nil(t, quote)
	require.NotNil(t, qerr)
	assert.Contains(t, qerr.Message, "disabled")
	assert.Empty(t, equity.calls)
}

func TestGetRealtimeUSExactThenNameMatch(t *testing.T) {
	equity := newFakeEquity()
	equity.usSpot = &Table{
		Columns: []string{"代码", "名称", "最新价", "昨收"},
		Rows: [][]string{
			{"105.MSFT", "Microsoft", "420.5", "418.0"},
			{"105.AAPL", "Apple Inc", "190.3", "189.0"},
		},
	}
	src := newTestSource(t, nil, equity, nil)

	quote, qerr := src.GetRealtime(context.Background(), "AAPL.US")
	require.Nil(t, qerr)
	require.NotNil(t, quote)
	assert.InDelta(t, 190.3, quote.Price, 1e-9)

	// No code suffix match for "APPLE", falls through to name substring.
	quote, qerr = src.GetRealtime(context.Background(), "APPLE.US")
	require.Nil(t, qerr)
	require.NotNil(t, quote)
	assert.Equal(t, "Apple Inc", quote.Name)
}

func TestGetRealtimeUSNotFound(t *testing.T) {
	equity := newFakeEquity()
	equity.usSpot = &Table{
		Columns: []string{"代码", "名称", "最新价"},
		Rows:    [][]string{{"105.MSFT", "Microsoft", "420.5"}},
	}
	src := newTestSource(t, nil, equity, nil)

	quote, qerr := src.GetRealtime(context.Background(), "ZZZZ.US")
	assert.Nil(t, quote)
	require.NotNil(t, qerr)
	assert.NotEmpty(t, qerr.Suggestion)
}

func minuteTable() *Table {
	return &Table{
		Columns: []string{"时间", "开盘", "收盘", "最高", "最低", "成交量"},
		Rows: [][]string{
			{"2024-05-30 10:30:00", "10.0", "10.2", "10.3", "9.9", "500"},
			{"2024-05-30 11:30:00", "10.2", "10.4", "10.5", "10.1", "600"},
		},
	}
}

func TestGetMinutelyFreqRouting(t *testing.T) {
	equity := newFakeEquity()
	equity.ashareMinute = minuteTable()
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetMinutely(context.Background(), "600519.SH", "15min")
	require.Len(t, bars, 2)
	assert.Equal(t, 1, equity.calls["ashare_minute_15"])
	assert.Equal(t, "20240530", bars[0].TradeDate)
	assert.Equal(t, "2024-05-30 10:30:00", bars[0].TradeTime)
}

func TestGetMinutelyUnknownFreqDefaultsTo5(t *testing.T) {
	equity := newFakeEquity()
	equity.ashareMinute = minuteTable()
	src := newTestSource(t, nil, equity, nil)

	src.GetMinutely(context.Background(), "600519.SH", "2min")
	assert.Equal(t, 1, equity.calls["ashare_minute_5"])
}

func TestGetHourlyNonAShareEmpty(t *testing.T) {
	equity := newFakeEquity()
	src := newTestSource(t, nil, equity, nil)

	bars := src.GetHourly(context.Background(), "AAPL.US")
	assert.Empty(t, bars)
	assert.Empty(t, equity.calls)
}

func TestGetIndexRealtimeStripsPrefix(t *testing.T) {
	equity := newFakeEquity()
	equity.indexSpot = &Table{
		Columns: []string{"代码", "名称", "最新价", "今开", "最高", "最低", "昨收", "成交量", "成交额"},
		Rows: [][]string{
			{"000001", "上证指数", "3100.5", "3080.0", "3120.0", "3070.0", "3090.0", "280000000", "350000000000"},
		},
	}
	src := newTestSource(t, nil, equity, nil)

	quote := src.GetIndexRealtime(context.Background(), "sh000001")
	require.NotNil(t, quote)
	assert.Equal(t, "上证指数", quote.Name)
	assert.InDelta(t, 3100.5, quote.Price, 1e-9)

	assert.Nil(t, src.GetIndexRealtime(context.Background(), "sh999999"))
}

func TestResolveBarColumnsAliasesAndFallback(t *testing.T) {
	cols := resolveBarColumns([]string{"日期", "开盘", "最高", "最低", "收盘", "成交量"})
	assert.Equal(t, barColumns{date: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}, cols)

	cols = resolveBarColumns([]string{"date", "open", "high", "low", "close", "vol"})
	assert.Equal(t, barColumns{date: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}, cols)

	// Close listed before open in the table: aliases win over position.
	cols = resolveBarColumns([]string{"日期", "收盘", "开盘", "最高", "最低", "成交量"})
	assert.Equal(t, 2, cols.open)
	assert.Equal(t, 1, cols.close)

	cols = resolveBarColumns([]string{"x", "y"})
	assert.Equal(t, 0, cols.date)
	assert.Equal(t, 1, cols.open)
	assert.Equal(t, -1, cols.high)
}
