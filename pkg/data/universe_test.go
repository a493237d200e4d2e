package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/exchange/bybit"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type stubProvider struct {
	bars map[string][]types.OHLCV
	errs map[string]error
}

func (s *stubProvider) GetName() string { return "stub" }

func (s *stubProvider) FetchBars(_ context.Context, symbol string, _, _ time.Time) ([]types.OHLCV, error) {
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	return s.bars[symbol], nil
}

func hourly(n int, closes ...float64) []types.OHLCV {
	bars := make([]types.OHLCV, n)
	for i := range bars {
		c := 100.0
		if i < len(closes) {
			c = closes[i]
		}
		bars[i] = types.OHLCV{Timestamp: day0.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestLoadUniverse_DropsBadAssets(t *testing.T) {
	unordered := hourly(3)
	unordered[1], unordered[2] = unordered[2], unordered[1]

	provider := &stubProvider{
		bars: map[string][]types.OHLCV{
			"A":     hourly(5),
			"EMPTY": nil,
			"BAD":   unordered,
			"C":     hourly(2),
			"ZERO":  {{Timestamp: day0, Open: 0, High: 0, Low: 0, Close: 0}},
		},
		errs: map[string]error{"DOWN": errors.New("timeout")},
	}
	symbols := []string{"A", "EMPTY", "DOWN", "BAD", "ZERO", "C"}

	series, dropped := LoadUniverse(context.Background(), provider, symbols, time.Time{}, time.Time{}, UniverseOptions{Concurrency: 2})

	require.Len(t, series, 2)
	assert.Equal(t, "A", series[0].Symbol)
	assert.Equal(t, "C", series[1].Symbol)

	require.Len(t, dropped, 4)
	reasons := map[string]error{}
	for _, d := range dropped {
		reasons[d.Symbol] = d.Err
	}
	assert.True(t, errors.Is(reasons["EMPTY"], bterrors.ErrDataUnavailable))
	assert.True(t, errors.Is(reasons["DOWN"], bterrors.ErrDataUnavailable))
	assert.True(t, errors.Is(reasons["BAD"], bterrors.ErrDataOrdering))
	assert.True(t, errors.Is(reasons["ZERO"], bterrors.ErrInvalidData))
}

func TestLoadUniverse_DropsNonFiniteAsset(t *testing.T) {
	nan := hourly(3)
	nan[1].Close = math.NaN()
	inf := hourly(3)
	inf[2].High = math.Inf(1)

	provider := &stubProvider{bars: map[string][]types.OHLCV{
		"GOOD": hourly(3),
		"NAN":  nan,
		"INF":  inf,
	}}
	series, dropped := LoadUniverse(context.Background(), provider, []string{"GOOD", "NAN", "INF"},
		time.Time{}, time.Time{}, UniverseOptions{Concurrency: 1})

	require.Len(t, series, 1)
	assert.Equal(t, "GOOD", series[0].Symbol)
	require.Len(t, dropped, 2)
	for _, d := range dropped {
		assert.True(t, errors.Is(d.Err, bterrors.ErrInvalidData), d.Symbol)
	}
}

func TestValidateBars(t *testing.T) {
	assert.NoError(t, ValidateBars("OK", hourly(4)))

	bars := hourly(4)
	bars[2].Close = math.NaN()
	err := ValidateBars("NAN", bars)
	assert.True(t, errors.Is(err, bterrors.ErrInvalidData))
	assert.Contains(t, err.Error(), "index 2")

	bars = hourly(4)
	bars[0].Volume = math.Inf(-1)
	assert.True(t, errors.Is(ValidateBars("VOL", bars), bterrors.ErrInvalidData))

	bars = hourly(4)
	bars[3].Low = 0
	assert.True(t, errors.Is(ValidateBars("LOW", bars), bterrors.ErrInvalidData))
}

func TestReadSymbolList(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "top_crypto_list.csv",
		"symbol,name,market_cap_rank\nBTC-USD,Bitcoin,1\nETH-USD,\"Ethereum, Classic\",2\n,Nameless,3\nSOL-USD,Solana,\n")

	list, err := ReadSymbolList(path)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, SymbolInfo{Symbol: "BTC-USD", Name: "Bitcoin", Rank: 1}, list[0])
	assert.Equal(t, "Ethereum, Classic", list[1].Name)
	assert.Zero(t, list[2].Rank)

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, Symbols(list, 2))
	assert.Len(t, Symbols(list, 0), 3)

	_, err = ReadSymbolList(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestParseSymbolList_RequiresSymbolColumn(t *testing.T) {
	_, err := parseSymbolList(strings.NewReader("ticker,name\nBTC,Bitcoin\n"))
	assert.Error(t, err)
}

type stubKlines struct {
	gotSymbol   string
	gotCategory string
	gotStart    time.Time
	gotEnd      time.Time
	err         error
}

func (s *stubKlines) GetKlineRange(_ context.Context, category, symbol string, _ bybit.KlineInterval, start, end time.Time) ([]bybit.Kline, error) {
	s.gotSymbol, s.gotCategory, s.gotStart, s.gotEnd = symbol, category, start, end
	if s.err != nil {
		return nil, s.err
	}
	return []bybit.Kline{
		{StartTime: day0, OpenPrice: 1, HighPrice: 2, LowPrice: 0.5, ClosePrice: 1.5, Volume: 7},
		{StartTime: day0.Add(time.Hour), OpenPrice: 1.5, HighPrice: 2, LowPrice: 1, ClosePrice: 1.8, Volume: 3},
	}, nil
}

func TestBybitProvider_FetchBars(t *testing.T) {
	src := &stubKlines{}
	p := NewBybitProvider(src, "", "", nil)
	p.now = func() time.Time { return day0.Add(48 * time.Hour) }

	bars, err := p.FetchBars(context.Background(), "BTC-USD", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.5, bars[0].Close)
	assert.Equal(t, 7.0, bars[0].Volume)

	assert.Equal(t, "BTCUSDT", src.gotSymbol)
	assert.Equal(t, "spot", src.gotCategory)
	assert.Equal(t, day0.Add(48*time.Hour), src.gotEnd)
	assert.Equal(t, day0.Add(48*time.Hour).Add(-DefaultLookback), src.gotStart)
}

func TestBybitProvider_ErrorIsDataUnavailable(t *testing.T) {
	p := NewBybitProvider(&stubKlines{err: fmt.Errorf("boom")}, "linear", bybit.Interval4h, nil)
	_, err := p.FetchBars(context.Background(), "ETHUSDT", day0, day0.Add(time.Hour))
	assert.True(t, errors.Is(err, bterrors.ErrDataUnavailable))
}

func TestExchangeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", ExchangeSymbol("btc-usd"))
	assert.Equal(t, "ETHUSDT", ExchangeSymbol("ETHUSDT"))
	assert.Equal(t, "SOLUSDC", ExchangeSymbol("SOL-USDC"))
}

func TestFilters(t *testing.T) {
	bars := hourly(10)
	assert.Len(t, FilterByDateRange(bars, day0.Add(2*time.Hour), day0.Add(4*time.Hour)), 3)
	assert.Len(t, FilterByDateRange(bars, time.Time{}, time.Time{}), 10)
	assert.Len(t, FilterByPeriod(bars, 3*time.Hour), 4)

	d, err := ParseTrailingPeriod("30d")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)
	d, err = ParseTrailingPeriod("36h")
	require.NoError(t, err)
	assert.Equal(t, 36*time.Hour, d)
	_, err = ParseTrailingPeriod("soon")
	assert.Error(t, err)
}
