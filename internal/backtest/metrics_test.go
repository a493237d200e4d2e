package backtest

import (
	"math"
	"testing"

	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimals(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSummarize_ReferenceCurve(t *testing.T) {
	s := Summarize(decimal.NewFromInt(100000), decimals(100000, 110000, 95000, 105000))

	assert.InDelta(t, 13.636363, s.MaxDrawdownPct, 1e-5)
	assert.InDelta(t, 5.0, s.TotalReturnPct, 1e-9)
}

func TestMaxDrawdownPct_Monotone(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdownPct(decimals(100, 101, 101, 150, 200)))
	assert.Equal(t, 0.0, MaxDrawdownPct(nil))
}

func TestMaxDrawdownPct_UsesRunningPeak(t *testing.T) {
	// 50 -> 40 is 20%, 200 -> 150 is 25%
	assert.InDelta(t, 25.0, MaxDrawdownPct(decimals(50, 40, 200, 150, 180)), 1e-9)
}

func TestSummarize_EmptyCurve(t *testing.T) {
	assert.Equal(t, PerformanceSummary{}, Summarize(decimal.NewFromInt(1000), nil))
}

func TestTotalReturnPct(t *testing.T) {
	assert.InDelta(t, -12.5, TotalReturnPct(decimal.NewFromInt(800), decimal.NewFromInt(700)), 1e-9)
	assert.Equal(t, 0.0, TotalReturnPct(decimal.Zero, decimal.NewFromInt(700)))
}

func trade(entry, exit, size float64) portfolio.Trade {
	e, x, s := decimal.NewFromFloat(entry), decimal.NewFromFloat(exit), decimal.NewFromFloat(size)
	return portfolio.Trade{EntryPrice: e, ExitPrice: x, Size: s, PnL: x.Sub(e).Mul(s)}
}

func TestTradeStatistics(t *testing.T) {
	results := &BacktestResults{
		Trades: []portfolio.Trade{
			trade(100, 110, 1),
			trade(100, 95, 1),
			trade(100, 120, 1),
		},
	}

	assert.InDelta(t, 30.0/5.0, results.CalculateProfitFactor(), 1e-9)
	assert.InDelta(t, 200.0/3.0, results.CalculateWinRate(), 1e-9)
	assert.Greater(t, results.CalculateSharpeRatio(), 0.0)
}

func TestTradeStatistics_Empty(t *testing.T) {
	results := &BacktestResults{}
	assert.Equal(t, 0.0, results.CalculateProfitFactor())
	assert.Equal(t, 0.0, results.CalculateWinRate())
	assert.Equal(t, 0.0, results.CalculateSharpeRatio())
}

func TestProfitFactor_NoLosses(t *testing.T) {
	results := &BacktestResults{Trades: []portfolio.Trade{trade(10, 12, 1)}}
	assert.True(t, math.IsInf(results.CalculateProfitFactor(), 1))
}

func TestUpdateMetrics(t *testing.T) {
	results := &BacktestResults{
		StartBalance: 1000,
		Trades:       []portfolio.Trade{trade(10, 12, 10), trade(10, 9, 10)},
		EquityCurve: []portfolio.EquityPoint{
			{Index: 0, Timestamp: epoch, Equity: decimal.NewFromInt(1000), Holdings: decimal.Zero},
			{Index: 1, Timestamp: at(1), Equity: decimal.NewFromInt(800), Holdings: decimal.NewFromInt(400)},
			{Index: 2, Timestamp: at(2), Equity: decimal.NewFromInt(1100), Holdings: decimal.Zero},
		},
	}
	results.UpdateMetrics()

	assert.InDelta(t, 20.0, results.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 10.0, results.TotalReturnPct, 1e-9)
	assert.Equal(t, 2, results.TotalTrades)
	assert.Equal(t, 1, results.WinningTrades)
	assert.Equal(t, 1, results.LosingTrades)
	assert.InDelta(t, 0.5, results.MaxExposure, 1e-9)
	assert.Greater(t, results.AnnualizedReturnPct, 0.0)
}
