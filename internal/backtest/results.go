package backtest

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
)

// BacktestResults is everything a sink may publish about a finished run
type BacktestResults struct {
	Symbols   []string
	StartTime time.Time
	EndTime   time.Time
	Steps     int
	Config    Config

	StartBalance    float64
	EndBalance      float64
	FinalCash       float64
	TotalCommission float64

	TotalReturnPct      float64
	MaxDrawdownPct      float64
	AnnualizedReturnPct float64
	SharpeRatio         float64
	ProfitFactor        float64
	WinRate             float64
	MaxExposure         float64
	AvgExposure         float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	Trades        []portfolio.Trade
	EquityCurve   []portfolio.EquityPoint
	OpenPositions []portfolio.Holding
	Skipped       map[bterrors.ErrorCategory]int
}

// Summary returns the headline drawdown and return
func (b *BacktestResults) Summary() PerformanceSummary {
	return PerformanceSummary{
		MaxDrawdownPct: b.MaxDrawdownPct,
		TotalReturnPct: b.TotalReturnPct,
	}
}

func (b *BacktestResults) populate(ledger *portfolio.Ledger) {
	b.Trades = ledger.Trades()
	b.EquityCurve = ledger.EquityCurve()
	b.OpenPositions = ledger.OpenHoldings()
	b.FinalCash = ledger.Cash().InexactFloat64()
	b.EndBalance = ledger.Equity().InexactFloat64()
	b.TotalCommission = ledger.TotalCommission().InexactFloat64()
	b.UpdateMetrics()
}

// PrintSummary writes a plain text summary to stdout
func (b *BacktestResults) PrintSummary() {
	fmt.Printf("=== Backtest Results ===\n")
	fmt.Printf("Assets: %v\n", b.Symbols)
	fmt.Printf("Initial Balance: $%.2f\n", b.StartBalance)
	fmt.Printf("Final Equity: $%.2f\n", b.EndBalance)
	fmt.Printf("Total Return: %.2f%%\n", b.TotalReturnPct)
	fmt.Printf("Max Drawdown: %.2f%%\n", b.MaxDrawdownPct)
	fmt.Printf("Total Trades: %d (win rate %.1f%%)\n", b.TotalTrades, b.WinRate)
	fmt.Printf("Open Positions: %d\n", len(b.OpenPositions))
}
