package backtest

import (
	"math"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PerformanceSummary is the headline outcome of a run, both in percent
type PerformanceSummary struct {
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	TotalReturnPct float64 `json:"total_return_pct"`
}

// MaxDrawdownPct returns the largest peak-to-trough decline of the curve, in
// percent of the running peak. The peak includes the current sample.
func MaxDrawdownPct(equity []decimal.Decimal) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := decimal.Zero
	for _, v := range equity {
		if v.GreaterThan(peak) {
			peak = v
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(v).Div(peak)
		if dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.Mul(hundred).InexactFloat64()
}

// TotalReturnPct = (final - initial) / initial * 100
func TotalReturnPct(initial, final decimal.Decimal) float64 {
	if !initial.IsPositive() {
		return 0
	}
	return final.Sub(initial).Div(initial).Mul(hundred).InexactFloat64()
}

// Summarize computes the summary of a curve started from initial. An empty
// curve has no drawdown and no return.
func Summarize(initial decimal.Decimal, equity []decimal.Decimal) PerformanceSummary {
	if len(equity) == 0 {
		return PerformanceSummary{}
	}
	return PerformanceSummary{
		MaxDrawdownPct: MaxDrawdownPct(equity),
		TotalReturnPct: TotalReturnPct(initial, equity[len(equity)-1]),
	}
}

// EquityValues extracts the equity column of a curve
func EquityValues(curve []portfolio.EquityPoint) []decimal.Decimal {
	out := make([]decimal.Decimal, len(curve))
	for i, p := range curve {
		out[i] = p.Equity
	}
	return out
}

// CalculateSharpeRatio is the mean over standard deviation of per-trade returns
func (b *BacktestResults) CalculateSharpeRatio() float64 {
	if len(b.Trades) == 0 {
		return 0
	}
	returns := make([]float64, 0, len(b.Trades))
	for _, trade := range b.Trades {
		if trade.EntryPrice.IsPositive() && trade.ExitPrice.IsPositive() {
			returns = append(returns, trade.ReturnPct()/100)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	avgReturn := 0.0
	for _, r := range returns {
		avgReturn += r
	}
	avgReturn /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avgReturn, 2)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev < 1e-10 {
		return 0
	}
	return avgReturn / stdDev
}

// CalculateProfitFactor is gross profit over gross loss of closed trades
func (b *BacktestResults) CalculateProfitFactor() float64 {
	totalProfit := decimal.Zero
	totalLoss := decimal.Zero
	for _, trade := range b.Trades {
		if trade.PnL.IsPositive() {
			totalProfit = totalProfit.Add(trade.PnL)
		} else {
			totalLoss = totalLoss.Add(trade.PnL.Abs())
		}
	}

	if totalLoss.IsZero() {
		if totalProfit.IsPositive() {
			return math.Inf(1)
		}
		return 0
	}
	return totalProfit.Div(totalLoss).InexactFloat64()
}

// CalculateWinRate calculates the win rate percentage
func (b *BacktestResults) CalculateWinRate() float64 {
	if len(b.Trades) == 0 {
		return 0
	}
	wins := 0
	for _, trade := range b.Trades {
		if trade.PnL.IsPositive() {
			wins++
		}
	}
	return float64(wins) / float64(len(b.Trades)) * 100
}

// UpdateMetrics recomputes every derived field from trades and equity curve
func (b *BacktestResults) UpdateMetrics() {
	summary := Summarize(decimal.NewFromFloat(b.StartBalance), EquityValues(b.EquityCurve))
	b.MaxDrawdownPct = summary.MaxDrawdownPct
	b.TotalReturnPct = summary.TotalReturnPct

	b.SharpeRatio = b.CalculateSharpeRatio()
	b.ProfitFactor = b.CalculateProfitFactor()
	b.WinRate = b.CalculateWinRate()

	b.TotalTrades = len(b.Trades)
	b.WinningTrades = 0
	for _, trade := range b.Trades {
		if trade.PnL.IsPositive() {
			b.WinningTrades++
		}
	}
	b.LosingTrades = b.TotalTrades - b.WinningTrades

	b.calculateAnnualizedReturn()
	b.calculateExposure()
}

// calculateAnnualizedReturn: (ending / beginning)^(1/years) - 1, in percent
func (b *BacktestResults) calculateAnnualizedReturn() {
	b.AnnualizedReturnPct = 0
	if len(b.EquityCurve) < 2 || b.StartBalance <= 0 {
		return
	}
	first := b.EquityCurve[0].Timestamp
	last := b.EquityCurve[len(b.EquityCurve)-1]
	years := last.Timestamp.Sub(first).Hours() / (24 * 365.25)
	if years <= 0 {
		return
	}
	ratio := last.Equity.InexactFloat64() / b.StartBalance
	if ratio <= 0 {
		return
	}
	b.AnnualizedReturnPct = (math.Pow(ratio, 1.0/years) - 1.0) * 100
}

// calculateExposure computes max and average share of equity held in positions
func (b *BacktestResults) calculateExposure() {
	b.MaxExposure, b.AvgExposure = 0, 0
	if len(b.EquityCurve) == 0 {
		return
	}
	total := 0.0
	for _, p := range b.EquityCurve {
		if !p.Equity.IsPositive() {
			continue
		}
		exp := p.Holdings.Div(p.Equity).InexactFloat64()
		if exp > b.MaxExposure {
			b.MaxExposure = exp
		}
		total += exp
	}
	b.AvgExposure = total / float64(len(b.EquityCurve))
}

// Duration is the simulated time span
func (b *BacktestResults) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}
