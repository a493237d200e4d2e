package reporting

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ConsoleSink renders results as tables
type ConsoleSink struct {
	out       io.Writer
	maxTrades int
}

// NewConsoleSink writes to out, stdout when nil. maxTrades limits the trade
// table to the most recent closes; zero hides it.
func NewConsoleSink(out io.Writer, maxTrades int) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out, maxTrades: maxTrades}
}

func (c *ConsoleSink) Name() string { return "console" }

// Publish prints the summary, open positions and recent trades
func (c *ConsoleSink) Publish(_ context.Context, results *backtest.BacktestResults) error {
	if results == nil {
		return fmt.Errorf("console: nil results")
	}
	c.renderSummary(results)
	if len(results.OpenPositions) > 0 {
		c.renderOpenPositions(results)
	}
	if c.maxTrades > 0 && len(results.Trades) > 0 {
		c.renderTrades(results)
	}
	return nil
}

func (c *ConsoleSink) renderSummary(r *backtest.BacktestResults) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("📊 BACKTEST RESULTS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🪙 Assets", strings.Join(r.Symbols, ", ")},
		{"🗓️ Period", fmt.Sprintf("%s → %s", r.StartTime.Format(timeLayout), r.EndTime.Format(timeLayout))},
		{"🔁 Steps", r.Steps},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", r.StartBalance)},
		{"💰 Final Equity", fmt.Sprintf("$%.2f", r.EndBalance)},
		{"💵 Final Cash", fmt.Sprintf("$%.2f", r.FinalCash)},
		{"🧾 Commission Paid", fmt.Sprintf("$%.2f", r.TotalCommission)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📈 Total Return", fmt.Sprintf("%.2f%%", r.TotalReturnPct)},
		{"📈 Annualized Return", fmt.Sprintf("%.2f%%", r.AnnualizedReturnPct)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdownPct)},
		{"📊 Sharpe (per trade)", fmt.Sprintf("%.2f", r.SharpeRatio)},
		{"💹 Profit Factor", formatRatio(r.ProfitFactor)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔄 Closed Trades", r.TotalTrades},
		{"✅ Winning", fmt.Sprintf("%d (%.1f%%)", r.WinningTrades, r.WinRate)},
		{"❌ Losing", r.LosingTrades},
		{"📂 Open Positions", len(r.OpenPositions)},
		{"🎯 Max Exposure", fmt.Sprintf("%.1f%%", r.MaxExposure*100)},
		{"🎯 Avg Exposure", fmt.Sprintf("%.1f%%", r.AvgExposure*100)},
	})
	if skipped := formatSkipped(r); skipped != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"⚠️ Skipped", skipped})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignLeft},
	})
	t.Render()
}

func (c *ConsoleSink) renderOpenPositions(r *backtest.BacktestResults) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Entry Time", "Entry Price", "Size", "Notional"})
	for _, h := range r.OpenPositions {
		t.AppendRow(table.Row{
			h.Symbol,
			h.EntryTime.Format(timeLayout),
			h.EntryPrice.StringFixed(4),
			h.Size.StringFixed(6),
			"$" + h.EntryNotional.StringFixed(2),
		})
	}
	t.Render()
}

func (c *ConsoleSink) renderTrades(r *backtest.BacktestResults) {
	trades := r.Trades
	if len(trades) > c.maxTrades {
		trades = trades[len(trades)-c.maxTrades:]
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle(fmt.Sprintf("LAST %d TRADES", len(trades)))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Entry", "Exit", "Entry Price", "Exit Price", "PnL", "Return"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.Symbol,
			tr.EntryTime.Format(timeLayout),
			tr.ExitTime.Format(timeLayout),
			tr.EntryPrice.StringFixed(4),
			tr.ExitPrice.StringFixed(4),
			"$" + tr.PnL.StringFixed(2),
			fmt.Sprintf("%.2f%%", tr.ReturnPct()),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", v)
}

// formatSkipped renders skip counts by category in a stable order
func formatSkipped(r *backtest.BacktestResults) string {
	if len(r.Skipped) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Skipped))
	for cat, n := range r.Skipped {
		parts = append(parts, fmt.Sprintf("%s=%d", cat, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
