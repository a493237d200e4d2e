package reporting

import (
	"fmt"
	"io"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SweepEntry is one parameter combination in sweep.json
type SweepEntry struct {
	Rank           int     `json:"rank"`
	ID             string  `json:"id"`
	GapThreshold   float64 `json:"gap_threshold"`
	ATRMultiplier  float64 `json:"atr_multiplier"`
	ATRPeriod      int     `json:"atr_period"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate_pct"`
	DurationMs     int64   `json:"duration_ms"`
	Error          string  `json:"error,omitempty"`
}

// NewSweepEntries ranks successful runs by return; failed runs follow unranked
func NewSweepEntries(results []backtest.SweepResult) []SweepEntry {
	ranked := backtest.RankByReturn(results)
	out := make([]SweepEntry, 0, len(results))
	for i, r := range ranked {
		e := sweepEntry(r)
		e.Rank = i + 1
		out = append(out, e)
	}
	for _, r := range results {
		if r.Error != nil || r.Results == nil {
			out = append(out, sweepEntry(r))
		}
	}
	return out
}

func sweepEntry(r backtest.SweepResult) SweepEntry {
	e := SweepEntry{
		ID:            r.ID,
		GapThreshold:  r.Config.Strategy.GapThreshold,
		ATRMultiplier: r.Config.Strategy.ATRMultiplier,
		ATRPeriod:     r.Config.ATRPeriod,
		DurationMs:    r.Duration.Milliseconds(),
	}
	if r.Error != nil {
		e.Error = r.Error.Error()
		return e
	}
	if r.Results != nil {
		e.TotalReturnPct = r.Results.TotalReturnPct
		e.MaxDrawdownPct = r.Results.MaxDrawdownPct
		e.Trades = r.Results.TotalTrades
		e.WinRate = r.Results.WinRate
	}
	return e
}

// RenderSweepTable prints the best top entries, all when top <= 0
func RenderSweepTable(w io.Writer, entries []SweepEntry, top int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("🔬 PARAMETER SWEEP")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Gap", "ATR x", "ATR n", "Return", "Max DD", "Trades", "Win"})

	shown := 0
	for _, e := range entries {
		if e.Rank == 0 {
			continue
		}
		if top > 0 && shown >= top {
			break
		}
		t.AppendRow(table.Row{
			e.Rank,
			fmt.Sprintf("%.2f%%", e.GapThreshold*100),
			fmt.Sprintf("%.2f", e.ATRMultiplier),
			e.ATRPeriod,
			fmt.Sprintf("%.2f%%", e.TotalReturnPct),
			fmt.Sprintf("%.2f%%", e.MaxDrawdownPct),
			e.Trades,
			fmt.Sprintf("%.1f%%", e.WinRate),
		})
		shown++
	}
	failed := 0
	for _, e := range entries {
		if e.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		t.AppendFooter(table.Row{"", "", "", "", "", "", "failed", failed})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()
}
