package reporting

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/analysis"
	"github.com/ducminhle1904/gap-atr-backtest/internal/notifications"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderMoveStats prints one overview row per asset and, for assets with
// large moves, their top moves and size distribution
func RenderMoveStats(w io.Writer, stats []analysis.MoveStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("📈 PRICE MOVE ANALYSIS")
	t.SetStyle(table.StyleRounded)

	levels := countLevels(stats)
	header := table.Row{"Symbol", "Bars", "Large", "Gap Entries", "Mean |Δ|", "Max |Δ|"}
	for _, lvl := range levels {
		header = append(header, fmt.Sprintf(">%g%%", lvl))
	}
	t.AppendHeader(header)
	for _, s := range stats {
		row := table.Row{
			s.Symbol,
			s.Bars,
			s.LargeMoves,
			s.GapEntries,
			fmt.Sprintf("%.2f%%", s.MeanAbsChange),
			fmt.Sprintf("%.2f%%", s.MaxAbsChange),
		}
		for _, lvl := range levels {
			row = append(row, s.CountsAbove[lvl])
		}
		t.AppendRow(row)
	}
	t.Render()

	for _, s := range stats {
		if s.LargeMoves == 0 && s.GapEntries == 0 {
			continue
		}
		renderMoveDetail(w, s)
	}
}

func renderMoveDetail(w io.Writer, s analysis.MoveStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(s.Symbol)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Time", "Change", "Close", "Prev Close"})
	for _, m := range s.TopMoves {
		t.AppendRow(table.Row{"move", m.Timestamp.Format(timeLayout), fmt.Sprintf("%.2f%%", m.PctChange), fmt.Sprintf("%.4f", m.Close), fmt.Sprintf("%.4f", m.PrevClose)})
	}
	for _, m := range s.TopGaps {
		t.AppendRow(table.Row{"gap", m.Timestamp.Format(timeLayout), fmt.Sprintf("%.2f%%", m.PctChange), fmt.Sprintf("%.4f", m.Close), fmt.Sprintf("%.4f", m.PrevClose)})
	}
	t.AppendSeparator()
	for _, b := range s.Buckets {
		t.AppendRow(table.Row{"bucket", bucketLabel(b), b.Count, "", ""})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	t.Render()
}

func bucketLabel(b analysis.Bucket) string {
	if math.IsInf(b.High, 1) {
		return fmt.Sprintf("%g%%+", b.Low)
	}
	return fmt.Sprintf("%g%% to %g%%", b.Low, b.High)
}

func countLevels(stats []analysis.MoveStats) []float64 {
	seen := make(map[float64]struct{})
	for _, s := range stats {
		for lvl := range s.CountsAbove {
			seen[lvl] = struct{}{}
		}
	}
	out := make([]float64, 0, len(seen))
	for lvl := range seen {
		out = append(out, lvl)
	}
	sort.Float64s(out)
	return out
}

// RenderMovers prints the top n performers for each timeframe
func RenderMovers(w io.Writer, movers []analysis.Mover, timeframes []analysis.Timeframe, n int) {
	for _, tf := range timeframes {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle(fmt.Sprintf("🏆 Top %d Performers - %s", n, tf.Label))
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Asset", "Return", "Price", "24h Volume"})
		for _, m := range analysis.TopMovers(movers, tf.Label, n) {
			t.AppendRow(table.Row{
				moverLabel(m),
				fmt.Sprintf("%.2f%%", m.Returns[tf.Label]),
				fmt.Sprintf("$%.8f", m.Price),
				fmt.Sprintf("$%.0f", m.Volume24h),
			})
		}
		t.Render()
	}
}

// MoversEmbeds builds one embed per timeframe with the top n performers
func MoversEmbeds(movers []analysis.Mover, timeframes []analysis.Timeframe, n int, now time.Time) []notifications.Embed {
	embeds := make([]notifications.Embed, 0, len(timeframes))
	for _, tf := range timeframes {
		e := notifications.Embed{
			Title:     fmt.Sprintf("🏆 Top %d Performers - %s", n, tf.Label),
			Color:     notifications.ColorGreen,
			Timestamp: now.UTC().Format(time.RFC3339),
		}
		for _, m := range analysis.TopMovers(movers, tf.Label, n) {
			e.Fields = append(e.Fields, notifications.EmbedField{
				Name:   moverLabel(m),
				Value:  fmt.Sprintf("Return: %.2f%%\nPrice: $%.8f\nVolume: $%.0f", m.Returns[tf.Label], m.Price, m.Volume24h),
				Inline: true,
			})
		}
		embeds = append(embeds, e)
	}
	return embeds
}

func moverLabel(m analysis.Mover) string {
	if m.Name == "" {
		return m.Symbol
	}
	return fmt.Sprintf("%s (%s)", m.Name, m.Symbol)
}

// MoveReport is the JSON form of analysis.MoveStats
type MoveReport struct {
	Symbol        string          `json:"symbol"`
	Bars          int             `json:"bars"`
	LargeMoves    int             `json:"large_moves"`
	GapEntries    int             `json:"gap_entries"`
	MeanAbsChange float64         `json:"mean_abs_change_pct"`
	MaxAbsChange  float64         `json:"max_abs_change_pct"`
	CountsAbove   map[string]int  `json:"counts_above_pct"`
	Buckets       map[string]int  `json:"buckets"`
	TopMoves      []analysis.Move `json:"top_moves"`
	TopGaps       []analysis.Move `json:"top_gaps"`
}

// NewMoveReports converts stats for JSON output; float keys become "%g" strings
func NewMoveReports(stats []analysis.MoveStats) []MoveReport {
	out := make([]MoveReport, 0, len(stats))
	for _, s := range stats {
		r := MoveReport{
			Symbol:        s.Symbol,
			Bars:          s.Bars,
			LargeMoves:    s.LargeMoves,
			GapEntries:    s.GapEntries,
			MeanAbsChange: s.MeanAbsChange,
			MaxAbsChange:  s.MaxAbsChange,
			CountsAbove:   make(map[string]int, len(s.CountsAbove)),
			Buckets:       make(map[string]int, len(s.Buckets)),
			TopMoves:      s.TopMoves,
			TopGaps:       s.TopGaps,
		}
		for lvl, n := range s.CountsAbove {
			r.CountsAbove[fmt.Sprintf("%g", lvl)] = n
		}
		for _, b := range s.Buckets {
			r.Buckets[bucketLabel(b)] = b.Count
		}
		out = append(out, r)
	}
	return out
}
