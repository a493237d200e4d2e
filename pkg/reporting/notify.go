package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	"github.com/ducminhle1904/gap-atr-backtest/internal/notifications"
)

// NotifySink posts the run summary as an embed
type NotifySink struct {
	poster notifications.EmbedPoster
	now    func() time.Time
}

// NewNotifySink wraps an embed-capable notifier such as the Discord webhook
func NewNotifySink(poster notifications.EmbedPoster) *NotifySink {
	return &NotifySink{poster: poster, now: time.Now}
}

func (s *NotifySink) Name() string { return "notify" }

func (s *NotifySink) Publish(ctx context.Context, results *backtest.BacktestResults) error {
	if results == nil {
		return fmt.Errorf("notify: nil results")
	}
	return s.poster.PostEmbeds(ctx, SummaryEmbed(results, s.now()))
}

// SummaryEmbed builds the summary card: green for a gain, red for a loss
func SummaryEmbed(r *backtest.BacktestResults, now time.Time) notifications.Embed {
	color := notifications.ColorGreen
	if r.TotalReturnPct < 0 {
		color = notifications.ColorRed
	}
	return notifications.Embed{
		Title:       "📊 Gap/ATR Backtest",
		Description: fmt.Sprintf("%s → %s, %d steps", r.StartTime.Format(timeLayout), r.EndTime.Format(timeLayout), r.Steps),
		Color:       color,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Fields: []notifications.EmbedField{
			{Name: "Assets", Value: truncate(strings.Join(r.Symbols, ", "), 1024)},
			{Name: "Final Equity", Value: fmt.Sprintf("$%.2f", r.EndBalance), Inline: true},
			{Name: "Total Return", Value: fmt.Sprintf("%.2f%%", r.TotalReturnPct), Inline: true},
			{Name: "Max Drawdown", Value: fmt.Sprintf("%.2f%%", r.MaxDrawdownPct), Inline: true},
			{Name: "Trades", Value: fmt.Sprintf("%d (win %.1f%%)", r.TotalTrades, r.WinRate), Inline: true},
			{Name: "Profit Factor", Value: formatRatio(r.ProfitFactor), Inline: true},
			{Name: "Open Positions", Value: fmt.Sprintf("%d", len(r.OpenPositions)), Inline: true},
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
