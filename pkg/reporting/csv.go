package reporting

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
)

// CSVSink writes trades.csv and equity.csv into a directory
type CSVSink struct {
	dir string
}

// NewCSVSink creates a CSV sink writing into dir
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Publish(_ context.Context, results *backtest.BacktestResults) error {
	if results == nil {
		return fmt.Errorf("csv: nil results")
	}
	if err := WriteTradesCSV(results, filepath.Join(s.dir, TradesCSVFile)); err != nil {
		return err
	}
	return WriteEquityCSV(results, filepath.Join(s.dir, EquityCSVFile))
}

// WriteTradesCSV writes one row per closed trade and a final summary row
func WriteTradesCSV(results *backtest.BacktestResults, path string) error {
	header := []string{
		"Symbol",
		"Entry_Time",
		"Exit_Time",
		"Entry_Bar",
		"Exit_Bar",
		"Entry_Price",
		"Exit_Price",
		"Size",
		"Commission",
		"PnL",
		"Return_%",
		"Win_Loss",
	}
	rows := make([][]string, 0, len(results.Trades)+1)
	for _, t := range results.Trades {
		winLoss := "W"
		if !t.PnL.IsPositive() {
			winLoss = "L"
		}
		rows = append(rows, []string{
			t.Symbol,
			t.EntryTime.Format(timeLayout),
			t.ExitTime.Format(timeLayout),
			strconv.Itoa(t.EntryIndex),
			strconv.Itoa(t.ExitIndex),
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			t.Size.String(),
			t.Commission.StringFixed(8),
			t.PnL.StringFixed(8),
			fmt.Sprintf("%.4f", t.ReturnPct()),
			winLoss,
		})
	}

	summary := make([]string, len(header))
	summary[0] = "SUMMARY"
	summary[len(header)-1] = fmt.Sprintf("trades=%d; win_rate=%.2f%%; total_return=%.2f%%; max_drawdown=%.2f%%",
		results.TotalTrades, results.WinRate, results.TotalReturnPct, results.MaxDrawdownPct)
	rows = append(rows, summary)

	return writeCSV(path, header, rows)
}

// WriteEquityCSV writes one row per simulation step
func WriteEquityCSV(results *backtest.BacktestResults, path string) error {
	header := []string{"Step", "Timestamp", "Cash", "Holdings", "Equity"}
	rows := make([][]string, 0, len(results.EquityCurve))
	for _, p := range results.EquityCurve {
		rows = append(rows, []string{
			strconv.Itoa(p.Index),
			p.Timestamp.Format(timeLayout),
			p.Cash.StringFixed(8),
			p.Holdings.StringFixed(8),
			p.Equity.StringFixed(8),
		})
	}
	return writeCSV(path, header, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
