package reporting

import (
	"context"
	"io"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
)

// Package reporting publishes backtest results to the console, files and chat

// Sink receives the results of a finished run
type Sink interface {
	Name() string
	Publish(ctx context.Context, results *backtest.BacktestResults) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle       int
	CurrencyStyle     int
	PercentStyle      int
	PriceStyle        int
	BaseStyle         int
	RedPercentStyle   int
	GreenPercentStyle int
	SummaryStyle      int
}

// ReportingConfig selects which sinks a run publishes to
type ReportingConfig struct {
	OutputDirectory string
	ConsoleEnabled  bool
	ConsoleWriter   io.Writer // stdout when nil
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
}

// Output file names inside a run directory
const (
	SummaryJSONFile = "summary.json"
	TradesCSVFile   = "trades.csv"
	EquityCSVFile   = "equity.csv"
	WorkbookFile    = "results.xlsx"
)

const timeLayout = "2006-01-02 15:04:05"
