package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/ducminhle1904/gap-atr-backtest/cmd/common"
	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/config"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/data"
)

// BacktestFlags holds all command line flags for the gap backtest command.
// Flags override the config file only when given explicitly.
type BacktestFlags struct {
	Common *common.CommonFlags

	// Configuration
	ConfigFile *string
	Symbols    *string
	SymbolList *string
	TopN       *int
	Source     *string
	Interval   *string
	Category   *string
	Testnet    *bool
	Start      *string
	End        *string
	Period     *string
	Fetchers   *int

	// Account settings
	InitialCash    *float64
	Commission     *float64
	CommissionMode *string
	RiskFraction   *float64

	// Strategy parameters
	GapThreshold  *float64
	ATRPeriod     *int
	ATRMultiplier *float64
	ATRSmoothing  *string
	Termination   *string

	// Output options
	OutputDir   *string
	Excel       *bool
	CSV         *bool
	JSON        *bool
	Discord     *bool
	Alerts      *bool
	MetricsAddr *string
	MetricsFile *string

	// Parameter sweep
	SweepGaps    *string
	SweepMults   *string
	SweepPeriods *string
	Workers      *int
	SweepTop     *int
}

// NewBacktestFlags registers every flag on fs
func NewBacktestFlags(fs *flag.FlagSet) *BacktestFlags {
	return &BacktestFlags{
		Common: common.RegisterCommonFlags(fs),

		ConfigFile: fs.String("config", "", "Config file (name resolves to configs/<name>.json)"),
		Symbols:    fs.String("symbols", "", "Comma-separated symbols (BTC-USD,ETH-USD)"),
		SymbolList: fs.String("symbol-list", "", "Ranking CSV used when -symbols is empty"),
		TopN:       fs.Int("top", 0, "Use only the first N symbols of the ranking list"),
		Source:     fs.String("source", config.SourceCSV, "Bar source (csv, bybit)"),
		Interval:   fs.String("interval", config.DefaultInterval, "Bar interval (1m ... 1d)"),
		Category:   fs.String("category", config.DefaultCategory, "Bybit category (spot, linear)"),
		Testnet:    fs.Bool("testnet", false, "Use the Bybit testnet"),
		Start:      fs.String("start", "", "First day to load (YYYY-MM-DD)"),
		End:        fs.String("end", "", "Last day to load (YYYY-MM-DD)"),
		Period:     fs.String("period", "", "Keep only the trailing window of each series (30d, 720h)"),
		Fetchers:   fs.Int("fetchers", 4, "Parallel series downloads"),

		InitialCash:    fs.Float64("cash", config.DefaultInitialCash, "Initial cash"),
		Commission:     fs.Float64("commission", config.DefaultCommission, "Commission rate (0.001 = 0.1%)"),
		CommissionMode: fs.String("commission-mode", "on_top", "Commission in sizing (on_top, net_of_fee)"),
		RiskFraction:   fs.Float64("risk", config.DefaultRiskFraction, "Fraction of cash committed per entry"),

		GapThreshold:  fs.Float64("gap", config.DefaultGapThreshold, "Entry gap threshold (0.05 = 5%)"),
		ATRPeriod:     fs.Int("atr-period", config.DefaultATRPeriod, "ATR period"),
		ATRMultiplier: fs.Float64("atr-mult", config.DefaultATRMultiplier, "ATR multiplier for the trailing stop"),
		ATRSmoothing:  fs.String("atr-smoothing", "sma", "ATR smoothing (sma, wilder)"),
		Termination:   fs.String("termination", "all", "Stop when all series end or at the shortest (all, shortest)"),

		OutputDir:   fs.String("output", config.DefaultResultsDir, "Results root directory"),
		Excel:       fs.Bool("excel", false, "Write an Excel workbook"),
		CSV:         fs.Bool("csv", false, "Write trades and equity CSV files"),
		JSON:        fs.Bool("json", false, "Write summary.json"),
		Discord:     fs.Bool("discord", false, "Post the summary to DISCORD_WEBHOOK_URL"),
		Alerts:      fs.Bool("alerts", false, "Send run alerts to Telegram and Discord"),
		MetricsAddr: fs.String("metrics-addr", "", "Serve /metrics and /health on this address"),
		MetricsFile: fs.String("metrics-file", "", "Write metrics in textfile format after the run"),

		SweepGaps:    fs.String("sweep-gaps", "", "Comma-separated gap thresholds to sweep"),
		SweepMults:   fs.String("sweep-mults", "", "Comma-separated ATR multipliers to sweep"),
		SweepPeriods: fs.String("sweep-periods", "", "Comma-separated ATR periods to sweep"),
		Workers:      fs.Int("workers", 4, "Parallel sweep workers"),
		SweepTop:     fs.Int("sweep-top", 20, "Rows shown in the sweep table (0 = all)"),
	}
}

// Apply copies the explicitly set flags onto cfg
func (f *BacktestFlags) Apply(fs *flag.FlagSet, cfg *config.BacktestConfig) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "symbols":
			cfg.Symbols = config.SplitSymbols(*f.Symbols)
		case "symbol-list":
			cfg.SymbolList = *f.SymbolList
		case "top":
			cfg.TopN = *f.TopN
		case "source":
			cfg.Source = *f.Source
		case "data-root":
			cfg.DataDir = *f.Common.DataRoot
		case "interval":
			cfg.Interval = *f.Interval
		case "category":
			cfg.Category = *f.Category
		case "testnet":
			cfg.Testnet = *f.Testnet
		case "start":
			cfg.Start = *f.Start
		case "end":
			cfg.End = *f.End
		case "cash":
			cfg.InitialCash = *f.InitialCash
		case "commission":
			cfg.Commission = *f.Commission
		case "commission-mode":
			cfg.CommissionMode = *f.CommissionMode
		case "risk":
			cfg.RiskFraction = *f.RiskFraction
		case "gap":
			cfg.GapThreshold = *f.GapThreshold
		case "atr-period":
			cfg.ATRPeriod = *f.ATRPeriod
		case "atr-mult":
			cfg.ATRMultiplier = *f.ATRMultiplier
		case "atr-smoothing":
			cfg.ATRSmoothing = *f.ATRSmoothing
		case "termination":
			cfg.Termination = *f.Termination
		case "output":
			cfg.Output.Dir = *f.OutputDir
		case "excel":
			cfg.Output.Excel = *f.Excel
		case "csv":
			cfg.Output.CSV = *f.CSV
		case "json":
			cfg.Output.JSON = *f.JSON
		case "discord":
			cfg.Output.Discord = *f.Discord
		}
	})
	if *f.Common.ConsoleOnly {
		cfg.Output.Console = true
		cfg.Output.Excel = false
		cfg.Output.CSV = false
		cfg.Output.JSON = false
	}
}

// Validate checks the flags that never reach the config
func (f *BacktestFlags) Validate() error {
	v := common.NewFlagValidator().
		ValidateInt("fetchers", *f.Fetchers, 1, 64).
		ValidateInt("workers", *f.Workers, 1, 256).
		ValidateInt("sweep-top", *f.SweepTop, 0, 1_000_000)
	if *f.Period != "" {
		if _, err := data.ParseTrailingPeriod(*f.Period); err != nil {
			v.AddError(err.Error())
		}
	}
	if _, err := f.SweepGrid(); err != nil {
		v.AddError(err.Error())
	}
	return v.GetError()
}

// SweepGrid parses the sweep lists; an empty grid means a single run
func (f *BacktestFlags) SweepGrid() (backtest.SweepGrid, error) {
	var grid backtest.SweepGrid
	var err error
	if grid.GapThresholds, err = parseFloatList("sweep-gaps", *f.SweepGaps); err != nil {
		return grid, err
	}
	if grid.ATRMultipliers, err = parseFloatList("sweep-mults", *f.SweepMults); err != nil {
		return grid, err
	}
	if grid.ATRPeriods, err = parseIntList("sweep-periods", *f.SweepPeriods); err != nil {
		return grid, err
	}
	return grid, nil
}

// Sweeping reports whether any sweep list was given
func (f *BacktestFlags) Sweeping() bool {
	return *f.SweepGaps != "" || *f.SweepMults != "" || *f.SweepPeriods != ""
}

func parseFloatList(name, s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%s: invalid value %q", name, part)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseIntList(name, s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("%s: invalid value %q", name, part)
		}
		out = append(out, v)
	}
	return out, nil
}
