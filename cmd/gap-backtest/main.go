package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/cmd/common"
	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/internal/monitoring"
	"github.com/ducminhle1904/gap-atr-backtest/internal/notifications"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/config"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/data"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/reporting"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"go.uber.org/zap"
)

const (
	AppName       = "gap-backtest"
	SweepJSONFile = "sweep.json"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	flags := NewBacktestFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *flags.Common.Version {
		common.PrintVersion(stdout, AppName)
		return nil
	}
	if *flags.Common.Help {
		usage().PrintUsage(stdout, fs)
		return nil
	}
	if err := flags.Validate(); err != nil {
		return err
	}

	if _, err := common.LoadEnvFile(*flags.Common.EnvFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	secrets := config.LoadSecrets()

	cfg, err := loadConfig(fs, flags)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Options{
		Level:   flags.Common.ResolveLogLevel(secrets.LogLevel),
		RunName: AppName,
		Dir:     *flags.Common.LogDir,
		Console: true,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alerts := newAlerter(*flags.Alerts, secrets, log)

	series, err := loadSeries(ctx, cfg, flags, secrets, log)
	if err != nil {
		alerts.send(ctx, notifications.LevelError, fmt.Sprintf("Backtest aborted: %v", err))
		return err
	}

	if flags.Sweeping() {
		grid, _ := flags.SweepGrid()
		return runSweep(ctx, stdout, cfg, grid, series, flags, log)
	}
	return runSingle(ctx, stdout, cfg, series, flags, secrets, alerts, log)
}

func usage() *common.UsageFormatter {
	return common.NewUsageFormatter(common.ProjectName, "gap entry / ATR trailing stop backtester").
		AddExample("gap-backtest -symbols BTC-USD,ETH-USD -data-root data/1h", "Backtest two assets from CSV files").
		AddExample("gap-backtest -config default -excel -json", "Run a saved config and write reports").
		AddExample("gap-backtest -source bybit -symbol-list top_crypto_list.csv -top 20 -period 30d", "Download the top 20 from Bybit").
		AddExample("gap-backtest -symbols BTC-USD -sweep-gaps 0.03,0.05,0.08 -sweep-mults 2,3,4", "Sweep entry and stop parameters")
}

// loadConfig layers defaults, the config file, GAPBT_* variables and flags
func loadConfig(fs *flag.FlagSet, flags *BacktestFlags) (*config.BacktestConfig, error) {
	cfg := config.Default()
	if *flags.ConfigFile != "" {
		loaded, err := config.LoadFile(common.ResolvePath(*flags.ConfigFile, "configs", ".json"))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	flags.Apply(fs, cfg)
	if len(cfg.Symbols) == 0 && cfg.SymbolList == "" {
		cfg.SymbolList = filepath.Join(cfg.DataDir, config.DefaultSymbolList)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveSymbols(cfg *config.BacktestConfig) ([]string, error) {
	if len(cfg.Symbols) > 0 {
		if cfg.TopN > 0 && len(cfg.Symbols) > cfg.TopN {
			return cfg.Symbols[:cfg.TopN], nil
		}
		return cfg.Symbols, nil
	}
	list, err := data.ReadSymbolList(cfg.SymbolList)
	if err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "cli", "read_symbol_list")
	}
	return data.Symbols(list, cfg.TopN), nil
}

func loadSeries(ctx context.Context, cfg *config.BacktestConfig, flags *BacktestFlags, secrets config.Secrets, log *zap.Logger) ([]types.AssetSeries, error) {
	symbols, err := resolveSymbols(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := data.NewProvider(cfg.ProviderOptions(secrets, log))
	if err != nil {
		return nil, err
	}
	start, _ := cfg.StartTime()
	end, _ := cfg.EndTime()

	log.Info("Loading universe",
		zap.String("source", provider.GetName()),
		zap.Int("symbols", len(symbols)),
		zap.String("interval", cfg.Interval))

	series, dropped := data.LoadUniverse(ctx, provider, symbols, start, end, data.UniverseOptions{
		Concurrency: *flags.Fetchers,
		Logger:      log,
	})
	for _, d := range dropped {
		log.Warn("Asset dropped", zap.String("symbol", d.Symbol), zap.Error(d.Err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if *flags.Period != "" {
		window, _ := data.ParseTrailingPeriod(*flags.Period)
		kept := series[:0]
		for _, s := range series {
			s.Bars = data.FilterByPeriod(s.Bars, window)
			if len(s.Bars) == 0 {
				log.Warn("Asset dropped", zap.String("symbol", s.Symbol), zap.String("reason", "no bars in period"))
				continue
			}
			kept = append(kept, s)
		}
		series = kept
	}

	if len(series) == 0 {
		return nil, bterrors.New(bterrors.ErrorCategoryDataUnavailable, "cli", "load_universe", "no asset has usable data")
	}
	log.Info("Universe loaded", zap.Int("assets", len(series)), zap.Int("dropped", len(dropped)))
	return series, nil
}

func runSingle(ctx context.Context, stdout io.Writer, cfg *config.BacktestConfig, series []types.AssetSeries, flags *BacktestFlags, secrets config.Secrets, alerts *alerter, log *zap.Logger) error {
	recorder := monitoring.NewRecorder(AppName)
	if addr := *flags.MetricsAddr; addr != "" {
		go func() {
			if err := recorder.Serve(ctx, addr, log); err != nil {
				log.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	engine, err := backtest.NewBacktestEngine(cfg.ToEngineConfig(), log)
	if err != nil {
		return err
	}
	engine.SetObserver(recorder)
	for _, s := range series {
		if err := engine.AddSeries(s); err != nil {
			log.Warn("Series rejected", zap.String("symbol", s.Symbol), zap.Error(err))
		}
	}

	started := time.Now()
	results, err := engine.Run()
	recorder.Health().Finish(err)
	if err != nil {
		alerts.send(ctx, notifications.LevelError, fmt.Sprintf("Backtest failed: %v", err))
		return err
	}
	log.Info("Backtest finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("steps", results.Steps),
		zap.Int("trades", results.TotalTrades),
		zap.Float64("total_return_pct", results.TotalReturnPct),
		zap.Float64("max_drawdown_pct", results.MaxDrawdownPct))

	runDir := reporting.NewDefaultPathManager(cfg.Output.Dir).RunDir(results.Symbols, cfg.Interval, time.Now())
	var extra []reporting.Sink
	if cfg.Output.Discord {
		if secrets.DiscordWebhookURL == "" {
			log.Warn("Discord output enabled but webhook is not set", zap.String("env", config.EnvDiscordWebhook))
		} else {
			extra = append(extra, reporting.NewNotifySink(notifications.NewDiscordNotifier(secrets.DiscordWebhookURL)))
		}
	}
	manager := reporting.NewReportingManagerFromConfig(reporting.ReportingConfig{
		OutputDirectory: runDir,
		ConsoleEnabled:  cfg.Output.Console,
		ConsoleWriter:   stdout,
		ExcelEnabled:    cfg.Output.Excel,
		CSVEnabled:      cfg.Output.CSV,
		JSONEnabled:     cfg.Output.JSON,
	}, runDir, log, extra...)
	reportErr := manager.ReportResults(ctx, results)

	if path := *flags.MetricsFile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			log.Error("Failed to write metrics file", zap.String("path", path), zap.Error(err))
		}
	}

	alerts.send(ctx, notifications.LevelSuccess, fmt.Sprintf(
		"Backtest complete: %d assets, %d trades, return %.2f%%, max drawdown %.2f%%",
		len(results.Symbols), results.TotalTrades, results.TotalReturnPct, results.MaxDrawdownPct))
	return reportErr
}

func runSweep(ctx context.Context, stdout io.Writer, cfg *config.BacktestConfig, grid backtest.SweepGrid, series []types.AssetSeries, flags *BacktestFlags, log *zap.Logger) error {
	jobs := grid.Jobs(cfg.ToEngineConfig())
	log.Info("Starting parameter sweep", zap.Int("jobs", len(jobs)), zap.Int("workers", *flags.Workers))

	results := backtest.NewWorkerPool(*flags.Workers, series, log).Run(ctx, jobs)
	entries := reporting.NewSweepEntries(results)
	reporting.RenderSweepTable(stdout, entries, *flags.SweepTop)

	if *flags.Common.ConsoleOnly {
		return ctx.Err()
	}
	symbols := make([]string, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
	}
	path := filepath.Join(reporting.NewDefaultPathManager(cfg.Output.Dir).RunDir(symbols, cfg.Interval, time.Now()), SweepJSONFile)
	if err := reporting.WriteJSONFile(path, entries); err != nil {
		return bterrors.Wrap(err, bterrors.ErrorCategoryReporting, "cli", "write_sweep")
	}
	log.Info("Sweep results written", zap.String("path", path))
	return ctx.Err()
}

// alerter fans run alerts out to every configured notifier. Delivery
// failures are logged and never fail the run.
type alerter struct {
	notifiers []notifications.Notifier
	log       *zap.Logger
}

func newAlerter(enabled bool, secrets config.Secrets, log *zap.Logger) *alerter {
	a := &alerter{log: log}
	if !enabled {
		return a
	}
	if secrets.TelegramToken != "" && secrets.TelegramChatID != "" {
		a.notifiers = append(a.notifiers, notifications.NewTelegramNotifier(secrets.TelegramToken, secrets.TelegramChatID))
	}
	if secrets.DiscordWebhookURL != "" {
		a.notifiers = append(a.notifiers, notifications.NewDiscordNotifier(secrets.DiscordWebhookURL))
	}
	if len(a.notifiers) == 0 {
		log.Warn("Alerts enabled but no Telegram or Discord credentials are set")
	}
	return a
}

func (a *alerter) send(ctx context.Context, level, message string) {
	for _, n := range a.notifiers {
		if err := n.SendAlert(ctx, level, message); err != nil {
			a.log.Warn("Alert delivery failed", zap.Error(err))
		}
	}
}
