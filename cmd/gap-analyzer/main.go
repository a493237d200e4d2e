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
	"github.com/ducminhle1904/gap-atr-backtest/internal/analysis"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/internal/notifications"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/config"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/data"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/reporting"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"go.uber.org/zap"
)

const AppName = "gap-analyzer"

// AnalyzerFlags holds the command line flags of the analyzer
type AnalyzerFlags struct {
	Common *common.CommonFlags

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

	MoveThreshold *float64
	GapThreshold  *float64
	TopMoves      *int
	Output        *string

	Movers     *bool
	Performers *int
	Discord    *bool
}

// NewAnalyzerFlags registers the analyzer flags on fs
func NewAnalyzerFlags(fs *flag.FlagSet) *AnalyzerFlags {
	return &AnalyzerFlags{
		Common: common.RegisterCommonFlags(fs),

		Symbols:    fs.String("symbols", "", "Comma-separated symbols"),
		SymbolList: fs.String("symbol-list", "", "Ranking CSV (default <data-root>/top_crypto_list.csv)"),
		TopN:       fs.Int("top", 0, "Use only the first N symbols of the ranking list"),
		Source:     fs.String("source", data.SourceCSV, "Bar source (csv, bybit)"),
		Interval:   fs.String("interval", config.DefaultInterval, "Bar interval"),
		Category:   fs.String("category", config.DefaultCategory, "Bybit category"),
		Testnet:    fs.Bool("testnet", false, "Use the Bybit testnet"),
		Start:      fs.String("start", "", "First day to load (YYYY-MM-DD)"),
		End:        fs.String("end", "", "Last day to load (YYYY-MM-DD)"),
		Period:     fs.String("period", "", "Keep only the trailing window of each series (30d)"),

		MoveThreshold: fs.Float64("threshold", 5, "Large move cut-off in percent"),
		GapThreshold:  fs.Float64("gap", config.DefaultGapThreshold, "Entry gap threshold (0.05 = 5%)"),
		TopMoves:      fs.Int("top-moves", 5, "Largest moves listed per asset"),
		Output:        fs.String("output", "", "Also write the statistics to this JSON file"),

		Movers:     fs.Bool("movers", false, "Rank assets by trailing return instead"),
		Performers: fs.Int("performers", 10, "Assets listed per timeframe in movers mode"),
		Discord:    fs.Bool("discord", false, "Post the movers ranking to DISCORD_WEBHOOK_URL"),
	}
}

// Validate checks flag ranges
func (f *AnalyzerFlags) Validate() error {
	v := common.NewFlagValidator().
		ValidateFloat("threshold", *f.MoveThreshold, 0.0001, 1000).
		ValidateFloat("gap", *f.GapThreshold, 0.0001, config.MaxThreshold).
		ValidateInt("top-moves", *f.TopMoves, 1, 1000).
		ValidateInt("performers", *f.Performers, 1, 100).
		ValidateChoice("source", *f.Source, []string{data.SourceCSV, data.SourceBybit})
	if *f.Period != "" {
		if _, err := data.ParseTrailingPeriod(*f.Period); err != nil {
			v.AddError(err.Error())
		}
	}
	return v.GetError()
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	flags := NewAnalyzerFlags(fs)
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
		common.NewUsageFormatter(common.ProjectName, "price move and gap distribution report").
			AddExample("gap-analyzer -symbols BTC-USD,ETH-USD -data-root data/1h", "Move statistics from CSV files").
			AddExample("gap-analyzer -source bybit -top 50 -movers -discord", "Post the top performers to Discord").
			PrintUsage(stdout, fs)
		return nil
	}
	if err := flags.Validate(); err != nil {
		return err
	}

	if _, err := common.LoadEnvFile(*flags.Common.EnvFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	secrets := config.LoadSecrets()

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

	symbols, names, err := resolveSymbols(flags)
	if err != nil {
		return err
	}
	provider, err := data.NewProvider(data.ProviderOptions{
		Source:    *flags.Source,
		DataDir:   *flags.Common.DataRoot,
		Interval:  *flags.Interval,
		Category:  *flags.Category,
		Testnet:   *flags.Testnet,
		APIKey:    secrets.BybitAPIKey,
		APISecret: secrets.BybitAPISecret,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	window := config.BacktestConfig{Start: *flags.Start, End: *flags.End}
	start, err := window.StartTime()
	if err != nil {
		return err
	}
	end, err := window.EndTime()
	if err != nil {
		return err
	}

	series, dropped := data.LoadUniverse(ctx, provider, symbols, start, end, data.UniverseOptions{Logger: log})
	for _, d := range dropped {
		log.Warn("Asset dropped", zap.String("symbol", d.Symbol), zap.Error(d.Err))
	}
	if *flags.Period != "" {
		period, _ := data.ParseTrailingPeriod(*flags.Period)
		for i := range series {
			series[i].Bars = data.FilterByPeriod(series[i].Bars, period)
		}
	}
	if len(series) == 0 {
		return fmt.Errorf("no asset has usable data")
	}

	if *flags.Movers {
		return runMovers(ctx, stdout, flags, secrets, series, names, log)
	}

	opts := analysis.DefaultOptions()
	opts.MoveThresholdPct = *flags.MoveThreshold
	opts.GapThreshold = *flags.GapThreshold
	opts.TopN = *flags.TopMoves

	stats := make([]analysis.MoveStats, 0, len(series))
	for _, s := range series {
		stats = append(stats, analysis.AnalyzeMoves(s, opts))
	}
	reporting.RenderMoveStats(stdout, stats)

	if path := *flags.Output; path != "" && !*flags.Common.ConsoleOnly {
		if err := reporting.WriteJSONFile(path, reporting.NewMoveReports(stats)); err != nil {
			return err
		}
		log.Info("Statistics written", zap.String("path", path))
	}
	return nil
}

func runMovers(ctx context.Context, stdout io.Writer, flags *AnalyzerFlags, secrets config.Secrets, series []types.AssetSeries, names map[string]string, log *zap.Logger) error {
	timeframes := analysis.DefaultTimeframes()
	movers := make([]analysis.Mover, 0, len(series))
	for _, s := range series {
		if m, ok := analysis.ComputeMover(s, names[s.Symbol], timeframes); ok {
			if len(m.Short) > 0 {
				log.Debug("Short history", zap.String("symbol", s.Symbol), zap.Strings("timeframes", m.Short))
			}
			movers = append(movers, m)
		}
	}
	reporting.RenderMovers(stdout, movers, timeframes, *flags.Performers)

	if !*flags.Discord {
		return nil
	}
	if secrets.DiscordWebhookURL == "" {
		return fmt.Errorf("-discord needs %s", config.EnvDiscordWebhook)
	}
	embeds := reporting.MoversEmbeds(movers, timeframes, *flags.Performers, time.Now())
	if err := notifications.NewDiscordNotifier(secrets.DiscordWebhookURL).PostEmbeds(ctx, embeds...); err != nil {
		return fmt.Errorf("failed to post movers: %w", err)
	}
	log.Info("Movers posted to Discord", zap.Int("embeds", len(embeds)))
	return nil
}

// resolveSymbols returns the symbols to load and, when read from the
// ranking list, their display names
func resolveSymbols(flags *AnalyzerFlags) ([]string, map[string]string, error) {
	names := map[string]string{}
	if syms := config.SplitSymbols(*flags.Symbols); len(syms) > 0 {
		return syms, names, nil
	}
	path := *flags.SymbolList
	if path == "" {
		path = filepath.Join(*flags.Common.DataRoot, config.DefaultSymbolList)
	}
	list, err := data.ReadSymbolList(path)
	if err != nil {
		return nil, nil, err
	}
	for _, info := range list {
		names[info.Symbol] = info.Name
	}
	return data.Symbols(list, *flags.TopN), names, nil
}
