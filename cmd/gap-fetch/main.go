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
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/config"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/data"
	"go.uber.org/zap"
)

const AppName = "gap-fetch"

// FetchFlags holds the downloader's command line flags
type FetchFlags struct {
	Common *common.CommonFlags

	Symbols    *string
	SymbolList *string
	TopN       *int
	Interval   *string
	Category   *string
	Testnet    *bool
	Start      *string
	End        *string
	Fetchers   *int
}

// NewFetchFlags registers the downloader flags on fs
func NewFetchFlags(fs *flag.FlagSet) *FetchFlags {
	return &FetchFlags{
		Common: common.RegisterCommonFlags(fs),

		Symbols:    fs.String("symbols", "", "Comma-separated symbols (BTC-USD,ETH-USD)"),
		SymbolList: fs.String("symbol-list", "", "Ranking CSV (default <data-root>/top_crypto_list.csv)"),
		TopN:       fs.Int("top", 0, "Use only the first N symbols of the ranking list"),
		Interval:   fs.String("interval", config.DefaultInterval, "Kline interval (1m ... 1d)"),
		Category:   fs.String("category", config.DefaultCategory, "Market category (spot, linear, inverse)"),
		Testnet:    fs.Bool("testnet", false, "Use the Bybit testnet"),
		Start:      fs.String("start", "", "Start date (YYYY-MM-DD), default 30 days ago"),
		End:        fs.String("end", "", "End date (YYYY-MM-DD), default now"),
		Fetchers:   fs.Int("fetchers", 4, "Parallel downloads"),
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, nil); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// run downloads every symbol into <data-root>/<SYMBOL>.csv. A nil provider
// means Bybit.
func run(args []string, stdout io.Writer, provider data.BarProvider) error {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	flags := NewFetchFlags(fs)
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
		common.NewUsageFormatter(common.ProjectName, "Bybit kline downloader").
			AddExample("gap-fetch -symbols BTC-USD,ETH-USD -start 2024-01-01 -data-root data/1h", "Download two assets").
			AddExample("gap-fetch -top 50 -interval 1h", "Download the top 50 of the ranking list").
			PrintUsage(stdout, fs)
		return nil
	}
	if err := common.NewFlagValidator().ValidateInt("fetchers", *flags.Fetchers, 1, 32).GetError(); err != nil {
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

	window := config.BacktestConfig{Start: *flags.Start, End: *flags.End}
	start, err := window.StartTime()
	if err != nil {
		return err
	}
	end, err := window.EndTime()
	if err != nil {
		return err
	}

	symbols := config.SplitSymbols(*flags.Symbols)
	if len(symbols) == 0 {
		path := *flags.SymbolList
		if path == "" {
			path = filepath.Join(*flags.Common.DataRoot, config.DefaultSymbolList)
		}
		list, err := data.ReadSymbolList(path)
		if err != nil {
			return err
		}
		symbols = data.Symbols(list, *flags.TopN)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to download")
	}

	if provider == nil {
		provider, err = data.NewProvider(data.ProviderOptions{
			Source:    data.SourceBybit,
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
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	series, dropped := data.LoadUniverse(ctx, provider, symbols, start, end, data.UniverseOptions{
		Concurrency: *flags.Fetchers,
		Logger:      log,
	})
	for _, d := range dropped {
		log.Warn("Download failed", zap.String("symbol", d.Symbol), zap.Error(d.Err))
	}

	for _, s := range series {
		path := filepath.Join(*flags.Common.DataRoot, s.Symbol+".csv")
		if err := data.WriteCSV(path, s.Bars); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "💾 %-12s %6d bars  %s → %s  %s\n", s.Symbol, s.Len(),
			s.First().Format("2006-01-02 15:04"), s.Last().Format("2006-01-02 15:04"), path)
	}
	fmt.Fprintf(stdout, "✅ %d downloaded, %d failed in %s\n", len(series), len(dropped), time.Since(started).Round(time.Millisecond))
	if len(series) == 0 {
		return fmt.Errorf("every download failed")
	}
	return ctx.Err()
}
