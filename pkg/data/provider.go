package data

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/gap-atr-backtest/internal/exchange/bybit"
	"go.uber.org/zap"
)

// Provider sources
const (
	SourceCSV   = "csv"
	SourceBybit = "bybit"
)

// ProviderOptions selects and configures a bar provider
type ProviderOptions struct {
	Source   string // csv (default) or bybit
	DataDir  string
	Interval string
	Category string
	Testnet  bool
	// Bybit market data is public; the key pair is optional
	APIKey    string
	APISecret string
	Logger    *zap.Logger
}

// NewProvider builds the provider for opts.Source wrapped in a memory cache
func NewProvider(opts ProviderOptions) (BarProvider, error) {
	switch strings.ToLower(opts.Source) {
	case "", SourceCSV:
		return NewCachedProvider(NewCSVProvider(opts.DataDir, opts.Logger)), nil
	case SourceBybit:
		interval, err := bybit.ParseInterval(opts.Interval)
		if err != nil {
			return nil, err
		}
		client := bybit.NewClient(bybit.Config{
			APIKey:    opts.APIKey,
			APISecret: opts.APISecret,
			Testnet:   opts.Testnet,
		})
		return NewCachedProvider(NewBybitProvider(client, opts.Category, interval, opts.Logger)), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", opts.Source)
	}
}
