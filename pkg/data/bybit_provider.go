package data

import (
	"context"
	"strings"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/exchange/bybit"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"go.uber.org/zap"
)

// DefaultLookback is the history fetched when no start date is given
const DefaultLookback = 30 * 24 * time.Hour

// KlineSource is the part of the Bybit client the provider needs
type KlineSource interface {
	GetKlineRange(ctx context.Context, category, symbol string, interval bybit.KlineInterval, start, end time.Time) ([]bybit.Kline, error)
}

// BybitProvider downloads bars from Bybit's public kline endpoint
type BybitProvider struct {
	source   KlineSource
	category string
	interval bybit.KlineInterval
	now      func() time.Time
	log      *zap.Logger
}

// NewBybitProvider creates a provider for category ("spot", "linear") and interval
func NewBybitProvider(source KlineSource, category string, interval bybit.KlineInterval, log *zap.Logger) *BybitProvider {
	if category == "" {
		category = "spot"
	}
	if interval == "" {
		interval = bybit.Interval1h
	}
	return &BybitProvider{
		source:   source,
		category: category,
		interval: interval,
		now:      time.Now,
		log:      logger.OrNop(log),
	}
}

// GetName returns the name of the data provider
func (p *BybitProvider) GetName() string {
	return "bybit"
}

// FetchBars downloads [start, end]. A zero end means now, a zero start means
// DefaultLookback before end.
func (p *BybitProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.OHLCV, error) {
	if end.IsZero() {
		end = p.now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-DefaultLookback)
	}
	market := ExchangeSymbol(symbol)

	klines, err := p.source.GetKlineRange(ctx, p.category, market, p.interval, start, end)
	if err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryDataUnavailable, "bybit", "fetch").WithSymbol(symbol)
	}

	bars := make([]types.OHLCV, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, k.ToOHLCV())
	}
	p.log.Debug("klines downloaded",
		zap.String("symbol", symbol),
		zap.String("market", market),
		zap.String("interval", string(p.interval)),
		zap.Int("bars", len(bars)))
	return bars, nil
}

// ExchangeSymbol maps "BTC-USD" style tickers from the ranking list to
// Bybit's "BTCUSDT". Other symbols are upper-cased unchanged.
func ExchangeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if base, ok := strings.CutSuffix(s, "-USD"); ok {
		return base + "USDT"
	}
	return strings.ReplaceAll(s, "-", "")
}
