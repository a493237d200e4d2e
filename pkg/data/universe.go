package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"go.uber.org/zap"
)

// DroppedAsset records why a symbol was left out of the universe
type DroppedAsset struct {
	Symbol string
	Err    error
}

// UniverseOptions tunes LoadUniverse
type UniverseOptions struct {
	Concurrency int // parallel fetches, <= 0 means 4
	Logger      *zap.Logger
}

// LoadUniverse fetches every symbol and returns the usable series in symbol
// order. Assets that fail to load, have no bars or are out of order are
// dropped and reported; they never fail the whole load.
func LoadUniverse(ctx context.Context, provider BarProvider, symbols []string, start, end time.Time, opts UniverseOptions) ([]types.AssetSeries, []DroppedAsset) {
	log := logger.OrNop(opts.Logger)
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 4
	}

	type outcome struct {
		series types.AssetSeries
		err    error
	}
	outcomes := make([]outcome, len(symbols))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s, err := loadOne(ctx, provider, symbol, start, end)
			outcomes[i] = outcome{series: s, err: err}
		}(i, symbol)
	}
	wg.Wait()

	var series []types.AssetSeries
	var dropped []DroppedAsset
	for i, o := range outcomes {
		if o.err != nil {
			category, _ := bterrors.CategoryOf(o.err)
			log.Warn("asset dropped",
				zap.String("symbol", symbols[i]),
				zap.String("category", string(category)),
				zap.Error(o.err))
			dropped = append(dropped, DroppedAsset{Symbol: symbols[i], Err: o.err})
			continue
		}
		series = append(series, o.series)
	}

	log.Info("universe loaded",
		zap.String("provider", provider.GetName()),
		zap.Int("assets", len(series)),
		zap.Int("dropped", len(dropped)))
	return series, dropped
}

func loadOne(ctx context.Context, provider BarProvider, symbol string, start, end time.Time) (types.AssetSeries, error) {
	bars, err := provider.FetchBars(ctx, symbol, start, end)
	if err != nil {
		if _, ok := bterrors.CategoryOf(err); !ok {
			err = bterrors.Wrap(err, bterrors.ErrorCategoryDataUnavailable, provider.GetName(), "fetch").WithSymbol(symbol)
		}
		return types.AssetSeries{}, err
	}
	if len(bars) == 0 {
		return types.AssetSeries{}, bterrors.New(bterrors.ErrorCategoryDataUnavailable, provider.GetName(), "fetch",
			"no bars in range").WithSymbol(symbol)
	}
	if err := ValidateBars(symbol, bars); err != nil {
		return types.AssetSeries{}, err
	}
	return types.NewAssetSeries(symbol, bars)
}

// SymbolInfo is one row of the market-cap ranking list
type SymbolInfo struct {
	Symbol string
	Name   string
	Rank   int
}

// ReadSymbolList reads a "symbol,name,market_cap_rank" CSV. Columns are
// matched by header name; rows without a symbol are ignored.
func ReadSymbolList(path string) ([]SymbolInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol list: %w", err)
	}
	defer file.Close()
	return parseSymbolList(file)
}

func parseSymbolList(r io.Reader) ([]SymbolInfo, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol list header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	symCol, ok := cols["symbol"]
	if !ok {
		return nil, fmt.Errorf("symbol list has no symbol column")
	}
	nameCol, hasName := cols["name"]
	rankCol, hasRank := cols["market_cap_rank"]

	var list []SymbolInfo
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read symbol list: %w", err)
		}
		if symCol >= len(record) || strings.TrimSpace(record[symCol]) == "" {
			continue
		}
		info := SymbolInfo{Symbol: strings.TrimSpace(record[symCol])}
		if hasName && nameCol < len(record) {
			info.Name = record[nameCol]
		}
		if hasRank && rankCol < len(record) {
			info.Rank, _ = strconv.Atoi(strings.TrimSpace(record[rankCol]))
		}
		list = append(list, info)
	}
	return list, nil
}

// Symbols returns the first limit symbols of the list, all when limit <= 0
func Symbols(list []SymbolInfo, limit int) []string {
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Symbol
	}
	return out
}
