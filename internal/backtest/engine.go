package backtest

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/execution"
	"github.com/ducminhle1904/gap-atr-backtest/internal/indicators"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/ducminhle1904/gap-atr-backtest/internal/strategy"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TerminationPolicy decides when a run over series of unequal length stops
type TerminationPolicy string

const (
	// TerminateAll keeps stepping until every series is exhausted
	TerminateAll TerminationPolicy = "all"
	// TerminateShortest stops after the last bar of the earliest-ending series
	TerminateShortest TerminationPolicy = "shortest"
)

// ParseTerminationPolicy validates a policy name, empty means all
func ParseTerminationPolicy(s string) (TerminationPolicy, error) {
	switch TerminationPolicy(s) {
	case "", TerminateAll:
		return TerminateAll, nil
	case TerminateShortest:
		return TerminateShortest, nil
	default:
		return "", fmt.Errorf("unknown termination policy %q", s)
	}
}

// Config holds everything a run needs besides the data
type Config struct {
	InitialCash    float64
	CommissionRate float64
	CommissionMode execution.CommissionMode
	RiskFraction   float64
	ATRPeriod      int
	ATRSmoothing   indicators.Smoothing
	Strategy       strategy.Params
	Termination    TerminationPolicy
}

// DefaultConfig returns the stock settings: $100k, 0.1% fee, 80% risk, ATR(14)
func DefaultConfig() Config {
	return Config{
		InitialCash:    100000,
		CommissionRate: 0.001,
		CommissionMode: execution.CommissionOnTop,
		RiskFraction:   0.8,
		ATRPeriod:      14,
		ATRSmoothing:   indicators.SmoothingSimple,
		Strategy:       strategy.DefaultParams(),
		Termination:    TerminateAll,
	}
}

// Observer receives run events in simulation order. Implementations must not
// block; they are called on the simulation goroutine.
type Observer interface {
	OnFill(fill portfolio.Fill)
	OnTradeClosed(trade portfolio.Trade)
	OnSkip(symbol string, barIndex int, err error)
	OnEquity(point portfolio.EquityPoint)
}

// assetRecord is one row of the driver-owned asset table
type assetRecord struct {
	series types.AssetSeries
	atr    *indicators.ATR
	state  strategy.AssetState
	cursor int
}

func (r *assetRecord) done() bool {
	return r.cursor >= len(r.series.Bars)
}

// BacktestEngine replays registered series bar by bar against one shared
// cash account. A run is single threaded and deterministic.
type BacktestEngine struct {
	cfg      Config
	strategy strategy.Strategy
	series   []types.AssetSeries
	symbols  map[string]struct{}
	observer Observer
	log      *zap.Logger
}

// NewBacktestEngine validates cfg and creates an engine with no assets
func NewBacktestEngine(cfg Config, log *zap.Logger) (*BacktestEngine, error) {
	if cfg.ATRPeriod <= 0 {
		return nil, bterrors.Newf(bterrors.ErrorCategoryConfiguration, "engine", "new",
			"atr period must be positive, got %d", cfg.ATRPeriod)
	}
	if _, err := ParseTerminationPolicy(string(cfg.Termination)); err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "engine", "new")
	}
	if cfg.Termination == "" {
		cfg.Termination = TerminateAll
	}
	strat, err := strategy.NewGapATR(cfg.Strategy)
	if err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "engine", "new")
	}
	return &BacktestEngine{
		cfg:      cfg,
		strategy: strat,
		symbols:  make(map[string]struct{}),
		log:      logger.OrNop(log),
	}, nil
}

// SetObserver installs an event observer, nil removes it
func (b *BacktestEngine) SetObserver(o Observer) {
	b.observer = o
}

// AddSeries registers an asset. Registration order is the per-bar processing
// order. Empty, duplicate and out-of-order series are rejected, as are series
// holding a non-finite value or a non-positive close.
func (b *BacktestEngine) AddSeries(s types.AssetSeries) error {
	if s.Symbol == "" {
		return bterrors.New(bterrors.ErrorCategoryInvalidData, "engine", "add_series", "empty symbol")
	}
	if _, dup := b.symbols[s.Symbol]; dup {
		return bterrors.New(bterrors.ErrorCategoryInvalidData, "engine", "add_series", "symbol already registered").WithSymbol(s.Symbol)
	}
	if s.Len() == 0 {
		return bterrors.New(bterrors.ErrorCategoryDataUnavailable, "engine", "add_series", "no bars").WithSymbol(s.Symbol)
	}
	if err := types.ValidateTimeSequence(s.Bars); err != nil {
		return bterrors.Wrap(err, bterrors.ErrorCategoryDataOrdering, "engine", "add_series").WithSymbol(s.Symbol)
	}
	if err := types.ValidatePrices(s.Bars); err != nil {
		return bterrors.Wrap(err, bterrors.ErrorCategoryInvalidData, "engine", "add_series").WithSymbol(s.Symbol)
	}
	b.symbols[s.Symbol] = struct{}{}
	b.series = append(b.series, s)
	return nil
}

// Symbols returns registered symbols in processing order
func (b *BacktestEngine) Symbols() []string {
	out := make([]string, len(b.series))
	for i, s := range b.series {
		out[i] = s.Symbol
	}
	return out
}

// Config returns the engine configuration
func (b *BacktestEngine) Config() Config {
	return b.cfg
}

// Run simulates all registered assets from a fresh account. Repeated calls
// produce identical results.
func (b *BacktestEngine) Run() (*BacktestResults, error) {
	if len(b.series) == 0 {
		return nil, bterrors.New(bterrors.ErrorCategoryDataUnavailable, "engine", "run", "no assets registered")
	}

	ledger, err := portfolio.NewLedger(decimal.NewFromFloat(b.cfg.InitialCash))
	if err != nil {
		return nil, err
	}
	exec, err := execution.NewExecutor(ledger, execution.Config{
		RiskFraction:   b.cfg.RiskFraction,
		CommissionRate: b.cfg.CommissionRate,
		Mode:           b.cfg.CommissionMode,
	}, b.log)
	if err != nil {
		return nil, err
	}

	table := make([]*assetRecord, len(b.series))
	for i, s := range b.series {
		atr, err := indicators.NewATRWithSmoothing(b.cfg.ATRPeriod, b.cfg.ATRSmoothing)
		if err != nil {
			return nil, bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "engine", "run")
		}
		table[i] = &assetRecord{series: s, atr: atr}
	}

	cutoff, bounded := b.cutoff()
	stats := bterrors.NewErrorStats(50)
	results := &BacktestResults{
		StartBalance: b.cfg.InitialCash,
		Symbols:      b.Symbols(),
		Config:       b.cfg,
	}

	b.log.Info("backtest started",
		zap.Strings("symbols", results.Symbols),
		zap.Float64("initial_cash", b.cfg.InitialCash),
		zap.String("termination", string(b.cfg.Termination)))

	step := 0
	for {
		ts, ok := nextTimestamp(table)
		if !ok || (bounded && ts.After(cutoff)) {
			break
		}
		if step == 0 {
			results.StartTime = ts
		}

		for _, rec := range table {
			if rec.done() || !rec.series.Bars[rec.cursor].Timestamp.Equal(ts) {
				continue
			}
			idx := rec.cursor
			rec.cursor++
			if err := b.processBar(rec, idx, exec, ledger); err != nil {
				stats.RecordError(err)
				if b.observer != nil {
					b.observer.OnSkip(rec.series.Symbol, idx, err)
				}
			}
		}

		point := ledger.RecordEquity(step, ts)
		if point.Cash.IsNegative() {
			return nil, bterrors.Newf(bterrors.ErrorCategoryExecution, "engine", "run",
				"cash went negative at step %d: %s", step, point.Cash)
		}
		if b.observer != nil {
			b.observer.OnEquity(point)
		}
		results.EndTime = ts
		step++
	}

	results.Steps = step
	results.Skipped = stats.ErrorsByCategory
	results.populate(ledger)

	b.log.Info("backtest finished",
		zap.Int("steps", step),
		zap.Int("trades", len(results.Trades)),
		zap.Float64("final_equity", results.EndBalance),
		zap.Float64("total_return_pct", results.TotalReturnPct),
		zap.Float64("max_drawdown_pct", results.MaxDrawdownPct))
	return results, nil
}

// processBar runs indicator, strategy and execution for one asset bar.
// A returned error means the bar's action was skipped, the run goes on.
func (b *BacktestEngine) processBar(rec *assetRecord, idx int, exec *execution.Executor, ledger *portfolio.Ledger) error {
	bar := rec.series.Bars[idx]
	symbol := rec.series.Symbol

	atr, ready := rec.atr.Update(bar)
	ledger.Mark(symbol, decimal.NewFromFloat(bar.Close))

	decision := b.strategy.Evaluate(&rec.state, bar, idx, atr, ready)
	b.log.Debug("bar evaluated",
		zap.String("symbol", symbol),
		zap.Int("bar_index", idx),
		zap.String("state", rec.state.State.String()),
		zap.String("action", decision.Action.String()),
		zap.Float64("stop", decision.Stop),
		zap.String("reason", decision.Reason))

	req := execution.OrderRequest{
		Symbol:    symbol,
		Price:     decision.Price,
		Timestamp: bar.Timestamp,
		BarIndex:  idx,
	}

	switch decision.Action {
	case strategy.ActionBuy:
		fill, err := exec.Buy(req)
		if err != nil {
			b.logSkip(symbol, idx, "entry skipped", err)
			return err
		}
		rec.state.Enter(decision.Price, decision.Stop, idx)
		if b.observer != nil {
			b.observer.OnFill(fill)
		}

	case strategy.ActionSell:
		fill, trade, err := exec.Close(req)
		if err != nil {
			b.logSkip(symbol, idx, "exit skipped", err)
			return err
		}
		rec.state.Exit()
		if b.observer != nil {
			b.observer.OnFill(fill)
			b.observer.OnTradeClosed(trade)
		}
	}
	return nil
}

func (b *BacktestEngine) logSkip(symbol string, idx int, msg string, err error) {
	category, _ := bterrors.CategoryOf(err)
	b.log.Warn(msg,
		zap.String("symbol", symbol),
		zap.Int("bar_index", idx),
		zap.String("category", string(category)),
		zap.Error(err))
}

// cutoff is the last timestamp processed under the shortest policy
func (b *BacktestEngine) cutoff() (time.Time, bool) {
	if b.cfg.Termination != TerminateShortest {
		return time.Time{}, false
	}
	var earliest time.Time
	for i, s := range b.series {
		if last := s.Last(); i == 0 || last.Before(earliest) {
			earliest = last
		}
	}
	return earliest, true
}

// nextTimestamp is the earliest pending bar time across all assets
func nextTimestamp(table []*assetRecord) (time.Time, bool) {
	var next time.Time
	found := false
	for _, rec := range table {
		if rec.done() {
			continue
		}
		ts := rec.series.Bars[rec.cursor].Timestamp
		if !found || ts.Before(next) {
			next = ts
			found = true
		}
	}
	return next, found
}
