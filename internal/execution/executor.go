package execution

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds order sizing parameters
type Config struct {
	RiskFraction   float64 // share of available cash committed per entry
	CommissionRate float64
	Mode           CommissionMode
}

// OrderRequest is a market order at the bar close
type OrderRequest struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
	BarIndex  int
}

// Executor turns strategy decisions into fills and posts them to the ledger.
// It is the only writer of cash and holdings.
type Executor struct {
	ledger     *portfolio.Ledger
	commission CommissionModel
	risk       decimal.Decimal
	mode       CommissionMode
	log        *zap.Logger
}

// NewExecutor validates cfg and binds it to ledger
func NewExecutor(ledger *portfolio.Ledger, cfg Config, log *zap.Logger) (*Executor, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.RiskFraction <= 0 || cfg.RiskFraction > 1 {
		return nil, bterrors.Newf(bterrors.ErrorCategoryConfiguration, "executor", "new",
			"risk fraction must be in (0, 1], got %v", cfg.RiskFraction)
	}
	commission, err := NewCommissionModel(cfg.CommissionRate)
	if err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "executor", "new")
	}
	mode, err := ParseCommissionMode(string(cfg.Mode))
	if err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "executor", "new")
	}
	return &Executor{
		ledger:     ledger,
		commission: commission,
		risk:       decimal.NewFromFloat(cfg.RiskFraction),
		mode:       mode,
		log:        logger.OrNop(log),
	}, nil
}

// Buy sizes a long entry against the cash available right now. No partial
// fills: an order that cannot be funded is rejected with ErrInsufficientFunds.
func (e *Executor) Buy(req OrderRequest) (portfolio.Fill, error) {
	if req.Price <= 0 {
		return portfolio.Fill{}, bterrors.Newf(bterrors.ErrorCategoryInvalidData, "executor", "buy",
			"non-positive price %v", req.Price).WithSymbol(req.Symbol)
	}
	price := decimal.NewFromFloat(req.Price)
	cash := e.ledger.Cash()

	budget := cash.Mul(e.risk)
	notional := e.commission.NotionalFor(budget, e.mode)
	fee := e.commission.Fee(notional)
	size := notional.Div(price)

	if !size.IsPositive() {
		return portfolio.Fill{}, bterrors.Newf(bterrors.ErrorCategoryInsufficientFunds, "executor", "buy",
			"order size %s is not positive (cash %s)", size, cash.StringFixed(2)).WithSymbol(req.Symbol)
	}
	if notional.Add(fee).GreaterThan(cash) {
		return portfolio.Fill{}, bterrors.Newf(bterrors.ErrorCategoryInsufficientFunds, "executor", "buy",
			"notional %s + fee %s exceeds cash %s", notional.StringFixed(2), fee.StringFixed(2), cash.StringFixed(2)).WithSymbol(req.Symbol)
	}

	fill := portfolio.Fill{
		Symbol:     req.Symbol,
		Side:       portfolio.SideBuy,
		Size:       size,
		Price:      price,
		Notional:   notional,
		Commission: fee,
		Timestamp:  req.Timestamp,
		BarIndex:   req.BarIndex,
	}
	if err := e.ledger.ApplyBuy(fill); err != nil {
		return portfolio.Fill{}, err
	}

	e.log.Info("buy filled",
		zap.String("symbol", req.Symbol),
		zap.Int("bar_index", req.BarIndex),
		zap.String("size", size.String()),
		zap.String("price", price.String()),
		zap.String("commission", fee.StringFixed(4)),
		zap.String("cash", e.ledger.Cash().StringFixed(2)))
	return fill, nil
}

// Close sells the entire open position for req.Symbol at req.Price
func (e *Executor) Close(req OrderRequest) (portfolio.Fill, portfolio.Trade, error) {
	h, ok := e.ledger.Holding(req.Symbol)
	if !ok {
		return portfolio.Fill{}, portfolio.Trade{}, bterrors.New(bterrors.ErrorCategoryExecution, "executor", "close",
			"no open position").WithSymbol(req.Symbol)
	}
	if req.Price <= 0 {
		return portfolio.Fill{}, portfolio.Trade{}, bterrors.Newf(bterrors.ErrorCategoryInvalidData, "executor", "close",
			"non-positive price %v", req.Price).WithSymbol(req.Symbol)
	}
	price := decimal.NewFromFloat(req.Price)
	notional := h.Size.Mul(price)

	fill := portfolio.Fill{
		Symbol:     req.Symbol,
		Side:       portfolio.SideSell,
		Size:       h.Size,
		Price:      price,
		Notional:   notional,
		Commission: e.commission.Fee(notional),
		Timestamp:  req.Timestamp,
		BarIndex:   req.BarIndex,
	}
	trade, err := e.ledger.ApplyClose(fill)
	if err != nil {
		return portfolio.Fill{}, portfolio.Trade{}, err
	}

	e.log.Info("position closed",
		zap.String("symbol", req.Symbol),
		zap.Int("bar_index", req.BarIndex),
		zap.String("price", price.String()),
		zap.String("pnl", trade.PnL.StringFixed(2)),
		zap.String("cash", e.ledger.Cash().StringFixed(2)))
	return fill, trade, nil
}

// Ledger returns the account the executor posts to
func (e *Executor) Ledger() *portfolio.Ledger {
	return e.ledger
}
