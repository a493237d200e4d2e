package portfolio

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/shopspring/decimal"
)

// Side of an executed fill
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Fill is an executed order as posted to the ledger
type Fill struct {
	Symbol     string
	Side       Side
	Size       decimal.Decimal
	Price      decimal.Decimal
	Notional   decimal.Decimal
	Commission decimal.Decimal
	Timestamp  time.Time
	BarIndex   int
}

// Holding is an open long position
type Holding struct {
	Symbol          string
	Size            decimal.Decimal
	EntryPrice      decimal.Decimal
	EntryNotional   decimal.Decimal
	EntryCommission decimal.Decimal
	EntryTime       time.Time
	EntryIndex      int
}

// Trade is a closed round trip
type Trade struct {
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryIndex int
	ExitIndex  int
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Size       decimal.Decimal
	Commission decimal.Decimal // entry + exit
	PnL        decimal.Decimal // net of both commissions
}

// ReturnPct is the net PnL relative to the entry notional
func (t Trade) ReturnPct() float64 {
	entry := t.EntryPrice.Mul(t.Size)
	if entry.IsZero() {
		return 0
	}
	return t.PnL.Div(entry).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// EquityPoint is one sample of the equity curve
type EquityPoint struct {
	Index     int
	Timestamp time.Time
	Cash      decimal.Decimal
	Holdings  decimal.Decimal
	Equity    decimal.Decimal
}

// Ledger is the single shared cash account of a run. It is not safe for
// concurrent use; the simulation drives it from one goroutine.
type Ledger struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	fees        decimal.Decimal

	holdings map[string]*Holding
	order    []string
	marks    map[string]decimal.Decimal

	curve  []EquityPoint
	trades []Trade
}

// NewLedger opens an account funded with initialCash
func NewLedger(initialCash decimal.Decimal) (*Ledger, error) {
	if !initialCash.IsPositive() {
		return nil, bterrors.Newf(bterrors.ErrorCategoryConfiguration, "ledger", "new",
			"initial cash must be positive, got %s", initialCash)
	}
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		fees:        decimal.Zero,
		holdings:    make(map[string]*Holding),
		marks:       make(map[string]decimal.Decimal),
	}, nil
}

// InitialCash returns the starting balance
func (l *Ledger) InitialCash() decimal.Decimal { return l.initialCash }

// Cash returns the uninvested balance
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// TotalCommission returns all fees paid so far
func (l *Ledger) TotalCommission() decimal.Decimal { return l.fees }

// Holding returns the open position for symbol, if any
func (l *Ledger) Holding(symbol string) (Holding, bool) {
	h, ok := l.holdings[symbol]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// OpenHoldings returns open positions in the order they were opened
func (l *Ledger) OpenHoldings() []Holding {
	out := make([]Holding, 0, len(l.order))
	for _, sym := range l.order {
		out = append(out, *l.holdings[sym])
	}
	return out
}

// ApplyBuy debits notional plus commission and opens a position. A buy that
// would take cash below zero is rejected and leaves the ledger untouched.
func (l *Ledger) ApplyBuy(f Fill) error {
	if f.Side != SideBuy {
		return bterrors.Newf(bterrors.ErrorCategoryExecution, "ledger", "buy", "unexpected side %s", f.Side).WithSymbol(f.Symbol)
	}
	if !f.Size.IsPositive() || !f.Price.IsPositive() {
		return bterrors.Newf(bterrors.ErrorCategoryExecution, "ledger", "buy",
			"size %s and price %s must be positive", f.Size, f.Price).WithSymbol(f.Symbol)
	}
	if _, exists := l.holdings[f.Symbol]; exists {
		return bterrors.New(bterrors.ErrorCategoryExecution, "ledger", "buy", "position already open").WithSymbol(f.Symbol)
	}

	cost := f.Notional.Add(f.Commission)
	if cost.GreaterThan(l.cash) {
		return bterrors.Newf(bterrors.ErrorCategoryInsufficientFunds, "ledger", "buy",
			"cost %s exceeds cash %s", cost.StringFixed(2), l.cash.StringFixed(2)).WithSymbol(f.Symbol)
	}

	l.cash = l.cash.Sub(cost)
	l.fees = l.fees.Add(f.Commission)
	l.holdings[f.Symbol] = &Holding{
		Symbol:          f.Symbol,
		Size:            f.Size,
		EntryPrice:      f.Price,
		EntryNotional:   f.Notional,
		EntryCommission: f.Commission,
		EntryTime:       f.Timestamp,
		EntryIndex:      f.BarIndex,
	}
	l.order = append(l.order, f.Symbol)
	l.marks[f.Symbol] = f.Price
	return nil
}

// ApplyClose sells the whole position, credits notional minus commission and
// records the round trip.
func (l *Ledger) ApplyClose(f Fill) (Trade, error) {
	if f.Side != SideSell {
		return Trade{}, bterrors.Newf(bterrors.ErrorCategoryExecution, "ledger", "close", "unexpected side %s", f.Side).WithSymbol(f.Symbol)
	}
	h, ok := l.holdings[f.Symbol]
	if !ok {
		return Trade{}, bterrors.New(bterrors.ErrorCategoryExecution, "ledger", "close", "no open position").WithSymbol(f.Symbol)
	}
	if !f.Size.Equal(h.Size) {
		return Trade{}, bterrors.Newf(bterrors.ErrorCategoryExecution, "ledger", "close",
			"partial close not supported: size %s, holding %s", f.Size, h.Size).WithSymbol(f.Symbol)
	}

	proceeds := f.Notional.Sub(f.Commission)
	l.cash = l.cash.Add(proceeds)
	l.fees = l.fees.Add(f.Commission)
	l.marks[f.Symbol] = f.Price

	trade := Trade{
		Symbol:     f.Symbol,
		EntryTime:  h.EntryTime,
		ExitTime:   f.Timestamp,
		EntryIndex: h.EntryIndex,
		ExitIndex:  f.BarIndex,
		EntryPrice: h.EntryPrice,
		ExitPrice:  f.Price,
		Size:       h.Size,
		Commission: h.EntryCommission.Add(f.Commission),
		PnL:        proceeds.Sub(h.EntryNotional.Add(h.EntryCommission)),
	}
	l.trades = append(l.trades, trade)

	delete(l.holdings, f.Symbol)
	for i, sym := range l.order {
		if sym == f.Symbol {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return trade, nil
}

// Mark sets the last known price of symbol used for valuation
func (l *Ledger) Mark(symbol string, price decimal.Decimal) {
	l.marks[symbol] = price
}

// LastMark returns the last price seen for symbol
func (l *Ledger) LastMark(symbol string) (decimal.Decimal, bool) {
	p, ok := l.marks[symbol]
	return p, ok
}

// HoldingsValue is the sum of size times last mark over open positions
func (l *Ledger) HoldingsValue() decimal.Decimal {
	total := decimal.Zero
	for _, sym := range l.order {
		h := l.holdings[sym]
		price, ok := l.marks[sym]
		if !ok {
			price = h.EntryPrice
		}
		total = total.Add(h.Size.Mul(price))
	}
	return total
}

// Equity = cash + holdings value
func (l *Ledger) Equity() decimal.Decimal {
	return l.cash.Add(l.HoldingsValue())
}

// RecordEquity appends one sample to the equity curve
func (l *Ledger) RecordEquity(index int, ts time.Time) EquityPoint {
	hv := l.HoldingsValue()
	p := EquityPoint{
		Index:     index,
		Timestamp: ts,
		Cash:      l.cash,
		Holdings:  hv,
		Equity:    l.cash.Add(hv),
	}
	l.curve = append(l.curve, p)
	return p
}

// EquityCurve returns a copy of the recorded samples
func (l *Ledger) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(l.curve))
	copy(out, l.curve)
	return out
}

// Trades returns a copy of the closed trades in close order
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// String summarizes the account for logs
func (l *Ledger) String() string {
	return fmt.Sprintf("cash=%s open=%d trades=%d", l.cash.StringFixed(2), len(l.order), len(l.trades))
}
