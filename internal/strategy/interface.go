package strategy

import (
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// Strategy decides, one bar at a time, what to do with a single asset.
// Implementations keep their per-asset memory in the AssetState handed to them.
type Strategy interface {
	// Evaluate consumes bar idx of the asset. atr is only meaningful when atrReady is true.
	Evaluate(state *AssetState, bar types.OHLCV, idx int, atr float64, atrReady bool) TradeDecision

	// GetName returns the name of the strategy
	GetName() string
}

// TradeDecision represents a trading decision made by a strategy
type TradeDecision struct {
	Action    TradeAction
	Price     float64 // execution price, the bar close
	Stop      float64 // initial stop for entries, current stop otherwise
	Gap       float64
	Reason    string
	BarIndex  int
	Timestamp time.Time
}

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}
