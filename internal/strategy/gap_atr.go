package strategy

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// PositionState is the per-asset position machine state
type PositionState int

const (
	StateFlat PositionState = iota
	StateLong
)

func (s PositionState) String() string {
	if s == StateLong {
		return "LONG"
	}
	return "FLAT"
}

// AssetState is the strategy's memory for one asset
type AssetState struct {
	State      PositionState
	EntryPrice float64
	StopPrice  float64
	EntryIndex int

	prevClose float64
	bars      int
}

// Bars returns how many bars of the asset have been evaluated
func (s *AssetState) Bars() int { return s.bars }

// Enter moves the asset to LONG once the entry order has been filled
func (s *AssetState) Enter(price, stop float64, idx int) {
	s.State = StateLong
	s.EntryPrice = price
	s.StopPrice = stop
	s.EntryIndex = idx
}

// Exit moves the asset back to FLAT once the close order has been filled
func (s *AssetState) Exit() {
	s.State = StateFlat
	s.EntryPrice = 0
	s.StopPrice = 0
	s.EntryIndex = 0
}

// Params configures GapATR
type Params struct {
	GapThreshold  float64 // minimum close-to-close rise, 0.05 = 5%
	ATRMultiplier float64
}

// DefaultParams returns the stock 5% gap, 3x ATR stop settings
func DefaultParams() Params {
	return Params{GapThreshold: 0.05, ATRMultiplier: 3}
}

// GapATR enters long on an upward close-to-close gap and rides a trailing
// stop at close - ATR*multiplier that only ever moves up.
type GapATR struct {
	params Params
}

// NewGapATR validates params
func NewGapATR(params Params) (*GapATR, error) {
	if params.GapThreshold <= 0 || math.IsNaN(params.GapThreshold) {
		return nil, fmt.Errorf("gap threshold must be positive, got %v", params.GapThreshold)
	}
	if params.ATRMultiplier <= 0 || math.IsNaN(params.ATRMultiplier) {
		return nil, fmt.Errorf("ATR multiplier must be positive, got %v", params.ATRMultiplier)
	}
	return &GapATR{params: params}, nil
}

// GetName returns the strategy name
func (g *GapATR) GetName() string {
	return "GapATR"
}

// Params returns the configured parameters
func (g *GapATR) Params() Params {
	return g.params
}

// Evaluate runs one step of the machine. FLAT assets only look for an entry;
// LONG assets ratchet the stop and then test close < stop. The state itself
// only changes through Enter and Exit after the order is executed, except for
// the stop ratchet.
func (g *GapATR) Evaluate(state *AssetState, bar types.OHLCV, idx int, atr float64, atrReady bool) TradeDecision {
	decision := TradeDecision{
		Action:    ActionHold,
		Price:     bar.Close,
		BarIndex:  idx,
		Timestamp: bar.Timestamp,
	}
	prevClose, hasPrev := state.prevClose, state.bars > 0
	state.prevClose = bar.Close
	state.bars++

	switch state.State {
	case StateFlat:
		if !hasPrev || prevClose <= 0 {
			decision.Reason = "need two bars"
			return decision
		}
		decision.Gap = (bar.Close - prevClose) / prevClose
		if !atrReady {
			decision.Reason = "atr warming up"
			return decision
		}
		if decision.Gap >= g.params.GapThreshold {
			decision.Action = ActionBuy
			decision.Stop = bar.Close - atr*g.params.ATRMultiplier
			decision.Reason = fmt.Sprintf("gap %.2f%% >= %.2f%%", decision.Gap*100, g.params.GapThreshold*100)
		}
		return decision

	case StateLong:
		if atrReady {
			candidate := bar.Close - atr*g.params.ATRMultiplier
			if candidate > state.StopPrice {
				state.StopPrice = candidate
			}
		}
		decision.Stop = state.StopPrice
		if bar.Close < state.StopPrice {
			decision.Action = ActionSell
			decision.Reason = fmt.Sprintf("close %.4f below stop %.4f", bar.Close, state.StopPrice)
		}
		return decision
	}
	return decision
}
