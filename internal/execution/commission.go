package execution

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CommissionMode controls how the fee interacts with position sizing
type CommissionMode string

const (
	// CommissionOnTop sizes the notional at cash*risk and charges the fee on top
	CommissionOnTop CommissionMode = "on_top"
	// CommissionNetOfFee fits notional plus fee inside cash*risk
	CommissionNetOfFee CommissionMode = "net_of_fee"
)

// ParseCommissionMode validates a mode name, empty means on_top
func ParseCommissionMode(s string) (CommissionMode, error) {
	switch CommissionMode(s) {
	case "", CommissionOnTop:
		return CommissionOnTop, nil
	case CommissionNetOfFee:
		return CommissionNetOfFee, nil
	default:
		return "", fmt.Errorf("unknown commission mode %q", s)
	}
}

// CommissionModel charges a fixed proportional rate on every executed notional
type CommissionModel struct {
	Rate decimal.Decimal
}

// NewCommissionModel creates a model for rate, which must be in [0, 1)
func NewCommissionModel(rate float64) (CommissionModel, error) {
	if rate < 0 || rate >= 1 {
		return CommissionModel{}, fmt.Errorf("commission rate must be in [0, 1), got %v", rate)
	}
	return CommissionModel{Rate: decimal.NewFromFloat(rate)}, nil
}

// Fee returns notional * rate
func (c CommissionModel) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(c.Rate)
}

// NotionalFor returns the notional for an order budget under mode
func (c CommissionModel) NotionalFor(budget decimal.Decimal, mode CommissionMode) decimal.Decimal {
	if mode == CommissionNetOfFee {
		return budget.Div(decimal.NewFromInt(1).Add(c.Rate))
	}
	return budget
}
