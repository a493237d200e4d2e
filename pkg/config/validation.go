package config

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/execution"
	"github.com/ducminhle1904/gap-atr-backtest/internal/indicators"
)

// Validate checks every field and returns the first problem as a config error
func (c *BacktestConfig) Validate() error {
	if err := c.validate(); err != nil {
		return bterrors.Wrap(err, bterrors.ErrorCategoryConfiguration, "config", "validate")
	}
	return nil
}

func (c *BacktestConfig) validate() error {
	if len(c.Symbols) == 0 && c.SymbolList == "" {
		return fmt.Errorf("no symbols configured: set symbols or symbol_list")
	}
	for i, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symbol %d is empty", i)
		}
	}
	if c.TopN < 0 {
		return fmt.Errorf("top_n must be non-negative, got: %d", c.TopN)
	}

	switch c.Source {
	case SourceCSV:
		if c.DataDir == "" {
			return fmt.Errorf("data_dir is required for the csv source")
		}
	case SourceBybit:
		if c.Interval == "" {
			return fmt.Errorf("interval is required for the bybit source")
		}
	default:
		return fmt.Errorf("source must be %q or %q, got: %q", SourceCSV, SourceBybit, c.Source)
	}

	if c.InitialCash <= 0 {
		return fmt.Errorf("initial cash must be positive, got: %.2f", c.InitialCash)
	}
	if c.Commission < 0 || c.Commission > MaxCommission {
		return fmt.Errorf("commission must be between 0 and %.2f, got: %.4f", MaxCommission, c.Commission)
	}
	if _, err := execution.ParseCommissionMode(c.CommissionMode); err != nil {
		return err
	}
	if c.RiskFraction <= 0 || c.RiskFraction > 1 {
		return fmt.Errorf("risk fraction must be within (0, 1], got: %.4f", c.RiskFraction)
	}

	if c.GapThreshold <= 0 || c.GapThreshold > MaxThreshold {
		return fmt.Errorf("gap threshold must be within (0, %.2f], got: %.4f", MaxThreshold, c.GapThreshold)
	}
	if c.ATRPeriod <= 0 || c.ATRPeriod > MaxATRPeriod {
		return fmt.Errorf("atr period must be between 1 and %d, got: %d", MaxATRPeriod, c.ATRPeriod)
	}
	if c.ATRMultiplier <= 0 {
		return fmt.Errorf("atr multiplier must be positive, got: %.2f", c.ATRMultiplier)
	}
	if _, err := indicators.ParseSmoothing(c.ATRSmoothing); err != nil {
		return err
	}
	if _, err := backtest.ParseTerminationPolicy(c.Termination); err != nil {
		return err
	}

	start, err := c.StartTime()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := c.EndTime()
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return fmt.Errorf("end %s must be after start %s", c.End, c.Start)
	}
	return nil
}
