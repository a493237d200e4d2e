package config

import (
	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	"github.com/ducminhle1904/gap-atr-backtest/internal/execution"
	"github.com/ducminhle1904/gap-atr-backtest/internal/indicators"
	"github.com/ducminhle1904/gap-atr-backtest/internal/strategy"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/data"
	"go.uber.org/zap"
)

// ToEngineConfig converts the file config into the engine's settings.
// Call Validate first; unknown enum values fall back to the defaults here.
func (c *BacktestConfig) ToEngineConfig() backtest.Config {
	mode, err := execution.ParseCommissionMode(c.CommissionMode)
	if err != nil {
		mode = execution.CommissionOnTop
	}
	smoothing, err := indicators.ParseSmoothing(c.ATRSmoothing)
	if err != nil {
		smoothing = indicators.SmoothingSimple
	}
	term, err := backtest.ParseTerminationPolicy(c.Termination)
	if err != nil {
		term = backtest.TerminateAll
	}
	return backtest.Config{
		InitialCash:    c.InitialCash,
		CommissionRate: c.Commission,
		CommissionMode: mode,
		RiskFraction:   c.RiskFraction,
		ATRPeriod:      c.ATRPeriod,
		ATRSmoothing:   smoothing,
		Strategy: strategy.Params{
			GapThreshold:  c.GapThreshold,
			ATRMultiplier: c.ATRMultiplier,
		},
		Termination: term,
	}
}

// ProviderOptions describes the bar source of the run
func (c *BacktestConfig) ProviderOptions(secrets Secrets, log *zap.Logger) data.ProviderOptions {
	return data.ProviderOptions{
		Source:    c.Source,
		DataDir:   c.DataDir,
		Interval:  c.Interval,
		Category:  c.Category,
		Testnet:   c.Testnet,
		APIKey:    secrets.BybitAPIKey,
		APISecret: secrets.BybitAPISecret,
		Logger:    log,
	}
}
