package config

import "github.com/ducminhle1904/gap-atr-backtest/pkg/data"

// Package config provides configuration management for the gap backtester

// Common configuration constants
const (
	DefaultInitialCash   = 100000.0
	DefaultCommission    = 0.001 // 0.1%
	DefaultRiskFraction  = 0.8
	DefaultGapThreshold  = 0.05
	DefaultATRPeriod     = 14
	DefaultATRMultiplier = 3.0
	DefaultInterval      = "1h"
	DefaultCategory      = "spot"

	// Validation bounds
	MaxCommission = 0.1 // 10%, anything above is a typo
	MaxThreshold  = 1.0 // 100%
	MaxATRPeriod  = 500

	// Sources
	SourceCSV   = data.SourceCSV
	SourceBybit = data.SourceBybit

	// File and directory constants
	DefaultDataRoot   = "data"
	DefaultResultsDir = "results"
	DefaultSymbolList = "top_crypto_list.csv"

	dateLayout = "2006-01-02"
)
