package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OutputConfig selects the result sinks
type OutputConfig struct {
	Dir     string `json:"dir"`
	Console bool   `json:"console"`
	Excel   bool   `json:"excel"`
	CSV     bool   `json:"csv"`
	JSON    bool   `json:"json"`
	Discord bool   `json:"discord"`
}

// BacktestConfig is the on-disk run configuration
type BacktestConfig struct {
	Symbols    []string `json:"symbols"`
	SymbolList string   `json:"symbol_list,omitempty"` // ranking CSV used when symbols is empty
	TopN       int      `json:"top_n,omitempty"`

	Source   string `json:"source"`
	DataDir  string `json:"data_dir"`
	Interval string `json:"interval"`
	Category string `json:"category"`
	Testnet  bool   `json:"testnet,omitempty"`
	Start    string `json:"start,omitempty"` // YYYY-MM-DD or RFC3339
	End      string `json:"end,omitempty"`

	InitialCash    float64 `json:"initial_cash"`
	Commission     float64 `json:"commission"`
	CommissionMode string  `json:"commission_mode"`
	RiskFraction   float64 `json:"risk_fraction"`

	GapThreshold  float64 `json:"gap_threshold"`
	ATRPeriod     int     `json:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier"`
	ATRSmoothing  string  `json:"atr_smoothing"`
	Termination   string  `json:"termination"`

	Output OutputConfig `json:"output"`
}

// Default returns the stock configuration
func Default() *BacktestConfig {
	return &BacktestConfig{
		Source:         SourceCSV,
		DataDir:        DefaultDataRoot,
		Interval:       DefaultInterval,
		Category:       DefaultCategory,
		InitialCash:    DefaultInitialCash,
		Commission:     DefaultCommission,
		CommissionMode: "on_top",
		RiskFraction:   DefaultRiskFraction,
		GapThreshold:   DefaultGapThreshold,
		ATRPeriod:      DefaultATRPeriod,
		ATRMultiplier:  DefaultATRMultiplier,
		ATRSmoothing:   "sma",
		Termination:    "all",
		Output: OutputConfig{
			Dir:     DefaultResultsDir,
			Console: true,
		},
	}
}

// LoadFile reads a JSON config over the defaults. Fields missing from the
// file keep their default value.
func LoadFile(path string) (*BacktestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON
func (c *BacktestConfig) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// StartTime parses Start, zero when unset
func (c *BacktestConfig) StartTime() (time.Time, error) {
	return parseDate(c.Start, false)
}

// EndTime parses End, zero when unset. A bare date covers that whole day.
func (c *BacktestConfig) EndTime() (time.Time, error) {
	return parseDate(c.End, true)
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC3339", s)
	}
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Second)
	}
	return ts, nil
}
